package gateways

import (
	"sort"

	"github.com/dezko/dezko-backend/pkg/enums"
)

// Registry resolves the adapter for a payment method. Only configured
// adapters are registered.
type Registry struct {
	byMethod  map[enums.PaymentMethod]Gateway
	byGateway map[enums.Gateway]Gateway
}

func NewRegistry() *Registry {
	return &Registry{
		byMethod:  map[enums.PaymentMethod]Gateway{},
		byGateway: map[enums.Gateway]Gateway{},
	}
}

// Register binds method to gw. Nil adapters are ignored.
func (r *Registry) Register(method enums.PaymentMethod, gw Gateway) {
	if r == nil || gw == nil {
		return
	}
	r.byMethod[method] = gw
	r.byGateway[gw.Name()] = gw
}

// ForMethod returns the adapter serving a checkout payment method.
func (r *Registry) ForMethod(method enums.PaymentMethod) (Gateway, bool) {
	if r == nil {
		return nil, false
	}
	gw, ok := r.byMethod[method]
	return gw, ok
}

// ForGateway returns the adapter that owns charges recorded under name.
func (r *Registry) ForGateway(name enums.Gateway) (Gateway, bool) {
	if r == nil {
		return nil, false
	}
	gw, ok := r.byGateway[name]
	return gw, ok
}

// Methods lists the registered payment methods in stable order.
func (r *Registry) Methods() []enums.PaymentMethod {
	if r == nil {
		return nil
	}
	out := make([]enums.PaymentMethod, 0, len(r.byMethod))
	for method := range r.byMethod {
		out = append(out, method)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GatewayFor maps a checkout method onto the provider recorded on orders.
func GatewayFor(method enums.PaymentMethod) enums.Gateway {
	switch method {
	case enums.PaymentMethodStripe:
		return enums.GatewayStripe
	case enums.PaymentMethodPix:
		return enums.GatewayOpenPix
	case enums.PaymentMethodMercadoPago:
		return enums.GatewayMercadoPago
	default:
		return ""
	}
}
