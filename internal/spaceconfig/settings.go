package spaceconfig

import (
	"slices"

	"github.com/dezko/dezko-backend/pkg/enums"
)

// Settings is the typed view of the space_configs JSON blob.
type Settings struct {
	EnabledMethods []enums.PaymentMethod `json:"enabled_methods"`
	PixKey         string                `json:"pix_key,omitempty"`
	Stripe         StripeConnection      `json:"stripe"`
	MercadoPago    MercadoPagoConnection `json:"mercadopago"`
	QuickPayment   QuickPayment          `json:"quick_payment"`
}

type StripeConnection struct {
	AccountID string `json:"account_id,omitempty"`
	Connected bool   `json:"connected"`
}

type MercadoPagoConnection struct {
	UserID    string `json:"user_id,omitempty"`
	Connected bool   `json:"connected"`
}

// QuickPayment lets end users pay with a preselected method.
type QuickPayment struct {
	Enabled       bool                 `json:"enabled"`
	DefaultMethod *enums.PaymentMethod `json:"default_method,omitempty"`
}

// Default is used for spaces that never saved settings.
func Default() Settings {
	return Settings{EnabledMethods: []enums.PaymentMethod{}}
}

// IsEnabled reports whether the method is turned on for the space.
func (s Settings) IsEnabled(method enums.PaymentMethod) bool {
	return slices.Contains(s.EnabledMethods, method)
}

func (s *Settings) enable(method enums.PaymentMethod) {
	if !s.IsEnabled(method) {
		s.EnabledMethods = append(s.EnabledMethods, method)
	}
}

func (s *Settings) disable(method enums.PaymentMethod) {
	s.EnabledMethods = slices.DeleteFunc(s.EnabledMethods, func(m enums.PaymentMethod) bool { return m == method })
	if s.QuickPayment.DefaultMethod != nil && *s.QuickPayment.DefaultMethod == method {
		s.QuickPayment.DefaultMethod = nil
		s.QuickPayment.Enabled = false
	}
}
