// Package bootstrap assembles the payment gateway adapters shared by the api
// and cron-worker binaries.
package bootstrap

import (
	"context"
	"errors"
	"net/http"

	"github.com/dezko/dezko-backend/internal/gateways"
	mercadopagogw "github.com/dezko/dezko-backend/internal/gateways/mercadopago"
	openpixgw "github.com/dezko/dezko-backend/internal/gateways/openpix"
	"github.com/dezko/dezko-backend/internal/gateways/stripeconnect"
	"github.com/dezko/dezko-backend/internal/payments"
	"github.com/dezko/dezko-backend/pkg/config"
	"github.com/dezko/dezko-backend/pkg/enums"
	"github.com/dezko/dezko-backend/pkg/logger"
	"github.com/dezko/dezko-backend/pkg/metrics"
	pkgopenpix "github.com/dezko/dezko-backend/pkg/openpix"
	pkgstripe "github.com/dezko/dezko-backend/pkg/stripe"
)

// ErrSealerRequired is returned when Mercado Pago is enabled without a usable
// secrets key.
var ErrSealerRequired = errors.New("mercadopago gateway enabled but DEZKO_SECRETS_KEY is not usable")

// GatewaySet holds the registry plus the concrete clients other components need.
type GatewaySet struct {
	Registry    *gateways.Registry
	Fees        map[enums.Gateway]int
	Stripe      *pkgstripe.Client
	MercadoPago *mercadopagogw.SDK
}

// BuildGateways registers every enabled adapter behind the timeout and
// metrics decorator. A gateway that is enabled but misconfigured aborts boot.
func BuildGateways(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	paymentsRepo payments.Repository,
	accounts mercadopagogw.AccountRepository,
	sealer mercadopagogw.Sealer,
	gatewayMetrics *metrics.GatewayMetrics,
) (*GatewaySet, error) {
	set := &GatewaySet{
		Registry: gateways.NewRegistry(),
		Fees:     map[enums.Gateway]int{},
	}
	timeout := cfg.Gateways.Timeout

	if cfg.Gateways.IsEnabled(config.GatewayStripe) {
		client, err := pkgstripe.NewClient(ctx, cfg.Stripe, timeout, logg)
		if err != nil {
			return nil, err
		}
		adapter, err := stripeconnect.NewAdapter(stripeconnect.NewAPI(), stripeconnect.Settings{
			Currency:       client.Currency(),
			FeeBasisPoints: client.FeeBasisPoints(),
		})
		if err != nil {
			return nil, err
		}
		set.Stripe = client
		set.Fees[enums.GatewayStripe] = client.FeeBasisPoints()
		set.Registry.Register(enums.PaymentMethodStripe, gateways.Instrument(adapter, timeout, gatewayMetrics))
	}

	if cfg.Gateways.IsEnabled(config.GatewayPix) {
		if err := cfg.OpenPix.Validate(); err != nil {
			return nil, err
		}
		client, err := pkgopenpix.NewClient(
			cfg.OpenPix.AppID,
			pkgopenpix.WithBaseURL(cfg.OpenPix.BaseURL),
			pkgopenpix.WithHTTPClient(&http.Client{Timeout: timeout}),
		)
		if err != nil {
			return nil, err
		}
		adapter, err := openpixgw.NewAdapter(client, paymentsRepo, openpixgw.Settings{
			FeeBasisPoints: cfg.OpenPix.FeeBasisPoints,
			ChargeExpiry:   cfg.OpenPix.ChargeExpiry,
		})
		if err != nil {
			return nil, err
		}
		set.Fees[enums.GatewayOpenPix] = cfg.OpenPix.FeeBasisPoints
		set.Registry.Register(enums.PaymentMethodPix, gateways.Instrument(adapter, timeout, gatewayMetrics))
	}

	if cfg.Gateways.IsEnabled(config.GatewayMercadoPago) {
		if err := cfg.MercadoPago.Validate(); err != nil {
			return nil, err
		}
		if sealer == nil {
			return nil, ErrSealerRequired
		}
		api, err := mercadopagogw.NewAPI(cfg.MercadoPago.AccessToken, cfg.MercadoPago.ClientID)
		if err != nil {
			return nil, err
		}
		adapter, err := mercadopagogw.NewAdapter(api, accounts, sealer, mercadopagogw.Settings{
			FeeBasisPoints: cfg.MercadoPago.FeeBasisPoints,
		})
		if err != nil {
			return nil, err
		}
		set.MercadoPago = api
		set.Fees[enums.GatewayMercadoPago] = cfg.MercadoPago.FeeBasisPoints
		set.Registry.Register(enums.PaymentMethodMercadoPago, gateways.Instrument(adapter, timeout, gatewayMetrics))
	}

	return set, nil
}
