package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dezko/dezko-backend/internal/bookings"
	mercadopagogw "github.com/dezko/dezko-backend/internal/gateways/mercadopago"
	"github.com/dezko/dezko-backend/internal/payments"
	"github.com/dezko/dezko-backend/internal/plans"
	"github.com/dezko/dezko-backend/internal/spaceconfig"
	"github.com/dezko/dezko-backend/internal/spaces"
	"github.com/dezko/dezko-backend/internal/subscriptions"
	"github.com/dezko/dezko-backend/internal/users"
	"github.com/dezko/dezko-backend/pkg/metrics"
	"github.com/dezko/dezko-backend/pkg/outbox"
	"github.com/dezko/dezko-backend/pkg/redis"
)

// Domain is the booking and billing core shared by the api and the cron
// worker: repositories, gateways and the two stateful services.
type Domain struct {
	Payments      payments.Repository
	Spaces        spaces.Repository
	Users         *users.Repository
	Plans         plans.Repository
	MPAccounts    mercadopagogw.AccountRepository
	OutboxRepo    *outbox.Repository
	Emitter       *outbox.Service
	Sealer        mercadopagogw.Sealer
	Gateways      *GatewaySet
	GatewayStats  *metrics.GatewayMetrics
	SpaceConfig   spaceconfig.Service
	Bookings      bookings.Service
	Subscriptions subscriptions.Service
}

// BuildDomain wires the core on top of p. Gateway metrics go to reg.
func BuildDomain(ctx context.Context, p *Process, rdb *redis.Client, reg prometheus.Registerer) (*Domain, error) {
	cfg, logg, gormDB := p.Config, p.Logger, p.DB.DB()

	sealer, err := p.Sealer()
	if err != nil {
		return nil, err
	}

	d := &Domain{
		Payments:     payments.NewRepository(gormDB),
		Spaces:       spaces.NewRepository(gormDB),
		Users:        users.NewRepository(gormDB),
		Plans:        plans.NewRepository(gormDB),
		MPAccounts:   mercadopagogw.NewAccountRepository(gormDB),
		OutboxRepo:   outbox.NewRepository(gormDB),
		Sealer:       sealer,
		GatewayStats: metrics.NewGatewayMetrics(reg),
	}
	d.Emitter = outbox.NewService(d.OutboxRepo, logg)

	d.Gateways, err = BuildGateways(ctx, cfg, logg, d.Payments, d.MPAccounts, sealer, d.GatewayStats)
	if err != nil {
		return nil, fmt.Errorf("payment gateways: %w", err)
	}

	d.SpaceConfig, err = spaceconfig.NewService(spaceconfig.NewRepository(gormDB), d.Spaces, d.MPAccounts)
	if err != nil {
		return nil, fmt.Errorf("space config service: %w", err)
	}

	d.Bookings, err = bookings.NewService(bookings.ServiceParams{
		Repo:              bookings.NewRepository(gormDB),
		Payments:          d.Payments,
		Gateways:          d.Gateways.Registry,
		Config:            d.SpaceConfig,
		Spaces:            d.Spaces,
		Users:             d.Users,
		Outbox:            d.Emitter,
		TransactionRunner: p.DB,
		RateLimiter:       rdb,
		Logger:            logg,
		Settings: bookings.Settings{
			FeeBasisPoints: d.Gateways.Fees,
			PollLimit:      int64(cfg.Bookings.PollLimit),
			PollWindow:     cfg.Bookings.PollWindow,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("bookings service: %w", err)
	}

	d.Subscriptions, err = subscriptions.NewService(subscriptions.ServiceParams{
		Repo:              subscriptions.NewRepository(gormDB),
		Plans:             d.Plans,
		Outbox:            d.Emitter,
		TransactionRunner: p.DB,
		Logger:            logg,
	})
	if err != nil {
		return nil, fmt.Errorf("subscriptions service: %w", err)
	}
	return d, nil
}
