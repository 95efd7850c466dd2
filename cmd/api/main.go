package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dezko/dezko-backend/api/routes"
	"github.com/dezko/dezko-backend/internal/agendas"
	"github.com/dezko/dezko-backend/internal/bootstrap"
	"github.com/dezko/dezko-backend/internal/gatewayconnect"
	"github.com/dezko/dezko-backend/internal/gateways/stripeconnect"
	"github.com/dezko/dezko-backend/internal/plans"
	"github.com/dezko/dezko-backend/internal/quota"
	"github.com/dezko/dezko-backend/internal/webhooks/idempotency"
	openpixwebhook "github.com/dezko/dezko-backend/internal/webhooks/openpix"
	stripewebhook "github.com/dezko/dezko-backend/internal/webhooks/stripe"
	"github.com/dezko/dezko-backend/pkg/auth/session"
	"github.com/dezko/dezko-backend/pkg/logger"
	"github.com/dezko/dezko-backend/pkg/redis"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownGrace     = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		logger.New(logger.Options{ServiceName: "api"}).Error(context.Background(), "api exited", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := bootstrap.Start(ctx, "api")
	if err != nil {
		return err
	}
	defer p.Close()

	rdb, err := p.Redis(ctx)
	if err != nil {
		return err
	}

	d, err := bootstrap.BuildDomain(ctx, p, rdb, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	deps, err := buildDependencies(p, rdb, d)
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = p.Config.App.Port
	}
	addr := ":" + port
	logCtx := p.Context(ctx, map[string]any{
		"addr":     addr,
		"gateways": d.Gateways.Registry.Methods(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(p.Config, p.Logger, deps),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(logCtx) },
	}

	errCh := make(chan error, 1)
	go func() {
		p.Logger.Info(logCtx, "api.listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(logCtx), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	p.Logger.Info(logCtx, "api.stopped")
	return nil
}

func buildDependencies(p *bootstrap.Process, rdb *redis.Client, d *bootstrap.Domain) (routes.Dependencies, error) {
	cfg, logg, gormDB := p.Config, p.Logger, p.DB.DB()

	sessions, err := session.NewManager(rdb, cfg.JWT)
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("session manager: %w", err)
	}

	agendasService, err := agendas.NewService(agendas.ServiceParams{
		Repo:              agendas.NewRepository(gormDB),
		Quota:             quota.NewEnforcer(),
		TransactionRunner: p.DB,
		DB:                gormDB,
		Logger:            logg,
	})
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("agendas service: %w", err)
	}

	plansService, err := plans.NewService(d.Plans)
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("plans service: %w", err)
	}

	connectParams := gatewayconnect.ServiceParams{
		States:            rdb,
		Spaces:            d.Spaces,
		Config:            d.SpaceConfig,
		Outbox:            d.Emitter,
		TransactionRunner: p.DB,
		Logger:            logg,
	}
	if d.Gateways.Stripe != nil {
		connectParams.StripeOAuth = stripeconnect.NewOAuthAPI()
		connectParams.StripeClientID = d.Gateways.Stripe.ConnectClientID()
		connectParams.StripeRedirectURL = cfg.App.URL(cfg.Stripe.RedirectPath)
	}
	if d.Gateways.MercadoPago != nil {
		connectParams.MercadoPagoOAuth = d.Gateways.MercadoPago
		connectParams.MercadoPagoAccounts = d.MPAccounts
		connectParams.MercadoPagoRedirectURL = cfg.App.URL(cfg.MercadoPago.RedirectPath)
		connectParams.Sealer = d.Sealer
	}
	connect, err := gatewayconnect.NewService(connectParams)
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("gateway connect service: %w", err)
	}

	stripeHooks, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Bookings: d.Bookings,
		Accounts: connect,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("stripe webhook service: %w", err)
	}

	openPixHooks, err := openpixwebhook.NewService(openpixwebhook.ServiceParams{
		Bookings: d.Bookings,
		Charges:  d.Payments,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("openpix webhook service: %w", err)
	}

	guard, err := idempotency.NewGuard(rdb, idempotency.DefaultTTL)
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("webhook guard: %w", err)
	}

	deps := routes.Dependencies{
		DB:             p.DB,
		Redis:          rdb,
		Cache:          rdb,
		Sessions:       sessions,
		Metrics:        promhttp.Handler(),
		Bookings:       d.Bookings,
		Agendas:        agendasService,
		Plans:          plansService,
		SpaceConfig:    d.SpaceConfig,
		Subscriptions:  d.Subscriptions,
		Connect:        connect,
		StripeWebhook:  stripeHooks,
		OpenPixWebhook: openPixHooks,
		WebhookGuard:   guard,
		GatewayMetrics: d.GatewayStats,
	}
	if d.Gateways.Stripe != nil {
		deps.StripeSigning = d.Gateways.Stripe
	}
	return deps, nil
}
