package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dezko/dezko-backend/internal/bootstrap"
	"github.com/dezko/dezko-backend/pkg/logger"
	"github.com/dezko/dezko-backend/pkg/metrics"
	"github.com/dezko/dezko-backend/pkg/outbox"
	"github.com/dezko/dezko-backend/pkg/outbox/registry"
	"github.com/dezko/dezko-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	if err := run(); err != nil {
		logger.New(logger.Options{ServiceName: serviceKind}).Error(context.Background(), "outbox publisher exited", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := bootstrap.Start(ctx, serviceKind)
	if err != nil {
		return err
	}
	defer p.Close()
	cfg := p.Config

	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}

	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, p.Logger)
	if err != nil {
		return fmt.Errorf("open pubsub: %w", err)
	}
	p.Track("pubsub", client.Close)

	publishers := newTopicPublishers(client)
	p.Track("publishers", func() error { publishers.Stop(); return nil })

	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     p.Logger,
		DB:         p.DB,
		PubSub:     client,
		Repository: outbox.NewRepository(p.DB.DB()),
		Registry:   events,
		DLQ:        outbox.NewDLQRepository(),
		Publishers: publishers.For,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fmt.Errorf("outbox publisher: %w", err)
	}

	ctx = p.Context(ctx, map[string]any{
		"topics":      events.Topics(),
		"batch_size":  cfg.Outbox.BatchSize,
		"concurrency": cfg.Outbox.Concurrency,
	})
	p.Logger.Info(ctx, "outbox.starting")

	go func() {
		if err := metrics.Serve(ctx, cfg.App.MetricsAddr, prometheus.DefaultGatherer, p.Logger); err != nil {
			p.Logger.Error(ctx, "metrics.listener_failed", err)
		}
	}()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
