package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dezko/dezko-backend/internal/bookings"
	"github.com/dezko/dezko-backend/internal/bootstrap"
	"github.com/dezko/dezko-backend/internal/cron"
	"github.com/dezko/dezko-backend/internal/subscriptions"
	"github.com/dezko/dezko-backend/pkg/config"
	"github.com/dezko/dezko-backend/pkg/db"
	"github.com/dezko/dezko-backend/pkg/logger"
	"github.com/dezko/dezko-backend/pkg/metrics"
	"github.com/dezko/dezko-backend/pkg/outbox"
)

const (
	lockName      = "cron-worker"
	jobBatchLimit = 200
)

func main() {
	once := flag.Bool("once", false, "run every job a single time and exit")
	flag.Parse()

	if err := run(*once); err != nil {
		logger.New(logger.Options{ServiceName: lockName}).Error(context.Background(), "cron worker exited", err)
		os.Exit(1)
	}
}

func run(once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := bootstrap.Start(ctx, lockName)
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

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(rdb, rdb.LockKey(lockName, lockEnv(p.Config.App.Env)), 0)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}

	jobs, err := buildJobs(p.Config, p.Logger, p.DB, d.OutboxRepo, d.Bookings, d.Subscriptions, cronMetrics)
	if err != nil {
		return fmt.Errorf("cron jobs: %w", err)
	}
	registry, err := cron.NewRegistry(jobs...)
	if err != nil {
		return fmt.Errorf("cron registry: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   p.Logger,
		Registry: registry,
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: p.Config.Cron.Interval,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	ctx = p.Context(ctx, map[string]any{"jobs": registry.Names()})
	if once {
		return service.RunOnce(ctx)
	}

	p.Logger.Info(ctx, "cron.starting")
	go func() {
		if err := metrics.Serve(ctx, p.Config.App.MetricsAddr, prometheus.DefaultGatherer, p.Logger); err != nil {
			p.Logger.Error(ctx, "metrics.listener_failed", err)
		}
	}()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func lockEnv(env string) string {
	if env == "" {
		return "local"
	}
	return env
}

func buildJobs(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	outboxRepo *outbox.Repository,
	bookingsService bookings.Service,
	subscriptionsService subscriptions.Service,
	metricsCollector *metrics.CronJobMetrics,
) ([]cron.Job, error) {
	expiry, err := cron.NewBookingExpiryJob(cron.BookingExpiryJobParams{
		Logger:     logg,
		Bookings:   bookingsService,
		Metrics:    metricsCollector,
		PendingTTL: cfg.Bookings.PendingTTL,
		Limit:      jobBatchLimit,
	})
	if err != nil {
		return nil, err
	}

	pix, err := cron.NewPixReconcileJob(cron.PixReconcileJobParams{
		Logger:   logg,
		Bookings: bookingsService,
		Metrics:  metricsCollector,
		MinAge:   cfg.Bookings.PixReconcileAge,
		Limit:    jobBatchLimit,
	})
	if err != nil {
		return nil, err
	}

	subs, err := cron.NewSubscriptionExpiryJob(cron.SubscriptionExpiryJobParams{
		Logger:        logg,
		Subscriptions: subscriptionsService,
		Metrics:       metricsCollector,
		Limit:         jobBatchLimit,
	})
	if err != nil {
		return nil, err
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		Metrics:     metricsCollector,
		Retention:   cfg.Outbox.Retention,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	return []cron.Job{expiry, pix, subs, retention}, nil
}
