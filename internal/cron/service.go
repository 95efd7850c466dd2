package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dezko/dezko-backend/pkg/logger"
	"github.com/dezko/dezko-backend/pkg/metrics"
)

const (
	defaultInterval   = 5 * time.Minute
	defaultJobTimeout = 2 * time.Minute
)

type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

type lockHolder interface {
	Holder(ctx context.Context) (string, error)
}

// Service ticks every Interval and, on the replica that wins the lock, runs
// each registered job in order under its own timeout.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	case params.Registry == nil:
		return nil, errors.New("registry required")
	}
	s := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = defaultJobTimeout
	}
	return s, nil
}

// Run runs a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs every job once if this replica wins the lock. Job failures are
// logged and counted but do not stop the cycle; lock errors are returned.
func (s *Service) RunOnce(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		s.metrics.Cycle(metrics.CycleLockError)
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.metrics.Cycle(metrics.CycleSkipped)
		s.logg.Info(s.withHolder(ctx), "cron.cycle_skipped")
		return nil
	}
	s.metrics.Cycle(metrics.CycleRan)
	defer func() {
		// Release must run even when ctx was cancelled mid-cycle.
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron.lock_release_failed", err)
		}
	}()

	started := time.Now()
	failed := 0
	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			break
		}
		if err := s.runJob(ctx, job); err != nil {
			failed++
		}
		if err := s.refresh(ctx); err != nil {
			return err
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"failed_jobs": failed,
		"duration_ms": time.Since(started).Milliseconds(),
	}), "cron.cycle_complete")
	return nil
}

// refresh extends the lease between jobs so a slow cycle does not let a
// second replica start the same work.
func (s *Service) refresh(ctx context.Context) error {
	r, ok := s.lock.(refresher)
	if !ok || ctx.Err() != nil {
		return nil
	}
	if err := r.Refresh(ctx); err != nil {
		return fmt.Errorf("abandoning cycle: %w", err)
	}
	return nil
}

func (s *Service) withHolder(ctx context.Context) context.Context {
	h, ok := s.lock.(lockHolder)
	if !ok {
		return ctx
	}
	holder, err := h.Holder(ctx)
	if err != nil || holder == "" {
		return ctx
	}
	return s.logg.WithField(ctx, "lock_holder", holder)
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	runCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	err := job.Run(runCtx)
	s.metrics.ObserveRun(job.Name(), start, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron.job_failed", err)
		return err
	}
	s.logg.Info(jobCtx, "cron.job_done")
	return nil
}
