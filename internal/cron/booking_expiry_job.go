package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/dezko/dezko-backend/pkg/logger"
)

const defaultPendingTTL = 24 * time.Hour

// BookingExpiryJobParams configure the pending booking sweeper.
type BookingExpiryJobParams struct {
	Logger     *logger.Logger
	Bookings   bookingExpirer
	Metrics    itemCounter
	PendingTTL time.Duration
	Limit      int
}

// NewBookingExpiryJob builds the job that cancels bookings left unpaid past
// the pending window, releasing their slots.
func NewBookingExpiryJob(params BookingExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("bookings service required")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &bookingExpiryJob{
		logg:     params.Logger,
		bookings: params.Bookings,
		metrics:  params.Metrics,
		ttl:      ttl,
		limit:    batchLimit(params.Limit),
		now:      time.Now,
	}, nil
}

type bookingExpiryJob struct {
	logg     *logger.Logger
	bookings bookingExpirer
	metrics  itemCounter
	ttl      time.Duration
	limit    int
	now      func() time.Time
}

func (j *bookingExpiryJob) Name() string { return "booking-expiry" }

func (j *bookingExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.bookings.ExpireStale(ctx, cutoff, j.limit)
	if j.metrics != nil {
		j.metrics.AddItems(j.Name(), expired)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"expired": expired,
	})
	if err != nil {
		return fmt.Errorf("expire pending bookings: %w", err)
	}
	j.logg.Info(logCtx, "pending bookings expired")
	return nil
}
