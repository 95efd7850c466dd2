package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/dezko/dezko-backend/pkg/logger"
)

// SubscriptionExpiryJobParams configure the subscription expiry sweeper.
type SubscriptionExpiryJobParams struct {
	Logger        *logger.Logger
	Subscriptions subscriptionExpirer
	Metrics       itemCounter
	Limit         int
}

// NewSubscriptionExpiryJob builds the job that moves ATIVA subscriptions past
// their end date to EXPIRADA.
func NewSubscriptionExpiryJob(params SubscriptionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions service required")
	}
	return &subscriptionExpiryJob{
		logg:          params.Logger,
		subscriptions: params.Subscriptions,
		metrics:       params.Metrics,
		limit:         batchLimit(params.Limit),
		now:           time.Now,
	}, nil
}

type subscriptionExpiryJob struct {
	logg          *logger.Logger
	subscriptions subscriptionExpirer
	metrics       itemCounter
	limit         int
	now           func() time.Time
}

func (j *subscriptionExpiryJob) Name() string { return "subscription-expiry" }

func (j *subscriptionExpiryJob) Run(ctx context.Context) error {
	expired, err := j.subscriptions.ExpireDue(ctx, j.now().UTC(), j.limit)
	if j.metrics != nil {
		j.metrics.AddItems(j.Name(), expired)
	}
	if err != nil {
		return fmt.Errorf("expire subscriptions: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", expired), "subscriptions expired")
	return nil
}
