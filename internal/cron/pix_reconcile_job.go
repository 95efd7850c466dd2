package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/dezko/dezko-backend/pkg/enums"
	"github.com/dezko/dezko-backend/pkg/logger"
)

const defaultReconcileAge = time.Minute

// PixReconcileJobParams configure the PIX status poller.
type PixReconcileJobParams struct {
	Logger   *logger.Logger
	Bookings pendingReconciler
	Metrics  itemCounter
	MinAge   time.Duration
	Limit    int
}

// NewPixReconcileJob builds the job that polls OpenPix for pending charges
// whose webhook may have been lost.
func NewPixReconcileJob(params PixReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("bookings service required")
	}
	age := params.MinAge
	if age <= 0 {
		age = defaultReconcileAge
	}
	return &pixReconcileJob{
		logg:     params.Logger,
		bookings: params.Bookings,
		metrics:  params.Metrics,
		age:      age,
		limit:    batchLimit(params.Limit),
		now:      time.Now,
	}, nil
}

type pixReconcileJob struct {
	logg     *logger.Logger
	bookings pendingReconciler
	metrics  itemCounter
	age      time.Duration
	limit    int
	now      func() time.Time
}

func (j *pixReconcileJob) Name() string { return "pix-reconcile" }

func (j *pixReconcileJob) Run(ctx context.Context) error {
	olderThan := j.now().UTC().Add(-j.age)
	confirmed, err := j.bookings.ReconcilePending(ctx, enums.GatewayOpenPix, olderThan, j.limit)
	if j.metrics != nil {
		j.metrics.AddItems(j.Name(), confirmed)
	}
	if err != nil {
		return fmt.Errorf("reconcile pix charges: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "confirmed", confirmed), "pix charges reconciled")
	return nil
}
