package cron

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/pkg/enums"
)

const defaultBatchLimit = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type bookingExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type pendingReconciler interface {
	ReconcilePending(ctx context.Context, gateway enums.Gateway, olderThan time.Time, limit int) (int, error)
}

type subscriptionExpirer interface {
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

type itemCounter interface {
	AddItems(job string, n int)
}

func batchLimit(limit int) int {
	if limit <= 0 {
		return defaultBatchLimit
	}
	return limit
}
