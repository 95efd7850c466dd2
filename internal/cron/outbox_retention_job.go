package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultOutboxAttempts  = 10
	outboxDeleteBatch      = 1000
)

// OutboxRetentionJobParams configure the outbox cleanup. MaxAttempts must
// match the publisher's ceiling so only abandoned rows count as expired.
// Dead-lettered copies in outbox_dlq are never touched.
type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxExpirer
	Metrics     itemCounter
	Retention   time.Duration
	MaxAttempts int
}

type outboxExpirer interface {
	DeleteExpired(ctx context.Context, tx *gorm.DB, cutoff time.Time, maxAttempts, limit int) (int64, error)
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        outboxExpirer
	metrics     itemCounter
	retention   time.Duration
	maxAttempts int
	batch       int
	now         func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	j := &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		metrics:     params.Metrics,
		retention:   params.Retention,
		maxAttempts: params.MaxAttempts,
		batch:       outboxDeleteBatch,
		now:         time.Now,
	}
	if j.retention <= 0 {
		j.retention = defaultOutboxRetention
	}
	if j.maxAttempts <= 0 {
		j.maxAttempts = defaultOutboxAttempts
	}
	return j, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run deletes in short transactions until a batch comes back short, so the
// publisher is never blocked behind one long delete.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	for ctx.Err() == nil {
		var n int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			n, err = j.repo.DeleteExpired(ctx, tx, cutoff, j.maxAttempts, j.batch)
			return err
		})
		if err != nil {
			j.record(total)
			return fmt.Errorf("outbox retention after %d rows: %w", total, err)
		}
		total += n
		if n < int64(j.batch) {
			break
		}
	}
	j.record(total)

	if total > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"cutoff":       cutoff,
			"rows_deleted": total,
		}), "outbox.retention_swept")
	}
	return ctx.Err()
}

func (j *outboxRetentionJob) record(n int64) {
	if j.metrics != nil {
		j.metrics.AddItems(j.Name(), int(n))
	}
}
