package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/pkg/logger"
)

type fakeOutboxExpirer struct {
	batches     []int64
	failOn      int
	cutoffs     []time.Time
	maxAttempts int
	limit       int
}

func (f *fakeOutboxExpirer) DeleteExpired(_ context.Context, _ *gorm.DB, cutoff time.Time, maxAttempts, limit int) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	f.maxAttempts, f.limit = maxAttempts, limit
	call := len(f.cutoffs)
	if call == f.failOn {
		return 0, errors.New("statement timeout")
	}
	if call > len(f.batches) {
		return 0, nil
	}
	return f.batches[call-1], nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type countingItems struct{ n int }

func (c *countingItems) AddItems(_ string, n int) { c.n += n }

func newRetentionJob(t *testing.T, repo *fakeOutboxExpirer, items itemCounter, retention time.Duration, maxAttempts int) *outboxRetentionJob {
	t.Helper()
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:          passthroughTx{},
		Repository:  repo,
		Metrics:     items,
		Retention:   retention,
		MaxAttempts: maxAttempts,
	})
	require.NoError(t, err)
	require.IsType(t, &outboxRetentionJob{}, job)
	return job.(*outboxRetentionJob)
}

func TestOutboxRetentionDrainsInBatches(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxExpirer{batches: []int64{3, 3, 1}}
	items := &countingItems{}
	job := newRetentionJob(t, repo, items, 72*time.Hour, 4)
	job.batch = 3
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, repo.cutoffs, 3)
	for _, cutoff := range repo.cutoffs {
		assert.Equal(t, now.Add(-72*time.Hour), cutoff)
	}
	assert.Equal(t, 4, repo.maxAttempts)
	assert.Equal(t, 3, repo.limit)
	assert.Equal(t, 7, items.n)
}

func TestOutboxRetentionStopsOnError(t *testing.T) {
	repo := &fakeOutboxExpirer{batches: []int64{2, 2, 2}, failOn: 2}
	items := &countingItems{}
	job := newRetentionJob(t, repo, items, 0, 0)
	job.batch = 2

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 rows")
	assert.Equal(t, 2, items.n)
}

func TestOutboxRetentionStopsOnCancel(t *testing.T) {
	repo := &fakeOutboxExpirer{}
	job := newRetentionJob(t, repo, nil, 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
	assert.Empty(t, repo.cutoffs)
}

func TestOutboxRetentionDefaults(t *testing.T) {
	job := newRetentionJob(t, &fakeOutboxExpirer{}, nil, 0, 0)
	assert.Equal(t, defaultOutboxRetention, job.retention)
	assert.Equal(t, defaultOutboxAttempts, job.maxAttempts)
	assert.Equal(t, outboxDeleteBatch, job.batch)
}
