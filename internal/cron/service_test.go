package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dezko/dezko-backend/pkg/logger"
)

type fakeLock struct {
	acquired bool
	releases int
	holder   string
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.acquired = false
	f.releases++
	return nil
}

func (f *fakeLock) Holder(context.Context) (string, error) { return f.holder, nil }

type testJob struct {
	name     string
	err      error
	runs     int
	deadline time.Time
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	t.deadline, _ = ctx.Deadline()
	return t.err
}

func newTestService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	service, err := NewService(ServiceParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry:   registry,
		Lock:       lock,
		JobTimeout: time.Minute,
	})
	require.NoError(t, err)
	return service
}

func TestRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "booking-expiry"}
	failing := &testJob{name: "pix-reconcile", err: errors.New("openpix unavailable")}
	lock := &fakeLock{}
	service := newTestService(t, lock, failing, ok)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, lock.releases)
	assert.False(t, ok.deadline.IsZero(), "jobs run under a timeout")
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "subscription-expiry"}
	lock := &fakeLock{acquired: true, holder: "cron-b"}
	service := newTestService(t, lock, job)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.releases)
}

func TestRunOnceStopsOnCancelledContext(t *testing.T) {
	job := &testJob{name: "outbox-retention"}
	service := newTestService(t, &fakeLock{}, job)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, service.RunOnce(ctx))
	assert.Zero(t, job.runs)
}

type leasedLock struct {
	fakeLock
	refreshes int
	loseAfter int
}

func (l *leasedLock) Refresh(context.Context) error {
	l.refreshes++
	if l.loseAfter > 0 && l.refreshes >= l.loseAfter {
		return errLockLost
	}
	return nil
}

func TestRunOnceRefreshesLeaseBetweenJobs(t *testing.T) {
	jobs := []*testJob{{name: "booking-expiry"}, {name: "pix-reconcile"}, {name: "subscription-expiry"}}
	lock := &leasedLock{}
	service := newTestService(t, lock, jobs[0], jobs[1], jobs[2])

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Equal(t, 3, lock.refreshes)
	assert.Equal(t, 1, lock.releases)
}

func TestRunOnceAbandonsCycleWhenLeaseLost(t *testing.T) {
	first, second := &testJob{name: "booking-expiry"}, &testJob{name: "pix-reconcile"}
	lock := &leasedLock{loseAfter: 1}
	service := newTestService(t, lock, first, second)

	err := service.RunOnce(context.Background())
	require.ErrorIs(t, err, errLockLost)
	assert.Equal(t, 1, first.runs)
	assert.Zero(t, second.runs)
	assert.Equal(t, 1, lock.releases)
}

type failingLock struct{ fakeLock }

func (failingLock) Acquire(context.Context) (bool, error) { return false, errors.New("redis down") }

func TestRunOnceReportsLockErrors(t *testing.T) {
	job := &testJob{name: "booking-expiry"}
	service := newTestService(t, &failingLock{}, job)

	assert.ErrorContains(t, service.RunOnce(context.Background()), "redis down")
	assert.Zero(t, job.runs)
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	job := &testJob{name: "booking-expiry"}
	service := newTestService(t, &fakeLock{}, job)
	service.interval = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, service.Run(ctx), context.DeadlineExceeded)
	assert.Equal(t, 1, job.runs)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	registry, _ := NewRegistry()
	logg := logger.New(logger.Options{ServiceName: "cron-test"})

	_, err := NewService(ServiceParams{Registry: registry, Lock: &fakeLock{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logg, Registry: registry})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logg, Lock: &fakeLock{}})
	assert.Error(t, err)
}
