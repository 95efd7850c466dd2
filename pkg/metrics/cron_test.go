package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	const job = "pending-order-expiry"

	m.ObserveRun(job, time.Now().Add(-time.Second), nil)
	m.ObserveRun(job, time.Now(), errors.New("boom"))
	m.ObserveRun(job, time.Now(), fmt.Errorf("openpix: %w", context.DeadlineExceeded))
	m.AddItems(job, 3)
	m.AddItems(job, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(job, OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(job, OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(job, OutcomeTimeout)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.items.WithLabelValues(job)))
	assert.InDelta(t, float64(time.Now().Unix()), testutil.ToFloat64(m.lastSuccess.WithLabelValues(job)), 5)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	sum, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", job)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sum, 1.0)
}

func TestCronJobMetricsFailureLeavesLastSuccessUnset(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveRun("subscription-expiry", time.Now(), errors.New("db down"))

	count, err := testutil.GatherAndCount(reg, "cron_job_last_success_timestamp_seconds")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCronCycles(t *testing.T) {
	m := NewCronJobMetrics(prometheus.NewRegistry())
	m.Cycle(CycleRan)
	m.Cycle(CycleSkipped)
	m.Cycle(CycleSkipped)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues(CycleRan)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cycles.WithLabelValues(CycleSkipped)))
}

func TestNilCronMetricsAreNoops(t *testing.T) {
	m := NewCronJobMetrics(nil)
	assert.Nil(t, m)
	m.ObserveRun("job", time.Now(), nil)
	m.AddItems("job", 1)
	m.Cycle(CycleLockError)
}

func TestEmptyJobNameIsLabelledUnknown(t *testing.T) {
	m := NewCronJobMetrics(prometheus.NewRegistry())
	m.ObserveRun("", time.Now(), nil)
	m.AddItems("", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("unknown", OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.items.WithLabelValues("unknown")))
}
