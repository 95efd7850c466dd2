package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cycle results.
const (
	CycleRan       = "ran"
	CycleSkipped   = "skipped"
	CycleLockError = "lock_error"
)

// CronJobMetrics covers the cron worker: one series per job plus a counter
// of scheduler cycles split by whether this replica held the lock.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	items       *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	cycles      *prometheus.CounterVec
}

// NewCronJobMetrics registers on reg. A nil reg yields a recorder that drops
// everything.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cron_job_runs_total",
			Help: "Cron job executions by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cron_job_duration_seconds",
			Help:    "Wall time of a single cron job execution.",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120},
		}, []string{"job"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cron_job_items_total",
			Help: "Orders, subscriptions or outbox rows a cron job acted on.",
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cron_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run of each job.",
		}, []string{"job"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cron_cycles_total",
			Help: "Scheduler ticks by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.runs, m.duration, m.items, m.lastSuccess, m.cycles)
	return m
}

// ObserveRun records one job execution that began at started.
func (c *CronJobMetrics) ObserveRun(job string, started time.Time, err error) {
	if c == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(time.Since(started).Seconds())
	c.runs.WithLabelValues(job, outcomeFor(err)).Inc()
	if err == nil {
		c.lastSuccess.WithLabelValues(job).SetToCurrentTime()
	}
}

func (c *CronJobMetrics) AddItems(job string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.items.WithLabelValues(normalizeLabel(job)).Add(float64(n))
}

func (c *CronJobMetrics) Cycle(result string) {
	if c == nil {
		return
	}
	c.cycles.WithLabelValues(result).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
