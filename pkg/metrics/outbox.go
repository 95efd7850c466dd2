package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	PublishPublished    = "published"
	PublishRetried      = "retried"
	PublishDeadLettered = "dead_lettered"
)

// OutboxMetrics records what the outbox publisher did with each row.
type OutboxMetrics struct {
	events *prometheus.CounterVec
	lag    *prometheus.HistogramVec
}

// NewOutboxMetrics registers the outbox metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_total",
		Help: "Outbox rows handled by the publisher, by result.",
	}, []string{"event_type", "result"})
	lag := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_publish_lag_seconds",
		Help:    "Time between an event being recorded and its publication.",
		Buckets: []float64{.1, .5, 1, 2, 5, 15, 60, 300},
	}, []string{"event_type"})
	reg.MustRegister(events, lag)
	return &OutboxMetrics{events: events, lag: lag}
}

// Record counts one handled row.
func (o *OutboxMetrics) Record(eventType, result string) {
	if o == nil || o.events == nil {
		return
	}
	o.events.WithLabelValues(normalizeLabel(eventType), result).Inc()
}

// ObserveLag records how long a published row waited in the outbox.
func (o *OutboxMetrics) ObserveLag(eventType string, occurredAt time.Time) {
	if o == nil || o.lag == nil || occurredAt.IsZero() {
		return
	}
	o.lag.WithLabelValues(normalizeLabel(eventType)).Observe(time.Since(occurredAt).Seconds())
}
