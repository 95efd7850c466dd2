package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// GatewayMetrics records outbound payment gateway calls and inbound webhooks.
type GatewayMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	webhooks *prometheus.CounterVec
}

// NewGatewayMetrics registers the gateway metrics on the provided registerer.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Outbound payment gateway calls by outcome.",
	}, []string{"gateway", "operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Latency of outbound payment gateway calls.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2, 4, 8, 16},
	}, []string{"gateway", "operation"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Inbound gateway webhook deliveries by outcome.",
	}, []string{"gateway", "outcome"})
	reg.MustRegister(requests, duration, webhooks)
	return &GatewayMetrics{requests: requests, duration: duration, webhooks: webhooks}
}

// Observe records one outbound call that started at started and ended with err.
func (g *GatewayMetrics) Observe(gateway, operation string, started time.Time, err error) {
	if g == nil || g.requests == nil {
		return
	}
	gateway = normalizeLabel(gateway)
	operation = normalizeLabel(operation)
	g.duration.WithLabelValues(gateway, operation).Observe(time.Since(started).Seconds())
	g.requests.WithLabelValues(gateway, operation, outcomeFor(err)).Inc()
}

// Webhook counts an inbound webhook delivery.
func (g *GatewayMetrics) Webhook(gateway, outcome string) {
	if g == nil || g.webhooks == nil {
		return
	}
	g.webhooks.WithLabelValues(normalizeLabel(gateway), normalizeLabel(outcome)).Inc()
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}
