package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestOutboxMetricsCountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.Record("booking_paid", PublishPublished)
	m.Record("booking_paid", PublishPublished)
	m.Record("booking_paid", PublishDeadLettered)
	m.ObserveLag("booking_paid", time.Now().Add(-2*time.Second))
	m.ObserveLag("booking_paid", time.Time{})

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	published, err := fetchCounterValueWith(mfs, "outbox_events_total", map[string]string{"event_type": "booking_paid", "result": PublishPublished})
	if err != nil {
		t.Fatalf("fetch published: %v", err)
	}
	if published != 2 {
		t.Fatalf("expected 2 published, got %f", published)
	}
	dead, err := fetchCounterValueWith(mfs, "outbox_events_total", map[string]string{"event_type": "booking_paid", "result": PublishDeadLettered})
	if err != nil {
		t.Fatalf("fetch dead lettered: %v", err)
	}
	if dead != 1 {
		t.Fatalf("expected 1 dead lettered, got %f", dead)
	}
	if sum, err := fetchHistogramSum(mfs, "outbox_publish_lag_seconds", "event_type", "booking_paid"); err != nil {
		t.Fatalf("fetch lag: %v", err)
	} else if sum < 2 {
		t.Fatalf("expected lag sum >= 2s, got %f", sum)
	}
}

func TestOutboxMetricsNilSafe(t *testing.T) {
	var m *OutboxMetrics
	m.Record("booking_paid", PublishRetried)
	m.ObserveLag("booking_paid", time.Now())
	NewOutboxMetrics(nil).Record("booking_paid", PublishRetried)
}

func fetchCounterValueWith(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		matched := true
		for key, value := range labels {
			if !matchesLabel(metric.GetLabel(), key, value) {
				matched = false
				break
			}
		}
		if matched {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}
