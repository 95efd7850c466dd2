package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestGatewayMetricsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewGatewayMetrics(reg)

	metrics.Observe("openpix", "create_charge", time.Now(), nil)
	metrics.Observe("openpix", "create_charge", time.Now(), fmt.Errorf("call: %w", context.DeadlineExceeded))
	metrics.Observe("openpix", "create_charge", time.Now(), errors.New("502"))
	metrics.Webhook("stripe", "processed")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, outcome := range []string{OutcomeSuccess, OutcomeTimeout, OutcomeError} {
		got, err := gatewayCounter(mfs, "openpix", outcome)
		if err != nil {
			t.Fatalf("fetch %s: %v", outcome, err)
		}
		if got != 1 {
			t.Fatalf("expected one %s call, got %v", outcome, got)
		}
	}
	if got, err := fetchCounterValue(mfs, "webhook_events_total", "outcome", "processed"); err != nil || got != 1 {
		t.Fatalf("expected one processed webhook, got %v (%v)", got, err)
	}
}

func TestNilGatewayMetricsAreNoops(t *testing.T) {
	var metrics *GatewayMetrics
	metrics.Observe("stripe", "cancel", time.Now(), nil)
	metrics.Webhook("stripe", "processed")
}

func gatewayCounter(mfs []*dto.MetricFamily, gateway, outcome string) (float64, error) {
	mf := findMetricFamily(mfs, "gateway_requests_total")
	if mf == nil {
		return 0, fmt.Errorf("gateway_requests_total not found")
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), "gateway", gateway) && matchesLabel(metric.GetLabel(), "outcome", outcome) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("no sample for %s/%s", gateway, outcome)
}
