package gateways

import (
	"context"
	"time"

	"github.com/dezko/dezko-backend/pkg/enums"
	"github.com/dezko/dezko-backend/pkg/metrics"
)

const defaultTimeout = 8 * time.Second

type instrumented struct {
	next    Gateway
	timeout time.Duration
	metrics *metrics.GatewayMetrics
}

// Instrument bounds every outbound call of next by timeout and records it in
// the gateway metrics.
func Instrument(next Gateway, timeout time.Duration, m *metrics.GatewayMetrics) Gateway {
	if next == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &instrumented{next: next, timeout: timeout, metrics: m}
}

func (i *instrumented) Name() enums.Gateway {
	return i.next.Name()
}

func (i *instrumented) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	started := time.Now()
	res, err := i.next.CreateCharge(ctx, req)
	i.metrics.Observe(string(i.next.Name()), "create_charge", started, err)
	return res, err
}

func (i *instrumented) Cancel(ctx context.Context, externalChargeID string) CancelOutcome {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	started := time.Now()
	outcome := i.next.Cancel(ctx, externalChargeID)
	if outcome.Result != CancelResultSkipped {
		i.metrics.Observe(string(i.next.Name()), "cancel", started, outcome.Err)
	}
	return outcome
}

func (i *instrumented) FetchStatus(ctx context.Context, externalChargeID string) (StatusResult, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	started := time.Now()
	res, err := i.next.FetchStatus(ctx, externalChargeID)
	i.metrics.Observe(string(i.next.Name()), "fetch_status", started, err)
	return res, err
}
