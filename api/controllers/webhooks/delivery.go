package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dezko/dezko-backend/api/responses"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/logger"
	"github.com/dezko/dezko-backend/pkg/metrics"
)

const maxPayloadBytes = 1 << 20

const (
	outcomeProcessed = "processed"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

type deliveryGuard interface {
	CheckAndMark(ctx context.Context, gateway, eventID string) (bool, error)
	Release(ctx context.Context, gateway, eventID string) error
}

var received = map[string]bool{"received": true}

// delivery is the dedupe-and-apply flow shared by every gateway endpoint.
type delivery struct {
	gateway string
	guard   deliveryGuard
	metrics *metrics.GatewayMetrics
	logg    *logger.Logger
}

func (d delivery) readPayload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		d.metrics.Webhook(d.gateway, outcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload too large")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body")
	}
	return payload, nil
}

// refuse answers 503 for a delivery whose signature is missing or invalid or
// whose body cannot be parsed. Both gateways get the same status.
func (d delivery) refuse(ctx context.Context, w http.ResponseWriter, cause error, message string) {
	d.reject(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, cause, message))
}

func (d delivery) reject(ctx context.Context, w http.ResponseWriter, err error) {
	d.metrics.Webhook(d.gateway, outcomeRejected)
	responses.WriteError(ctx, d.logg, w, err)
}

// apply runs handle at most once per id. An empty id skips dedupe. A failed
// handle releases the mark so the gateway's retry is processed.
func (d delivery) apply(ctx context.Context, w http.ResponseWriter, id string, handle func(context.Context) error) {
	if id != "" {
		seen, err := d.guard.CheckAndMark(ctx, d.gateway, id)
		if err != nil {
			responses.WriteError(ctx, d.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if seen {
			d.metrics.Webhook(d.gateway, outcomeDuplicate)
			responses.WriteSuccess(w, received)
			return
		}
	}

	if err := handle(ctx); err != nil {
		if id != "" {
			if releaseErr := d.guard.Release(context.WithoutCancel(ctx), d.gateway, id); releaseErr != nil {
				d.logg.Error(ctx, "webhook.release_failed", releaseErr)
			}
		}
		outcome := outcomeFailed
		if pkgerrors.HTTPStatus(err) < http.StatusInternalServerError {
			outcome = outcomeRejected
		}
		d.metrics.Webhook(d.gateway, outcome)
		responses.WriteError(ctx, d.logg, w, err)
		return
	}

	d.metrics.Webhook(d.gateway, outcomeProcessed)
	d.logg.Info(ctx, "webhook.processed")
	responses.WriteSuccess(w, received)
}
