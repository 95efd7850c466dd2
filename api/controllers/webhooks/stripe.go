package webhooks

import (
	"context"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/dezko/dezko-backend/api/responses"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/logger"
	"github.com/dezko/dezko-backend/pkg/metrics"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeClient interface {
	SigningSecret() string
}

// StripeWebhook verifies and applies Stripe payment and account events.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard deliveryGuard, gm *metrics.GatewayMetrics, logg *logger.Logger) http.HandlerFunc {
	d := delivery{gateway: string(enums.GatewayStripe), guard: guard, metrics: gm, logg: logg}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := logg.WithGateway(r.Context(), d.gateway)
		if svc == nil || client == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook unavailable"))
			return
		}

		payload, err := d.readPayload(w, r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		signature := r.Header.Get("Stripe-Signature")
		if signature == "" {
			d.refuse(ctx, w, nil, "stripe signature missing")
			return
		}
		event, err := webhook.ConstructEventWithOptions(payload, signature, client.SigningSecret(), webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			d.refuse(ctx, w, err, "verify signature")
			return
		}

		ctx = logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": string(event.Type)})
		d.apply(ctx, w, event.ID, func(ctx context.Context) error {
			return svc.HandleEvent(ctx, &event)
		})
	}
}
