package webhooks

import (
	"context"
	"net/http"

	"github.com/dezko/dezko-backend/api/responses"
	openpixwebhook "github.com/dezko/dezko-backend/internal/webhooks/openpix"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/logger"
	"github.com/dezko/dezko-backend/pkg/metrics"
	pkgopenpix "github.com/dezko/dezko-backend/pkg/openpix"
)

type OpenPixWebhookService interface {
	HandleEvent(ctx context.Context, event *pkgopenpix.WebhookEvent, raw []byte) error
}

// OpenPixWebhook applies OpenPix charge notifications. When secret is empty
// the signature check is skipped and every delivery logs a warning.
func OpenPixWebhook(svc OpenPixWebhookService, secret string, guard deliveryGuard, gm *metrics.GatewayMetrics, logg *logger.Logger) http.HandlerFunc {
	d := delivery{gateway: string(enums.GatewayOpenPix), guard: guard, metrics: gm, logg: logg}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := logg.WithGateway(r.Context(), d.gateway)
		if svc == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "openpix webhook unavailable"))
			return
		}

		payload, err := d.readPayload(w, r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if secret == "" {
			logg.Warn(ctx, "webhook.openpix.unverified")
		} else if !pkgopenpix.VerifySignature(secret, payload, r.Header.Get(pkgopenpix.SignatureHeader)) {
			d.refuse(ctx, w, nil, "invalid webhook signature")
			return
		}

		event, err := openpixwebhook.ParseEvent(payload)
		if err != nil {
			d.refuse(ctx, w, err, "decode event")
			return
		}

		id := openpixwebhook.DeliveryID(event)
		if id != "" {
			ctx = logg.WithField(ctx, "delivery_id", id)
		}
		d.apply(ctx, w, id, func(ctx context.Context) error {
			return svc.HandleEvent(ctx, event, payload)
		})
	}
}
