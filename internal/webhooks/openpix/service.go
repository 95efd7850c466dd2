package openpixwebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/dezko/dezko-backend/internal/bookings"
	gwopenpix "github.com/dezko/dezko-backend/internal/gateways/openpix"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/logger"
	pkgopenpix "github.com/dezko/dezko-backend/pkg/openpix"
)

const uuidLength = 36

type bookingReconciler interface {
	ConfirmPayment(ctx context.Context, confirmation bookings.Confirmation) (bookings.ConfirmResult, error)
}

type chargeStore interface {
	FindPixCharge(ctx context.Context, correlationID string) (*models.PixCharge, error)
	UpdatePixChargeStatus(ctx context.Context, correlationID string, status enums.PixChargeStatus, transactionID *string) error
}

type ServiceParams struct {
	Bookings bookingReconciler
	Charges  chargeStore
	Logger   *logger.Logger
}

// Service applies OpenPix charge notifications.
type Service struct {
	bookings bookingReconciler
	charges  chargeStore
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Bookings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "bookings service required")
	}
	if params.Charges == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pix charge store required")
	}
	return &Service{bookings: params.Bookings, charges: params.Charges, logg: params.Logger}, nil
}

// ParseEvent decodes a webhook body.
func ParseEvent(payload []byte) (*pkgopenpix.WebhookEvent, error) {
	var event pkgopenpix.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode openpix event")
	}
	return &event, nil
}

// DeliveryID identifies a notification for the idempotency guard. Events
// without a charge have no id and are not deduplicated.
func DeliveryID(event *pkgopenpix.WebhookEvent) string {
	corr := event.CorrelationID()
	if corr == "" {
		return ""
	}
	return event.Name() + ":" + corr
}

func (s *Service) HandleEvent(ctx context.Context, event *pkgopenpix.WebhookEvent, raw []byte) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "openpix event required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"event": event.Name(), "correlation_id": event.CorrelationID()})

	switch event.Name() {
	case pkgopenpix.EventChargeCompleted, pkgopenpix.EventChargeReceived:
		return s.completed(ctx, event, raw)
	case pkgopenpix.EventChargeExpired:
		return s.expired(ctx, event)
	default:
		s.logg.Info(ctx, "webhook.openpix.ignored")
		return nil
	}
}

func (s *Service) completed(ctx context.Context, event *pkgopenpix.WebhookEvent, raw []byte) error {
	corr := event.CorrelationID()
	if corr == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "correlation id missing")
	}
	orderID, found, err := s.resolveOrder(ctx, corr)
	if err != nil {
		return err
	}
	if !found {
		s.logg.Warn(ctx, "webhook.openpix.unknown_charge")
		return nil
	}

	pixTxID := ""
	if event.Pix != nil {
		pixTxID = event.Pix.TransactionID
		if pixTxID == "" {
			pixTxID = event.Pix.EndToEndID
		}
	}
	txID := gwopenpix.TransactionID(event.Charge.TransactionID, pixTxID, corr)
	if err := s.charges.UpdatePixChargeStatus(ctx, corr, enums.PixChargeStatusCompleted, &txID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark pix charge completed")
	}

	amount := event.Charge.Value
	if amount == 0 && event.Pix != nil {
		amount = event.Pix.Value
	}
	result, err := s.bookings.ConfirmPayment(ctx, bookings.Confirmation{
		OrderID:          orderID,
		Gateway:          enums.GatewayOpenPix,
		TransactionID:    txID,
		ExternalChargeID: corr,
		AmountCents:      amount,
		Raw:              raw,
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(ctx, "webhook.openpix.order_missing")
			return nil
		}
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "result", string(result)), "webhook.openpix.confirmed")
	return nil
}

func (s *Service) expired(ctx context.Context, event *pkgopenpix.WebhookEvent) error {
	corr := event.CorrelationID()
	if corr == "" {
		return nil
	}
	mirror, err := s.charges.FindPixCharge(ctx, corr)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pix charge")
	}
	if mirror == nil || mirror.Status != enums.PixChargeStatusActive {
		return nil
	}
	if err := s.charges.UpdatePixChargeStatus(ctx, corr, enums.PixChargeStatusExpired, nil); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark pix charge expired")
	}
	s.logg.Info(ctx, "webhook.openpix.expired")
	return nil
}

// resolveOrder maps a correlation id to its order. Retried charges carry a
// suffixed id, so the local mirror is consulted first.
func (s *Service) resolveOrder(ctx context.Context, corr string) (uuid.UUID, bool, error) {
	mirror, err := s.charges.FindPixCharge(ctx, corr)
	if err != nil {
		return uuid.Nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pix charge")
	}
	if mirror != nil {
		return mirror.OrderID, true, nil
	}
	if id, err := uuid.Parse(corr); err == nil {
		return id, true, nil
	}
	if len(corr) > uuidLength {
		if id, err := uuid.Parse(corr[:uuidLength]); err == nil {
			return id, true, nil
		}
	}
	return uuid.Nil, false, nil
}
