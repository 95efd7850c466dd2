package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/dezko/dezko-backend/internal/bookings"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/logger"
)

type bookingReconciler interface {
	ConfirmPayment(ctx context.Context, confirmation bookings.Confirmation) (bookings.ConfirmResult, error)
	RecordPaymentFailure(ctx context.Context, failure bookings.Failure) error
	FindOrderByReservation(ctx context.Context, reservationID uuid.UUID) (*models.Order, error)
}

type accountSync interface {
	SyncStripeAccount(ctx context.Context, accountID string, chargesEnabled bool) (bool, error)
}

type ServiceParams struct {
	Bookings bookingReconciler
	Accounts accountSync
	Logger   *logger.Logger
}

// Service applies Stripe notifications to bookings and connected accounts.
type Service struct {
	bookings bookingReconciler
	accounts accountSync
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Bookings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "bookings service required")
	}
	if params.Accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account sync required")
	}
	return &Service{
		bookings: params.Bookings,
		accounts: params.Accounts,
		logg:     params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": string(event.Type)})

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent")
		}
		return s.succeeded(ctx, &intent, event.Data.Raw)
	case stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent")
		}
		return s.failed(ctx, &intent, event.Data.Raw)
	case stripe.EventTypeAccountUpdated:
		var account stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode account")
		}
		changed, err := s.accounts.SyncStripeAccount(ctx, account.ID, account.ChargesEnabled)
		if err != nil {
			return err
		}
		if changed {
			s.logg.Info(s.logg.WithField(ctx, "account_id", account.ID), "webhook.stripe.account_synced")
		}
		return nil
	default:
		return nil
	}
}

func (s *Service) succeeded(ctx context.Context, intent *stripe.PaymentIntent, raw json.RawMessage) error {
	orderID, found, err := s.resolveOrder(ctx, intent.Metadata)
	if err != nil {
		return err
	}
	if !found {
		s.logg.Warn(s.logg.WithField(ctx, "payment_intent", intent.ID), "webhook.stripe.unknown_order")
		return nil
	}
	amount := intent.AmountReceived
	if amount == 0 {
		amount = intent.Amount
	}
	result, err := s.bookings.ConfirmPayment(ctx, bookings.Confirmation{
		OrderID:          orderID,
		Gateway:          enums.GatewayStripe,
		TransactionID:    intent.ID,
		ExternalChargeID: intent.ID,
		AmountCents:      amount,
		Raw:              raw,
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(ctx, "webhook.stripe.order_missing")
			return nil
		}
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "result", string(result)), "webhook.stripe.confirmed")
	return nil
}

func (s *Service) failed(ctx context.Context, intent *stripe.PaymentIntent, raw json.RawMessage) error {
	orderID, found, err := s.resolveOrder(ctx, intent.Metadata)
	if err != nil {
		return err
	}
	if !found {
		s.logg.Warn(s.logg.WithField(ctx, "payment_intent", intent.ID), "webhook.stripe.unknown_order")
		return nil
	}
	txID := intent.ID
	if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
		txID = intent.LatestCharge.ID
	}
	reason := "payment failed"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		reason = intent.LastPaymentError.Msg
	}
	err = s.bookings.RecordPaymentFailure(ctx, bookings.Failure{
		OrderID:       orderID,
		Gateway:       enums.GatewayStripe,
		TransactionID: txID,
		AmountCents:   intent.Amount,
		Reason:        reason,
		Raw:           raw,
	})
	if err != nil && pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		s.logg.Warn(ctx, "webhook.stripe.order_missing")
		return nil
	}
	return err
}

// resolveOrder reads the order from intent metadata, falling back to the
// reservation id for intents created before order ids were attached.
func (s *Service) resolveOrder(ctx context.Context, metadata map[string]string) (uuid.UUID, bool, error) {
	if id, err := uuid.Parse(strings.TrimSpace(metadata["order_id"])); err == nil {
		return id, true, nil
	}
	reservationID, err := uuid.Parse(strings.TrimSpace(metadata["reservation_id"]))
	if err != nil {
		return uuid.Nil, false, nil
	}
	order, err := s.bookings.FindOrderByReservation(ctx, reservationID)
	if err != nil {
		return uuid.Nil, false, err
	}
	if order == nil {
		return uuid.Nil, false, nil
	}
	return order.ID, true, nil
}
