package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/internal/gateways"
	"github.com/dezko/dezko-backend/internal/payments"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/outbox/payloads"
)

var errAlreadyRecorded = errors.New("payment already recorded")

// ConfirmPayment applies a gateway success report. Replays of the same
// (gateway, transaction) are no-ops.
func (s *service) ConfirmPayment(ctx context.Context, c Confirmation) (ConfirmResult, error) {
	c.TransactionID = strings.TrimSpace(c.TransactionID)
	if c.TransactionID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	if !c.Gateway.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid gateway")
	}
	ctx = s.logg.WithFields(s.logg.WithOrderID(ctx, c.OrderID.String()), map[string]any{
		"gateway":        string(c.Gateway),
		"transaction_id": c.TransactionID,
	})

	var result ConfirmResult
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ledger := s.payments.WithTx(tx)

		order, err := repo.LockOrder(ctx, c.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		seen, err := ledger.Exists(ctx, c.Gateway, c.TransactionID, enums.PaymentStatusApproved)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment ledger")
		}
		if seen {
			result = ConfirmResultAlreadyKnown
			return nil
		}
		reservation, err := repo.FindReservationByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
		}

		payment := s.ledgerRow(order, reservation, c.Gateway, c.TransactionID, enums.PaymentStatusApproved, c.AmountCents, c.Raw)

		switch order.Status {
		case enums.OrderStatusPending:
			now := s.now().UTC()
			updates := map[string]any{
				"status":  enums.OrderStatusPaid,
				"paid_at": now,
				"gateway": c.Gateway,
			}
			if c.ExternalChargeID != "" {
				updates["gateway_charge_id"] = c.ExternalChargeID
			}
			if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
			}
			if err := repo.UpdateReservationStatus(ctx, order.ID, enums.ReservationStatusConfirmed); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm reservation")
			}
			if err := appendPayment(ctx, ledger, payment); err != nil {
				return err
			}
			result = ConfirmResultPaid
			return s.emit(ctx, tx, enums.EventBookingPaid, order.ID, nil, payloads.BookingPaidEvent{
				OrderID:              order.ID,
				ReservationID:        derefReservationID(payment),
				SpaceID:              order.SpaceID,
				Gateway:              c.Gateway,
				GatewayTransactionID: c.TransactionID,
				AmountCents:          payment.AmountCents,
				PlatformFeeCents:     payment.PlatformFeeCents,
				TenantAmountCents:    payment.TenantAmountCents,
				PaidAt:               now,
			})
		case enums.OrderStatusPaid:
			// Webhook and poll can report the same charge under different ids.
			if c.ExternalChargeID != "" && order.GatewayChargeID != nil && *order.GatewayChargeID == c.ExternalChargeID {
				result = ConfirmResultAlreadyKnown
				return nil
			}
			if err := appendPayment(ctx, ledger, payment); err != nil {
				return err
			}
			result = ConfirmResultDuplicate
			s.logg.Warn(ctx, "payment.duplicate_charge")
			return nil
		case enums.OrderStatusCancelled:
			if err := appendPayment(ctx, ledger, payment); err != nil {
				return err
			}
			result = ConfirmResultAfterCancel
			s.logg.Warn(ctx, "payment.after_cancel")
			return nil
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "unknown order status")
		}
	})
	if errors.Is(err, errAlreadyRecorded) {
		return ConfirmResultAlreadyKnown, nil
	}
	if err != nil {
		return "", err
	}
	if result == ConfirmResultPaid {
		s.logg.Info(ctx, "booking.paid")
	}
	return result, nil
}

// RecordPaymentFailure appends a rejected attempt. The order stays PENDING so
// the customer can retry.
func (s *service) RecordPaymentFailure(ctx context.Context, f Failure) error {
	f.TransactionID = strings.TrimSpace(f.TransactionID)
	if f.TransactionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	if !f.Gateway.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid gateway")
	}
	ctx = s.logg.WithFields(s.logg.WithOrderID(ctx, f.OrderID.String()), map[string]any{
		"gateway":        string(f.Gateway),
		"transaction_id": f.TransactionID,
	})

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ledger := s.payments.WithTx(tx)

		order, err := repo.LockOrder(ctx, f.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		seen, err := ledger.Exists(ctx, f.Gateway, f.TransactionID, enums.PaymentStatusRejected)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment ledger")
		}
		if seen {
			return errAlreadyRecorded
		}
		reservation, err := repo.FindReservationByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
		}
		payment := s.ledgerRow(order, reservation, f.Gateway, f.TransactionID, enums.PaymentStatusRejected, f.AmountCents, f.Raw)
		payment.PlatformFeeCents, payment.TenantAmountCents = 0, 0
		if err := appendPayment(ctx, ledger, payment); err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return nil
		}
		return s.emit(ctx, tx, enums.EventPaymentFailed, order.ID, nil, payloads.PaymentFailedEvent{
			OrderID:              order.ID,
			Gateway:              f.Gateway,
			GatewayTransactionID: f.TransactionID,
			Reason:               f.Reason,
		})
	})
	if errors.Is(err, errAlreadyRecorded) {
		return nil
	}
	if err != nil {
		return err
	}
	s.logg.Info(ctx, "booking.payment_failed")
	return nil
}

func (s *service) ledgerRow(order *models.Order, reservation *models.Reservation, gw enums.Gateway, txID string, status enums.PaymentStatus, amount int64, raw json.RawMessage) *models.Payment {
	if amount <= 0 {
		amount = order.PriceCents
	}
	split := gateways.ComputeSplit(amount, s.settings.FeeBasisPoints[gw])
	payment := &models.Payment{
		OrderID:              order.ID,
		Gateway:              gw,
		GatewayTransactionID: txID,
		Status:               status,
		AmountCents:          amount,
		PlatformFeeCents:     split.PlatformFeeCents,
		TenantAmountCents:    split.TenantAmountCents,
		Raw:                  raw,
	}
	if reservation != nil {
		id := reservation.ID
		payment.ReservationID = &id
	}
	return payment
}

func appendPayment(ctx context.Context, ledger payments.Repository, payment *models.Payment) error {
	if err := ledger.Append(ctx, payment); err != nil {
		if errors.Is(err, payments.ErrDuplicatePayment) {
			return errAlreadyRecorded
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append payment")
	}
	return nil
}

func derefReservationID(payment *models.Payment) uuid.UUID {
	if payment.ReservationID != nil {
		return *payment.ReservationID
	}
	return uuid.Nil
}
