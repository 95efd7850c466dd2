package bookings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dezko/dezko-backend/pkg/auth"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

var errNotPending = errors.New("order no longer pending")

func appendErr(errs, err error) error {
	return multierr.Append(errs, err)
}

// PaymentStatus is the polling fallback for clients waiting on a charge.
func (s *service) PaymentStatus(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*PaymentStatusDTO, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, order) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "booking not accessible")
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if s.limiter != nil {
		allowed, count, err := s.limiter.FixedWindowAllow(ctx, "payment-status:"+order.ID.String(), s.settings.PollLimit, s.settings.PollWindow)
		switch {
		case err != nil:
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "booking.poll_limit_unavailable")
		case !allowed:
			return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many status checks").
				WithDetails(map[string]any{"limit": s.settings.PollLimit, "count": count})
		}
	}

	status, err := s.syncOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	refreshed, err := s.loadOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &PaymentStatusDTO{
		OrderID:       refreshed.ID,
		OrderStatus:   refreshed.Status,
		PaymentStatus: status,
		Gateway:       refreshed.Gateway,
	}, nil
}

// syncOrder asks the gateway for the charge state of a PENDING order and
// applies approvals and rejections.
func (s *service) syncOrder(ctx context.Context, order *models.Order) (enums.PaymentStatus, error) {
	switch order.Status {
	case enums.OrderStatusPaid:
		return enums.PaymentStatusApproved, nil
	case enums.OrderStatusCancelled:
		return enums.PaymentStatusCancelled, nil
	}
	if order.Gateway == nil || order.GatewayChargeID == nil {
		return enums.PaymentStatusPending, nil
	}
	gw, ok := s.gateways.ForGateway(*order.Gateway)
	if !ok {
		return enums.PaymentStatusPending, nil
	}

	result, err := gw.FetchStatus(ctx, *order.GatewayChargeID)
	if err != nil {
		return "", err
	}
	txID := result.TransactionID
	if txID == "" {
		txID = *order.GatewayChargeID
	}
	switch result.Status {
	case enums.PaymentStatusApproved:
		if _, err := s.ConfirmPayment(ctx, Confirmation{
			OrderID:          order.ID,
			Gateway:          *order.Gateway,
			TransactionID:    txID,
			ExternalChargeID: *order.GatewayChargeID,
			AmountCents:      result.AmountCents,
			Raw:              result.Raw,
		}); err != nil {
			return "", err
		}
	case enums.PaymentStatusRejected:
		if err := s.RecordPaymentFailure(ctx, Failure{
			OrderID:       order.ID,
			Gateway:       *order.Gateway,
			TransactionID: txID,
			AmountCents:   result.AmountCents,
			Reason:        "reported by status poll",
			Raw:           result.Raw,
		}); err != nil {
			return "", err
		}
	}
	return result.Status, nil
}

// ReconcilePending polls the gateway for PENDING orders charged there before
// olderThan and returns how many became PAID.
func (s *service) ReconcilePending(ctx context.Context, gateway enums.Gateway, olderThan time.Time, limit int) (int, error) {
	if _, ok := s.gateways.ForGateway(gateway); !ok {
		return 0, nil
	}
	orders, err := s.repo.ListPendingBefore(ctx, olderThan, &gateway, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending orders")
	}
	var (
		paid int
		errs error
	)
	for i := range orders {
		order := &orders[i]
		status, err := s.syncOrder(s.logg.WithOrderID(ctx, order.ID.String()), order)
		if err != nil {
			errs = appendErr(errs, err)
			continue
		}
		if status == enums.PaymentStatusApproved {
			paid++
		}
	}
	return paid, errs
}
