package bookings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/internal/gateways"
	"github.com/dezko/dezko-backend/pkg/auth"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/outbox"
	"github.com/dezko/dezko-backend/pkg/outbox/payloads"
)

const cancelledBySystem = "system"

// authorizeCancel decides per actor variant which orders may be cancelled.
func authorizeCancel(actor auth.Actor, order *models.Order) error {
	switch a := actor.(type) {
	case auth.EndUser:
		if order.UserID != a.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking belongs to another user")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending bookings can be cancelled")
		}
		return nil
	case auth.SpaceOwner:
		if order.SpaceID != a.SpaceID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking belongs to another space")
		}
		return nil
	case auth.Admin:
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor")
	}
}

func (s *service) Cancel(ctx context.Context, actor auth.Actor, orderID uuid.UUID, input CancelInput) (*CancelResult, error) {
	if actor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())
	check := func(order *models.Order) error { return authorizeCancel(actor, order) }

	cancelled, previous, err := s.transitionCancelled(ctx, orderID, string(actor.Role()), outbox.ActorRefFor(actor), input.Reason, check)
	if err != nil {
		return nil, err
	}
	outcome := s.cancelUpstream(ctx, cancelled, previous)

	reservation, err := s.repo.FindReservationByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	return &CancelResult{Booking: FromModel(cancelled, reservation), Upstream: outcome}, nil
}

// transitionCancelled moves an order and its reservation to their cancelled
// states in one transaction. check runs against the locked row.
func (s *service) transitionCancelled(ctx context.Context, orderID uuid.UUID, by string, actor *outbox.ActorRef, reason string, check func(*models.Order) error) (*models.Order, enums.OrderStatus, error) {
	reason = strings.TrimSpace(reason)
	var (
		order    *models.Order
		previous enums.OrderStatus
	)
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if locked == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		if err := check(locked); err != nil {
			return err
		}
		switch locked.Status {
		case enums.OrderStatusPending, enums.OrderStatusPaid:
		case enums.OrderStatusCancelled:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "booking already cancelled")
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "unknown order status")
		}

		now := s.now().UTC()
		updates := map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		}
		if reason != "" {
			updates["cancel_reason"] = reason
		}
		if err := repo.UpdateOrder(ctx, orderID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if err := repo.UpdateReservationStatus(ctx, orderID, enums.ReservationStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel reservation")
		}

		previous = locked.Status
		locked.Status = enums.OrderStatusCancelled
		locked.CancelledAt = &now
		if reason != "" {
			locked.CancelReason = &reason
		}
		order = locked
		return s.emit(ctx, tx, enums.EventBookingCancelled, orderID, actor, payloads.BookingCancelledEvent{
			OrderID:        orderID,
			SpaceID:        locked.SpaceID,
			PreviousStatus: previous,
			Reason:         reason,
			CancelledBy:    by,
			CancelledAt:    now,
		})
	})
	if err != nil {
		return nil, "", err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"previous_status": string(previous), "cancelled_by": by}), "booking.cancelled")
	return order, previous, nil
}

// cancelUpstream voids a still-open charge. Paid charges are left alone since
// refunds are handled outside this service.
func (s *service) cancelUpstream(ctx context.Context, order *models.Order, previous enums.OrderStatus) *gateways.CancelOutcome {
	if order.Gateway == nil || order.GatewayChargeID == nil {
		return nil
	}
	var outcome gateways.CancelOutcome
	gw, ok := s.gateways.ForGateway(*order.Gateway)
	switch {
	case previous != enums.OrderStatusPending || !ok:
		outcome = gateways.CancelSkipped(*order.Gateway, *order.GatewayChargeID)
	default:
		outcome = gw.Cancel(ctx, *order.GatewayChargeID)
	}
	s.logCancelOutcome(ctx, outcome)
	return &outcome
}

// ExpireStale cancels PENDING orders created before cutoff.
func (s *service) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	orders, err := s.repo.ListPendingBefore(ctx, cutoff, nil, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale orders")
	}
	stillPending := func(order *models.Order) error {
		if order.Status != enums.OrderStatusPending {
			return errNotPending
		}
		return nil
	}

	var (
		expired int
		errs    error
	)
	for _, candidate := range orders {
		orderCtx := s.logg.WithOrderID(ctx, candidate.ID.String())
		cancelled, previous, err := s.transitionCancelled(orderCtx, candidate.ID, cancelledBySystem, nil, "payment window expired", stillPending)
		if err != nil {
			if errors.Is(err, errNotPending) {
				continue
			}
			errs = appendErr(errs, err)
			continue
		}
		s.cancelUpstream(orderCtx, cancelled, previous)
		expired++
	}
	return expired, errs
}
