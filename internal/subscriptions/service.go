package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/internal/quota"
	"github.com/dezko/dezko-backend/pkg/auth"
	dbpkg "github.com/dezko/dezko-backend/pkg/db"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/logger"
	"github.com/dezko/dezko-backend/pkg/outbox"
	"github.com/dezko/dezko-backend/pkg/outbox/payloads"
)

type planLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the subscription lifecycle surface.
type Service interface {
	Assign(ctx context.Context, actor auth.Actor, spaceID, planID uuid.UUID) (*SubscriptionDTO, error)
	Cancel(ctx context.Context, actor auth.Actor, spaceID uuid.UUID) (*SubscriptionDTO, error)
	Current(ctx context.Context, spaceID uuid.UUID) (*SubscriptionDTO, error)
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo              Repository
	Plans             planLookup
	Outbox            outbox.Emitter
	TransactionRunner txRunner
	Logger            *logger.Logger
	Now               func() time.Time
}

type service struct {
	repo     Repository
	plans    planLookup
	outbox   outbox.Emitter
	txRunner txRunner
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repo required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plan repo required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		plans:    params.Plans,
		outbox:   params.Outbox,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Assign replaces the space's active subscription with a new one on planID.
// The previous row is cancelled in the same transaction, so at most one row
// per space is ever ATIVA.
func (s *service) Assign(ctx context.Context, actor auth.Actor, spaceID, planID uuid.UUID) (*SubscriptionDTO, error) {
	if !auth.CanManageSpace(actor, spaceID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot manage this space")
	}
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	if !plan.Active {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "plan is not active")
	}

	now := s.now().UTC()
	created := &models.Subscription{
		SpaceID:   spaceID,
		PlanID:    plan.ID,
		Status:    enums.SubscriptionStatusActive,
		StartsAt:  now,
		ExpiresAt: now.AddDate(0, 0, plan.DurationDays),
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := quota.LockSpace(ctx, tx, spaceID); err != nil {
			return err
		}
		txRepo := s.repo.WithTx(tx)
		previous, err := txRepo.FindActive(ctx, spaceID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active subscription")
		}
		if previous != nil {
			if err := txRepo.UpdateStatus(ctx, previous.ID, enums.SubscriptionStatusCancelled, &now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel previous subscription")
			}
			previous.Status = enums.SubscriptionStatusCancelled
			if err := s.emit(ctx, tx, actor, enums.EventSubscriptionCancelled, previous); err != nil {
				return err
			}
		}
		if err := txRepo.Create(ctx, created); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_subscriptions_active_space") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "space already has an active subscription")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
		}
		return s.emit(ctx, tx, actor, enums.EventSubscriptionActivated, created)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"space_id":        spaceID.String(),
		"subscription_id": created.ID.String(),
		"plan_id":         plan.ID.String(),
	})
	s.logg.Info(logCtx, "subscription.assigned")
	return FromModel(created), nil
}

// Cancel ends the active subscription. Existing agendas and bookings are left
// untouched; the quota check refuses new agendas afterwards.
func (s *service) Cancel(ctx context.Context, actor auth.Actor, spaceID uuid.UUID) (*SubscriptionDTO, error) {
	if !auth.CanManageSpace(actor, spaceID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot manage this space")
	}
	now := s.now().UTC()
	var cancelled *models.Subscription
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := quota.LockSpace(ctx, tx, spaceID); err != nil {
			return err
		}
		txRepo := s.repo.WithTx(tx)
		active, err := txRepo.FindActive(ctx, spaceID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active subscription")
		}
		if active == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
		}
		if err := txRepo.UpdateStatus(ctx, active.ID, enums.SubscriptionStatusCancelled, &now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel subscription")
		}
		active.Status = enums.SubscriptionStatusCancelled
		active.CancelledAt = &now
		cancelled = active
		return s.emit(ctx, tx, actor, enums.EventSubscriptionCancelled, active)
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "subscription_id", cancelled.ID.String()), "subscription.cancelled")
	return FromModel(cancelled), nil
}

// Current returns the space's ATIVA subscription that has not passed its
// expiry, or nil.
func (s *service) Current(ctx context.Context, spaceID uuid.UUID) (*SubscriptionDTO, error) {
	active, err := s.repo.FindActive(ctx, spaceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active subscription")
	}
	if active == nil || !active.ExpiresAt.After(s.now()) {
		return nil, nil
	}
	return FromModel(active), nil
}

// ExpireDue marks passed ATIVA subscriptions EXPIRADA, one transaction per row.
func (s *service) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.repo.ListExpired(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired subscriptions")
	}
	var (
		expired int
		errs    error
	)
	for i := range due {
		sub := due[i]
		err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.repo.WithTx(tx).UpdateStatus(ctx, sub.ID, enums.SubscriptionStatusExpired, nil); err != nil {
				return err
			}
			sub.Status = enums.SubscriptionStatusExpired
			return s.emit(ctx, tx, nil, enums.EventSubscriptionExpired, &sub)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire subscription %s: %w", sub.ID, err))
			continue
		}
		expired++
	}
	return expired, errs
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, actor auth.Actor, eventType enums.OutboxEventType, sub *models.Subscription) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Actor:         outbox.ActorRefFor(actor),
		Data: payloads.SubscriptionEvent{
			SubscriptionID: sub.ID,
			SpaceID:        sub.SpaceID,
			PlanID:         sub.PlanID,
			Status:         sub.Status,
			StartsAt:       sub.StartsAt,
			ExpiresAt:      sub.ExpiresAt,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit subscription event")
	}
	return nil
}
