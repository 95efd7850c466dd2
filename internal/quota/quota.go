package quota

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

// Decision is the outcome of a quota check for one space.
type Decision struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	PlanID         uuid.UUID `json:"plan_id"`
	Limit          int       `json:"limite"`
	Used           int       `json:"usadas"`
	Remaining      int       `json:"totalDisponivel"`
}

// Allowed reports whether one more agenda fits the plan.
func (d Decision) Allowed() bool {
	return d.Used < d.Limit
}

// LimitDetails is the public payload attached to PLAN_LIMIT_REACHED errors.
type LimitDetails struct {
	Limit     int `json:"limite"`
	Used      int `json:"usadas"`
	Remaining int `json:"totalDisponivel"`
}

// Enforcer evaluates agenda quotas against the active subscription.
type Enforcer struct {
	now func() time.Time
}

func NewEnforcer() *Enforcer {
	return &Enforcer{now: time.Now}
}

// Evaluate computes the decision without rejecting.
func (e *Enforcer) Evaluate(ctx context.Context, tx *gorm.DB, spaceID uuid.UUID) (Decision, error) {
	var sub models.Subscription
	err := tx.WithContext(ctx).
		Where("space_id = ? AND status = ? AND expires_at > ?", spaceID, enums.SubscriptionStatusActive, e.now().UTC()).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Decision{}, pkgerrors.New(pkgerrors.CodeForbidden, "no active subscription")
		}
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active subscription")
	}

	var plan models.Plan
	if err := tx.WithContext(ctx).Where("id = ?", sub.PlanID).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Decision{}, pkgerrors.New(pkgerrors.CodeInternal, "subscription plan missing")
		}
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
	}

	var used int64
	if err := tx.WithContext(ctx).Model(&models.Agenda{}).Where("space_id = ?", spaceID).Count(&used).Error; err != nil {
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count agendas")
	}

	remaining := plan.AgendaLimit - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		SubscriptionID: sub.ID,
		PlanID:         plan.ID,
		Limit:          plan.AgendaLimit,
		Used:           int(used),
		Remaining:      remaining,
	}, nil
}

// Check returns PLAN_LIMIT_REACHED when the space already owns as many
// agendas as its plan allows.
func (e *Enforcer) Check(ctx context.Context, tx *gorm.DB, spaceID uuid.UUID) (Decision, error) {
	decision, err := e.Evaluate(ctx, tx, spaceID)
	if err != nil {
		return Decision{}, err
	}
	if !decision.Allowed() {
		return decision, pkgerrors.New(pkgerrors.CodePlanLimit, "plan limit reached").WithDetails(LimitDetails{
			Limit:     decision.Limit,
			Used:      decision.Used,
			Remaining: decision.Remaining,
		})
	}
	return decision, nil
}

// LockSpace takes a row lock on the space on Postgres so concurrent agenda
// creations for one space serialize through check-then-insert.
func LockSpace(ctx context.Context, tx *gorm.DB, spaceID uuid.UUID) (*models.Space, error) {
	query := tx.WithContext(ctx)
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var space models.Space
	if err := query.Where("id = ?", spaceID).First(&space).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "space not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock space")
	}
	return &space, nil
}
