package plans

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/dezko/dezko-backend/pkg/db/models"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

// Service manages the plan catalog.
type Service interface {
	Create(ctx context.Context, input CreatePlanInput) (*PlanDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdatePlanInput) (*PlanDTO, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*PlanDTO, error)
	List(ctx context.Context, activeOnly bool) ([]PlanDTO, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("plan repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreatePlanInput) (*PlanDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.DurationDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "duration_days must be positive")
	}
	if input.PriceCents < 0 || input.AgendaLimit < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price and agenda limit must not be negative")
	}
	plan := &models.Plan{
		Name:         name,
		PriceCents:   input.PriceCents,
		DurationDays: input.DurationDays,
		AgendaLimit:  input.AgendaLimit,
		Benefits:     pq.StringArray(input.Benefits),
		Active:       true,
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create plan")
	}
	return FromModel(plan), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdatePlanInput) (*PlanDTO, error) {
	plan, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
		}
		plan.Name = name
	}
	if input.PriceCents != nil {
		plan.PriceCents = *input.PriceCents
	}
	if input.DurationDays != nil {
		if *input.DurationDays <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duration_days must be positive")
		}
		plan.DurationDays = *input.DurationDays
	}
	if input.AgendaLimit != nil {
		plan.AgendaLimit = *input.AgendaLimit
	}
	if input.Benefits != nil {
		plan.Benefits = pq.StringArray(*input.Benefits)
	}
	if input.Active != nil {
		plan.Active = *input.Active
	}
	if err := s.repo.Save(ctx, plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update plan")
	}
	return FromModel(plan), nil
}

// Deactivate hides the plan from purchase. Existing subscriptions keep it.
func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	plan, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !plan.Active {
		return nil
	}
	plan.Active = false
	if err := s.repo.Save(ctx, plan); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate plan")
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*PlanDTO, error) {
	plan, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromModel(plan), nil
}

func (s *service) List(ctx context.Context, activeOnly bool) ([]PlanDTO, error) {
	rows, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list plans")
	}
	out := make([]PlanDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return plan, nil
}
