package agendas

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/internal/pricing"
	"github.com/dezko/dezko-backend/internal/quota"
	"github.com/dezko/dezko-backend/pkg/auth"
	"github.com/dezko/dezko-backend/pkg/db/models"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type quotaEnforcer interface {
	Evaluate(ctx context.Context, tx *gorm.DB, spaceID uuid.UUID) (quota.Decision, error)
	Check(ctx context.Context, tx *gorm.DB, spaceID uuid.UUID) (quota.Decision, error)
}

// Service manages the agendas of a space.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, spaceID uuid.UUID, input CreateAgendaInput) (*AgendaDTO, error)
	Update(ctx context.Context, actor auth.Actor, spaceID, agendaID uuid.UUID, input UpdateAgendaInput) (*AgendaDTO, error)
	Delete(ctx context.Context, actor auth.Actor, spaceID, agendaID uuid.UUID) error
	List(ctx context.Context, actor auth.Actor, spaceID uuid.UUID) ([]AgendaDTO, error)
	Quota(ctx context.Context, actor auth.Actor, spaceID uuid.UUID) (quota.Decision, error)
}

type ServiceParams struct {
	Repo              Repository
	Quota             quotaEnforcer
	TransactionRunner txRunner
	DB                *gorm.DB
	Logger            *logger.Logger
}

type service struct {
	repo     Repository
	quota    quotaEnforcer
	txRunner txRunner
	db       *gorm.DB
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("agenda repository required")
	}
	if params.Quota == nil {
		return nil, fmt.Errorf("quota enforcer required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	return &service{
		repo:     params.Repo,
		quota:    params.Quota,
		txRunner: params.TransactionRunner,
		db:       params.DB,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

// Create inserts an agenda if the space's plan still allows one. The space
// row is locked for the check-then-insert so concurrent creations serialize.
func (s *service) Create(ctx context.Context, actor auth.Actor, spaceID uuid.UUID, input CreateAgendaInput) (*AgendaDTO, error) {
	if !auth.CanManageSpace(actor, spaceID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot manage this space")
	}
	agenda := &models.Agenda{
		SpaceID:         spaceID,
		Name:            strings.TrimSpace(input.Name),
		BillingMode:     input.BillingMode,
		HourlyRateCents: input.HourlyRateCents,
		ShiftRateCents:  input.ShiftRateCents,
		DailyRateCents:  input.DailyRateCents,
	}
	if err := validateAgenda(agenda); err != nil {
		return nil, err
	}

	var decision quota.Decision
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := quota.LockSpace(ctx, tx, spaceID); err != nil {
			return err
		}
		var err error
		decision, err = s.quota.Check(ctx, tx, spaceID)
		if err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Create(ctx, agenda); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create agenda")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"space_id":  spaceID.String(),
		"agenda_id": agenda.ID.String(),
		"remaining": decision.Remaining - 1,
	})
	s.logg.Info(logCtx, "agenda.created")
	return FromModel(agenda), nil
}

func (s *service) Update(ctx context.Context, actor auth.Actor, spaceID, agendaID uuid.UUID, input UpdateAgendaInput) (*AgendaDTO, error) {
	if !auth.CanManageSpace(actor, spaceID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot manage this space")
	}
	agenda, err := s.load(ctx, spaceID, agendaID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		agenda.Name = strings.TrimSpace(*input.Name)
	}
	if input.BillingMode != nil {
		agenda.BillingMode = *input.BillingMode
	}
	if input.HourlyRateCents != nil {
		agenda.HourlyRateCents = input.HourlyRateCents
	}
	if input.ShiftRateCents != nil {
		agenda.ShiftRateCents = input.ShiftRateCents
	}
	if input.DailyRateCents != nil {
		agenda.DailyRateCents = input.DailyRateCents
	}
	if err := validateAgenda(agenda); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, agenda); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update agenda")
	}
	return FromModel(agenda), nil
}

// Delete removes an agenda that holds no upcoming reservations.
func (s *service) Delete(ctx context.Context, actor auth.Actor, spaceID, agendaID uuid.UUID) error {
	if !auth.CanManageSpace(actor, spaceID) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "cannot manage this space")
	}
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		agenda, err := txRepo.FindByID(ctx, spaceID, agendaID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agenda")
		}
		if agenda == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "agenda not found")
		}
		busy, err := txRepo.HasUpcomingReservations(ctx, agendaID, s.now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check reservations")
		}
		if busy {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "agenda has upcoming reservations")
		}
		if err := txRepo.Delete(ctx, agendaID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete agenda")
		}
		return nil
	})
}

func (s *service) List(ctx context.Context, actor auth.Actor, spaceID uuid.UUID) ([]AgendaDTO, error) {
	if !auth.CanManageSpace(actor, spaceID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot manage this space")
	}
	rows, err := s.repo.ListBySpace(ctx, spaceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list agendas")
	}
	out := make([]AgendaDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

// Quota reports the space's agenda allowance without enforcing it.
func (s *service) Quota(ctx context.Context, actor auth.Actor, spaceID uuid.UUID) (quota.Decision, error) {
	if !auth.CanManageSpace(actor, spaceID) {
		return quota.Decision{}, pkgerrors.New(pkgerrors.CodeForbidden, "cannot manage this space")
	}
	return s.quota.Evaluate(ctx, s.db, spaceID)
}

func (s *service) load(ctx context.Context, spaceID, agendaID uuid.UUID) (*models.Agenda, error) {
	agenda, err := s.repo.FindByID(ctx, spaceID, agendaID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agenda")
	}
	if agenda == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "agenda not found")
	}
	return agenda, nil
}

// validateAgenda requires a name and a positive rate for the billing mode.
func validateAgenda(agenda *models.Agenda) error {
	if agenda.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !agenda.BillingMode.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid billing mode")
	}
	rates := pricing.RatesFromAgenda(agenda)
	if _, ok := rates.For(agenda.BillingMode); !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "rate not configured")
	}
	return nil
}
