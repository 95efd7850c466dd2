package agendas

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
)

// Repository persists agendas.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, agenda *models.Agenda) error
	Save(ctx context.Context, agenda *models.Agenda) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, spaceID, id uuid.UUID) (*models.Agenda, error)
	ListBySpace(ctx context.Context, spaceID uuid.UUID) ([]models.Agenda, error)
	HasUpcomingReservations(ctx context.Context, agendaID uuid.UUID, now time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, agenda *models.Agenda) error {
	return r.db.WithContext(ctx).Create(agenda).Error
}

func (r *repository) Save(ctx context.Context, agenda *models.Agenda) error {
	return r.db.WithContext(ctx).Save(agenda).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Agenda{}).Error
}

// FindByID scopes the lookup to the owning space and returns nil when absent.
func (r *repository) FindByID(ctx context.Context, spaceID, id uuid.UUID) (*models.Agenda, error) {
	var agenda models.Agenda
	err := r.db.WithContext(ctx).Where("id = ? AND space_id = ?", id, spaceID).First(&agenda).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agenda, nil
}

func (r *repository) ListBySpace(ctx context.Context, spaceID uuid.UUID) ([]models.Agenda, error) {
	var rows []models.Agenda
	if err := r.db.WithContext(ctx).Where("space_id = ?", spaceID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) HasUpcomingReservations(ctx context.Context, agendaID uuid.UUID, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("agenda_id = ? AND status <> ? AND ends_at >= ?", agendaID, enums.ReservationStatusCancelled, now).
		Count(&count).Error
	return count > 0, err
}
