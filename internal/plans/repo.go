package plans

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/pkg/db/models"
)

// Repository persists subscription plans.
type Repository interface {
	Create(ctx context.Context, plan *models.Plan) error
	Save(ctx context.Context, plan *models.Plan) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	List(ctx context.Context, activeOnly bool) ([]models.Plan, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *repository) Save(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *repository) List(ctx context.Context, activeOnly bool) ([]models.Plan, error) {
	query := r.db.WithContext(ctx).Order("price_cents ASC").Order("name ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var rows []models.Plan
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
