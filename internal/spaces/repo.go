package spaces

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
)

// Repository exposes space persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Space, error)
	FindByStripeAccount(ctx context.Context, accountID string) (*models.Space, error)
	UpdateStripeConnect(ctx context.Context, id uuid.UUID, accountID *string, status enums.ConnectStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a space repository to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Space, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByStripeAccount(ctx context.Context, accountID string) (*models.Space, error) {
	return r.first(ctx, "stripe_connect_account_id = ?", accountID)
}

func (r *repository) first(ctx context.Context, query string, arg any) (*models.Space, error) {
	var space models.Space
	err := r.db.WithContext(ctx).Where(query, arg).First(&space).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &space, nil
}

// UpdateStripeConnect stores the connected account id and onboarding status.
func (r *repository) UpdateStripeConnect(ctx context.Context, id uuid.UUID, accountID *string, status enums.ConnectStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Space{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"stripe_connect_account_id": accountID,
			"stripe_connect_status":     status,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
