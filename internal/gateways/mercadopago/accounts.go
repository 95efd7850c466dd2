package mercadopago

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dezko/dezko-backend/pkg/db/models"
)

// AccountRepository stores tenant Mercado Pago credentials.
type AccountRepository interface {
	WithTx(tx *gorm.DB) AccountRepository
	Find(ctx context.Context, spaceID uuid.UUID) (*models.MercadoPagoAccount, error)
	Upsert(ctx context.Context, account *models.MercadoPagoAccount) error
	Delete(ctx context.Context, spaceID uuid.UUID) error
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) WithTx(tx *gorm.DB) AccountRepository {
	if tx == nil {
		return r
	}
	return &accountRepository{db: tx}
}

func (r *accountRepository) Find(ctx context.Context, spaceID uuid.UUID) (*models.MercadoPagoAccount, error) {
	var account models.MercadoPagoAccount
	err := r.db.WithContext(ctx).Where("space_id = ?", spaceID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Upsert replaces the credentials of a space, keeping marketplace_verified
// as stored unless the caller sets it.
func (r *accountRepository) Upsert(ctx context.Context, account *models.MercadoPagoAccount) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "space_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"mp_user_id",
			"access_token_sealed",
			"refresh_token_sealed",
			"public_key",
			"live_mode",
			"expires_at",
			"updated_at",
		}),
	}).Create(account).Error
}

func (r *accountRepository) Delete(ctx context.Context, spaceID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("space_id = ?", spaceID).Delete(&models.MercadoPagoAccount{}).Error
}
