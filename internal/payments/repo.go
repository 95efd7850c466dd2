package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/pkg/db"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
)

const paymentUniqueConstraint = "ux_payments_gateway_tx_status"

// ErrDuplicatePayment is returned when a (gateway, transaction, status) row
// already exists in the ledger.
var ErrDuplicatePayment = errors.New("payment already recorded")

// Repository persists the append-only payments ledger and the local mirror of
// PIX charges. There is deliberately no update path for payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, payment *models.Payment) error
	Exists(ctx context.Context, gateway enums.Gateway, transactionID string, status enums.PaymentStatus) (bool, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	CreatePixCharge(ctx context.Context, charge *models.PixCharge) error
	FindPixCharge(ctx context.Context, correlationID string) (*models.PixCharge, error)
	UpdatePixChargeStatus(ctx context.Context, correlationID string, status enums.PixChargeStatus, transactionID *string) error
	ListActivePixChargesOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.PixCharge, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, payment *models.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		if db.IsUniqueViolation(err, paymentUniqueConstraint) {
			return ErrDuplicatePayment
		}
		return err
	}
	return nil
}

func (r *repository) Exists(ctx context.Context, gateway enums.Gateway, transactionID string, status enums.PaymentStatus) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("gateway = ? AND gateway_transaction_id = ? AND status = ?", gateway, transactionID, status).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var rows []models.Payment
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreatePixCharge(ctx context.Context, charge *models.PixCharge) error {
	return r.db.WithContext(ctx).Create(charge).Error
}

func (r *repository) FindPixCharge(ctx context.Context, correlationID string) (*models.PixCharge, error) {
	var charge models.PixCharge
	err := r.db.WithContext(ctx).Where("correlation_id = ?", correlationID).First(&charge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &charge, nil
}

func (r *repository) UpdatePixChargeStatus(ctx context.Context, correlationID string, status enums.PixChargeStatus, transactionID *string) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if transactionID != nil && *transactionID != "" {
		updates["transaction_id"] = *transactionID
	}
	return r.db.WithContext(ctx).
		Model(&models.PixCharge{}).
		Where("correlation_id = ?", correlationID).
		Updates(updates).Error
}

func (r *repository) ListActivePixChargesOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.PixCharge, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.PixCharge
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.PixChargeStatusActive, cutoff.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
