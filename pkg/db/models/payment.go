package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/pkg/enums"
)

// Payment is an append-only ledger row describing one gateway outcome.
type Payment struct {
	ID                   uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID              uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	ReservationID        *uuid.UUID          `gorm:"column:reservation_id;type:uuid"`
	Gateway              enums.Gateway       `gorm:"column:gateway;not null"`
	GatewayTransactionID string              `gorm:"column:gateway_transaction_id;not null"`
	Status               enums.PaymentStatus `gorm:"column:status;not null"`
	AmountCents          int64               `gorm:"column:amount_cents;not null"`
	PlatformFeeCents     int64               `gorm:"column:platform_fee_cents;not null;default:0"`
	TenantAmountCents    int64               `gorm:"column:tenant_amount_cents;not null;default:0"`
	Raw                  json.RawMessage     `gorm:"column:raw;type:jsonb"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// PixCharge mirrors an OpenPix charge created for an order.
type PixCharge struct {
	CorrelationID       string                `gorm:"column:correlation_id;primaryKey"`
	OrderID             uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	SpaceID             uuid.UUID             `gorm:"column:space_id;type:uuid;not null"`
	ValueCents          int64                 `gorm:"column:value_cents;not null"`
	TenantAmountCents   int64                 `gorm:"column:tenant_amount_cents;not null"`
	PlatformAmountCents int64                 `gorm:"column:platform_amount_cents;not null"`
	Status              enums.PixChargeStatus `gorm:"column:status;not null;default:'ACTIVE'"`
	BRCode              string                `gorm:"column:br_code"`
	QRCodeImageURL      string                `gorm:"column:qr_code_image_url"`
	PaymentLinkURL      string                `gorm:"column:payment_link_url"`
	TransactionID       *string               `gorm:"column:transaction_id"`
	GlobalID            string                `gorm:"column:global_id"`
	ExpiresAt           *time.Time            `gorm:"column:expires_at"`
	CreatedAt           time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
