package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/pkg/enums"
)

// Order is the payable record behind a reservation. Orders are never deleted.
type Order struct {
	ID              uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	SpaceID         uuid.UUID            `gorm:"column:space_id;type:uuid;not null;index"`
	AgendaID        uuid.UUID            `gorm:"column:agenda_id;type:uuid;not null"`
	PlanID          *uuid.UUID           `gorm:"column:plan_id;type:uuid"`
	StartsAt        time.Time            `gorm:"column:starts_at;not null"`
	EndsAt          time.Time            `gorm:"column:ends_at;not null"`
	PriceCents      int64                `gorm:"column:price_cents;not null"`
	PaymentMethod   *enums.PaymentMethod `gorm:"column:payment_method"`
	Status          enums.OrderStatus    `gorm:"column:status;not null;default:'PENDING'"`
	Gateway         *enums.Gateway       `gorm:"column:gateway"`
	GatewayChargeID *string              `gorm:"column:gateway_charge_id"`
	CancelReason    *string              `gorm:"column:cancel_reason"`
	PaidAt          *time.Time           `gorm:"column:paid_at"`
	CancelledAt     *time.Time           `gorm:"column:cancelled_at"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// Reservation is the time slot held by an order.
type Reservation struct {
	ID         uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID               `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	UserID     uuid.UUID               `gorm:"column:user_id;type:uuid;not null"`
	SpaceID    uuid.UUID               `gorm:"column:space_id;type:uuid;not null"`
	AgendaID   uuid.UUID               `gorm:"column:agenda_id;type:uuid;not null"`
	StartsAt   time.Time               `gorm:"column:starts_at;not null"`
	EndsAt     time.Time               `gorm:"column:ends_at;not null"`
	PriceCents int64                   `gorm:"column:price_cents;not null"`
	Status     enums.ReservationStatus `gorm:"column:status;not null;default:'PENDENTE'"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Reservation) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
