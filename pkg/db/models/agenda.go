package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/pkg/enums"
)

// Agenda is a bookable calendar of a space with its billing rates in cents.
type Agenda struct {
	ID              uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SpaceID         uuid.UUID         `gorm:"column:space_id;type:uuid;not null;index"`
	Name            string            `gorm:"column:name;not null"`
	BillingMode     enums.BillingMode `gorm:"column:billing_mode;not null"`
	HourlyRateCents *int64            `gorm:"column:hourly_rate_cents"`
	ShiftRateCents  *int64            `gorm:"column:shift_rate_cents"`
	DailyRateCents  *int64            `gorm:"column:daily_rate_cents"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Agenda) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
