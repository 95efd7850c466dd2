package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/pkg/enums"
)

// Subscription binds a space to a plan for a fixed period. At most one row
// per space may be ATIVA.
type Subscription struct {
	ID          uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SpaceID     uuid.UUID                `gorm:"column:space_id;type:uuid;not null;index"`
	PlanID      uuid.UUID                `gorm:"column:plan_id;type:uuid;not null"`
	Status      enums.SubscriptionStatus `gorm:"column:status;not null;default:'ATIVA'"`
	StartsAt    time.Time                `gorm:"column:starts_at;not null"`
	ExpiresAt   time.Time                `gorm:"column:expires_at;not null"`
	CancelledAt *time.Time               `gorm:"column:cancelled_at"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
