package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Plan is a subscription product that caps how many agendas a space may own.
type Plan struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string         `gorm:"column:name;not null"`
	PriceCents   int64          `gorm:"column:price_cents;not null"`
	DurationDays int            `gorm:"column:duration_days;not null"`
	AgendaLimit  int            `gorm:"column:agenda_limit;not null"`
	Benefits     pq.StringArray `gorm:"column:benefits;type:text[]"`
	Active       bool           `gorm:"column:active;not null;default:true"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Plan) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
