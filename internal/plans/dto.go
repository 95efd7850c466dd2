package plans

import (
	"time"

	"github.com/google/uuid"

	"github.com/dezko/dezko-backend/pkg/db/models"
)

// PlanDTO is the API view of a plan.
type PlanDTO struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	PriceCents   int64     `json:"price_cents"`
	DurationDays int       `json:"duration_days"`
	AgendaLimit  int       `json:"agenda_limit"`
	Benefits     []string  `json:"benefits"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

func FromModel(m *models.Plan) *PlanDTO {
	if m == nil {
		return nil
	}
	benefits := []string(m.Benefits)
	if benefits == nil {
		benefits = []string{}
	}
	return &PlanDTO{
		ID:           m.ID,
		Name:         m.Name,
		PriceCents:   m.PriceCents,
		DurationDays: m.DurationDays,
		AgendaLimit:  m.AgendaLimit,
		Benefits:     benefits,
		Active:       m.Active,
		CreatedAt:    m.CreatedAt,
	}
}

// CreatePlanInput is the admin payload for a new plan.
type CreatePlanInput struct {
	Name         string   `json:"name" validate:"required,max=120"`
	PriceCents   int64    `json:"price_cents" validate:"gte=0"`
	DurationDays int      `json:"duration_days" validate:"required,gt=0"`
	AgendaLimit  int      `json:"agenda_limit" validate:"gte=0"`
	Benefits     []string `json:"benefits" validate:"omitempty,dive,max=200"`
}

// UpdatePlanInput patches a plan. Nil fields are left untouched.
type UpdatePlanInput struct {
	Name         *string   `json:"name" validate:"omitempty,max=120"`
	PriceCents   *int64    `json:"price_cents" validate:"omitempty,gte=0"`
	DurationDays *int      `json:"duration_days" validate:"omitempty,gt=0"`
	AgendaLimit  *int      `json:"agenda_limit" validate:"omitempty,gte=0"`
	Benefits     *[]string `json:"benefits"`
	Active       *bool     `json:"active"`
}
