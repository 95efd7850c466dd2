package agendas

import (
	"time"

	"github.com/google/uuid"

	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
)

type AgendaDTO struct {
	ID              uuid.UUID         `json:"id"`
	SpaceID         uuid.UUID         `json:"space_id"`
	Name            string            `json:"name"`
	BillingMode     enums.BillingMode `json:"billing_mode"`
	HourlyRateCents *int64            `json:"hourly_rate_cents,omitempty"`
	ShiftRateCents  *int64            `json:"shift_rate_cents,omitempty"`
	DailyRateCents  *int64            `json:"daily_rate_cents,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

func FromModel(m *models.Agenda) *AgendaDTO {
	if m == nil {
		return nil
	}
	return &AgendaDTO{
		ID:              m.ID,
		SpaceID:         m.SpaceID,
		Name:            m.Name,
		BillingMode:     m.BillingMode,
		HourlyRateCents: m.HourlyRateCents,
		ShiftRateCents:  m.ShiftRateCents,
		DailyRateCents:  m.DailyRateCents,
		CreatedAt:       m.CreatedAt,
	}
}

type CreateAgendaInput struct {
	Name            string            `json:"name" validate:"required,max=120"`
	BillingMode     enums.BillingMode `json:"billing_mode" validate:"required,valid_enum"`
	HourlyRateCents *int64            `json:"hourly_rate_cents" validate:"omitempty,gt=0"`
	ShiftRateCents  *int64            `json:"shift_rate_cents" validate:"omitempty,gt=0"`
	DailyRateCents  *int64            `json:"daily_rate_cents" validate:"omitempty,gt=0"`
}

// UpdateAgendaInput patches an agenda. Nil fields are left untouched.
type UpdateAgendaInput struct {
	Name            *string            `json:"name" validate:"omitempty,max=120"`
	BillingMode     *enums.BillingMode `json:"billing_mode"`
	HourlyRateCents *int64             `json:"hourly_rate_cents" validate:"omitempty,gt=0"`
	ShiftRateCents  *int64             `json:"shift_rate_cents" validate:"omitempty,gt=0"`
	DailyRateCents  *int64             `json:"daily_rate_cents" validate:"omitempty,gt=0"`
}
