package subscriptions

import (
	"time"

	"github.com/google/uuid"

	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
)

// SubscriptionDTO is the API view of a subscription, with the Portuguese
// date names used by the client apps.
type SubscriptionDTO struct {
	ID            uuid.UUID                `json:"id"`
	SpaceID       uuid.UUID                `json:"space_id"`
	PlanID        uuid.UUID                `json:"plan_id"`
	Status        enums.SubscriptionStatus `json:"status"`
	DataInicio    time.Time                `json:"dataInicio"`
	DataExpiracao time.Time                `json:"dataExpiracao"`
	CancelledAt   *time.Time               `json:"cancelled_at,omitempty"`
}

func FromModel(m *models.Subscription) *SubscriptionDTO {
	if m == nil {
		return nil
	}
	return &SubscriptionDTO{
		ID:            m.ID,
		SpaceID:       m.SpaceID,
		PlanID:        m.PlanID,
		Status:        m.Status,
		DataInicio:    m.StartsAt,
		DataExpiracao: m.ExpiresAt,
		CancelledAt:   m.CancelledAt,
	}
}
