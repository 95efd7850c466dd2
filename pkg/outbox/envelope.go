package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dezko/dezko-backend/pkg/auth"
	"github.com/dezko/dezko-backend/pkg/db/models"
)

// CurrentVersion is the envelope version written when an event leaves it unset.
const CurrentVersion = 1

// ActorRef identifies who produced the event. System jobs leave it nil.
type ActorRef struct {
	UserID  uuid.UUID  `json:"userId"`
	SpaceID *uuid.UUID `json:"spaceId,omitempty"`
	Role    string     `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// as the message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// ActorRefFor describes an authenticated actor. Nil actors yield nil.
func ActorRefFor(actor auth.Actor) *ActorRef {
	if actor == nil {
		return nil
	}
	ref := &ActorRef{UserID: actor.UserID(), Role: string(actor.Role())}
	if owner, ok := actor.(auth.SpaceOwner); ok {
		spaceID := owner.SpaceID
		ref.SpaceID = &spaceID
	}
	return ref
}

func buildRow(event DomainEvent, eventID string) (models.OutboxEvent, PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return models.OutboxEvent{}, PayloadEnvelope{}, fmt.Errorf("marshal %s data: %w", event.EventType, err)
	}
	version := event.Version
	if version <= 0 {
		version = CurrentVersion
	}
	envelope := PayloadEnvelope{
		Version:    version,
		EventID:    eventID,
		OccurredAt: event.OccurredAt.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return models.OutboxEvent{}, PayloadEnvelope{}, fmt.Errorf("marshal %s envelope: %w", event.EventType, err)
	}
	return models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}, envelope, nil
}
