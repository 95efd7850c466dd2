package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dezko/dezko-backend/pkg/config"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	"github.com/dezko/dezko-backend/pkg/outbox"
	"github.com/dezko/dezko-backend/pkg/outbox/payloads"
)

// envelopeVersion is the newest envelope layout this publisher understands.
const envelopeVersion = outbox.CurrentVersion

// EventDescriptor says where an event type is published and how its data decodes.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode func(json.RawMessage) (any, error)
}

// ResolvedEvent is an outbox row with its envelope and typed payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry maps event types to descriptors. It is read-only after
// construction and safe for concurrent use.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that will never publish, however often it
// is retried.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err, or anything it wraps, is a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}

func decodeAs[T any](data json.RawMessage) (any, error) {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		decode:        decodeAs[T],
	}
}

// NewEventRegistry wires order events to the bookings topic and subscription
// and gateway onboarding events to the billing topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	var err error
	if cfg.BookingsTopic == "" {
		err = multierr.Append(err, errors.New("bookings topic is required"))
	}
	if cfg.BillingTopic == "" {
		err = multierr.Append(err, errors.New("billing topic is required"))
	}
	if err != nil {
		return nil, err
	}

	bookings, billing := cfg.BookingsTopic, cfg.BillingTopic
	descriptors := []EventDescriptor{
		describe[payloads.BookingCreatedEvent](enums.EventBookingCreated, enums.AggregateOrder, bookings),
		describe[payloads.BookingPaidEvent](enums.EventBookingPaid, enums.AggregateOrder, bookings),
		describe[payloads.BookingCancelledEvent](enums.EventBookingCancelled, enums.AggregateOrder, bookings),
		describe[payloads.PaymentFailedEvent](enums.EventPaymentFailed, enums.AggregateOrder, bookings),
		describe[payloads.SubscriptionEvent](enums.EventSubscriptionActivated, enums.AggregateSubscription, billing),
		describe[payloads.SubscriptionEvent](enums.EventSubscriptionCancelled, enums.AggregateSubscription, billing),
		describe[payloads.SubscriptionEvent](enums.EventSubscriptionExpired, enums.AggregateSubscription, billing),
		describe[payloads.GatewayConnectionChangedEvent](enums.EventGatewayConnectionChange, enums.AggregateSpace, billing),
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, desc := range descriptors {
		if _, dup := reg.entries[desc.EventType]; dup {
			return nil, fmt.Errorf("event type %s registered twice", desc.EventType)
		}
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Topics returns the distinct topics in sorted order.
func (r *EventRegistry) Topics() []string {
	set := make(map[string]struct{}, 2)
	for _, desc := range r.entries {
		set[desc.Topic] = struct{}{}
	}
	topics := make([]string, 0, len(set))
	for topic := range set {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Descriptor looks up a single event type.
func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is a NonRetryableError: a malformed row stays malformed.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, err := r.check(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	switch {
	case envelope.Version < 1 || envelope.Version > envelopeVersion:
		return nil, NewNonRetryableError(fmt.Errorf("unsupported envelope version %d", envelope.Version))
	case envelope.EventID == "":
		return nil, NewNonRetryableError(errors.New("envelope without event id"))
	}

	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("%s has no data", event.EventType))
	}
	payload, err := desc.decode(data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s data: %w", event.EventType, err))
	}

	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func (r *EventRegistry) check(event models.OutboxEvent) (EventDescriptor, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return desc, fmt.Errorf("unsupported event type %q", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return desc, fmt.Errorf("%s belongs to %s, row says %s", event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return desc, errors.New("missing aggregate_id")
	}
	return desc, nil
}
