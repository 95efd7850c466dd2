package enums

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateSubscription OutboxAggregateType = "subscription"
	AggregateSpace        OutboxAggregateType = "space"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateSubscription,
	AggregateSpace,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return oneOf(a, validAggregateTypes)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parseOneOf("aggregate type", value, validAggregateTypes)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventBookingCreated          OutboxEventType = "booking_created"
	EventBookingPaid             OutboxEventType = "booking_paid"
	EventBookingCancelled        OutboxEventType = "booking_cancelled"
	EventPaymentFailed           OutboxEventType = "payment_failed"
	EventSubscriptionActivated   OutboxEventType = "subscription_activated"
	EventSubscriptionCancelled   OutboxEventType = "subscription_cancelled"
	EventSubscriptionExpired     OutboxEventType = "subscription_expired"
	EventGatewayConnectionChange OutboxEventType = "gateway_connection_changed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBookingCreated,
	EventBookingPaid,
	EventBookingCancelled,
	EventPaymentFailed,
	EventSubscriptionActivated,
	EventSubscriptionCancelled,
	EventSubscriptionExpired,
	EventGatewayConnectionChange,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return oneOf(e, validOutboxEventTypes)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseOneOf("outbox event type", value, validOutboxEventTypes)
}

// OutboxDLQErrorReason classifies why an event landed in the DLQ.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
