package payloads

import (
	"time"

	"github.com/dezko/dezko-backend/pkg/enums"
	"github.com/google/uuid"
)

// BookingCreatedEvent is emitted when an order and its reservation are stored.
type BookingCreatedEvent struct {
	OrderID       uuid.UUID            `json:"order_id"`
	ReservationID uuid.UUID            `json:"reservation_id"`
	UserID        uuid.UUID            `json:"user_id"`
	SpaceID       uuid.UUID            `json:"space_id"`
	AgendaID      uuid.UUID            `json:"agenda_id"`
	StartsAt      time.Time            `json:"starts_at"`
	EndsAt        time.Time            `json:"ends_at"`
	PriceCents    int64                `json:"price_cents"`
	PaymentMethod *enums.PaymentMethod `json:"payment_method,omitempty"`
}

// BookingPaidEvent is emitted on the PENDING to PAID transition.
type BookingPaidEvent struct {
	OrderID              uuid.UUID     `json:"order_id"`
	ReservationID        uuid.UUID     `json:"reservation_id"`
	SpaceID              uuid.UUID     `json:"space_id"`
	Gateway              enums.Gateway `json:"gateway"`
	GatewayTransactionID string        `json:"gateway_transaction_id"`
	AmountCents          int64         `json:"amount_cents"`
	PlatformFeeCents     int64         `json:"platform_fee_cents"`
	TenantAmountCents    int64         `json:"tenant_amount_cents"`
	PaidAt               time.Time     `json:"paid_at"`
}

// BookingCancelledEvent is emitted whenever an order is cancelled.
type BookingCancelledEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	SpaceID        uuid.UUID         `json:"space_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Reason         string            `json:"reason,omitempty"`
	CancelledBy    string            `json:"cancelled_by"`
	CancelledAt    time.Time         `json:"cancelled_at"`
}

// PaymentFailedEvent is emitted when a gateway reports a rejected attempt.
type PaymentFailedEvent struct {
	OrderID              uuid.UUID     `json:"order_id"`
	Gateway              enums.Gateway `json:"gateway"`
	GatewayTransactionID string        `json:"gateway_transaction_id"`
	Reason               string        `json:"reason,omitempty"`
}

// SubscriptionEvent covers activation, cancellation and expiry of a plan.
type SubscriptionEvent struct {
	SubscriptionID uuid.UUID                `json:"subscription_id"`
	SpaceID        uuid.UUID                `json:"space_id"`
	PlanID         uuid.UUID                `json:"plan_id"`
	Status         enums.SubscriptionStatus `json:"status"`
	StartsAt       time.Time                `json:"starts_at"`
	ExpiresAt      time.Time                `json:"expires_at"`
}

// GatewayConnectionChangedEvent reports tenant onboarding changes.
type GatewayConnectionChangedEvent struct {
	SpaceID   uuid.UUID `json:"space_id"`
	Gateway   string    `json:"gateway"`
	Connected bool      `json:"connected"`
	AccountID string    `json:"account_id,omitempty"`
}
