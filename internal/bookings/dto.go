package bookings

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dezko/dezko-backend/internal/gateways"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
)

// CreateBookingInput is the payload of POST /api/v1/bookings.
type CreateBookingInput struct {
	SpaceID          uuid.UUID            `json:"spaceId" validate:"required"`
	AgendaID         uuid.UUID            `json:"agendaId" validate:"required"`
	StartsAt         time.Time            `json:"dataInicio" validate:"required"`
	EndsAt           time.Time            `json:"dataFim" validate:"required"`
	PaymentMethod    *enums.PaymentMethod `json:"paymentMethod,omitempty"`
	PaymentMethodRef string               `json:"paymentMethodRef,omitempty"`
	// UserID lets an admin book on behalf of an end user.
	UserID *uuid.UUID `json:"userId,omitempty"`
}

// PayInput starts or retries the charge of a PENDING order.
type PayInput struct {
	PaymentMethod    enums.PaymentMethod `json:"paymentMethod" validate:"required,valid_enum"`
	PaymentMethodRef string              `json:"paymentMethodRef,omitempty"`
}

// CancelInput carries the optional reason stored on the order.
type CancelInput struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// Confirmation is a gateway's report that a charge succeeded.
type Confirmation struct {
	OrderID          uuid.UUID
	Gateway          enums.Gateway
	TransactionID    string
	ExternalChargeID string
	AmountCents      int64
	Raw              json.RawMessage
}

// Failure is a gateway's report that a charge attempt was rejected.
type Failure struct {
	OrderID       uuid.UUID
	Gateway       enums.Gateway
	TransactionID string
	AmountCents   int64
	Reason        string
	Raw           json.RawMessage
}

// ConfirmResult tells the caller what ConfirmPayment did.
type ConfirmResult string

const (
	ConfirmResultPaid         ConfirmResult = "paid"
	ConfirmResultAlreadyKnown ConfirmResult = "already_recorded"
	ConfirmResultDuplicate    ConfirmResult = "duplicate_charge"
	ConfirmResultAfterCancel  ConfirmResult = "after_cancel"
)

// PaymentAttempt reports the outcome of a charge attempt.
type PaymentAttempt struct {
	Status           string                   `json:"status"`
	Gateway          enums.Gateway            `json:"gateway,omitempty"`
	ExternalChargeID string                   `json:"externalChargeId,omitempty"`
	PaymentStatus    enums.PaymentStatus      `json:"paymentStatus,omitempty"`
	ClientPayload    map[string]any           `json:"clientPayload,omitempty"`
	Split            *gateways.SplitBreakdown `json:"split,omitempty"`
	Retryable        bool                     `json:"retryable"`
	Error            string                   `json:"error,omitempty"`
}

const (
	AttemptCreated = "created"
	AttemptFailed  = "failed"
)

// ReservationDTO mirrors the reservation held by an order.
type ReservationDTO struct {
	ID       uuid.UUID               `json:"id"`
	Status   enums.ReservationStatus `json:"status"`
	StartsAt time.Time               `json:"dataInicio"`
	EndsAt   time.Time               `json:"dataFim"`
}

// BookingDTO is the API view of an order and its reservation.
type BookingDTO struct {
	ID              uuid.UUID            `json:"id"`
	UserID          uuid.UUID            `json:"userId"`
	SpaceID         uuid.UUID            `json:"spaceId"`
	AgendaID        uuid.UUID            `json:"agendaId"`
	StartsAt        time.Time            `json:"dataInicio"`
	EndsAt          time.Time            `json:"dataFim"`
	PriceCents      int64                `json:"priceCents"`
	Status          enums.OrderStatus    `json:"status"`
	PaymentMethod   *enums.PaymentMethod `json:"paymentMethod,omitempty"`
	Gateway         *enums.Gateway       `json:"gateway,omitempty"`
	GatewayChargeID *string              `json:"gatewayChargeId,omitempty"`
	CancelReason    *string              `json:"cancelReason,omitempty"`
	PaidAt          *time.Time           `json:"paidAt,omitempty"`
	CancelledAt     *time.Time           `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	Reservation     *ReservationDTO      `json:"reservation,omitempty"`
	Payment         *PaymentAttempt      `json:"payment,omitempty"`
}

// CancelResult is returned by Cancel with the upstream outcome.
type CancelResult struct {
	Booking  BookingDTO              `json:"booking"`
	Upstream *gateways.CancelOutcome `json:"upstream,omitempty"`
}

// PaymentStatusDTO answers the polling endpoint.
type PaymentStatusDTO struct {
	OrderID       uuid.UUID           `json:"orderId"`
	OrderStatus   enums.OrderStatus   `json:"orderStatus"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
	Gateway       *enums.Gateway      `json:"gateway,omitempty"`
}

// BookingList is a cursor page of bookings.
type BookingList struct {
	Items      []BookingDTO `json:"items"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

// FromModel maps an order row, and optionally its reservation, to the DTO.
func FromModel(order *models.Order, reservation *models.Reservation) BookingDTO {
	dto := BookingDTO{
		ID:              order.ID,
		UserID:          order.UserID,
		SpaceID:         order.SpaceID,
		AgendaID:        order.AgendaID,
		StartsAt:        order.StartsAt,
		EndsAt:          order.EndsAt,
		PriceCents:      order.PriceCents,
		Status:          order.Status,
		PaymentMethod:   order.PaymentMethod,
		Gateway:         order.Gateway,
		GatewayChargeID: order.GatewayChargeID,
		CancelReason:    order.CancelReason,
		PaidAt:          order.PaidAt,
		CancelledAt:     order.CancelledAt,
		CreatedAt:       order.CreatedAt,
	}
	if reservation != nil {
		dto.Reservation = &ReservationDTO{
			ID:       reservation.ID,
			Status:   reservation.Status,
			StartsAt: reservation.StartsAt,
			EndsAt:   reservation.EndsAt,
		}
	}
	return dto
}
