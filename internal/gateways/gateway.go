package gateways

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/dezko/dezko-backend/pkg/enums"
)

// Gateway is the contract every payment provider adapter implements.
type Gateway interface {
	Name() enums.Gateway
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	// Cancel is best effort and reports its result instead of failing.
	Cancel(ctx context.Context, externalChargeID string) CancelOutcome
	FetchStatus(ctx context.Context, externalChargeID string) (StatusResult, error)
}

// Tenant carries the receiving space's payout coordinates.
type Tenant struct {
	SpaceID         uuid.UUID
	StripeAccountID string
	PixKey          string
}

// Payer identifies the end user being charged.
type Payer struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

type ChargeRequest struct {
	OrderID       uuid.UUID
	ReservationID uuid.UUID
	AmountCents   int64
	Description   string
	Tenant        Tenant
	Payer         Payer
	// PaymentMethodRef is the provider token chosen by the client, such as a
	// Stripe PaymentMethod id or a Mercado Pago card token.
	PaymentMethodRef string
}

type ChargeResult struct {
	ExternalChargeID string              `json:"external_charge_id"`
	Status           enums.PaymentStatus `json:"status"`
	ClientPayload    map[string]any      `json:"client_payload,omitempty"`
	Split            SplitBreakdown      `json:"split"`
}

// StatusResult is the normalized answer of a status poll.
type StatusResult struct {
	ExternalChargeID string
	Status           enums.PaymentStatus
	TransactionID    string
	AmountCents      int64
	Raw              json.RawMessage
}

type CancelResult string

const (
	CancelResultCancelled CancelResult = "cancelled"
	CancelResultFailed    CancelResult = "failed"
	CancelResultSkipped   CancelResult = "skipped"
)

// CancelOutcome records what happened upstream when a local cancel asked the
// provider to void a charge.
type CancelOutcome struct {
	Gateway          enums.Gateway `json:"gateway"`
	ExternalChargeID string        `json:"external_charge_id,omitempty"`
	Result           CancelResult  `json:"result"`
	Err              error         `json:"-"`
}

// Message returns the upstream error message, if any.
func (o CancelOutcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

func Cancelled(gw enums.Gateway, id string) CancelOutcome {
	return CancelOutcome{Gateway: gw, ExternalChargeID: id, Result: CancelResultCancelled}
}

func CancelFailed(gw enums.Gateway, id string, err error) CancelOutcome {
	return CancelOutcome{Gateway: gw, ExternalChargeID: id, Result: CancelResultFailed, Err: err}
}

func CancelSkipped(gw enums.Gateway, id string) CancelOutcome {
	return CancelOutcome{Gateway: gw, ExternalChargeID: id, Result: CancelResultSkipped}
}
