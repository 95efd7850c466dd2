package stripeconnect

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/dezko/dezko-backend/internal/gateways"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

// Settings are the platform-side parameters of destination charges.
type Settings struct {
	Currency       string
	FeeBasisPoints int
}

// Adapter creates Stripe destination charges on behalf of connected spaces.
type Adapter struct {
	api      API
	settings Settings
}

func NewAdapter(api API, settings Settings) (*Adapter, error) {
	if api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe api required")
	}
	if strings.TrimSpace(settings.Currency) == "" {
		settings.Currency = string(stripe.CurrencyBRL)
	}
	return &Adapter{api: api, settings: settings}, nil
}

func (a *Adapter) Name() enums.Gateway {
	return enums.GatewayStripe
}

// CreateCharge reuses or creates the payer's customer, attaches the supplied
// PaymentMethod and creates a PaymentIntent that transfers the tenant share
// to the connected account, keeping the platform fee.
func (a *Adapter) CreateCharge(ctx context.Context, req gateways.ChargeRequest) (*gateways.ChargeResult, error) {
	accountID := strings.TrimSpace(req.Tenant.StripeAccountID)
	if accountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway not connected for this tenant")
	}
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	cust, err := a.resolveCustomer(ctx, req.Payer)
	if err != nil {
		return nil, err
	}

	split := gateways.ComputeSplit(req.AmountCents, a.settings.FeeBasisPoints)
	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(req.AmountCents),
		Currency:             stripe.String(a.settings.Currency),
		Customer:             stripe.String(cust.ID),
		Description:          stripe.String(req.Description),
		PaymentMethodTypes:   stripe.StringSlice([]string{"card"}),
		ApplicationFeeAmount: stripe.Int64(split.PlatformFeeCents),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(accountID),
		},
	}
	params.AddMetadata("order_id", req.OrderID.String())
	params.AddMetadata("reservation_id", req.ReservationID.String())
	params.AddMetadata("space_id", req.Tenant.SpaceID.String())

	if pm := strings.TrimSpace(req.PaymentMethodRef); pm != "" {
		if _, err := a.api.AttachPaymentMethod(ctx, pm, &stripe.PaymentMethodAttachParams{Customer: stripe.String(cust.ID)}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach payment method")
		}
		params.PaymentMethod = stripe.String(pm)
		params.Confirm = stripe.Bool(true)
	}

	intent, err := a.api.CreatePaymentIntent(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	return &gateways.ChargeResult{
		ExternalChargeID: intent.ID,
		Status:           intentStatus(intent),
		ClientPayload: map[string]any{
			"payment_intent_id": intent.ID,
			"client_secret":     intent.ClientSecret,
			"status":            string(intent.Status),
		},
		Split: split,
	}, nil
}

func (a *Adapter) resolveCustomer(ctx context.Context, payer gateways.Payer) (*stripe.Customer, error) {
	email := strings.TrimSpace(payer.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer email required")
	}
	existing, err := a.api.FindCustomerByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup stripe customer")
	}
	if existing != nil {
		return existing, nil
	}
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(payer.Name),
	}
	params.AddMetadata("user_id", payer.UserID.String())
	created, err := a.api.CreateCustomer(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe customer")
	}
	return created, nil
}

func (a *Adapter) Cancel(ctx context.Context, externalChargeID string) gateways.CancelOutcome {
	if strings.TrimSpace(externalChargeID) == "" {
		return gateways.CancelSkipped(enums.GatewayStripe, externalChargeID)
	}
	if _, err := a.api.CancelPaymentIntent(ctx, externalChargeID); err != nil {
		return gateways.CancelFailed(enums.GatewayStripe, externalChargeID, err)
	}
	return gateways.Cancelled(enums.GatewayStripe, externalChargeID)
}

func (a *Adapter) FetchStatus(ctx context.Context, externalChargeID string) (gateways.StatusResult, error) {
	intent, err := a.api.GetPaymentIntent(ctx, externalChargeID)
	if err != nil {
		return gateways.StatusResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch payment intent")
	}
	raw, _ := json.Marshal(map[string]any{"id": intent.ID, "status": intent.Status, "amount": intent.Amount})
	return gateways.StatusResult{
		ExternalChargeID: intent.ID,
		Status:           intentStatus(intent),
		TransactionID:    intent.ID,
		AmountCents:      intent.Amount,
		Raw:              raw,
	}, nil
}

// intentStatus reports rejected only when Stripe recorded a failed
// confirmation; an intent still waiting on the client is pending.
func intentStatus(intent *stripe.PaymentIntent) enums.PaymentStatus {
	if intent.Status == stripe.PaymentIntentStatusRequiresPaymentMethod && intent.LastPaymentError != nil {
		return enums.PaymentStatusRejected
	}
	return gateways.NormalizeStatus(enums.GatewayStripe, string(intent.Status))
}
