package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mercadopago/sdk-go/pkg/oauth"
	"github.com/mercadopago/sdk-go/pkg/payment"

	"github.com/dezko/dezko-backend/internal/gateways"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

const (
	notConnected       = "mercado pago not connected for this tenant"
	splitNotEnabled    = "mercado pago marketplace split not enabled for this tenant"
	refreshLeeway      = time.Minute
	chargeIDSeparator  = "/"
	defaultInstallment = 1
)

// Sealer encrypts tenant tokens at rest.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

type Settings struct {
	FeeBasisPoints int
}

// Adapter charges on behalf of a connected tenant with a marketplace fee.
type Adapter struct {
	api      API
	accounts AccountRepository
	sealer   Sealer
	settings Settings
	now      func() time.Time
}

func NewAdapter(api API, accounts AccountRepository, sealer Sealer, settings Settings) (*Adapter, error) {
	if api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "mercado pago api required")
	}
	if accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "mercado pago account repository required")
	}
	if sealer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sealer required")
	}
	return &Adapter{api: api, accounts: accounts, sealer: sealer, settings: settings, now: time.Now}, nil
}

func (a *Adapter) Name() enums.Gateway {
	return enums.GatewayMercadoPago
}

// ChargeID encodes the tenant and payment id so later calls can pick the
// right access token.
func ChargeID(spaceID uuid.UUID, paymentID int) string {
	return spaceID.String() + chargeIDSeparator + strconv.Itoa(paymentID)
}

// ParseChargeID reverses ChargeID.
func ParseChargeID(value string) (uuid.UUID, int, error) {
	spacePart, paymentPart, ok := strings.Cut(strings.TrimSpace(value), chargeIDSeparator)
	if !ok {
		return uuid.Nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid mercado pago charge id")
	}
	spaceID, err := uuid.Parse(spacePart)
	if err != nil {
		return uuid.Nil, 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid mercado pago charge id")
	}
	paymentID, err := strconv.Atoi(paymentPart)
	if err != nil {
		return uuid.Nil, 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid mercado pago charge id")
	}
	return spaceID, paymentID, nil
}

func (a *Adapter) CreateCharge(ctx context.Context, req gateways.ChargeRequest) (*gateways.ChargeResult, error) {
	if strings.TrimSpace(req.PaymentMethodRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "card token required")
	}
	account, err := a.accounts.Find(ctx, req.Tenant.SpaceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load mercado pago account")
	}
	if account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, notConnected)
	}
	if !account.MarketplaceVerified {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, splitNotEnabled)
	}
	token, err := a.accessToken(ctx, account)
	if err != nil {
		return nil, err
	}

	split := gateways.ComputeSplit(req.AmountCents, a.settings.FeeBasisPoints)
	request := payment.Request{
		TransactionAmount: centsToAmount(req.AmountCents),
		ApplicationFee:    centsToAmount(split.PlatformFeeCents),
		Token:             req.PaymentMethodRef,
		Installments:      defaultInstallment,
		Description:       req.Description,
		ExternalReference: req.OrderID.String(),
		Metadata: map[string]any{
			"order_id":       req.OrderID.String(),
			"reservation_id": req.ReservationID.String(),
			"space_id":       req.Tenant.SpaceID.String(),
		},
	}
	if req.Payer.Email != "" {
		request.Payer = &payment.PayerRequest{Email: req.Payer.Email}
	}

	resp, err := a.api.CreatePayment(ctx, token, request)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create mercado pago payment")
	}

	return &gateways.ChargeResult{
		ExternalChargeID: ChargeID(req.Tenant.SpaceID, resp.ID),
		Status:           gateways.NormalizeStatus(enums.GatewayMercadoPago, resp.Status),
		ClientPayload: map[string]any{
			"payment_id":    resp.ID,
			"status":        resp.Status,
			"status_detail": resp.StatusDetail,
		},
		Split: split,
	}, nil
}

func (a *Adapter) Cancel(ctx context.Context, externalChargeID string) gateways.CancelOutcome {
	if strings.TrimSpace(externalChargeID) == "" {
		return gateways.CancelSkipped(enums.GatewayMercadoPago, externalChargeID)
	}
	spaceID, paymentID, err := ParseChargeID(externalChargeID)
	if err != nil {
		return gateways.CancelFailed(enums.GatewayMercadoPago, externalChargeID, err)
	}
	token, err := a.tokenForSpace(ctx, spaceID)
	if err != nil {
		return gateways.CancelFailed(enums.GatewayMercadoPago, externalChargeID, err)
	}
	if _, err := a.api.CancelPayment(ctx, token, paymentID); err != nil {
		return gateways.CancelFailed(enums.GatewayMercadoPago, externalChargeID, err)
	}
	return gateways.Cancelled(enums.GatewayMercadoPago, externalChargeID)
}

func (a *Adapter) FetchStatus(ctx context.Context, externalChargeID string) (gateways.StatusResult, error) {
	spaceID, paymentID, err := ParseChargeID(externalChargeID)
	if err != nil {
		return gateways.StatusResult{}, err
	}
	token, err := a.tokenForSpace(ctx, spaceID)
	if err != nil {
		return gateways.StatusResult{}, err
	}
	resp, err := a.api.GetPayment(ctx, token, paymentID)
	if err != nil {
		return gateways.StatusResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get mercado pago payment")
	}
	raw, _ := json.Marshal(resp)
	return gateways.StatusResult{
		ExternalChargeID: externalChargeID,
		Status:           gateways.NormalizeStatus(enums.GatewayMercadoPago, resp.Status),
		TransactionID:    strconv.Itoa(resp.ID),
		AmountCents:      amountToCents(resp.TransactionAmount),
		Raw:              raw,
	}, nil
}

func (a *Adapter) tokenForSpace(ctx context.Context, spaceID uuid.UUID) (string, error) {
	account, err := a.accounts.Find(ctx, spaceID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load mercado pago account")
	}
	if account == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, notConnected)
	}
	return a.accessToken(ctx, account)
}

// accessToken opens the tenant token, refreshing it once when it is about to
// expire.
func (a *Adapter) accessToken(ctx context.Context, account *models.MercadoPagoAccount) (string, error) {
	if account.ExpiresAt == nil || a.now().Add(refreshLeeway).Before(*account.ExpiresAt) {
		token, err := a.sealer.Open(account.AccessTokenSealed)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open mercado pago token")
		}
		return token, nil
	}

	refresh, err := a.sealer.Open(account.RefreshTokenSealed)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open mercado pago refresh token")
	}
	if refresh == "" {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "mercado pago token expired, reconnect required")
	}
	resp, err := a.api.RefreshToken(ctx, refresh)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh mercado pago token")
	}
	updated, err := AccountFromToken(a.sealer, account.SpaceID, resp, a.now())
	if err != nil {
		return "", err
	}
	updated.MarketplaceVerified = account.MarketplaceVerified
	if err := a.accounts.Upsert(ctx, updated); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refreshed mercado pago token")
	}
	return resp.AccessToken, nil
}

// AccountFromToken seals an OAuth token response into an account row.
func AccountFromToken(sealer Sealer, spaceID uuid.UUID, token *oauth.Response, now time.Time) (*models.MercadoPagoAccount, error) {
	if token == nil || strings.TrimSpace(token.AccessToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mercado pago returned an empty token")
	}
	access, err := sealer.Seal(token.AccessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal mercado pago token")
	}
	refresh, err := sealer.Seal(token.RefreshToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal mercado pago refresh token")
	}
	account := &models.MercadoPagoAccount{
		SpaceID:            spaceID,
		MPUserID:           fmt.Sprintf("%d", int64(token.UserID)),
		AccessTokenSealed:  access,
		RefreshTokenSealed: refresh,
		PublicKey:          token.PublicKey,
		LiveMode:           token.LiveMode,
	}
	if seconds := int64(token.ExpiresIn); seconds > 0 {
		expires := now.UTC().Add(time.Duration(seconds) * time.Second)
		account.ExpiresAt = &expires
	}
	return account, nil
}

func centsToAmount(cents int64) float64 {
	return float64(cents) / 100
}

func amountToCents(amount float64) int64 {
	if amount >= 0 {
		return int64(amount*100 + 0.5)
	}
	return int64(amount*100 - 0.5)
}
