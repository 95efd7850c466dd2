package openpix

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dezko/dezko-backend/internal/gateways"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	pkgopenpix "github.com/dezko/dezko-backend/pkg/openpix"
)

const pixNotEnabled = "pix not enabled for this space"

// Client is the subset of the OpenPix HTTP client used by the adapter.
type Client interface {
	CreateCharge(ctx context.Context, req pkgopenpix.ChargeRequest) (*pkgopenpix.Charge, json.RawMessage, error)
	GetCharge(ctx context.Context, id string) (*pkgopenpix.Charge, json.RawMessage, error)
	DeleteCharge(ctx context.Context, id string) error
}

// ChargeStore persists the local mirror of PIX charges.
type ChargeStore interface {
	CreatePixCharge(ctx context.Context, charge *models.PixCharge) error
	FindPixCharge(ctx context.Context, correlationID string) (*models.PixCharge, error)
	UpdatePixChargeStatus(ctx context.Context, correlationID string, status enums.PixChargeStatus, transactionID *string) error
}

type Settings struct {
	FeeBasisPoints int
	ChargeExpiry   time.Duration
}

// Adapter creates split PIX charges through OpenPix.
type Adapter struct {
	client   Client
	store    ChargeStore
	settings Settings
	now      func() time.Time
}

func NewAdapter(client Client, store ChargeStore, settings Settings) (*Adapter, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "openpix client required")
	}
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pix charge store required")
	}
	if settings.ChargeExpiry <= 0 {
		settings.ChargeExpiry = time.Hour
	}
	return &Adapter{client: client, store: store, settings: settings, now: time.Now}, nil
}

func (a *Adapter) Name() enums.Gateway {
	return enums.GatewayOpenPix
}

// CreateCharge creates a charge whose correlation id is the order id and
// splits the tenant share to the space's PIX key. An ACTIVE charge already
// open for the order is returned as is.
func (a *Adapter) CreateCharge(ctx context.Context, req gateways.ChargeRequest) (*gateways.ChargeResult, error) {
	pixKey := strings.TrimSpace(req.Tenant.PixKey)
	if pixKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, pixNotEnabled)
	}
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	correlationID := req.OrderID.String()
	existing, err := a.store.FindPixCharge(ctx, correlationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pix charge")
	}
	if existing != nil {
		if existing.Status == enums.PixChargeStatusActive {
			return resultFromMirror(existing), nil
		}
		// OpenPix correlation ids are single use; later attempts get a suffix.
		correlationID = retryCorrelationID(req.OrderID)
	}

	split := gateways.ComputeSplit(req.AmountCents, a.settings.FeeBasisPoints)
	charge, _, err := a.client.CreateCharge(ctx, pkgopenpix.ChargeRequest{
		CorrelationID: correlationID,
		Value:         req.AmountCents,
		Comment:       req.Description,
		ExpiresIn:     int64(a.settings.ChargeExpiry / time.Second),
		Splits: []pkgopenpix.Split{{
			PixKey:    pixKey,
			Value:     split.TenantAmountCents,
			SplitType: pkgopenpix.SplitTypePartner,
		}},
	})
	if err != nil {
		return nil, err
	}

	expiresAt := charge.ExpiresAt()
	if expiresAt == nil {
		fallback := a.now().UTC().Add(a.settings.ChargeExpiry)
		expiresAt = &fallback
	}
	mirror := &models.PixCharge{
		CorrelationID:       correlationID,
		OrderID:             req.OrderID,
		SpaceID:             req.Tenant.SpaceID,
		ValueCents:          req.AmountCents,
		TenantAmountCents:   split.TenantAmountCents,
		PlatformAmountCents: split.PlatformFeeCents,
		Status:              enums.PixChargeStatusActive,
		BRCode:              charge.BRCode,
		QRCodeImageURL:      charge.QRCodeImage,
		PaymentLinkURL:      charge.PaymentLinkURL,
		GlobalID:            charge.GlobalID,
		ExpiresAt:           expiresAt,
	}
	if charge.TransactionID != "" {
		tx := charge.TransactionID
		mirror.TransactionID = &tx
	}
	if err := a.store.CreatePixCharge(ctx, mirror); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store pix charge")
	}
	return resultFromMirror(mirror), nil
}

// retryCorrelationID keeps the order id as prefix so webhooks can resolve
// the order even without a local mirror.
func retryCorrelationID(orderID uuid.UUID) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return orderID.String() + "-" + suffix[:12]
}

func resultFromMirror(charge *models.PixCharge) *gateways.ChargeResult {
	payload := map[string]any{
		"correlation_id":    charge.CorrelationID,
		"br_code":           charge.BRCode,
		"qr_code_image_url": charge.QRCodeImageURL,
		"payment_link_url":  charge.PaymentLinkURL,
	}
	if charge.ExpiresAt != nil {
		payload["expires_at"] = charge.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return &gateways.ChargeResult{
		ExternalChargeID: charge.CorrelationID,
		Status:           enums.PaymentStatusPending,
		ClientPayload:    payload,
		Split: gateways.SplitBreakdown{
			TotalCents:        charge.ValueCents,
			PlatformFeeCents:  charge.PlatformAmountCents,
			TenantAmountCents: charge.TenantAmountCents,
		},
	}
}

// Cancel deletes the charge upstream and expires the local mirror.
func (a *Adapter) Cancel(ctx context.Context, externalChargeID string) gateways.CancelOutcome {
	if strings.TrimSpace(externalChargeID) == "" {
		return gateways.CancelSkipped(enums.GatewayOpenPix, externalChargeID)
	}
	if err := a.client.DeleteCharge(ctx, externalChargeID); err != nil {
		return gateways.CancelFailed(enums.GatewayOpenPix, externalChargeID, err)
	}
	if err := a.store.UpdatePixChargeStatus(ctx, externalChargeID, enums.PixChargeStatusExpired, nil); err != nil {
		return gateways.CancelFailed(enums.GatewayOpenPix, externalChargeID, err)
	}
	return gateways.Cancelled(enums.GatewayOpenPix, externalChargeID)
}

// FetchStatus polls the charge and refreshes the local mirror when it left
// the ACTIVE state.
func (a *Adapter) FetchStatus(ctx context.Context, externalChargeID string) (gateways.StatusResult, error) {
	charge, raw, err := a.client.GetCharge(ctx, externalChargeID)
	if err != nil {
		return gateways.StatusResult{}, err
	}
	status := gateways.NormalizeStatus(enums.GatewayOpenPix, charge.Status)
	txID := TransactionID(charge.TransactionID, "", externalChargeID)

	var mirrorStatus enums.PixChargeStatus
	switch status {
	case enums.PaymentStatusApproved:
		mirrorStatus = enums.PixChargeStatusCompleted
	case enums.PaymentStatusCancelled:
		mirrorStatus = enums.PixChargeStatusExpired
	}
	if mirrorStatus != "" {
		if err := a.store.UpdatePixChargeStatus(ctx, externalChargeID, mirrorStatus, &txID); err != nil {
			return gateways.StatusResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update pix charge")
		}
	}

	return gateways.StatusResult{
		ExternalChargeID: externalChargeID,
		Status:           status,
		TransactionID:    txID,
		AmountCents:      charge.Value,
		Raw:              raw,
	}, nil
}

// TransactionID picks the identifier recorded in the payments ledger for a
// PIX payment, preferring the charge's transaction id.
func TransactionID(chargeTxID, pixTxID, correlationID string) string {
	for _, candidate := range []string{chargeTxID, pixTxID, correlationID} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
