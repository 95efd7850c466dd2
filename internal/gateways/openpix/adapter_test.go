package openpix

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dezko/dezko-backend/internal/gateways"
	"github.com/dezko/dezko-backend/internal/payments"
	"github.com/dezko/dezko-backend/internal/testdb"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	pkgopenpix "github.com/dezko/dezko-backend/pkg/openpix"
)

type fakeClient struct {
	created   []pkgopenpix.ChargeRequest
	status    string
	deleteErr error
	deleted   []string
}

func (f *fakeClient) CreateCharge(ctx context.Context, req pkgopenpix.ChargeRequest) (*pkgopenpix.Charge, json.RawMessage, error) {
	f.created = append(f.created, req)
	return &pkgopenpix.Charge{
		Status:         "ACTIVE",
		Value:          req.Value,
		CorrelationID:  req.CorrelationID,
		BRCode:         "00020126580014br.gov.bcb.pix",
		QRCodeImage:    "https://api.openpix.com.br/openpix/charge/brcode/image/x.png",
		PaymentLinkURL: "https://openpix.com.br/pay/x",
		GlobalID:       "Q2hhcmdlOjE=",
		ExpiresDate:    "2026-04-01T10:00:00Z",
	}, json.RawMessage(`{}`), nil
}

func (f *fakeClient) GetCharge(ctx context.Context, id string) (*pkgopenpix.Charge, json.RawMessage, error) {
	return &pkgopenpix.Charge{Status: f.status, CorrelationID: id, TransactionID: "tx-" + id, Value: 10000}, json.RawMessage(`{"charge":{}}`), nil
}

func (f *fakeClient) DeleteCharge(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func newAdapter(t *testing.T, client *fakeClient) (*Adapter, payments.Repository) {
	t.Helper()
	repo := payments.NewRepository(testdb.Open(t))
	adapter, err := NewAdapter(client, repo, Settings{FeeBasisPoints: 1000, ChargeExpiry: time.Hour})
	require.NoError(t, err)
	return adapter, repo
}

func pixRequest() gateways.ChargeRequest {
	return gateways.ChargeRequest{
		OrderID:     uuid.New(),
		AmountCents: 10000,
		Description: "Reserva Sala 1",
		Tenant:      gateways.Tenant{SpaceID: uuid.New(), PixKey: "tenant@pix.com"},
	}
}

// A 100.00 PIX charge splits 90.00 to the tenant key and persists the mirror.
func TestCreateChargeSplitsAndMirrors(t *testing.T) {
	client := &fakeClient{}
	adapter, repo := newAdapter(t, client)
	req := pixRequest()

	res, err := adapter.CreateCharge(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, client.created, 1)
	sent := client.created[0]
	assert.Equal(t, req.OrderID.String(), sent.CorrelationID)
	assert.Equal(t, int64(3600), sent.ExpiresIn)
	require.Len(t, sent.Splits, 1)
	assert.Equal(t, "tenant@pix.com", sent.Splits[0].PixKey)
	assert.Equal(t, int64(9000), sent.Splits[0].Value)
	assert.Equal(t, "SPLIT_PARTNER", sent.Splits[0].SplitType)

	assert.Equal(t, req.OrderID.String(), res.ExternalChargeID)
	assert.Equal(t, enums.PaymentStatusPending, res.Status)
	assert.Equal(t, "00020126580014br.gov.bcb.pix", res.ClientPayload["br_code"])

	mirror, err := repo.FindPixCharge(context.Background(), req.OrderID.String())
	require.NoError(t, err)
	require.NotNil(t, mirror)
	assert.Equal(t, int64(9000), mirror.TenantAmountCents)
	assert.Equal(t, int64(1000), mirror.PlatformAmountCents)
	assert.Equal(t, enums.PixChargeStatusActive, mirror.Status)
	assert.Equal(t, "Q2hhcmdlOjE=", mirror.GlobalID)
	require.NotNil(t, mirror.ExpiresAt)

	// Paying again while the charge is open returns the same QR code.
	again, err := adapter.CreateCharge(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, res.ExternalChargeID, again.ExternalChargeID)
	assert.Len(t, client.created, 1)
}

func TestCreateChargeAfterExpiryUsesNewCorrelation(t *testing.T) {
	client := &fakeClient{}
	adapter, repo := newAdapter(t, client)
	req := pixRequest()

	_, err := adapter.CreateCharge(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, repo.UpdatePixChargeStatus(context.Background(), req.OrderID.String(), enums.PixChargeStatusExpired, nil))

	res, err := adapter.CreateCharge(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, req.OrderID.String(), res.ExternalChargeID)
	assert.Contains(t, res.ExternalChargeID, req.OrderID.String())
	assert.Len(t, client.created, 2)
}

func TestRetriesWithinOneSecondGetDistinctCorrelations(t *testing.T) {
	client := &fakeClient{}
	adapter, repo := newAdapter(t, client)
	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	adapter.now = func() time.Time { return frozen }
	req := pixRequest()
	ctx := context.Background()

	_, err := adapter.CreateCharge(ctx, req)
	require.NoError(t, err)
	require.NoError(t, repo.UpdatePixChargeStatus(ctx, req.OrderID.String(), enums.PixChargeStatusExpired, nil))

	first, err := adapter.CreateCharge(ctx, req)
	require.NoError(t, err)
	second, err := adapter.CreateCharge(ctx, req)
	require.NoError(t, err)

	assert.NotEqual(t, first.ExternalChargeID, second.ExternalChargeID)
	assert.True(t, strings.HasPrefix(second.ExternalChargeID, req.OrderID.String()+"-"))
	require.Len(t, client.created, 3)
	assert.Equal(t, second.ExternalChargeID, client.created[2].CorrelationID)
}

func TestCreateChargeRequiresPixKey(t *testing.T) {
	adapter, _ := newAdapter(t, &fakeClient{})
	req := pixRequest()
	req.Tenant.PixKey = ""

	_, err := adapter.CreateCharge(context.Background(), req)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, "pix not enabled for this space", pkgerrors.As(err).Message())
}

func TestFetchStatusCompletesMirror(t *testing.T) {
	client := &fakeClient{status: "COMPLETED"}
	adapter, repo := newAdapter(t, client)
	req := pixRequest()
	_, err := adapter.CreateCharge(context.Background(), req)
	require.NoError(t, err)

	status, err := adapter.FetchStatus(context.Background(), req.OrderID.String())
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusApproved, status.Status)
	assert.Equal(t, "tx-"+req.OrderID.String(), status.TransactionID)

	mirror, err := repo.FindPixCharge(context.Background(), req.OrderID.String())
	require.NoError(t, err)
	assert.Equal(t, enums.PixChargeStatusCompleted, mirror.Status)
}

func TestCancel(t *testing.T) {
	client := &fakeClient{}
	adapter, repo := newAdapter(t, client)
	req := pixRequest()
	_, err := adapter.CreateCharge(context.Background(), req)
	require.NoError(t, err)

	outcome := adapter.Cancel(context.Background(), req.OrderID.String())
	assert.Equal(t, gateways.CancelResultCancelled, outcome.Result)
	mirror, err := repo.FindPixCharge(context.Background(), req.OrderID.String())
	require.NoError(t, err)
	assert.Equal(t, enums.PixChargeStatusExpired, mirror.Status)

	client.deleteErr = errors.New("503")
	outcome = adapter.Cancel(context.Background(), "other")
	assert.Equal(t, gateways.CancelResultFailed, outcome.Result)
}

func TestTransactionID(t *testing.T) {
	assert.Equal(t, "a", TransactionID("a", "b", "c"))
	assert.Equal(t, "b", TransactionID(" ", "b", "c"))
	assert.Equal(t, "c", TransactionID("", "", "c"))
}
