package openpixwebhook

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dezko/dezko-backend/internal/bookings"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

type stubReconciler struct {
	confirmations []bookings.Confirmation
	err           error
}

func (s *stubReconciler) ConfirmPayment(ctx context.Context, c bookings.Confirmation) (bookings.ConfirmResult, error) {
	s.confirmations = append(s.confirmations, c)
	return bookings.ConfirmResultPaid, s.err
}

type memoryCharges struct {
	rows map[string]*models.PixCharge
}

func (m *memoryCharges) FindPixCharge(ctx context.Context, correlationID string) (*models.PixCharge, error) {
	return m.rows[correlationID], nil
}

func (m *memoryCharges) UpdatePixChargeStatus(ctx context.Context, correlationID string, status enums.PixChargeStatus, transactionID *string) error {
	if row, ok := m.rows[correlationID]; ok {
		row.Status = status
		row.TransactionID = transactionID
	}
	return nil
}

func newService(t *testing.T, rows ...*models.PixCharge) (*Service, *stubReconciler, *memoryCharges) {
	t.Helper()
	charges := &memoryCharges{rows: map[string]*models.PixCharge{}}
	for _, row := range rows {
		charges.rows[row.CorrelationID] = row
	}
	reconciler := &stubReconciler{}
	svc, err := NewService(ServiceParams{Bookings: reconciler, Charges: charges})
	require.NoError(t, err)
	return svc, reconciler, charges
}

func TestChargeCompletedConfirmsOrder(t *testing.T) {
	orderID := uuid.New()
	corr := orderID.String() + "-1700000000"
	svc, reconciler, charges := newService(t, &models.PixCharge{CorrelationID: corr, OrderID: orderID, Status: enums.PixChargeStatusActive})

	payload := []byte(`{"event":"OPENPIX:CHARGE_COMPLETED","charge":{"correlationID":"` + corr + `","value":5000,"status":"COMPLETED"},"pix":{"endToEndId":"E2E1","transactionID":"TX1","value":5000}}`)
	event, err := ParseEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "CHARGE_COMPLETED:"+corr, DeliveryID(event))

	require.NoError(t, svc.HandleEvent(context.Background(), event, payload))
	require.Len(t, reconciler.confirmations, 1)
	got := reconciler.confirmations[0]
	assert.Equal(t, orderID, got.OrderID)
	assert.Equal(t, enums.GatewayOpenPix, got.Gateway)
	assert.Equal(t, "TX1", got.TransactionID)
	assert.Equal(t, corr, got.ExternalChargeID)
	assert.EqualValues(t, 5000, got.AmountCents)
	assert.Equal(t, enums.PixChargeStatusCompleted, charges.rows[corr].Status)
}

func TestChargeCompletedFallsBackToCorrelationID(t *testing.T) {
	orderID := uuid.New()
	svc, reconciler, _ := newService(t)

	payload := []byte(`{"event":"CHARGE_RECEIVED","charge":{"correlationID":"` + orderID.String() + `","transactionID":"CTX"}}`)
	event, err := ParseEvent(payload)
	require.NoError(t, err)
	require.NoError(t, svc.HandleEvent(context.Background(), event, payload))
	require.Len(t, reconciler.confirmations, 1)
	assert.Equal(t, orderID, reconciler.confirmations[0].OrderID)
	assert.Equal(t, "CTX", reconciler.confirmations[0].TransactionID)
}

func TestUnknownChargeIsIgnored(t *testing.T) {
	svc, reconciler, _ := newService(t)

	payload := []byte(`{"event":"OPENPIX:CHARGE_COMPLETED","charge":{"correlationID":"not-ours"}}`)
	event, err := ParseEvent(payload)
	require.NoError(t, err)
	require.NoError(t, svc.HandleEvent(context.Background(), event, payload))
	assert.Empty(t, reconciler.confirmations)
}

func TestMissingOrderIsAcknowledged(t *testing.T) {
	svc, reconciler, _ := newService(t)
	reconciler.err = pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")

	payload := []byte(`{"event":"OPENPIX:CHARGE_COMPLETED","charge":{"correlationID":"` + uuid.NewString() + `"}}`)
	event, err := ParseEvent(payload)
	require.NoError(t, err)
	assert.NoError(t, svc.HandleEvent(context.Background(), event, payload))
}

func TestChargeExpiredLeavesOrderPending(t *testing.T) {
	orderID := uuid.New()
	svc, reconciler, charges := newService(t, &models.PixCharge{CorrelationID: orderID.String(), OrderID: orderID, Status: enums.PixChargeStatusActive})

	payload := []byte(`{"event":"OPENPIX:CHARGE_EXPIRED","charge":{"correlationID":"` + orderID.String() + `"}}`)
	event, err := ParseEvent(payload)
	require.NoError(t, err)
	require.NoError(t, svc.HandleEvent(context.Background(), event, payload))
	assert.Equal(t, enums.PixChargeStatusExpired, charges.rows[orderID.String()].Status)
	assert.Empty(t, reconciler.confirmations)
}

func TestTestPingIsIgnored(t *testing.T) {
	svc, reconciler, _ := newService(t)

	payload := []byte(`{"evento":"teste_webhook"}`)
	event, err := ParseEvent(payload)
	require.NoError(t, err)
	assert.Empty(t, DeliveryID(event))
	require.NoError(t, svc.HandleEvent(context.Background(), event, payload))
	assert.Empty(t, reconciler.confirmations)

	_, err = ParseEvent([]byte(`not json`))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
