package stripeconnect

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/dezko/dezko-backend/internal/gateways"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

type fakeAPI struct {
	existing      *stripe.Customer
	created       *stripe.CustomerParams
	attachedPM    string
	intentParams  *stripe.PaymentIntentParams
	intentStatus  stripe.PaymentIntentStatus
	intentErr     error
	cancelErr     error
	cancelledID   string
	fetchedStatus stripe.PaymentIntentStatus
	lastError     *stripe.Error
}

func (f *fakeAPI) FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error) {
	return f.existing, nil
}

func (f *fakeAPI) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	f.created = params
	return &stripe.Customer{ID: "cus_new", Email: *params.Email}, nil
}

func (f *fakeAPI) AttachPaymentMethod(ctx context.Context, id string, params *stripe.PaymentMethodAttachParams) (*stripe.PaymentMethod, error) {
	f.attachedPM = id
	return &stripe.PaymentMethod{ID: id}, nil
}

func (f *fakeAPI) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.intentParams = params
	if f.intentErr != nil {
		return nil, f.intentErr
	}
	return &stripe.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret", Status: f.intentStatus, Amount: *params.Amount, LastPaymentError: f.lastError}, nil
}

func (f *fakeAPI) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	return &stripe.PaymentIntent{ID: id, Status: f.fetchedStatus, Amount: 10000, LastPaymentError: f.lastError}, nil
}

func (f *fakeAPI) CancelPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	f.cancelledID = id
	return &stripe.PaymentIntent{ID: id}, f.cancelErr
}

func chargeRequest() gateways.ChargeRequest {
	return gateways.ChargeRequest{
		OrderID:          uuid.New(),
		ReservationID:    uuid.New(),
		AmountCents:      10000,
		Description:      "Sala 1",
		Tenant:           gateways.Tenant{SpaceID: uuid.New(), StripeAccountID: "acct_tenant"},
		Payer:            gateways.Payer{UserID: uuid.New(), Email: "cliente@dezko.test", Name: "Cliente"},
		PaymentMethodRef: "pm_card_visa",
	}
}

// Destination charge of 100.00 with a 10% fee: 10.00 platform, 90.00 tenant.
func TestCreateChargeDestination(t *testing.T) {
	api := &fakeAPI{existing: &stripe.Customer{ID: "cus_existing"}, intentStatus: stripe.PaymentIntentStatusSucceeded}
	adapter, err := NewAdapter(api, Settings{FeeBasisPoints: 1000})
	require.NoError(t, err)

	req := chargeRequest()
	res, err := adapter.CreateCharge(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "pi_123", res.ExternalChargeID)
	assert.Equal(t, enums.PaymentStatusApproved, res.Status)
	assert.Equal(t, int64(1000), res.Split.PlatformFeeCents)
	assert.Equal(t, int64(9000), res.Split.TenantAmountCents)
	assert.Equal(t, "pi_123_secret", res.ClientPayload["client_secret"])

	params := api.intentParams
	require.NotNil(t, params)
	assert.Equal(t, int64(1000), *params.ApplicationFeeAmount)
	assert.Equal(t, "acct_tenant", *params.TransferData.Destination)
	assert.Equal(t, "cus_existing", *params.Customer)
	assert.Equal(t, "brl", *params.Currency)
	assert.True(t, *params.Confirm)
	assert.Equal(t, req.OrderID.String(), params.Metadata["order_id"])
	assert.Equal(t, req.ReservationID.String(), params.Metadata["reservation_id"])
	assert.Equal(t, "pm_card_visa", api.attachedPM)
	assert.Nil(t, api.created)
}

func TestCreateChargeCreatesCustomer(t *testing.T) {
	api := &fakeAPI{intentStatus: stripe.PaymentIntentStatusRequiresPaymentMethod}
	adapter, err := NewAdapter(api, Settings{FeeBasisPoints: 1000})
	require.NoError(t, err)

	req := chargeRequest()
	req.PaymentMethodRef = ""
	res, err := adapter.CreateCharge(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, api.created)
	assert.Equal(t, "cliente@dezko.test", *api.created.Email)
	assert.Equal(t, "cus_new", *api.intentParams.Customer)
	assert.Nil(t, api.intentParams.Confirm)
	assert.Empty(t, api.attachedPM)
	assert.Equal(t, enums.PaymentStatusPending, res.Status)
	assert.Equal(t, "pi_123_secret", res.ClientPayload["client_secret"])
}

func TestCreateChargeDeclinedConfirmation(t *testing.T) {
	api := &fakeAPI{
		existing:     &stripe.Customer{ID: "cus_existing"},
		intentStatus: stripe.PaymentIntentStatusRequiresPaymentMethod,
		lastError:    &stripe.Error{Code: stripe.ErrorCodeCardDeclined},
	}
	adapter, err := NewAdapter(api, Settings{FeeBasisPoints: 1000})
	require.NoError(t, err)

	res, err := adapter.CreateCharge(context.Background(), chargeRequest())
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRejected, res.Status)
}

func TestFetchStatusAwaitingClient(t *testing.T) {
	for _, status := range []stripe.PaymentIntentStatus{
		stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction,
	} {
		adapter, err := NewAdapter(&fakeAPI{fetchedStatus: status}, Settings{})
		require.NoError(t, err)

		res, err := adapter.FetchStatus(context.Background(), "pi_9")
		require.NoError(t, err)
		assert.Equal(t, enums.PaymentStatusPending, res.Status, string(status))
	}

	adapter, err := NewAdapter(&fakeAPI{
		fetchedStatus: stripe.PaymentIntentStatusRequiresPaymentMethod,
		lastError:     &stripe.Error{Code: stripe.ErrorCodeCardDeclined},
	}, Settings{})
	require.NoError(t, err)
	res, err := adapter.FetchStatus(context.Background(), "pi_9")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRejected, res.Status)
}

func TestCreateChargeRequiresConnectedTenant(t *testing.T) {
	adapter, err := NewAdapter(&fakeAPI{}, Settings{})
	require.NoError(t, err)

	req := chargeRequest()
	req.Tenant.StripeAccountID = ""
	_, err = adapter.CreateCharge(context.Background(), req)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, "gateway not connected for this tenant", pkgerrors.As(err).Message())
}

func TestCreateChargeUpstreamFailure(t *testing.T) {
	adapter, err := NewAdapter(&fakeAPI{intentErr: errors.New("card_declined")}, Settings{})
	require.NoError(t, err)

	_, err = adapter.CreateCharge(context.Background(), chargeRequest())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestCancel(t *testing.T) {
	api := &fakeAPI{}
	adapter, err := NewAdapter(api, Settings{})
	require.NoError(t, err)

	outcome := adapter.Cancel(context.Background(), "pi_1")
	assert.Equal(t, gateways.CancelResultCancelled, outcome.Result)
	assert.Equal(t, "pi_1", api.cancelledID)

	api.cancelErr = errors.New("already succeeded")
	outcome = adapter.Cancel(context.Background(), "pi_2")
	assert.Equal(t, gateways.CancelResultFailed, outcome.Result)
	assert.Equal(t, "already succeeded", outcome.Message())

	assert.Equal(t, gateways.CancelResultSkipped, adapter.Cancel(context.Background(), "").Result)
}

func TestFetchStatus(t *testing.T) {
	adapter, err := NewAdapter(&fakeAPI{fetchedStatus: stripe.PaymentIntentStatusProcessing}, Settings{})
	require.NoError(t, err)

	status, err := adapter.FetchStatus(context.Background(), "pi_9")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, status.Status)
	assert.Equal(t, "pi_9", status.TransactionID)
}
