package stripeconnect

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/oauth"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/paymentmethod"
)

// API is the subset of Stripe used for destination charges.
type API interface {
	FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error)
	CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	AttachPaymentMethod(ctx context.Context, id string, params *stripe.PaymentMethodAttachParams) (*stripe.PaymentMethod, error)
	CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

// OAuthAPI is the subset of Stripe Connect OAuth used to onboard tenants.
type OAuthAPI interface {
	AuthorizeURL(params *stripe.AuthorizeURLParams) string
	ExchangeCode(ctx context.Context, code string) (*stripe.OAuthToken, error)
	Deauthorize(ctx context.Context, clientID, accountID string) error
}

// resourceAPI calls Stripe through the package-level resource clients, which
// read the key installed by pkg/stripe.NewClient.
type resourceAPI struct{}

// NewAPI returns the live Stripe implementation.
func NewAPI() API {
	return resourceAPI{}
}

// NewOAuthAPI returns the live Stripe Connect OAuth implementation.
func NewOAuthAPI() OAuthAPI {
	return resourceAPI{}
}

func (resourceAPI) FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	iter := customer.List(params)
	for iter.Next() {
		return iter.Customer(), nil
	}
	return nil, iter.Err()
}

func (resourceAPI) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	params.Context = ctx
	return customer.New(params)
}

func (resourceAPI) AttachPaymentMethod(ctx context.Context, id string, params *stripe.PaymentMethodAttachParams) (*stripe.PaymentMethod, error) {
	params.Context = ctx
	return paymentmethod.Attach(id, params)
}

func (resourceAPI) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	params.Context = ctx
	return paymentintent.New(params)
}

func (resourceAPI) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return paymentintent.Get(id, params)
}

func (resourceAPI) CancelPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	return paymentintent.Cancel(id, params)
}

func (resourceAPI) AuthorizeURL(params *stripe.AuthorizeURLParams) string {
	return oauth.AuthorizeURL(params)
}

func (resourceAPI) ExchangeCode(ctx context.Context, code string) (*stripe.OAuthToken, error) {
	params := &stripe.OAuthTokenParams{
		GrantType: stripe.String("authorization_code"),
		Code:      stripe.String(code),
	}
	params.Context = ctx
	return oauth.New(params)
}

func (resourceAPI) Deauthorize(ctx context.Context, clientID, accountID string) error {
	params := &stripe.DeauthorizeParams{
		ClientID:     stripe.String(clientID),
		StripeUserID: stripe.String(accountID),
	}
	params.Context = ctx
	_, err := oauth.Del(params)
	return err
}
