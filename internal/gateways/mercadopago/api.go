package mercadopago

import (
	"context"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/oauth"
	"github.com/mercadopago/sdk-go/pkg/payment"
)

// API is the subset of the Mercado Pago SDK the adapter needs. Payment calls
// run with the tenant's access token; token refresh uses the platform's.
type API interface {
	CreatePayment(ctx context.Context, accessToken string, req payment.Request) (*payment.Response, error)
	GetPayment(ctx context.Context, accessToken string, id int) (*payment.Response, error)
	CancelPayment(ctx context.Context, accessToken string, id int) (*payment.Response, error)
	RefreshToken(ctx context.Context, refreshToken string) (*oauth.Response, error)
}

// OAuthAPI covers the marketplace authorization flow.
type OAuthAPI interface {
	AuthorizationURL(redirectURI, state string) string
	ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth.Response, error)
}

// SDK calls Mercado Pago through mercadopago/sdk-go.
type SDK struct {
	clientID string
	platform *config.Config
}

// NewAPI builds the live SDK implementation from the platform credentials.
func NewAPI(platformAccessToken, clientID string) (*SDK, error) {
	cfg, err := config.New(platformAccessToken)
	if err != nil {
		return nil, err
	}
	return &SDK{clientID: clientID, platform: cfg}, nil
}

func (a *SDK) paymentClient(accessToken string) (payment.Client, error) {
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, err
	}
	return payment.NewClient(cfg), nil
}

func (a *SDK) CreatePayment(ctx context.Context, accessToken string, req payment.Request) (*payment.Response, error) {
	client, err := a.paymentClient(accessToken)
	if err != nil {
		return nil, err
	}
	return client.Create(ctx, req)
}

func (a *SDK) GetPayment(ctx context.Context, accessToken string, id int) (*payment.Response, error) {
	client, err := a.paymentClient(accessToken)
	if err != nil {
		return nil, err
	}
	return client.Get(ctx, id)
}

func (a *SDK) CancelPayment(ctx context.Context, accessToken string, id int) (*payment.Response, error) {
	client, err := a.paymentClient(accessToken)
	if err != nil {
		return nil, err
	}
	return client.Cancel(ctx, id)
}

func (a *SDK) RefreshToken(ctx context.Context, refreshToken string) (*oauth.Response, error) {
	return oauth.NewClient(a.platform).Refresh(ctx, refreshToken)
}

func (a *SDK) AuthorizationURL(redirectURI, state string) string {
	return oauth.NewClient(a.platform).GetAuthorizationURL(a.clientID, redirectURI, state)
}

func (a *SDK) ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth.Response, error) {
	return oauth.NewClient(a.platform).Create(ctx, code, redirectURI)
}
