package gatewayconnect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/internal/gateways/mercadopago"
	"github.com/dezko/dezko-backend/internal/gateways/stripeconnect"
	"github.com/dezko/dezko-backend/internal/spaces"
	"github.com/dezko/dezko-backend/pkg/auth"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/logger"
	"github.com/dezko/dezko-backend/pkg/outbox"
	"github.com/dezko/dezko-backend/pkg/outbox/payloads"
	"github.com/dezko/dezko-backend/pkg/security"
)

const (
	// StateTTL bounds how long an authorization link stays usable.
	StateTTL = 10 * time.Minute

	providerStripe      = "stripe"
	providerMercadoPago = "mercadopago"
	stateBytes          = 24
)

type stateStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GetDel(ctx context.Context, key string) (string, error)
	OAuthStateKey(gateway, state string) string
}

type configWriter interface {
	SetStripeConnection(ctx context.Context, spaceID uuid.UUID, accountID string, connected bool) error
	SetMercadoPagoConnection(ctx context.Context, spaceID uuid.UUID, userID string, connected bool) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service onboards tenants onto the payment gateways through OAuth.
type Service interface {
	StripeAuthorizeURL(ctx context.Context, actor auth.Actor) (string, error)
	StripeCallback(ctx context.Context, code, state string) (*ConnectResult, error)
	StripeDisconnect(ctx context.Context, actor auth.Actor) error
	SyncStripeAccount(ctx context.Context, accountID string, chargesEnabled bool) (bool, error)
	MercadoPagoAuthorizeURL(ctx context.Context, actor auth.Actor) (string, error)
	MercadoPagoCallback(ctx context.Context, code, state string) (*ConnectResult, error)
	MercadoPagoDisconnect(ctx context.Context, actor auth.Actor) error
}

// ConnectResult is returned by the OAuth callbacks.
type ConnectResult struct {
	SpaceID   uuid.UUID           `json:"space_id"`
	Gateway   string              `json:"gateway"`
	AccountID string              `json:"account_id"`
	Status    enums.ConnectStatus `json:"status"`
}

type ServiceParams struct {
	States            stateStore
	Spaces            spaces.Repository
	Config            configWriter
	Outbox            outbox.Emitter
	TransactionRunner txRunner
	Logger            *logger.Logger

	// Stripe is optional; nil when the gateway is disabled.
	StripeOAuth       stripeconnect.OAuthAPI
	StripeClientID    string
	StripeRedirectURL string

	// Mercado Pago is optional; nil when the gateway is disabled.
	MercadoPagoOAuth       mercadopago.OAuthAPI
	MercadoPagoAccounts    mercadopago.AccountRepository
	MercadoPagoRedirectURL string
	Sealer                 mercadopago.Sealer
}

type service struct {
	states   stateStore
	spaces   spaces.Repository
	config   configWriter
	outbox   outbox.Emitter
	txRunner txRunner
	logg     *logger.Logger

	stripeOAuth    stripeconnect.OAuthAPI
	stripeClientID string
	stripeRedirect string

	mpOAuth    mercadopago.OAuthAPI
	mpAccounts mercadopago.AccountRepository
	mpRedirect string
	sealer     mercadopago.Sealer
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.States == nil {
		return nil, fmt.Errorf("oauth state store required")
	}
	if params.Spaces == nil {
		return nil, fmt.Errorf("space repository required")
	}
	if params.Config == nil {
		return nil, fmt.Errorf("space config service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.MercadoPagoOAuth != nil && (params.MercadoPagoAccounts == nil || params.Sealer == nil) {
		return nil, fmt.Errorf("mercado pago accounts and sealer required")
	}
	return &service{
		states:         params.States,
		spaces:         params.Spaces,
		config:         params.Config,
		outbox:         params.Outbox,
		txRunner:       params.TransactionRunner,
		logg:           params.Logger,
		stripeOAuth:    params.StripeOAuth,
		stripeClientID: params.StripeClientID,
		stripeRedirect: params.StripeRedirectURL,
		mpOAuth:        params.MercadoPagoOAuth,
		mpAccounts:     params.MercadoPagoAccounts,
		mpRedirect:     params.MercadoPagoRedirectURL,
		sealer:         params.Sealer,
		now:            time.Now,
	}, nil
}

func ownedSpace(actor auth.Actor) (uuid.UUID, error) {
	switch a := actor.(type) {
	case auth.SpaceOwner:
		return a.SpaceID, nil
	case auth.Admin, auth.EndUser:
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "only space owners can connect gateways")
	default:
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor")
	}
}

// issueState stores a single-use nonce bound to the space.
func (s *service) issueState(ctx context.Context, provider string, spaceID uuid.UUID) (string, error) {
	state, err := security.RandomToken(stateBytes)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate oauth state")
	}
	if err := s.states.Set(ctx, s.states.OAuthStateKey(provider, state), spaceID.String(), StateTTL); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store oauth state")
	}
	return state, nil
}

// consumeState resolves and deletes a nonce. Unknown or reused states fail.
func (s *service) consumeState(ctx context.Context, provider, state string) (uuid.UUID, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "state is required")
	}
	raw, err := s.states.GetDel(ctx, s.states.OAuthStateKey(provider, state))
	if errors.Is(err, goredis.Nil) {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid or expired oauth state")
	}
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load oauth state")
	}
	spaceID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid oauth state")
	}
	return spaceID, nil
}

func (s *service) StripeAuthorizeURL(ctx context.Context, actor auth.Actor) (string, error) {
	if s.stripeOAuth == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stripe is not enabled")
	}
	spaceID, err := ownedSpace(actor)
	if err != nil {
		return "", err
	}
	state, err := s.issueState(ctx, providerStripe, spaceID)
	if err != nil {
		return "", err
	}
	params := &stripe.AuthorizeURLParams{
		ClientID: stripe.String(s.stripeClientID),
		Scope:    stripe.String("read_write"),
		State:    stripe.String(state),
	}
	if s.stripeRedirect != "" {
		params.RedirectURI = stripe.String(s.stripeRedirect)
	}
	return s.stripeOAuth.AuthorizeURL(params), nil
}

// StripeCallback exchanges the code and stores the connected account as
// pending until Stripe reports charges enabled.
func (s *service) StripeCallback(ctx context.Context, code, state string) (*ConnectResult, error) {
	if s.stripeOAuth == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe is not enabled")
	}
	spaceID, err := s.consumeState(ctx, providerStripe, state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	token, err := s.stripeOAuth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "exchange stripe oauth code")
	}
	accountID := strings.TrimSpace(token.StripeUserID)
	if accountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe returned no account id")
	}

	if err := s.setStripe(ctx, spaceID, &accountID, enums.ConnectStatusPending); err != nil {
		return nil, err
	}
	if err := s.config.SetStripeConnection(ctx, spaceID, accountID, false); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"space_id": spaceID.String(), "account_id": accountID}), "connect.stripe.linked")
	return &ConnectResult{SpaceID: spaceID, Gateway: providerStripe, AccountID: accountID, Status: enums.ConnectStatusPending}, nil
}

func (s *service) StripeDisconnect(ctx context.Context, actor auth.Actor) error {
	spaceID, err := ownedSpace(actor)
	if err != nil {
		return err
	}
	space, err := s.spaces.FindByID(ctx, spaceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load space")
	}
	if space == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "space not found")
	}
	if space.StripeConnectAccountID != nil && s.stripeOAuth != nil {
		if err := s.stripeOAuth.Deauthorize(ctx, s.stripeClientID, *space.StripeConnectAccountID); err != nil {
			// The local link is removed even when Stripe already revoked it.
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"space_id": spaceID.String(), "error": err.Error()}), "connect.stripe.deauthorize_failed")
		}
	}
	if err := s.setStripe(ctx, spaceID, nil, enums.ConnectStatusNotConnected); err != nil {
		return err
	}
	return s.config.SetStripeConnection(ctx, spaceID, "", false)
}

// SyncStripeAccount applies an account.updated notification. It reports
// whether the account belongs to a known space.
func (s *service) SyncStripeAccount(ctx context.Context, accountID string, chargesEnabled bool) (bool, error) {
	space, err := s.spaces.FindByStripeAccount(ctx, accountID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load space by stripe account")
	}
	if space == nil {
		return false, nil
	}
	status := enums.ConnectStatusPending
	if chargesEnabled {
		status = enums.ConnectStatusConnected
	}
	if space.StripeConnectStatus == status {
		return true, nil
	}
	if err := s.setStripe(ctx, space.ID, &accountID, status); err != nil {
		return true, err
	}
	return true, s.config.SetStripeConnection(ctx, space.ID, accountID, chargesEnabled)
}

func (s *service) setStripe(ctx context.Context, spaceID uuid.UUID, accountID *string, status enums.ConnectStatus) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.spaces.WithTx(tx).UpdateStripeConnect(ctx, spaceID, accountID, status); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "space not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stripe connect")
		}
		account := ""
		if accountID != nil {
			account = *accountID
		}
		return s.emitConnection(ctx, tx, spaceID, providerStripe, status == enums.ConnectStatusConnected, account)
	})
}

func (s *service) MercadoPagoAuthorizeURL(ctx context.Context, actor auth.Actor) (string, error) {
	if s.mpOAuth == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "mercado pago is not enabled")
	}
	spaceID, err := ownedSpace(actor)
	if err != nil {
		return "", err
	}
	state, err := s.issueState(ctx, providerMercadoPago, spaceID)
	if err != nil {
		return "", err
	}
	return s.mpOAuth.AuthorizationURL(s.mpRedirect, state), nil
}

// MercadoPagoCallback stores the tenant's sealed tokens. Marketplace split
// stays unverified until an operator flags the account.
func (s *service) MercadoPagoCallback(ctx context.Context, code, state string) (*ConnectResult, error) {
	if s.mpOAuth == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mercado pago is not enabled")
	}
	spaceID, err := s.consumeState(ctx, providerMercadoPago, state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	token, err := s.mpOAuth.ExchangeCode(ctx, code, s.mpRedirect)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "exchange mercado pago oauth code")
	}
	account, err := mercadopago.AccountFromToken(s.sealer, spaceID, token, s.now())
	if err != nil {
		return nil, err
	}
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.mpAccounts.WithTx(tx).Upsert(ctx, account); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store mercado pago account")
		}
		return s.emitConnection(ctx, tx, spaceID, providerMercadoPago, true, account.MPUserID)
	})
	if err != nil {
		return nil, err
	}
	if err := s.config.SetMercadoPagoConnection(ctx, spaceID, account.MPUserID, true); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"space_id": spaceID.String(), "mp_user_id": account.MPUserID}), "connect.mercadopago.linked")
	return &ConnectResult{SpaceID: spaceID, Gateway: providerMercadoPago, AccountID: account.MPUserID, Status: enums.ConnectStatusConnected}, nil
}

func (s *service) MercadoPagoDisconnect(ctx context.Context, actor auth.Actor) error {
	spaceID, err := ownedSpace(actor)
	if err != nil {
		return err
	}
	if s.mpAccounts == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "mercado pago is not enabled")
	}
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.mpAccounts.WithTx(tx).Delete(ctx, spaceID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete mercado pago account")
		}
		return s.emitConnection(ctx, tx, spaceID, providerMercadoPago, false, "")
	})
	if err != nil {
		return err
	}
	return s.config.SetMercadoPagoConnection(ctx, spaceID, "", false)
}

func (s *service) emitConnection(ctx context.Context, tx *gorm.DB, spaceID uuid.UUID, provider string, connected bool, accountID string) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventGatewayConnectionChange,
		AggregateType: enums.AggregateSpace,
		AggregateID:   spaceID,
		Data: payloads.GatewayConnectionChangedEvent{
			SpaceID:   spaceID,
			Gateway:   provider,
			Connected: connected,
			AccountID: accountID,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit connection event")
	}
	return nil
}
