package spaceconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

type spaceLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Space, error)
}

type mercadoPagoLookup interface {
	Find(ctx context.Context, spaceID uuid.UUID) (*models.MercadoPagoAccount, error)
}

// Service manages the typed settings of a space.
type Service interface {
	Get(ctx context.Context, spaceID uuid.UUID) (*Settings, error)
	Update(ctx context.Context, spaceID uuid.UUID, input UpdateInput) (*Settings, error)
	SetStripeConnection(ctx context.Context, spaceID uuid.UUID, accountID string, connected bool) error
	SetMercadoPagoConnection(ctx context.Context, spaceID uuid.UUID, userID string, connected bool) error
}

// UpdateInput carries the owner-editable fields. Nil fields are left as is.
type UpdateInput struct {
	EnabledMethods *[]enums.PaymentMethod `json:"enabled_methods"`
	PixKey         *string                `json:"pix_key" validate:"omitempty,max=140"`
	QuickPayment   *QuickPayment          `json:"quick_payment"`
}

type service struct {
	repo        Repository
	spaces      spaceLookup
	mercadoPago mercadoPagoLookup
}

func NewService(repo Repository, spaces spaceLookup, mercadoPago mercadoPagoLookup) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("space config repository required")
	}
	if spaces == nil {
		return nil, fmt.Errorf("space repository required")
	}
	if mercadoPago == nil {
		return nil, fmt.Errorf("mercado pago account repository required")
	}
	return &service{repo: repo, spaces: spaces, mercadoPago: mercadoPago}, nil
}

func (s *service) Get(ctx context.Context, spaceID uuid.UUID) (*Settings, error) {
	settings, err := s.repo.Get(ctx, spaceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load space config")
	}
	if settings == nil {
		def := Default()
		return &def, nil
	}
	return settings, nil
}

func (s *service) Update(ctx context.Context, spaceID uuid.UUID, input UpdateInput) (*Settings, error) {
	space, err := s.spaces.FindByID(ctx, spaceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load space")
	}
	if space == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "space not found")
	}

	settings, err := s.Get(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	next := *settings

	if input.PixKey != nil {
		next.PixKey = strings.TrimSpace(*input.PixKey)
	}
	if input.EnabledMethods != nil {
		next.EnabledMethods = []enums.PaymentMethod{}
		for _, method := range *input.EnabledMethods {
			if !method.IsValid() {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", method))
			}
			if err := s.ensureCanEnable(ctx, space, next, method); err != nil {
				return nil, err
			}
			next.enable(method)
		}
	}
	if next.IsEnabled(enums.PaymentMethodPix) && next.PixKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pix key required while pix is enabled")
	}
	if input.QuickPayment != nil {
		next.QuickPayment = *input.QuickPayment
	} else if def := next.QuickPayment.DefaultMethod; def != nil && !next.IsEnabled(*def) {
		next.QuickPayment = QuickPayment{}
	}
	if next.QuickPayment.Enabled {
		def := next.QuickPayment.DefaultMethod
		if def == nil || !next.IsEnabled(*def) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quick payment default method must be enabled")
		}
	}

	if err := s.repo.Save(ctx, spaceID, next); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save space config")
	}
	return &next, nil
}

func (s *service) ensureCanEnable(ctx context.Context, space *models.Space, settings Settings, method enums.PaymentMethod) error {
	switch method {
	case enums.PaymentMethodStripe:
		if space.StripeConnectAccountID == nil || space.StripeConnectStatus != enums.ConnectStatusConnected {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "stripe account not connected")
		}
	case enums.PaymentMethodMercadoPago:
		account, err := s.mercadoPago.Find(ctx, space.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load mercado pago account")
		}
		if account == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "mercado pago account not connected")
		}
	case enums.PaymentMethodPix:
		if settings.PixKey == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "pix key required to enable pix")
		}
	}
	return nil
}

// SetStripeConnection mirrors the Stripe onboarding state; disconnecting
// also turns the method off.
func (s *service) SetStripeConnection(ctx context.Context, spaceID uuid.UUID, accountID string, connected bool) error {
	settings, err := s.Get(ctx, spaceID)
	if err != nil {
		return err
	}
	settings.Stripe = StripeConnection{AccountID: accountID, Connected: connected}
	if !connected {
		settings.disable(enums.PaymentMethodStripe)
	}
	if err := s.repo.Save(ctx, spaceID, *settings); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save space config")
	}
	return nil
}

// SetMercadoPagoConnection mirrors the Mercado Pago OAuth state.
func (s *service) SetMercadoPagoConnection(ctx context.Context, spaceID uuid.UUID, userID string, connected bool) error {
	settings, err := s.Get(ctx, spaceID)
	if err != nil {
		return err
	}
	settings.MercadoPago = MercadoPagoConnection{UserID: userID, Connected: connected}
	if !connected {
		settings.disable(enums.PaymentMethodMercadoPago)
	}
	if err := s.repo.Save(ctx, spaceID, *settings); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save space config")
	}
	return nil
}
