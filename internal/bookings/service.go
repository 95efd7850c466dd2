package bookings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/internal/availability"
	"github.com/dezko/dezko-backend/internal/gateways"
	"github.com/dezko/dezko-backend/internal/payments"
	"github.com/dezko/dezko-backend/internal/pricing"
	"github.com/dezko/dezko-backend/internal/spaceconfig"
	"github.com/dezko/dezko-backend/pkg/auth"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/logger"
	"github.com/dezko/dezko-backend/pkg/outbox"
	"github.com/dezko/dezko-backend/pkg/outbox/payloads"
	"github.com/dezko/dezko-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type configReader interface {
	Get(ctx context.Context, spaceID uuid.UUID) (*spaceconfig.Settings, error)
}

type spaceReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Space, error)
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Service orchestrates reservations, their orders and payment reconciliation.
type Service interface {
	CreateBooking(ctx context.Context, actor auth.Actor, input CreateBookingInput) (*BookingDTO, error)
	Pay(ctx context.Context, actor auth.Actor, orderID uuid.UUID, input PayInput) (*PaymentAttempt, error)
	ConfirmPayment(ctx context.Context, confirmation Confirmation) (ConfirmResult, error)
	RecordPaymentFailure(ctx context.Context, failure Failure) error
	Cancel(ctx context.Context, actor auth.Actor, orderID uuid.UUID, input CancelInput) (*CancelResult, error)
	PaymentStatus(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*PaymentStatusDTO, error)
	Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*BookingDTO, error)
	ListForActor(ctx context.Context, actor auth.Actor, params pagination.Params, status *enums.OrderStatus) (*BookingList, error)
	FindOrderByReservation(ctx context.Context, reservationID uuid.UUID) (*models.Order, error)
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
	ReconcilePending(ctx context.Context, gateway enums.Gateway, olderThan time.Time, limit int) (int, error)
}

// Settings tune fees and the polling fallback.
type Settings struct {
	FeeBasisPoints map[enums.Gateway]int
	PollLimit      int64
	PollWindow     time.Duration
}

type ServiceParams struct {
	Repo              Repository
	Payments          payments.Repository
	Gateways          *gateways.Registry
	Config            configReader
	Spaces            spaceReader
	Users             userReader
	Outbox            outbox.Emitter
	TransactionRunner txRunner
	RateLimiter       rateLimiter
	Logger            *logger.Logger
	Settings          Settings
	Now               func() time.Time
}

type service struct {
	repo     Repository
	payments payments.Repository
	gateways *gateways.Registry
	config   configReader
	spaces   spaceReader
	users    userReader
	outbox   outbox.Emitter
	txRunner txRunner
	limiter  rateLimiter
	logg     *logger.Logger
	settings Settings
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("bookings repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Gateways == nil {
		return nil, fmt.Errorf("gateway registry required")
	}
	if params.Config == nil {
		return nil, fmt.Errorf("space config reader required")
	}
	if params.Spaces == nil {
		return nil, fmt.Errorf("space reader required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	settings := params.Settings
	if settings.PollLimit <= 0 {
		settings.PollLimit = 12
	}
	if settings.PollWindow <= 0 {
		settings.PollWindow = time.Minute
	}
	return &service{
		repo:     params.Repo,
		payments: params.Payments,
		gateways: params.Gateways,
		config:   params.Config,
		spaces:   params.Spaces,
		users:    params.Users,
		outbox:   params.Outbox,
		txRunner: params.TransactionRunner,
		limiter:  params.RateLimiter,
		logg:     params.Logger,
		settings: settings,
		now:      now,
	}, nil
}

// bookingUser resolves on whose behalf a booking is made.
func bookingUser(actor auth.Actor, input CreateBookingInput) (uuid.UUID, error) {
	switch a := actor.(type) {
	case auth.EndUser:
		return a.ID, nil
	case auth.Admin:
		if input.UserID == nil || *input.UserID == uuid.Nil {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "userId is required for admin bookings")
		}
		return *input.UserID, nil
	case auth.SpaceOwner:
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "space owners cannot create bookings")
	default:
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor")
	}
}

func (s *service) CreateBooking(ctx context.Context, actor auth.Actor, input CreateBookingInput) (*BookingDTO, error) {
	userID, err := bookingUser(actor, input)
	if err != nil {
		return nil, err
	}
	if input.SpaceID == uuid.Nil || input.AgendaID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "spaceId and agendaId are required")
	}
	if input.PaymentMethod != nil && !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	start, end := input.StartsAt.UTC(), input.EndsAt.UTC()

	var (
		order       *models.Order
		reservation *models.Reservation
	)
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		agenda, err := availability.LockAgenda(ctx, tx, input.SpaceID, input.AgendaID)
		if err != nil {
			return err
		}
		quote, err := pricing.Calculate(agenda.BillingMode, pricing.RatesFromAgenda(agenda), start, end)
		if err != nil {
			return err
		}
		slot := availability.Slot{SpaceID: input.SpaceID, AgendaID: input.AgendaID, Start: start, End: end}
		if err := availability.EnsureFree(ctx, tx, slot); err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		order = &models.Order{
			UserID:        userID,
			SpaceID:       input.SpaceID,
			AgendaID:      input.AgendaID,
			StartsAt:      start,
			EndsAt:        end,
			PriceCents:    quote.TotalCents,
			PaymentMethod: input.PaymentMethod,
			Status:        enums.OrderStatusPending,
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		reservation = &models.Reservation{
			OrderID:    order.ID,
			UserID:     userID,
			SpaceID:    input.SpaceID,
			AgendaID:   input.AgendaID,
			StartsAt:   start,
			EndsAt:     end,
			PriceCents: quote.TotalCents,
			Status:     enums.ReservationStatusPending,
		}
		if err := repo.CreateReservation(ctx, reservation); err != nil {
			return availability.TranslateInsertError(err)
		}

		return s.emit(ctx, tx, enums.EventBookingCreated, order.ID, outbox.ActorRefFor(actor), payloads.BookingCreatedEvent{
			OrderID:       order.ID,
			ReservationID: reservation.ID,
			UserID:        userID,
			SpaceID:       order.SpaceID,
			AgendaID:      order.AgendaID,
			StartsAt:      start,
			EndsAt:        end,
			PriceCents:    order.PriceCents,
			PaymentMethod: order.PaymentMethod,
		})
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"space_id": order.SpaceID.String(), "price_cents": order.PriceCents}), "booking.created")

	dto := FromModel(order, reservation)
	if input.PaymentMethod == nil {
		return &dto, nil
	}

	attempt, err := s.charge(ctx, order, reservation, *input.PaymentMethod, input.PaymentMethodRef)
	if err != nil {
		attempt = failedAttempt(*input.PaymentMethod, err)
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "booking.payment_attempt_failed")
	}
	if refreshed, findErr := s.repo.FindOrder(ctx, order.ID); findErr == nil && refreshed != nil {
		dto = FromModel(refreshed, reservation)
	}
	dto.Payment = attempt
	return &dto, nil
}

// failedAttempt reports a charge that never reached the gateway. Only
// transient failures are flagged retryable; the order stays PENDING either way.
func failedAttempt(method enums.PaymentMethod, err error) *PaymentAttempt {
	message := "payment could not be started"
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		message = typed.Message()
	}
	return &PaymentAttempt{
		Status:    AttemptFailed,
		Gateway:   gateways.GatewayFor(method),
		Retryable: pkgerrors.Retryable(err),
		Error:     message,
	}
}

func (s *service) Pay(ctx context.Context, actor auth.Actor, orderID uuid.UUID, input PayInput) (*PaymentAttempt, error) {
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizePay(actor, order); err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not pending")
	}
	reservation, err := s.repo.FindReservationByOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	if reservation == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order without reservation")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	attempt, err := s.charge(ctx, order, reservation, input.PaymentMethod, input.PaymentMethodRef)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "booking.payment_attempt_failed")
			return failedAttempt(input.PaymentMethod, err), nil
		}
		return nil, err
	}
	return attempt, nil
}

func authorizePay(actor auth.Actor, order *models.Order) error {
	switch a := actor.(type) {
	case auth.EndUser:
		if order.UserID != a.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking belongs to another user")
		}
		return nil
	case auth.Admin:
		return nil
	case auth.SpaceOwner:
		return pkgerrors.New(pkgerrors.CodeForbidden, "space owners cannot pay bookings")
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor")
	}
}

// charge creates the external charge and records it on the order. No ledger
// row is written; the ledger only receives gateway reports.
func (s *service) charge(ctx context.Context, order *models.Order, reservation *models.Reservation, method enums.PaymentMethod, ref string) (*PaymentAttempt, error) {
	settings, err := s.config.Get(ctx, order.SpaceID)
	if err != nil {
		return nil, err
	}
	if !settings.IsEnabled(method) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method not enabled for this space")
	}
	gw, ok := s.gateways.ForMethod(method)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method not available")
	}

	space, err := s.spaces.FindByID(ctx, order.SpaceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load space")
	}
	if space == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "space not found")
	}
	payer, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payer")
	}
	if payer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	tenant := gateways.Tenant{SpaceID: space.ID, PixKey: settings.PixKey}
	if space.StripeConnectAccountID != nil && space.StripeConnectStatus == enums.ConnectStatusConnected {
		tenant.StripeAccountID = *space.StripeConnectAccountID
	}

	ctx = s.logg.WithGateway(ctx, string(gw.Name()))
	result, err := gw.CreateCharge(ctx, gateways.ChargeRequest{
		OrderID:          order.ID,
		ReservationID:    reservation.ID,
		AmountCents:      order.PriceCents,
		Description:      fmt.Sprintf("Dezko %s - reserva %s", space.Name, reservation.ID),
		Tenant:           tenant,
		Payer:            gateways.Payer{UserID: payer.ID, Email: payer.Email, Name: payer.Name},
		PaymentMethodRef: strings.TrimSpace(ref),
	})
	if err != nil {
		return nil, err
	}

	previousGateway, previousCharge := order.Gateway, order.GatewayChargeID
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if locked == nil || locked.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not pending")
		}
		return repo.UpdateOrder(ctx, order.ID, map[string]any{
			"gateway":           gw.Name(),
			"gateway_charge_id": result.ExternalChargeID,
			"payment_method":    method,
		})
	})
	if err != nil {
		outcome := gw.Cancel(ctx, result.ExternalChargeID)
		s.logCancelOutcome(ctx, outcome)
		return nil, err
	}

	if previousCharge != nil && previousGateway != nil && *previousCharge != result.ExternalChargeID {
		if prev, ok := s.gateways.ForGateway(*previousGateway); ok {
			s.logCancelOutcome(ctx, prev.Cancel(ctx, *previousCharge))
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"external_charge_id": result.ExternalChargeID,
		"status":             string(result.Status),
	}), "booking.charge_created")

	split := result.Split
	attempt := &PaymentAttempt{
		Status:           AttemptCreated,
		Gateway:          gw.Name(),
		ExternalChargeID: result.ExternalChargeID,
		PaymentStatus:    result.Status,
		ClientPayload:    result.ClientPayload,
		Split:            &split,
		Retryable:        false,
	}
	if result.Status == enums.PaymentStatusRejected {
		attempt.Status = AttemptFailed
		attempt.Retryable = true
		if err := s.RecordPaymentFailure(ctx, Failure{
			OrderID:       order.ID,
			Gateway:       gw.Name(),
			TransactionID: result.ExternalChargeID,
			AmountCents:   order.PriceCents,
			Reason:        "rejected at creation",
		}); err != nil {
			s.logg.Error(ctx, "booking.record_failure_failed", err)
		}
	}
	return attempt, nil
}

func (s *service) logCancelOutcome(ctx context.Context, outcome gateways.CancelOutcome) {
	fields := map[string]any{
		"gateway":            string(outcome.Gateway),
		"external_charge_id": outcome.ExternalChargeID,
		"result":             string(outcome.Result),
	}
	if outcome.Result == gateways.CancelResultFailed {
		fields["error"] = outcome.Message()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "booking.upstream_cancel")
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "booking.upstream_cancel")
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
	}
	return order, nil
}

// canView reports whether actor may read the order.
func canView(actor auth.Actor, order *models.Order) bool {
	switch a := actor.(type) {
	case auth.Admin:
		return true
	case auth.SpaceOwner:
		return order.SpaceID == a.SpaceID
	case auth.EndUser:
		return order.UserID == a.ID
	default:
		return false
	}
}

func (s *service) Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*BookingDTO, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, order) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "booking not accessible")
	}
	reservation, err := s.repo.FindReservationByOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	dto := FromModel(order, reservation)
	return &dto, nil
}

func (s *service) ListForActor(ctx context.Context, actor auth.Actor, params pagination.Params, status *enums.OrderStatus) (*BookingList, error) {
	filter := ListFilter{Status: status}
	switch a := actor.(type) {
	case auth.Admin:
	case auth.SpaceOwner:
		spaceID := a.SpaceID
		filter.SpaceID = &spaceID
	case auth.EndUser:
		userID := a.ID
		filter.UserID = &userID
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor")
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}

	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	list, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings")
	}
	out := &BookingList{Items: make([]BookingDTO, 0, len(list.Orders)), NextCursor: list.NextCursor}
	for i := range list.Orders {
		out.Items = append(out.Items, FromModel(&list.Orders[i], nil))
	}
	return out, nil
}

func (s *service) FindOrderByReservation(ctx context.Context, reservationID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrderByReservation(ctx, reservationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by reservation")
	}
	return order, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, orderID uuid.UUID, actor *outbox.ActorRef, data any) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         actor,
		Data:          data,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit outbox event")
	}
	return nil
}
