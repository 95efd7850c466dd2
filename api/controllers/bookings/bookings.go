package bookings

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dezko/dezko-backend/api/controllers/actorctx"
	"github.com/dezko/dezko-backend/api/responses"
	"github.com/dezko/dezko-backend/api/validators"
	bookingsvc "github.com/dezko/dezko-backend/internal/bookings"
	pkgAuth "github.com/dezko/dezko-backend/pkg/auth"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/logger"
	"github.com/dezko/dezko-backend/pkg/pagination"
)

// Create books an agenda interval for the caller and optionally starts payment.
func Create(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bookings service unavailable"))
			return
		}
		actor, err := actorctx.Require(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload bookingsvc.CreateBookingInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.CreateBooking(r.Context(), actor, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, booking)
	}
}

// List pages through the bookings visible to the caller.
func List(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bookings service unavailable"))
			return
		}
		actor, err := actorctx.Require(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := pagination.FromQuery(r.URL.Query())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.OrderStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseOrderStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		list, err := svc.ListForActor(r.Context(), actor, params, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns a single booking when the caller may view it.
func Detail(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, orderID, ok := resolve(w, r, svc, logg)
		if !ok {
			return
		}
		booking, err := svc.Get(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}

// Pay starts or retries the gateway charge for a pending booking.
func Pay(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, orderID, ok := resolve(w, r, svc, logg)
		if !ok {
			return
		}

		var payload bookingsvc.PayInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		attempt, err := svc.Pay(r.Context(), actor, orderID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, attempt)
	}
}

// PaymentStatus reports the payment state, polling the gateway for pending PIX charges.
func PaymentStatus(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, orderID, ok := resolve(w, r, svc, logg)
		if !ok {
			return
		}
		status, err := svc.PaymentStatus(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// Cancel cancels a booking on behalf of its customer, its space owner or an admin.
func Cancel(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, orderID, ok := resolve(w, r, svc, logg)
		if !ok {
			return
		}

		var payload bookingsvc.CancelInput
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Cancel(r.Context(), actor, orderID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func resolve(w http.ResponseWriter, r *http.Request, svc bookingsvc.Service, logg *logger.Logger) (pkgAuth.Actor, uuid.UUID, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bookings service unavailable"))
		return nil, uuid.Nil, false
	}
	actor, err := actorctx.Require(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, uuid.Nil, false
	}
	orderID, err := validators.ParseUUIDParam(r, "orderId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, uuid.Nil, false
	}
	return actor, orderID, true
}
