package connect

import (
	"context"
	"net/http"
	"strings"

	"github.com/dezko/dezko-backend/api/controllers/actorctx"
	"github.com/dezko/dezko-backend/api/responses"
	"github.com/dezko/dezko-backend/internal/gatewayconnect"
	pkgAuth "github.com/dezko/dezko-backend/pkg/auth"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/logger"
)

type authorizeResponse struct {
	AuthorizeURL string `json:"authorize_url"`
}

type authorizeFunc func(ctx context.Context, actor pkgAuth.Actor) (string, error)
type callbackFunc func(ctx context.Context, code, state string) (*gatewayconnect.ConnectResult, error)
type disconnectFunc func(ctx context.Context, actor pkgAuth.Actor) error

// StripeAuthorize returns the Stripe Connect OAuth URL for the caller's space.
func StripeAuthorize(svc gatewayconnect.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg)
	}
	return authorize(svc.StripeAuthorizeURL, logg)
}

func StripeCallback(svc gatewayconnect.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg)
	}
	return callback(svc.StripeCallback, logg)
}

func StripeDisconnect(svc gatewayconnect.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg)
	}
	return disconnect(svc.StripeDisconnect, logg)
}

// MercadoPagoAuthorize returns the Mercado Pago OAuth URL for the caller's space.
func MercadoPagoAuthorize(svc gatewayconnect.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg)
	}
	return authorize(svc.MercadoPagoAuthorizeURL, logg)
}

func MercadoPagoCallback(svc gatewayconnect.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg)
	}
	return callback(svc.MercadoPagoCallback, logg)
}

func MercadoPagoDisconnect(svc gatewayconnect.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg)
	}
	return disconnect(svc.MercadoPagoDisconnect, logg)
}

func authorize(fn authorizeFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _, err := actorctx.ResolveOwnedSpace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		url, err := fn(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, authorizeResponse{AuthorizeURL: url})
	}
}

// callback completes the OAuth exchange. The state parameter identifies the
// space, so no session is required.
func callback(fn callbackFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if providerErr := strings.TrimSpace(query.Get("error")); providerErr != "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "authorization was not granted").WithDetails(map[string]any{
				"error":             providerErr,
				"error_description": query.Get("error_description"),
			}))
			return
		}
		code := strings.TrimSpace(query.Get("code"))
		state := strings.TrimSpace(query.Get("state"))
		if code == "" || state == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "code and state are required"))
			return
		}

		result, err := fn(r.Context(), code, state)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func disconnect(fn disconnectFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _, err := actorctx.ResolveOwnedSpace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := fn(r.Context(), actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"connected": false})
	}
}

func unavailable(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway connect service unavailable"))
	}
}
