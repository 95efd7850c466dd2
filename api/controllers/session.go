package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/dezko/dezko-backend/api/middleware"
	"github.com/dezko/dezko-backend/api/responses"
	"github.com/dezko/dezko-backend/pkg/config"
	"github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/logger"
)

type sessionRevoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// AuthLogout revokes the access token behind the request and clears the
// session cookie.
func AuthLogout(manager sessionRevoker, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if manager == nil {
			responses.WriteError(r.Context(), logg, w, errors.New(errors.CodeInternal, "session manager unavailable"))
			return
		}

		sess, ok := middleware.SessionFromContext(r.Context())
		if !ok || sess.TokenID == "" {
			responses.WriteError(r.Context(), logg, w, errors.New(errors.CodeUnauthorized, "missing session id"))
			return
		}

		if err := manager.Revoke(r.Context(), sess.TokenID, sess.ExpiresAt); err != nil {
			responses.WriteError(r.Context(), logg, w, errors.Wrap(errors.CodeDependency, err, "revoke session"))
			return
		}

		if cfg.CookieName != "" {
			http.SetCookie(w, &http.Cookie{
				Name:     cfg.CookieName,
				Value:    "",
				Path:     "/",
				MaxAge:   -1,
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
		}

		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}
