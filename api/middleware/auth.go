package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dezko/dezko-backend/api/responses"
	pkgAuth "github.com/dezko/dezko-backend/pkg/auth"
	"github.com/dezko/dezko-backend/pkg/auth/session"
	"github.com/dezko/dezko-backend/pkg/config"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
	"github.com/dezko/dezko-backend/pkg/logger"
)

// Auth validates the access token from the Authorization header or the
// session cookie, rejects revoked tokens and seeds the request context with
// the resolved actor.
func Auth(cfg config.JWTConfig, revocations session.RevocationChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, sess, err := authenticate(r.Context(), cfg, revocations, bearerToken(r, cfg.CookieName))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithSession(pkgAuth.WithActor(r.Context(), actor), sess)
			var spaceID string
			if owner, ok := actor.(pkgAuth.SpaceOwner); ok {
				spaceID = owner.SpaceID.String()
			}
			ctx = logg.WithActor(ctx, actor.UserID().String(), string(actor.Role()), spaceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, cfg config.JWTConfig, revocations session.RevocationChecker, token string) (pkgAuth.Actor, Session, error) {
	if token == "" {
		return nil, Session{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, Session{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}

	if revocations != nil {
		revoked, err := revocations.IsRevoked(ctx, claims.ID)
		switch {
		case err != nil:
			return nil, Session{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
		case revoked:
			return nil, Session{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "session revoked")
		}
	}

	actor, err := pkgAuth.ActorFromClaims(claims)
	if err != nil {
		return nil, Session{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token claims")
	}
	// ParseAccessToken requires exp, so ExpiresAt is set.
	return actor, Session{TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// bearerToken reads "Authorization: Bearer <token>" and falls back to the
// session cookie. Other authorization schemes are ignored.
func bearerToken(r *http.Request, cookieName string) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if cookieName == "" {
		return ""
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
