package middleware

import (
	"context"
	"time"

	pkgAuth "github.com/dezko/dezko-backend/pkg/auth"
)

type contextKey string

const ctxSession contextKey = "session"

// Session identifies the access token behind an authenticated request.
type Session struct {
	TokenID   string
	ExpiresAt time.Time
}

// WithSession attaches the session for downstream handlers.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxSession, s)
}

// SessionFromContext returns the token id and expiry set by Auth.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	s, ok := ctx.Value(ctxSession).(Session)
	return s, ok
}

// UserIDFromContext returns the authenticated user id, or "" when anonymous.
func UserIDFromContext(ctx context.Context) string {
	actor, ok := pkgAuth.ActorFromContext(ctx)
	if !ok {
		return ""
	}
	return actor.UserID().String()
}
