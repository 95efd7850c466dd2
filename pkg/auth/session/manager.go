package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dezko/dezko-backend/pkg/config"
	redisclient "github.com/dezko/dezko-backend/pkg/redis"
	redislib "github.com/redis/go-redis/v9"
)

const revokedMarker = "1"

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

type sessionKeyer interface {
	RevokedTokenKey(tokenID string) string
}

// Manager keeps a Redis denylist of revoked access token ids (jti). Entries
// live only as long as the token itself could still be presented.
type Manager struct {
	store  sessionStore
	keyer  sessionKeyer
	maxTTL time.Duration
	now    func() time.Time
}

// RevocationChecker exposes the read-only surface needed by middleware.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// NewManager constructs a revocation manager backed by Redis.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	ttl := cfg.AccessTokenTTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("access token ttl must be positive")
	}
	return &Manager{
		store:  client,
		keyer:  client,
		maxTTL: ttl,
		now:    time.Now,
	}, nil
}

// Revoke denylists the token id until expiresAt. Tokens already expired are
// ignored.
func (m *Manager) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if strings.TrimSpace(tokenID) == "" {
		return fmt.Errorf("token id is required")
	}
	ttl := m.maxTTL
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(m.now())
	}
	if ttl <= 0 {
		return nil
	}
	if ttl > m.maxTTL {
		ttl = m.maxTTL
	}
	return m.store.Set(ctx, m.keyer.RevokedTokenKey(tokenID), revokedMarker, ttl)
}

// IsRevoked reports whether the token id has been denylisted.
func (m *Manager) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if strings.TrimSpace(tokenID) == "" {
		return false, fmt.Errorf("token id is required")
	}
	if _, err := m.store.Get(ctx, m.keyer.RevokedTokenKey(tokenID)); err != nil {
		if errors.Is(err, redislib.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
