package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dezko/dezko-backend/pkg/redis"
)

// DefaultTTL covers the retry window of both Stripe and OpenPix deliveries.
const DefaultTTL = 72 * time.Hour

// Guard tracks processed webhook deliveries per gateway using Redis SETNX with
// a TTL. Keys follow the `dz:idem:webhook:<gateway>:<event_id>` pattern.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewGuard builds a guard that marks deliveries as processed for the given TTL.
func NewGuard(store redis.IdempotencyStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// CheckAndMark returns true if the delivery was already processed and
// otherwise marks it as processed.
func (g *Guard) CheckAndMark(ctx context.Context, gateway, eventID string) (bool, error) {
	key, err := g.key(gateway, eventID)
	if err != nil {
		return false, err
	}
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Release forgets a delivery so the gateway's retry is processed again.
func (g *Guard) Release(ctx context.Context, gateway, eventID string) error {
	key, err := g.key(gateway, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(gateway, eventID string) (string, error) {
	if strings.TrimSpace(gateway) == "" {
		return "", errors.New("gateway name is required")
	}
	if strings.TrimSpace(eventID) == "" {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(fmt.Sprintf("webhook:%s", gateway), eventID), nil
}
