package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	setNXResult bool
	setNXError  error
	lastKey     string
	lastTTL     time.Duration
	lastDeleted string
}

func (f *fakeStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeStore) Set(context.Context, string, any, time.Duration) error {
	return nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	return f.setNXResult, f.setNXError
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "dz:idem:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	if len(keys) > 0 {
		f.lastDeleted = keys[0]
	}
	return nil
}

func TestCheckAndMark_FirstDelivery(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	guard, err := NewGuard(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	already, err := guard.CheckAndMark(context.Background(), "stripe", "evt_123")
	if err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if already {
		t.Fatalf("expected first delivery to return false")
	}
	if store.lastKey != "dz:idem:webhook:stripe:evt_123" {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
	if store.lastTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}
}

func TestCheckAndMark_Redelivery(t *testing.T) {
	store := &fakeStore{setNXResult: false}
	guard, err := NewGuard(store, 0)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	already, err := guard.CheckAndMark(context.Background(), "openpix", "charge-1:OPENPIX:CHARGE_COMPLETED")
	if err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if !already {
		t.Fatalf("expected redelivery to be detected")
	}
	if store.lastTTL != DefaultTTL {
		t.Fatalf("expected default ttl, got %v", store.lastTTL)
	}
}

func TestCheckAndMark_Errors(t *testing.T) {
	store := &fakeStore{setNXError: errors.New("boom")}
	guard, err := NewGuard(store, time.Hour)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	if _, err := guard.CheckAndMark(context.Background(), "stripe", "evt_1"); err == nil {
		t.Fatal("expected store error")
	}
	if _, err := guard.CheckAndMark(context.Background(), "stripe", ""); err == nil {
		t.Fatal("expected missing event id error")
	}
	if _, err := NewGuard(nil, time.Hour); err == nil {
		t.Fatal("expected missing store error")
	}
}

func TestRelease(t *testing.T) {
	store := &fakeStore{}
	guard, err := NewGuard(store, time.Hour)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	if err := guard.Release(context.Background(), "stripe", "evt_9"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if store.lastDeleted != "dz:idem:webhook:stripe:evt_9" {
		t.Fatalf("unexpected deleted key %q", store.lastDeleted)
	}
}
