package webhooks

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/internal/bookings"
	"github.com/dezko/dezko-backend/internal/gateways"
	"github.com/dezko/dezko-backend/internal/payments"
	"github.com/dezko/dezko-backend/internal/spaceconfig"
	"github.com/dezko/dezko-backend/internal/spaces"
	"github.com/dezko/dezko-backend/internal/testdb"
	"github.com/dezko/dezko-backend/internal/users"
	"github.com/dezko/dezko-backend/internal/webhooks/idempotency"
	"github.com/dezko/dezko-backend/pkg/auth"
	"github.com/dezko/dezko-backend/pkg/db"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	"github.com/dezko/dezko-backend/pkg/outbox"
)

// bookingHarness wires the real bookings service to an in-memory database
// with one pending booking.
type bookingHarness struct {
	conn     *gorm.DB
	bookings bookings.Service
	guard    *idempotency.Guard
	orderID  uuid.UUID
}

func newBookingHarness(t *testing.T) bookingHarness {
	t.Helper()
	conn := testdb.Open(t)
	fx := testdb.Seed(t, conn, 3)

	svc, err := bookings.NewService(bookings.ServiceParams{
		Repo:              bookings.NewRepository(conn),
		Payments:          payments.NewRepository(conn),
		Gateways:          gateways.NewRegistry(),
		Config:            defaultConfig{},
		Spaces:            spaces.NewRepository(conn),
		Users:             users.NewRepository(conn),
		Outbox:            outbox.NewService(outbox.NewRepository(conn), nil),
		TransactionRunner: db.Wrap(conn),
		RateLimiter:       allowAll{},
		Settings: bookings.Settings{
			FeeBasisPoints: map[enums.Gateway]int{enums.GatewayStripe: 1000, enums.GatewayOpenPix: 1000},
		},
	})
	if err != nil {
		t.Fatalf("bookings service: %v", err)
	}

	booking, err := svc.CreateBooking(context.Background(), auth.EndUser{ID: fx.Customer.ID}, bookings.CreateBookingInput{
		SpaceID:  fx.Space.ID,
		AgendaID: fx.Agenda.ID,
		StartsAt: time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2030, 3, 4, 11, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	return bookingHarness{conn: conn, bookings: svc, guard: newTestGuard(t), orderID: booking.ID}
}

func newTestGuard(t *testing.T) *idempotency.Guard {
	t.Helper()
	guard, err := idempotency.NewGuard(newInMemoryStore(), time.Minute)
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard
}

func (h bookingHarness) order(t *testing.T) (*models.Order, *models.Reservation) {
	t.Helper()
	var order models.Order
	if err := h.conn.First(&order, "id = ?", h.orderID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	var reservation models.Reservation
	if err := h.conn.First(&reservation, "order_id = ?", h.orderID).Error; err != nil {
		t.Fatalf("load reservation: %v", err)
	}
	return &order, &reservation
}

func (h bookingHarness) paymentCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := h.conn.Model(&models.Payment{}).Where("order_id = ?", h.orderID).Count(&n).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	return n
}

type defaultConfig struct{}

func (defaultConfig) Get(ctx context.Context, spaceID uuid.UUID) (*spaceconfig.Settings, error) {
	settings := spaceconfig.Default()
	return &settings, nil
}

type allowAll struct{}

func (allowAll) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	return true, 1, nil
}

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{
		data: make(map[string]string),
	}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = fmt.Sprintf("%v", value)
	return nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("dz:idem:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}
