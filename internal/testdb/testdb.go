// Package testdb opens isolated in-memory sqlite databases carrying the
// booking schema, for repository and service tests.
package testdb

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
)

var schema = []string{
	`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  role TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE spaces (
  id TEXT PRIMARY KEY,
  owner_user_id TEXT NOT NULL,
  name TEXT NOT NULL,
  stripe_connect_account_id TEXT,
  stripe_connect_status TEXT NOT NULL DEFAULT 'not_connected',
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE space_configs (
  space_id TEXT PRIMARY KEY,
  settings TEXT NOT NULL,
  updated_at DATETIME
);`,
	`CREATE TABLE mercadopago_accounts (
  space_id TEXT PRIMARY KEY,
  mp_user_id TEXT NOT NULL,
  access_token_sealed TEXT NOT NULL,
  refresh_token_sealed TEXT,
  public_key TEXT,
  live_mode INTEGER NOT NULL DEFAULT 0,
  marketplace_verified INTEGER NOT NULL DEFAULT 0,
  expires_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE plans (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  duration_days INTEGER NOT NULL,
  agenda_limit INTEGER NOT NULL,
  benefits TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE subscriptions (
  id TEXT PRIMARY KEY,
  space_id TEXT NOT NULL,
  plan_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'ATIVA',
  starts_at DATETIME NOT NULL,
  expires_at DATETIME NOT NULL,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE UNIQUE INDEX ux_subscriptions_active_space ON subscriptions(space_id) WHERE status = 'ATIVA';`,
	`CREATE TABLE agendas (
  id TEXT PRIMARY KEY,
  space_id TEXT NOT NULL,
  name TEXT NOT NULL,
  billing_mode TEXT NOT NULL,
  hourly_rate_cents INTEGER,
  shift_rate_cents INTEGER,
  daily_rate_cents INTEGER,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  space_id TEXT NOT NULL,
  agenda_id TEXT NOT NULL,
  plan_id TEXT,
  starts_at DATETIME NOT NULL,
  ends_at DATETIME NOT NULL,
  price_cents INTEGER NOT NULL,
  payment_method TEXT,
  status TEXT NOT NULL DEFAULT 'PENDING',
  gateway TEXT,
  gateway_charge_id TEXT,
  cancel_reason TEXT,
  paid_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE reservations (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  space_id TEXT NOT NULL,
  agenda_id TEXT NOT NULL,
  starts_at DATETIME NOT NULL,
  ends_at DATETIME NOT NULL,
  price_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDENTE',
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  reservation_id TEXT,
  gateway TEXT NOT NULL,
  gateway_transaction_id TEXT NOT NULL,
  status TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  platform_fee_cents INTEGER NOT NULL DEFAULT 0,
  tenant_amount_cents INTEGER NOT NULL DEFAULT 0,
  raw TEXT,
  created_at DATETIME
);`,
	`CREATE UNIQUE INDEX ux_payments_gateway_tx_status ON payments(gateway, gateway_transaction_id, status);`,
	`CREATE TABLE pix_charges (
  correlation_id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  space_id TEXT NOT NULL,
  value_cents INTEGER NOT NULL,
  tenant_amount_cents INTEGER NOT NULL,
  platform_amount_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'ACTIVE',
  br_code TEXT,
  qr_code_image_url TEXT,
  payment_link_url TEXT,
  transaction_id TEXT,
  global_id TEXT,
  expires_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns a fresh database private to the calling test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// SingleConnection limits conn to one pooled connection so concurrent
// transactions queue behind each other, as the row locks make them do on
// Postgres. Code running inside a transaction must only use the tx handle.
func SingleConnection(t *testing.T, conn *gorm.DB) {
	t.Helper()
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
}

// Fixture carries the rows most booking tests need.
type Fixture struct {
	Conn         *gorm.DB
	Owner        *models.User
	Customer     *models.User
	Space        *models.Space
	Agenda       *models.Agenda
	Plan         *models.Plan
	Subscription *models.Subscription
}

// Seed inserts an owner, an end user, a space with one HORA agenda and an
// active subscription on a plan allowing agendaLimit agendas.
func Seed(t *testing.T, conn *gorm.DB, agendaLimit int) Fixture {
	t.Helper()

	owner := &models.User{Email: "owner-" + uuid.NewString() + "@dezko.test", Name: "Owner", Role: enums.RoleSpaceOwner}
	customer := &models.User{Email: "user-" + uuid.NewString() + "@dezko.test", Name: "Cliente", Role: enums.RoleEndUser}
	require.NoError(t, conn.Create(owner).Error)
	require.NoError(t, conn.Create(customer).Error)

	space := &models.Space{OwnerUserID: owner.ID, Name: "Cowork Centro", StripeConnectStatus: enums.ConnectStatusNotConnected}
	require.NoError(t, conn.Create(space).Error)

	rate := int64(5000)
	agenda := &models.Agenda{SpaceID: space.ID, Name: "Sala 1", BillingMode: enums.BillingModeHour, HourlyRateCents: &rate}
	require.NoError(t, conn.Create(agenda).Error)

	plan := &models.Plan{Name: "Basico", PriceCents: 9900, DurationDays: 30, AgendaLimit: agendaLimit, Active: true}
	require.NoError(t, conn.Create(plan).Error)

	now := time.Now().UTC()
	sub := &models.Subscription{
		SpaceID:   space.ID,
		PlanID:    plan.ID,
		Status:    enums.SubscriptionStatusActive,
		StartsAt:  now.Add(-time.Hour),
		ExpiresAt: now.Add(30 * 24 * time.Hour),
	}
	require.NoError(t, conn.Create(sub).Error)

	return Fixture{
		Conn:         conn,
		Owner:        owner,
		Customer:     customer,
		Space:        space,
		Agenda:       agenda,
		Plan:         plan,
		Subscription: sub,
	}
}
