package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "DEZKO"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv                = "DEZKO_APP_ENV"
	EnvPort                  = "DEZKO_APP_PORT"
	EnvPublicURL             = "DEZKO_APP_PUBLIC_URL"
	EnvDBDSN                 = "DEZKO_DB_DSN"
	EnvDBHost                = "DEZKO_DB_HOST"
	EnvDBUser                = "DEZKO_DB_USER"
	EnvDBName                = "DEZKO_DB_NAME"
	EnvRedisURL              = "DEZKO_REDIS_URL"
	EnvJWTSecret             = "DEZKO_JWT_SECRET"
	EnvJWTIssuer             = "DEZKO_JWT_ISSUER"
	EnvJWTExpMins            = "DEZKO_JWT_EXPIRATION_MINUTES"
	EnvSecretsKey            = "DEZKO_SECRETS_KEY"
	EnvGatewaysEnabled       = "DEZKO_GATEWAYS_ENABLED"
	EnvStripeAPIKey          = "DEZKO_STRIPE_API_KEY"
	EnvStripeWebhookSecret   = "DEZKO_STRIPE_WEBHOOK_SECRET"
	EnvStripeClientID        = "DEZKO_STRIPE_CONNECT_CLIENT_ID"
	EnvOpenPixAppID          = "DEZKO_OPENPIX_APP_ID"
	EnvOpenPixWebhookSecret  = "DEZKO_OPENPIX_WEBHOOK_SECRET"
	EnvMercadoPagoToken      = "DEZKO_MERCADOPAGO_ACCESS_TOKEN"
	EnvMercadoPagoClientID   = "DEZKO_MERCADOPAGO_CLIENT_ID"
	EnvGCPProjectID          = "DEZKO_GCP_PROJECT_ID"
	EnvPubSubBookingsTopic   = "DEZKO_PUBSUB_BOOKINGS_TOPIC"
	EnvPubSubBookingsSub     = "DEZKO_PUBSUB_BOOKINGS_SUBSCRIPTION"
	EnvPubSubBillingTopic    = "DEZKO_PUBSUB_BILLING_TOPIC"
	EnvPubSubBillingSub      = "DEZKO_PUBSUB_BILLING_SUBSCRIPTION"
	EnvBookingPendingTTL     = "DEZKO_BOOKING_PENDING_TTL"
	EnvGatewayTimeout        = "DEZKO_GATEWAY_TIMEOUT"
	EnvOpenPixBaseURL        = "DEZKO_OPENPIX_BASE_URL"
	EnvMercadoPagoRedirect   = "DEZKO_MERCADOPAGO_REDIRECT_PATH"
	EnvStripeConnectRedirect = "DEZKO_STRIPE_CONNECT_REDIRECT_PATH"
)

// Gateway identifiers accepted by DEZKO_GATEWAYS_ENABLED.
const (
	GatewayStripe      = "stripe"
	GatewayPix         = "pix"
	GatewayMercadoPago = "mercadopago"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Security     SecurityConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Gateways     GatewaysConfig
	Stripe       StripeConfig
	OpenPix      OpenPixConfig
	MercadoPago  MercadoPagoConfig
	Bookings     BookingsConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.resolveDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"DEZKO_APP_ENV" required:"true"`
	Port         string   `envconfig:"DEZKO_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"DEZKO_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"DEZKO_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"DEZKO_LOG_FORMAT" default:"json"`
	PublicURL    string   `envconfig:"DEZKO_APP_PUBLIC_URL" default:"http://localhost:8080"`
	CORSOrigins  []string `envconfig:"DEZKO_CORS_ORIGINS" default:"http://localhost:3000"`
	MetricsAddr  string   `envconfig:"DEZKO_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// URL joins the public base URL with the provided path.
func (a AppConfig) URL(path string) string {
	base := strings.TrimRight(strings.TrimSpace(a.PublicURL), "/")
	if path == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

type ServiceConfig struct {
	Kind string `envconfig:"DEZKO_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DEZKO_DB_DSN"`
	Driver string `envconfig:"DEZKO_DB_DRIVER" default:"postgres"`

	// Discrete Postgres settings, used only when DSN is empty.
	Host     string `envconfig:"DEZKO_DB_HOST"`
	Port     int    `envconfig:"DEZKO_DB_PORT" default:"5432"`
	User     string `envconfig:"DEZKO_DB_USER"`
	Password string `envconfig:"DEZKO_DB_PASSWORD"`
	Name     string `envconfig:"DEZKO_DB_NAME"`
	SSLMode  string `envconfig:"DEZKO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DEZKO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DEZKO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DEZKO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DEZKO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"DEZKO_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DEZKO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DEZKO_REDIS_ADDR"`
	Password     string        `envconfig:"DEZKO_REDIS_PASSWORD"`
	DB           int           `envconfig:"DEZKO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DEZKO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DEZKO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DEZKO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DEZKO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DEZKO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"DEZKO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DEZKO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DEZKO_JWT_EXPIRATION_MINUTES" required:"true"`
	CookieName        string `envconfig:"DEZKO_SESSION_COOKIE" default:"dezko_session"`
}

// AccessTokenTTL returns the configured access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DEZKO_AUTO_MIGRATE" default:"false"`
}

type SecurityConfig struct {
	SecretsKey string `envconfig:"DEZKO_SECRETS_KEY"`
}

// Key decodes the base64 secrets key used to seal tenant gateway credentials.
func (s SecurityConfig) Key() ([]byte, error) {
	raw := strings.TrimSpace(s.SecretsKey)
	if raw == "" {
		return nil, fmt.Errorf("%s is required", EnvSecretsKey)
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", EnvSecretsKey, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s must decode to 32 bytes, got %d", EnvSecretsKey, len(key))
	}
	return key, nil
}

type GCPConfig struct {
	ProjectID string `envconfig:"DEZKO_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	BookingsTopic        string `envconfig:"DEZKO_PUBSUB_BOOKINGS_TOPIC" default:"dezko-bookings"`
	BookingsSubscription string `envconfig:"DEZKO_PUBSUB_BOOKINGS_SUBSCRIPTION"`
	BillingTopic         string `envconfig:"DEZKO_PUBSUB_BILLING_TOPIC" default:"dezko-billing"`
	BillingSubscription  string `envconfig:"DEZKO_PUBSUB_BILLING_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"DEZKO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"DEZKO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"DEZKO_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Concurrency    int           `envconfig:"DEZKO_OUTBOX_PUBLISH_CONCURRENCY" default:"8"`
	Retention      time.Duration `envconfig:"DEZKO_OUTBOX_RETENTION" default:"720h"`
}

type GatewaysConfig struct {
	Enabled []string      `envconfig:"DEZKO_GATEWAYS_ENABLED" default:"stripe,pix,mercadopago"`
	Timeout time.Duration `envconfig:"DEZKO_GATEWAY_TIMEOUT" default:"8s"`
}

// IsEnabled reports whether the named gateway is switched on.
func (g GatewaysConfig) IsEnabled(name string) bool {
	for _, candidate := range g.Enabled {
		if strings.EqualFold(strings.TrimSpace(candidate), name) {
			return true
		}
	}
	return false
}

type StripeConfig struct {
	APIKey         string `envconfig:"DEZKO_STRIPE_API_KEY"`
	Secret         string `envconfig:"DEZKO_STRIPE_WEBHOOK_SECRET"`
	Env            string `envconfig:"DEZKO_STRIPE_ENV" default:"test"`
	ClientID       string `envconfig:"DEZKO_STRIPE_CONNECT_CLIENT_ID"`
	RedirectPath   string `envconfig:"DEZKO_STRIPE_CONNECT_REDIRECT_PATH" default:"/api/v1/connect/stripe/callback"`
	FeeBasisPoints int    `envconfig:"DEZKO_STRIPE_FEE_BPS" default:"1000"`
	Currency       string `envconfig:"DEZKO_STRIPE_CURRENCY" default:"brl"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Validate fails fast when the Stripe adapter is enabled without credentials.
func (s StripeConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(s.APIKey) == "" {
		missing = append(missing, EnvStripeAPIKey)
	}
	if strings.TrimSpace(s.Secret) == "" {
		missing = append(missing, EnvStripeWebhookSecret)
	}
	if strings.TrimSpace(s.ClientID) == "" {
		missing = append(missing, EnvStripeClientID)
	}
	if len(missing) > 0 {
		return fmt.Errorf("stripe gateway enabled but missing %s", strings.Join(missing, ", "))
	}
	return validateFee("stripe", s.FeeBasisPoints)
}

type OpenPixConfig struct {
	BaseURL        string        `envconfig:"DEZKO_OPENPIX_BASE_URL" default:"https://api.openpix.com.br"`
	AppID          string        `envconfig:"DEZKO_OPENPIX_APP_ID"`
	WebhookSecret  string        `envconfig:"DEZKO_OPENPIX_WEBHOOK_SECRET"`
	FeeBasisPoints int           `envconfig:"DEZKO_OPENPIX_FEE_BPS" default:"1000"`
	ChargeExpiry   time.Duration `envconfig:"DEZKO_OPENPIX_CHARGE_EXPIRY" default:"1h"`
}

// Validate fails fast when PIX is enabled without an OpenPix AppID. A missing
// webhook secret is tolerated and reported by the webhook handler.
func (o OpenPixConfig) Validate() error {
	if strings.TrimSpace(o.AppID) == "" {
		return fmt.Errorf("pix gateway enabled but missing %s", EnvOpenPixAppID)
	}
	if _, err := url.ParseRequestURI(strings.TrimSpace(o.BaseURL)); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvOpenPixBaseURL, err)
	}
	return validateFee("openpix", o.FeeBasisPoints)
}

type MercadoPagoConfig struct {
	AccessToken    string `envconfig:"DEZKO_MERCADOPAGO_ACCESS_TOKEN"`
	ClientID       string `envconfig:"DEZKO_MERCADOPAGO_CLIENT_ID"`
	RedirectPath   string `envconfig:"DEZKO_MERCADOPAGO_REDIRECT_PATH" default:"/api/v1/connect/mercadopago/callback"`
	FeeBasisPoints int    `envconfig:"DEZKO_MERCADOPAGO_FEE_BPS" default:"1000"`
}

// Validate fails fast when Mercado Pago is enabled without platform credentials.
func (m MercadoPagoConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(m.AccessToken) == "" {
		missing = append(missing, EnvMercadoPagoToken)
	}
	if strings.TrimSpace(m.ClientID) == "" {
		missing = append(missing, EnvMercadoPagoClientID)
	}
	if len(missing) > 0 {
		return fmt.Errorf("mercadopago gateway enabled but missing %s", strings.Join(missing, ", "))
	}
	return validateFee("mercadopago", m.FeeBasisPoints)
}

type BookingsConfig struct {
	PendingTTL      time.Duration `envconfig:"DEZKO_BOOKING_PENDING_TTL" default:"24h"`
	PollLimit       int           `envconfig:"DEZKO_BOOKING_POLL_LIMIT" default:"12"`
	PollWindow      time.Duration `envconfig:"DEZKO_BOOKING_POLL_WINDOW" default:"1m"`
	PixReconcileAge time.Duration `envconfig:"DEZKO_BOOKING_PIX_RECONCILE_AGE" default:"1m"`
	CreateLimit     int           `envconfig:"DEZKO_BOOKING_CREATE_LIMIT" default:"20"`
	CreateWindow    time.Duration `envconfig:"DEZKO_BOOKING_CREATE_WINDOW" default:"1m"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"DEZKO_CRON_INTERVAL" default:"5m"`
}

func validateFee(gateway string, bps int) error {
	if bps < 0 || bps > 10000 {
		return fmt.Errorf("%s fee must be between 0 and 10000 basis points, got %d", gateway, bps)
	}
	return nil
}

var errMissingDSN = errors.New("database connection settings missing")

// resolveDSN fills DSN from the discrete Postgres settings when it is unset.
// sqlite has no discrete form and always needs DEZKO_DB_DSN.
func (db *DBConfig) resolveDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, "sqlite") {
		return fmt.Errorf("%w: sqlite needs %s", errMissingDSN, EnvDBDSN)
	}

	var missing []string
	for env, v := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if v == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: set %s or all of %s", errMissingDSN, EnvDBDSN, strings.Join(missing, ", "))
	}

	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(db.User, db.Password),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   "/" + db.Name,
	}
	if db.Password == "" {
		dsn.User = url.User(db.User)
	}
	if db.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}
