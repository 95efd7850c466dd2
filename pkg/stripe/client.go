package stripe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/dezko/dezko-backend/pkg/config"
	"github.com/dezko/dezko-backend/pkg/logger"
)

const maxNetworkRetries = 2

// keyPrefixes lists the secret and restricted key prefixes Stripe issues per
// environment.
var keyPrefixes = map[string][]string{
	"test": {"sk_test_", "rk_test_"},
	"live": {"sk_live_", "rk_live_"},
}

// Client carries the Connect platform settings. Calls go through the
// stripe-go resource packages, which share the backend installed by NewClient.
type Client struct {
	environment    string
	signingSecret  string
	clientID       string
	currency       string
	feeBasisPoints int
}

// NewClient validates cfg, then installs the API key and an API backend with
// the given per-request timeout. Stripe's own retry logs go to logg.
func NewClient(ctx context.Context, cfg config.StripeConfig, timeout time.Duration, logg *logger.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	env := cfg.Environment()
	apiKey := strings.TrimSpace(cfg.APIKey)
	if err := checkKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey
	backendCfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(maxNetworkRetries),
		LeveledLogger:     &leveledLogger{ctx: ctx, logg: logg},
	}
	if timeout > 0 {
		backendCfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg))

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyBRL)
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"environment": env,
		"currency":    currency,
		"fee_bps":     cfg.FeeBasisPoints,
	}), "stripe.configured")

	return &Client{
		environment:    env,
		signingSecret:  strings.TrimSpace(cfg.Secret),
		clientID:       strings.TrimSpace(cfg.ClientID),
		currency:       currency,
		feeBasisPoints: cfg.FeeBasisPoints,
	}, nil
}

// checkKey refuses a live key in test mode and the reverse.
func checkKey(env, key string) error {
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return fmt.Errorf("stripe environment must be \"test\" or \"live\", got %q", env)
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(key, prefix) {
			return nil
		}
	}
	return fmt.Errorf("stripe %s environment needs a key starting with %s", env, strings.Join(prefixes, " or "))
}

func (c *Client) ConnectClientID() string {
	if c == nil {
		return ""
	}
	return c.clientID
}

// Currency is the lowercase ISO code used on PaymentIntents.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

// FeeBasisPoints is the platform application fee.
func (c *Client) FeeBasisPoints() int {
	if c == nil {
		return 0
	}
	return c.feeBasisPoints
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret verifies Stripe-Signature headers on webhooks.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// leveledLogger adapts stripe-go's logger interface. Stripe logs every
// request at info, so that level is demoted to debug.
type leveledLogger struct {
	ctx  context.Context
	logg *logger.Logger
}

func (l *leveledLogger) Debugf(format string, v ...any) {
	l.logg.Debug(l.ctx, "stripe: "+fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Infof(format string, v ...any) {
	l.logg.Debug(l.ctx, "stripe: "+fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Warnf(format string, v ...any) {
	l.logg.Warn(l.ctx, "stripe: "+fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Errorf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	l.logg.Error(l.ctx, "stripe: "+msg, fmt.Errorf("%s", msg))
}
