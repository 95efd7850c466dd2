package bootstrap

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	mercadopagogw "github.com/dezko/dezko-backend/internal/gateways/mercadopago"
	"github.com/dezko/dezko-backend/pkg/config"
	"github.com/dezko/dezko-backend/pkg/db"
	"github.com/dezko/dezko-backend/pkg/instance"
	"github.com/dezko/dezko-backend/pkg/logger"
	"github.com/dezko/dezko-backend/pkg/migrate"
	"github.com/dezko/dezko-backend/pkg/redis"
	"github.com/dezko/dezko-backend/pkg/security"
)

// Process holds what every binary needs before its own wiring: config, a
// logger built from it, and the database pool. Resources opened through it
// are closed by Close in reverse order.
type Process struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// Start loads .env (if present) and config, then opens the database. In dev
// with auto-migrate on, pending migrations are applied before returning.
func Start(ctx context.Context, kind string) (*Process, error) {
	logg := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		logg.Debug(ctx, ".env not loaded; using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = kind

	p := &Process{
		Kind:   kind,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
			Format:      cfg.App.LogFormat,
		}),
	}

	p.DB, err = db.New(ctx, cfg.DB, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	p.Track("database", p.DB.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, p.Logger, p.DB); err != nil {
		p.Close()
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return p, nil
}

// Redis dials the shared Redis client and schedules it for Close.
func (p *Process) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("open redis: %w", err)
	}
	p.Track("redis", client.Close)
	return client, nil
}

// Sealer returns the token sealer when Mercado Pago is enabled and nil
// otherwise.
func (p *Process) Sealer() (mercadopagogw.Sealer, error) {
	if !p.Config.Gateways.IsEnabled(config.GatewayMercadoPago) {
		return nil, nil
	}
	s, err := security.NewSealer(p.Config.Security)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealerRequired, err)
	}
	return s, nil
}

// Context tags ctx with the fields every line from this process should carry.
func (p *Process) Context(ctx context.Context, extra map[string]any) context.Context {
	fields := map[string]any{
		"env":         p.Config.App.Env,
		"serviceKind": p.Kind,
		"instance":    instance.ID(),
	}
	for k, v := range extra {
		fields[k] = v
	}
	return p.Logger.WithFields(ctx, fields)
}

// Track schedules fn to run on Close under name.
func (p *Process) Track(name string, fn func() error) {
	p.closers = append(p.closers, namedCloser{name: name, close: fn})
}

// Close releases everything opened through p, newest first.
func (p *Process) Close() {
	var errs error
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	p.closers = nil
	if errs != nil {
		p.Logger.Error(context.Background(), "process.close_failed", errs)
	}
}
