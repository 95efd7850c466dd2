package migrate

import (
	"context"
	"fmt"

	"github.com/dezko/dezko-backend/pkg/config"
	"github.com/dezko/dezko-backend/pkg/db"
	"github.com/dezko/dezko-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot when running in dev
// with DEZKO_AUTO_MIGRATE set.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "source": "embedded"})
	reports, err := Run(ctx, sqlDB, Embedded(), CommandUp, "")
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	logg.Info(logg.WithField(ctx, "applied", len(reports)), "dev migrations completed")
	return nil
}
