package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are written; the binaries apply the
// embedded copy.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Source picks the embedded migrations unless dir names another directory.
func Source(dir string) fs.FS {
	if dir == "" || dir == DefaultDir {
		return Embedded()
	}
	return os.DirFS(dir)
}

// Command names accepted by Run.
const (
	CommandUp      = "up"
	CommandUpByOne = "up-by-one"
	CommandDown    = "down"
	CommandReset   = "reset"
	CommandStatus  = "status"
	CommandVersion = "version"
)

// Report is one line of migration output.
type Report struct {
	Version int64
	Path    string
	State   string
}

// Run executes command against db using the migrations in fsys. CommandVersion
// needs target, a YYYYMMDDHHMMSS version; the database is moved up or down to it.
func Run(ctx context.Context, db *sql.DB, fsys fs.FS, command, target string) ([]Report, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}

	switch command {
	case CommandUp:
		return applied(provider.Up(ctx))
	case CommandUpByOne:
		res, err := provider.UpByOne(ctx)
		if errors.Is(err, goose.ErrNoNextVersion) {
			return nil, nil
		}
		return applied(single(res, err))
	case CommandDown:
		return applied(single(provider.Down(ctx)))
	case CommandReset:
		return applied(provider.DownTo(ctx, 0))
	case CommandStatus:
		statuses, err := provider.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("goose status: %w", err)
		}
		reports := make([]Report, 0, len(statuses))
		for _, st := range statuses {
			reports = append(reports, Report{Version: st.Source.Version, Path: st.Source.Path, State: string(st.State)})
		}
		return reports, nil
	case CommandVersion:
		return toVersion(ctx, provider, target)
	default:
		return nil, fmt.Errorf("unknown migrate command %q", command)
	}
}

func toVersion(ctx context.Context, provider *goose.Provider, target string) ([]Report, error) {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current == version:
		return nil, nil
	case current < version:
		return applied(provider.UpTo(ctx, version))
	default:
		return applied(provider.DownTo(ctx, version))
	}
}

func single(res *goose.MigrationResult, err error) ([]*goose.MigrationResult, error) {
	if res == nil {
		return nil, err
	}
	return []*goose.MigrationResult{res}, err
}

func applied(results []*goose.MigrationResult, err error) ([]Report, error) {
	reports := make([]Report, 0, len(results))
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		reports = append(reports, Report{Version: res.Source.Version, Path: res.Source.Path, State: res.Direction})
	}
	if err != nil {
		return reports, fmt.Errorf("goose: %w", err)
	}
	return reports, nil
}
