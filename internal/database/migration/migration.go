package migration

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pressly/goose/v3"
)

//go:embed sql
var migrations embed.FS

// newProvider is a seam for testing goose.NewProvider.
var newProvider = goose.NewProvider

func dialectFor(driver string) (goose.Dialect, string, error) {
	switch driver {
	case "postgres":
		return goose.DialectPostgres, "sql/postgres", nil
	case "sqlite", "":
		return goose.DialectSQLite3, "sql/sqlite", nil
	default:
		return "", "", fmt.Errorf("no migrations for driver %q", driver)
	}
}

// EnsureMigrated applies every pending embedded migration for driver.
// Already-applied versions are skipped, so it is safe to call on every start.
func EnsureMigrated(ctx context.Context, db *sql.DB, driver string, logger *log.Logger) error {
	start := time.Now()
	logger = logger.With("component", "database", "driver", driver)

	logger.Info("db_migration_check", "status", "starting")

	dialect, dir, err := dialectFor(driver)
	if err != nil {
		return err
	}
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	provider, err := newProvider(dialect, db, fsys)
	if err != nil {
		logger.Error("db_migration_failed", "status", "error", "error_message", err.Error())
		return fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	for _, r := range results {
		if r.Error != nil {
			continue
		}
		logger.Info("db_migration_step",
			"status", "success",
			"migration_step", r.Source.Path,
			"version", r.Source.Version,
			"step_duration_ms", r.Duration.Milliseconds(),
		)
	}
	if err != nil {
		logger.Error("db_migration_failed",
			"status", "error",
			"error_message", err.Error(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("run migrations: %w", err)
	}

	if len(results) == 0 {
		logger.Info("db_migration_skip",
			"status", "success",
			"detail", "schema already up to date",
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	logger.Info("db_migration_success",
		"status", "success",
		"applied", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
