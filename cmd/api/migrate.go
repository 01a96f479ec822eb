package main

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"pdfvault/internal/config"
	"pdfvault/internal/database"
	"pdfvault/internal/database/migration"
)

// NewMigrateCommand applies pending schema migrations and exits.
func NewMigrateCommand(ctx context.Context, cfg *config.AppConfig, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(cfg.Database)
			if err != nil {
				logger.Error("db_connect_failed", "driver", cfg.Database.Driver, "error", err)
				return err
			}
			defer db.Close()
			return migration.EnsureMigrated(ctx, db, cfg.Database.Driver, logger)
		},
	}
}
