package main

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"pdfvault/internal/config"
)

// NewRootCommand returns the pdfvault command. Without a subcommand it serves the API.
func NewRootCommand(ctx context.Context, cfg *config.AppConfig, logger *log.Logger) *cobra.Command {
	serve := NewServeCommand(ctx, cfg, logger)
	rootCmd := &cobra.Command{
		Use:           "pdfvault",
		Short:         "PDF document storage service.",
		Long:          `pdfvault stores uploaded PDF files and their metadata and serves them back over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(NewMigrateCommand(ctx, cfg, logger))
	return rootCmd
}
