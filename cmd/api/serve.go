package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"pdfvault/docs"
	"pdfvault/internal/config"
	"pdfvault/internal/database"
	"pdfvault/internal/database/migration"
	handlers "pdfvault/internal/http/handler"
	"pdfvault/internal/http/middleware"
	"pdfvault/internal/metrics"
	"pdfvault/internal/otel"
	"pdfvault/internal/repository"
	"pdfvault/internal/repository/postgres"
	"pdfvault/internal/repository/sqlite"
	"pdfvault/internal/service"
	"pdfvault/internal/storage"
	"pdfvault/internal/validator"
)

// multipartOverhead is the slack allowed on top of the upload limit for form framing.
const multipartOverhead = 1 << 20

const shutdownTimeout = 10 * time.Second

// NewServeCommand runs the HTTP API until ctx is canceled.
func NewServeCommand(ctx context.Context, cfg *config.AppConfig, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the document API.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.AppConfig, logger *log.Logger) error {
	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		logger.Error("tracing_init_failed", "error", err)
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	db, err := database.Open(cfg.Database)
	if err != nil {
		logger.Error("db_connect_failed", "driver", cfg.Database.Driver, "error", err)
		return err
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, cfg.Database.Driver, logger); err != nil {
		return err
	}

	repo, err := newRepository(cfg.Database.Driver, db)
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.Storage, cfg.MinIO)
	if err != nil {
		logger.Error("storage_init_failed", "driver", cfg.Storage.Driver, "error", err)
		return err
	}

	policy, err := validator.NewPolicy(cfg.Upload.MaxBytes, cfg.Upload.AllowedTypes)
	if err != nil {
		return fmt.Errorf("upload policy: %w", err)
	}

	docMetrics, err := metrics.NewDocumentMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register document metrics: %w", err)
	}

	docSvc := service.NewDocumentService(store, repo, policy,
		service.WithLogger(logger),
		service.WithMetrics(docMetrics),
		service.WithContentSniffing(cfg.Upload.VerifyContent),
	)

	app, err := newApp(docSvc, policy.MaxBytes(), cfg.AppHost, logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_starting", "port", cfg.Port, "db_driver", cfg.Database.Driver, "storage_driver", cfg.Storage.Driver)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		logger.Error("server_failed", "error", err)
		return err
	case <-ctx.Done():
	}

	logger.Info("server_stopping")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return app.ShutdownWithContext(sctx)
}

func newRepository(driver string, db *sql.DB) (repository.DocumentRepository, error) {
	switch driver {
	case database.DriverPostgres:
		return postgres.NewDocumentPostgres(db), nil
	case "", database.DriverSQLite:
		return sqlite.NewDocumentSQLite(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// newApp builds the Fiber app with middleware, the document API, /metrics and /swagger.
func newApp(docSvc service.DocumentService, maxUpload int64, publicHost string, logger *log.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*fiber.App, error) {
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               "pdfvault",
		BodyLimit:             int(maxUpload) + multipartOverhead,
		ErrorHandler:          handlers.ErrorHandler(),
		DisableStartupMessage: true,
	})

	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	app.Use(promMiddleware.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	handlers.RegisterRoutes(app, docSvc)

	// An empty host makes the UI target whichever host served it.
	docs.SwaggerInfo.Host = publicHost
	app.Get("/swagger/*", swagger.HandlerDefault)

	return app, nil
}
