// Package app initializes and orchestrates the main components of the Jules
// Warden application. It wires together the configuration, storage, review
// pipeline, and HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/jules-warden/internal/config"
	"github.com/sevigo/jules-warden/internal/core"
	"github.com/sevigo/jules-warden/internal/db"
	"github.com/sevigo/jules-warden/internal/dedupe"
	"github.com/sevigo/jules-warden/internal/github"
	"github.com/sevigo/jules-warden/internal/jobs"
	"github.com/sevigo/jules-warden/internal/llm"
	"github.com/sevigo/jules-warden/internal/server"
	"github.com/sevigo/jules-warden/internal/storage"
)

// App holds the main application components.
type App struct {
	ctx        context.Context
	cfg        *config.Config
	server     *server.Server
	logger     *slog.Logger
	dispatcher core.JobDispatcher
	dbCleanup  func()
}

// NewApp sets up the application with all its dependencies. The database is
// optional: without DATABASE_HOST the app runs on the in-memory store and
// comment deduplication does not survive restarts.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	logger.Info("initializing Jules Warden application",
		"jules_base_url", cfg.JulesBaseURL,
		"jules_model", cfg.JulesModel,
		"max_workers", cfg.MaxWorkers)

	store, dbCleanup, err := newStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	prompts, err := llm.NewPromptBuilder(cfg.PromptTemplatePath, cfg.DiffLimitBytes, logger)
	if err != nil {
		dbCleanup()
		return nil, fmt.Errorf("failed to load prompt template: %w", err)
	}

	reviewer := llm.NewClient(cfg.JulesBaseURL, cfg.JulesAPIKey, cfg.JulesModel, logger)
	summary := github.NewLogSummaryWriter(logger)

	reviewJob := jobs.NewReviewJob(cfg, prompts, reviewer, store, summary, logger)
	dispatcher := jobs.NewDispatcher(reviewJob, cfg.MaxWorkers, logger)
	deduper := dedupe.NewDeduper(cfg.DeliveryTTL, logger)
	httpServer := server.NewServer(ctx, cfg, dispatcher, deduper, logger)

	logger.Info("Jules Warden application initialized successfully")
	return &App{
		ctx:        ctx,
		cfg:        cfg,
		server:     httpServer,
		logger:     logger,
		dispatcher: dispatcher,
		dbCleanup:  dbCleanup,
	}, nil
}

// newStore selects the persistence backend based on configuration.
func newStore(cfg *config.Config, logger *slog.Logger) (storage.Store, func(), error) {
	if !cfg.Database.Enabled() {
		logger.Info("no database configured, using in-memory store")
		return storage.NewMemoryStore(), func() {}, nil
	}

	dbConn, cleanup, err := db.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("connected to database", "host", cfg.Database.Host, "database", cfg.Database.Database)
	return storage.NewStore(dbConn.DB), cleanup, nil
}

// Start runs the HTTP server.
func (a *App) Start() error {
	a.logger.Info("starting Jules Warden",
		"server_port", a.cfg.ServerPort,
		"max_workers", a.cfg.MaxWorkers)

	err := a.server.Start()
	if err != nil {
		a.logger.Error("failed to start HTTP server", "error", err)
		return err
	}

	return nil
}

// Stop shuts down the application cleanly.
func (a *App) Stop() error {
	a.logger.Info("shutting down Jules Warden services")

	// Stop the HTTP server first to prevent new incoming requests.
	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
		// Continue to stop other components even if the server failed.
	}

	// Stop the job dispatcher, allowing in-flight jobs to finish.
	a.dispatcher.Stop()

	a.logger.Info("closing database connection")
	a.dbCleanup()

	if serverErr != nil {
		a.logger.Error("Jules Warden stopped with errors", "error", serverErr)
		return serverErr
	}

	a.logger.Info("Jules Warden stopped successfully")
	return nil
}
