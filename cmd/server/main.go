package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/sevigo/jules-warden/internal/app"
	"github.com/sevigo/jules-warden/internal/config"
	"github.com/sevigo/jules-warden/internal/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application failed to run", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.NewJSON(cfg.LogLevel, os.Stderr)
	slog.SetDefault(log)

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return application.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")
		return application.Stop()
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("application exited with error: %w", err)
	}
	return nil
}
