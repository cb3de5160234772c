package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cascade-http/cascade/internal/config"
	"github.com/cascade-http/cascade/internal/journal"
	"github.com/cascade-http/cascade/internal/journal/postgres"
	"github.com/cascade-http/cascade/internal/journal/sqlite"
	"github.com/cascade-http/cascade/internal/respond"
	"github.com/cascade-http/cascade/internal/server"
	"github.com/cascade-http/cascade/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("cascade", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfgPath := os.Getenv("CASCADE_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	timeout, err := cfg.Server.Timeout()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	store, err := openStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open journal store: %v", err)
	}
	defer store.Close()

	opts := []server.Option{
		server.WithJournal(store),
		server.WithExposeStack(cfg.Debug.ExposeStack),
	}
	if cfg.Templates.Dir != "" {
		tmpl, err := respond.LoadTemplates(cfg.Templates.Dir, cfg.Templates.Pattern)
		if err != nil {
			log.Fatalf("Failed to load templates: %v", err)
		}
		opts = append(opts, server.WithRenderer(tmpl))
	}

	srv := server.New(cfg.Server.Port, timeout, logger, cfg.Metrics.Enabled, opts...)
	registerRoutes(srv, store, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
		return
	case <-sigCh:
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func openStore(cfg config.StorageConfig) (journal.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.New(cfg.SQLite.Path)
	case "postgres":
		return postgres.New(context.Background(), cfg.Postgres.DSN)
	default:
		return journal.NewMemoryStore(), nil
	}
}
