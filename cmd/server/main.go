// Package main provides the API server entry point for the deal scanner
// service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deal-scanner/internal/api"
	"github.com/deal-scanner/internal/automation"
	"github.com/deal-scanner/internal/config"
	"github.com/deal-scanner/internal/engine"
	"github.com/deal-scanner/internal/logging"
	"github.com/deal-scanner/internal/models"
	"github.com/deal-scanner/internal/registry"
	"github.com/deal-scanner/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	ctx := context.Background()

	// Select the durable store backend. An unreachable backend is not
	// fatal: the registry starts degraded with automation disabled and
	// the store clients reconnect once the backend comes back.
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open durable store")
	}
	defer closeStore()

	// Search registry loads persisted searches and settings
	searchRegistry := registry.New(ctx, store, logger)

	// Browser automation bridge
	driver := automation.NewBridgeDriver(cfg.Automation.BridgeURL)
	notifier := automation.NewBridgeNotifier(driver, logger)
	sensor := engine.NewPingSensor()

	// Optional ClickHouse scan archive
	var archiver engine.Archiver
	if cfg.ClickHouse.Enabled {
		clickhouse, err := storage.NewClickHouseDB(&cfg.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to ClickHouse, scan archiving disabled")
		} else {
			defer clickhouse.Close()
			archive := storage.NewScanArchive(clickhouse)
			if err := archive.EnsureSchema(ctx); err != nil {
				logger.WithError(err).Warn("Failed to ensure ClickHouse schema, scan archiving disabled")
			} else {
				archiver = archive
				logger.Info("ClickHouse scan archiving enabled")
			}
		}
	}

	// Placeholder valuation until a real pricing model is plugged in: a
	// candidate's score is its listed price.
	scorer := engine.ScoreFunc(func(c models.Candidate) float64 {
		return c.Price
	})

	eng := engine.New(ctx, cfg.Engine, searchRegistry, sensor, driver, store, logger, engine.Options{
		Scorer:   scorer,
		Notifier: notifier,
		Archiver: archiver,
	})
	searchRegistry.AttachScheduler(eng.Scheduler())
	eng.Start()

	// HTTP API
	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}
	server := api.NewServer(serverConfig, searchRegistry, eng, sensor, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.WithError(err).Error("API server failed")
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	eng.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shut down API server cleanly")
	}

	logger.Info("Deal scanner stopped")
}

// openStore connects the configured durable store backend. A backend
// that is down at startup is reported but still returned, since the
// redis and pgx clients dial lazily and recover on their own; only a
// misconfiguration is an error.
func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (storage.DurableStore, func(), error) {
	switch cfg.Store.Backend {
	case "redis":
		store := storage.NewRedisStore(&cfg.Store.Redis)
		if err := store.Ping(ctx); err != nil {
			logger.WithError(err).Warn("Redis unreachable, starting degraded")
		} else {
			logger.Info("Connected to Redis durable store")
		}
		return store, func() { store.Close() }, nil

	case "postgres":
		db, err := storage.NewPostgresDB(&cfg.Store.Postgres)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(ctx); err != nil {
			logger.WithError(err).Warn("Postgres unreachable, starting degraded")
		} else {
			logger.Info("Connected to Postgres durable store")
		}
		return storage.NewPostgresStore(db), func() { db.Close() }, nil

	case "memory":
		logger.Warn("Using in-memory store, state will not survive restarts")
		return storage.NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}
