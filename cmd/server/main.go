package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/beliefmarket/internal/api"
	"github.com/Harshitk-cp/beliefmarket/internal/buildconfig"
	"github.com/Harshitk-cp/beliefmarket/internal/config"
	"github.com/Harshitk-cp/beliefmarket/internal/logging"
	"github.com/Harshitk-cp/beliefmarket/internal/metrics"
	"github.com/Harshitk-cp/beliefmarket/internal/store"
	"github.com/Harshitk-cp/beliefmarket/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	if err := config.Load(); err != nil {
		// Logger level comes from config, so this one uses the default.
		logging.Must("").Fatal("failed to load config", zap.Error(err))
	}

	logger := logging.Must(config.LogLevel())
	defer func() { _ = logger.Sync() }()

	dbURL := config.DatabaseURL()
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, "beliefmarket", config.OTelExporterEndpoint())
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}
	logger.Info("connected to database")

	if config.MigrationsOnStart() {
		if err := store.Migrate(ctx, pool); err != nil {
			logger.Fatal("failed to migrate schema", zap.Error(err))
		}
		logger.Info("schema migrated")
	}

	app := api.NewApp(pool, metrics.New(), logger)

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr), zap.String("version", buildconfig.String()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped")
}
