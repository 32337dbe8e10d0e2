// Package cli provides common CLI initialization utilities shared by
// cmd/trackme, cmd/reset-worker and cmd/sheets-mirror.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"trackme/internal/backend"
	"trackme/internal/config"
	applog "trackme/internal/log"
	"trackme/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger at level and installs it as the
// slog default.
func SetupLogger(level, component string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(level),
		Component: component,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore creates the configured document store.
func OpenStore(ctx context.Context, logger *applog.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid backend configuration: %w", err)
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bcfg)
}

// MustOpenStore is OpenStore for processes that cannot run without a store.
// It exits the process on failure.
func MustOpenStore(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.BackendResult {
	res, err := OpenStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize store", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return res
}

// OpenStoreOrUnavailable is OpenStore for the web server. When the store
// cannot be opened it logs a warning and returns a result with a nil Store,
// so reads come back empty and writes report the service as unavailable.
func OpenStoreOrUnavailable(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.BackendResult {
	res, err := OpenStore(ctx, logger, cfg)
	if err != nil {
		logger.Warn("Store unavailable, starting without persistence", applog.FieldError, err, "backend", cfg.DataBackend)
		return &backend.BackendResult{Cleanup: func() error { return nil }}
	}
	return res
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// The returned context is cancelled once a signal arrives and cleanup has
// run; done closes when shutdown has finished or timed out.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()
		cancel()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-finished:
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}

// ResetTracker returns the Redis tracker when REDIS_URL is set and
// reachable, and the in-process tracker otherwise. The close func is never
// nil.
func ResetTracker(ctx context.Context, logger *applog.Logger, cfg *config.Config) (services.ResetTracker, func()) {
	if cfg.RedisURL == "" {
		logger.Info("Using in-process reset tracker")
		return services.NewMemoryResetTracker(), func() {}
	}
	client, err := services.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-process reset tracker", applog.FieldError, err)
		return services.NewMemoryResetTracker(), func() {}
	}
	logger.Info("Using Redis reset tracker")
	return services.NewRedisResetTracker(client, "", 0), func() { _ = client.Close() }
}
