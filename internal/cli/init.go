// Package cli provides common CLI initialization utilities shared by
// cmd/fintrack, cmd/fintrack-worker, cmd/recurring-worker and cmd/fintrack-user.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/store"
)

// SetupLogger builds the application logger from LOG_LEVEL and LOG_FORMAT
// and installs it as the slog default.
func SetupLogger(level, format string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(level),
		Format:    format,
		Component: applog.ComponentApp,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile reads .env when present; production sets real env vars instead.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig returns the validated config or exits the process.
func LoadAndValidateConfig() *config.Config {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		// the configured logger does not exist yet
		SetupLogger("info", "text").Error("Configuration validation failed", applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg
}

// Bootstrap runs the steps every binary shares: .env, config, logger.
func Bootstrap() (*config.Config, *applog.Logger) {
	LoadEnvFile()
	cfg := LoadAndValidateConfig()
	return cfg, SetupLogger(cfg.LogLevel, cfg.LogFormat)
}

// OpenBackend opens the configured store backend or exits the process.
func OpenBackend(logger *applog.Logger, cfg *config.Config) store.Backend {
	b, err := backend.Open(backend.FromAppConfig(cfg))
	if err != nil {
		logger.Error("Failed to initialize data backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	logger.Info("Data backend ready", "backend", cfg.DataBackend)
	return b
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. On the
// signal, cleanup runs with a context bounded by timeout, then done closes.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-sigCtx.Done()
		stop()
		logger.Info("Shutdown signal received")

		cleanupCtx, cancelCleanup := context.WithTimeout(context.Background(), timeout)
		defer cancelCleanup()
		if cleanup != nil {
			cleanup(cleanupCtx)
		}
		cancel()

		if errors.Is(cleanupCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Shutdown timeout reached", "timeout", timeout)
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
