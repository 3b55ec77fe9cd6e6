// Package cli provides common initialization used by cmd/costnest and
// cmd/costnest-worker.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"costnest/internal/backend"
	"costnest/internal/config"
	"costnest/internal/log"
)

// SetupLogger builds the application logger for level and installs it as
// the slog default.
func SetupLogger(level string) *log.Logger {
	lvl, err := config.ParseLevel(level)
	logger := log.New(log.Config{Level: lvl, Component: log.ComponentApp, Output: os.Stdout})
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", level)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore creates the configured key-value backend.
func OpenStore(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", bcfg.Type, err)
	}
	return res, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// RunCleanup runs cleanup, giving up after timeout.
func RunCleanup(logger *log.Logger, timeout time.Duration, cleanup func() error) {
	if cleanup == nil {
		return
	}
	done := make(chan error, 1)
	go func() { done <- cleanup() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("Cleanup failed", "error", err)
			return
		}
		logger.Info("Shutdown complete")
	case <-time.After(timeout):
		logger.Warn("Shutdown timeout reached")
	}
}

// Fatal logs err and exits.
func Fatal(logger *log.Logger, msg string, err error) {
	logger.Error(msg, slog.Any("error", err))
	os.Exit(1)
}
