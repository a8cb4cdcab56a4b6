// Package cli provides common startup and shutdown plumbing shared by
// cmd/ledger and cmd/ledger-api.
package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"ledger/internal/config"
	"ledger/internal/log"
)

// Bootstrap loads the optional .env file and the configuration, sets up the
// default logger for component and validates the configuration. It exits the
// process when validation fails.
func Bootstrap(component string) (*config.Config, *log.Logger) {
	// Errors are ignored: .env is a local development convenience.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := NewLogger(cfg, component, os.Stdout)
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

func NewLogger(cfg *config.Config, component string, out io.Writer) *log.Logger {
	return log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: component,
		Output:    out,
	})
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Server is the part of *http.Server that Serve drives.
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// Serve runs srv until ctx is cancelled or the listener fails, then shuts
// srv down followed by every onShutdown hook, all bounded by timeout.
func Serve(ctx context.Context, logger *log.Logger, srv Server, timeout time.Duration, onShutdown ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		for _, fn := range onShutdown {
			err = errors.Join(err, fn(shutdownCtx))
		}
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("Shutdown timeout reached")
		}
		return err
	})

	return g.Wait()
}
