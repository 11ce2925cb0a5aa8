// Package app provides the top-level application lifecycle. It wires the
// quote store, signal bus, exchange clients, collector, consolidator,
// WebSocket hub, and HTTP server together, starts them, and tears them down
// in reverse order on shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marketfeed/marketfeed/internal/config"
	"golang.org/x/sync/errgroup"
)

// shutdownGrace bounds how long in-flight HTTP requests may run after the
// stop signal arrives.
const shutdownGrace = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the collector, the WebSocket hub, and
// the HTTP server, and blocks until the context is cancelled or one of them
// fails. On return all registered cleanup functions have run.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Int("exchanges", len(a.cfg.Exchanges)),
		slog.Int("symbols", len(a.cfg.Symbols)),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Collector.Run(ctx)
	})

	g.Go(func() error {
		return deps.Hub.Run(ctx)
	})

	g.Go(func() error {
		return deps.Server.Start()
	})

	// Shut the HTTP server down once the context is cancelled so Start
	// returns and the group can drain.
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return deps.Server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
