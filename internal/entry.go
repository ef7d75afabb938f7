// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/bibkit/internal/api"
	"github.com/starford/bibkit/internal/index"
	"github.com/starford/bibkit/internal/library"
	"github.com/starford/bibkit/internal/sse"
)

// SSE timing.
const (
	candidatesThrottle = 2 * time.Second
	heartbeat          = 30 * time.Second
)

// Run starts the HTTP server with the given options and serves until ctx is
// cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, c, err := setup(opts)
	if err != nil {
		return err
	}
	cfg, logger := c.cfg, c.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.Any("global", cfg.Bibliography.Global),
		slog.Any("local", cfg.Bibliography.Local),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	local := slices.Concat(cfg.Bibliography.Local, app.local)

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync. A bibliography that fails to load now is retried on
	// the next change.
	if err := syncIndex(ctx, c.library, db, local, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	broker := sse.NewBroker(candidatesThrottle, heartbeat)
	defer broker.Close()

	handler := api.NewHandler(c.library, db, api.Scope{Local: local, Dirs: cfg.Bibliography.Dirs}, broker)
	apiRouter := api.NewRouter(handler, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := db.Count(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Watch bibliography files: refresh the index and notify clients.
	sources := c.library.Sources(local)
	g.Go(func() error {
		return index.Watch(gCtx, c.cache, sources, logger, func(kind, path string) {
			broker.PublishSourceEvent(kind, path)
			if err := syncIndex(gCtx, c.library, db, local, logger); err != nil {
				logger.Warn("sync after change failed",
					slog.String("path", path),
					slog.String("error", err.Error()))
			}
		})
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// SSE streams never finish on their own.
		broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// syncIndex brings the search index up to date with the scope.
func syncIndex(ctx context.Context, lib *library.Service, db index.RecordIndex, local []string, logger *slog.Logger) error {
	snap, err := lib.Snapshot(ctx, local)
	if err != nil {
		return err
	}
	stats, err := index.Sync(db, snap.View, logger)
	if err != nil {
		return err
	}
	logger.Info("index synced",
		slog.Int("records", snap.View.Len()),
		slog.Int("upserted", stats.Upserted),
		slog.Int("deleted", stats.Deleted))
	return nil
}
