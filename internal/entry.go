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
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/verdantlabs/arbor/internal/api"
	"github.com/verdantlabs/arbor/internal/dom"
	"github.com/verdantlabs/arbor/internal/engine"
	"github.com/verdantlabs/arbor/internal/hostcdp"
	"github.com/verdantlabs/arbor/internal/remoteconfig"
	"github.com/verdantlabs/arbor/internal/sse"
	"github.com/verdantlabs/arbor/internal/storage"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.Storage.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Workspace persistence.
	provider, err := storage.NewSQLite(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer provider.Close()

	// Selector overrides, cached through the same provider.
	remote := remoteconfig.New(cfg.Remote.URL, provider, logger)

	// Host page: a live tab over CDP, a static snapshot, or an empty page.
	doc, adapter, err := openHostPage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open host page: %w", err)
	}
	if adapter != nil {
		defer adapter.Close()
	}

	// SSE broker.
	broker := sse.NewBroker(time.Second)
	defer broker.Close()

	publish := broker.PublishSessionEvent
	if adapter != nil {
		publish = func(event string, payload any) {
			adapter.HandleEvent(ctx, event, payload)
			broker.PublishSessionEvent(event, payload)
		}
	}

	session := engine.NewSession(engine.Options{
		Document: doc,
		Provider: provider,
		Remote:   remote,
		Logger:   logger,
		Publish:  publish,
	})
	defer session.Close()

	// Build API router.
	apiRouter := api.NewRouter(session, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Run the reconciliation session.
	g.Go(func() error {
		return session.Run(gCtx)
	})

	// Watch the local selector override file, if configured.
	if cfg.Remote.LocalPath != "" {
		g.Go(func() error {
			return remoteconfig.WatchLocal(gCtx, cfg.Remote.LocalPath, logger, session.ApplyOverrides)
		})
	}

	// Keep the mirror's location in sync with the live tab.
	if adapter != nil {
		g.Go(func() error {
			if err := adapter.EnsureStyles(gCtx); err != nil {
				logger.Warn("style injection failed", slog.String("error", err.Error()))
			}
			adapter.SyncLocation(gCtx, doc, cfg.Host.LocationPoll)
			return nil
		})
	}

	// Start HTTP server.
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

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// openHostPage resolves the configured page source into a DOM mirror and,
// for the CDP mode, a live adapter.
func openHostPage(ctx context.Context, cfg *Config, logger *slog.Logger) (*dom.Document, *hostcdp.Adapter, error) {
	switch {
	case cfg.Host.DevToolsURL != "":
		adapter, err := hostcdp.Attach(ctx, cfg.Host.DevToolsURL, logger)
		if err != nil {
			return nil, nil, err
		}
		doc, err := adapter.Snapshot(ctx)
		if err != nil {
			adapter.Close()
			return nil, nil, err
		}
		logger.Info("Attached to host tab", slog.String("location", doc.Location()))
		return doc, adapter, nil

	case cfg.Host.PageFile != "":
		raw, err := os.ReadFile(cfg.Host.PageFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read page file: %w", err)
		}
		doc, err := dom.Parse(strings.NewReader(string(raw)))
		if err != nil {
			return nil, nil, fmt.Errorf("parse page file: %w", err)
		}
		return doc, nil, nil

	default:
		doc, err := dom.Parse(strings.NewReader("<!DOCTYPE html><html><head></head><body></body></html>"))
		if err != nil {
			return nil, nil, err
		}
		return doc, nil, nil
	}
}
