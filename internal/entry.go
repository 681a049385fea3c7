// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/heritage/internal/catalog"
	"github.com/starford/heritage/internal/mcpserver"
	"github.com/starford/heritage/internal/preview"
	"github.com/starford/heritage/internal/sse"
	"github.com/starford/heritage/internal/web"
)

func setup(opts []Option) (*application, *slog.Logger, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	logger := newLogger(app.logOutput, app.config.App.LogLevel)
	slog.SetDefault(logger)
	return app, logger, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// Run starts the web application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("content_source", cfg.Content.Source),
		slog.String("narration_provider", cfg.Narration.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	cnt, err := openContent(cfg, logger)
	if err != nil {
		return err
	}
	defer cnt.close()

	synth, err := newSynthesizer(&cfg.Narration)
	if err != nil {
		return fmt.Errorf("init narration: %w", err)
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)

	g, gCtx := errgroup.WithContext(ctx)

	popts := previewOptions(cfg, cnt.source, synth, logger)
	popts.Notifiers = func(id string) preview.Notifier { return broker.Notifier(id) }
	popts.OnClose = broker.Forget
	registry := preview.NewRegistry(gCtx, popts)

	webRouter, err := web.NewRouter(web.Options{
		Registry:    registry,
		Broker:      broker,
		Sync:        cnt.sync(logger),
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		RenderWait:  cfg.Preview.RenderWait,
	})
	if err != nil {
		return fmt.Errorf("init web: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", readyHandler(cnt.ready))

	r.Mount("/", webRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// Keep the catalog live and tell open pages about changes.
	if cnt.db != nil {
		g.Go(func() error {
			if err := catalog.Watch(gCtx, cnt.db, cnt.store, cfg.Content.Dir, logger, broker.PublishContentChange); err != nil {
				logger.Error("catalog watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Sweep idle preview activations.
	g.Go(func() error {
		return registry.Run(gCtx, cfg.Preview.SweepInterval)
	})

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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Ends open event streams so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the server has been asked to stop.
var errShutdown = errors.New("shutdown")

func readyHandler(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := check(ctx); err != nil {
			slog.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// RunMCP serves the story tools over MCP on stdin/stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	cnt, err := openContent(cfg, logger)
	if err != nil {
		return err
	}
	defer cnt.close()

	synth, err := newSynthesizer(&cfg.Narration)
	if err != nil {
		return fmt.Errorf("init narration: %w", err)
	}

	srv := mcpserver.New(previewOptions(cfg, cnt.source, synth, logger))
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}
