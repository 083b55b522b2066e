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
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/sitepanel/internal/apperr"
	"github.com/starford/sitepanel/internal/cmsapi"
	"github.com/starford/sitepanel/internal/editor"
	"github.com/starford/sitepanel/internal/mcpserver"
	"github.com/starford/sitepanel/internal/session"
	"github.com/starford/sitepanel/internal/sse"
	"github.com/starford/sitepanel/internal/web"
)

const (
	coalesceWindow  = 250 * time.Millisecond
	janitorInterval = 10 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func newApplication(out io.Writer, opts []Option) (*application, error) {
	app := &application{logOutput: out}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

// openStore returns the configured session store and whether Run owns it.
func (a *application) openStore() (session.Store, bool, error) {
	if a.store != nil {
		return a.store, false, nil
	}
	if a.config.Session.Store == SessionStoreSQLite {
		path := a.config.Session.SQLitePath
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, false, fmt.Errorf("create session store dir: %w", err)
		}
		s, err := session.OpenSQLite(path)
		if err != nil {
			return nil, false, fmt.Errorf("open session store: %w", err)
		}
		return s, true, nil
	}
	return session.NewMemory(), true, nil
}

func (a *application) dialer() web.Dialer {
	cfg := a.config.Upstream
	return func(cookies []*http.Cookie) (*cmsapi.Client, error) {
		return cmsapi.New(cfg.BaseURL, cfg.Timeout, cookies)
	}
}

// router mounts the panel under the health endpoints and common middleware.
func router(h *web.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", healthOK)
	r.Get("/health/ready", healthOK)

	r.Mount("/", web.NewRouter(h))
	return r
}

func healthOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// sweepSessions drops expired sessions and the editors left without one.
func sweepSessions(ctx context.Context, store session.Store, reg *editor.Registry, now time.Time, logger *slog.Logger) {
	removed, err := store.DeleteExpired(ctx, now)
	if err != nil {
		logger.Warn("delete expired sessions failed", slog.String("error", err.Error()))
	}
	closed := reg.Sweep(func(id string) bool {
		_, err := store.Get(ctx, id)
		return !errors.Is(err, apperr.ErrNotFound)
	})
	if removed > 0 || closed > 0 {
		logger.Info("Session sweep finished",
			slog.Int("expired_sessions", removed),
			slog.Int("closed_editors", closed))
	}
}

// Run starts the admin panel HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(os.Stdout, opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.logger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("upstream", cfg.Upstream.BaseURL),
		slog.String("session_store", cfg.Session.Store),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, owned, err := app.openStore()
	if err != nil {
		return err
	}
	if owned {
		defer store.Close()
	}

	// SSE broker.
	broker := sse.NewBroker(coalesceWindow)
	defer broker.Close()

	h, err := web.NewHandler(web.Options{
		Store:        store,
		Broker:       broker,
		Dial:         app.dialer(),
		Secret:       cfg.Session.Secret,
		CookieName:   cfg.Session.CookieName,
		TTL:          cfg.Session.TTL,
		SecureCookie: cfg.Session.SecureCookie,
		MaxUpload:    cfg.Upload.MaxBytes,
		Timeout:      cfg.Upstream.Timeout,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("init web handler: %w", err)
	}
	defer h.Close()

	// No write timeout: event streams stay open.
	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           router(h),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer.RegisterOnShutdown(broker.Close)

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Expire sessions.
	g.Go(func() error {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case now := <-ticker.C:
				sweepSessions(gCtx, store, h.Registry(), now, logger)
			}
		}
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
		stop()

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
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

// ServeMCP signs in to the upstream as username, loads the site document and
// serves the content tools over stdio. Logs go to stderr since stdout
// carries the protocol.
func ServeMCP(ctx context.Context, username, password string, opts ...Option) error {
	app, err := newApplication(os.Stderr, opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger().With(slog.String("username", username))
	slog.SetDefault(logger)

	client, err := app.dialer()(nil)
	if err != nil {
		return fmt.Errorf("init upstream client: %w", err)
	}
	if _, err := client.Login(ctx, username, password); err != nil {
		return fmt.Errorf("upstream login: %w", err)
	}

	ctrl := editor.New(client,
		editor.WithTimeout(cfg.Upstream.Timeout),
		editor.WithLogger(logger),
	)
	defer ctrl.Close()
	if err := ctrl.Load(ctx); err != nil {
		return fmt.Errorf("load content: %w", err)
	}

	logger.Info("MCP server starting", slog.String("upstream", cfg.Upstream.BaseURL))
	return mcpserver.New(ctrl, logger).ServeStdio()
}
