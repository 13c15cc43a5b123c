// CodeArena - browser-based coding practice server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/codearena-dev/codearena/internal/api"
	"github.com/codearena-dev/codearena/internal/assistant"
	"github.com/codearena-dev/codearena/internal/config"
	"github.com/codearena-dev/codearena/internal/editor"
	"github.com/codearena-dev/codearena/internal/identity"
	"github.com/codearena-dev/codearena/internal/middleware"
	"github.com/codearena-dev/codearena/internal/problems"
	"github.com/codearena-dev/codearena/internal/sandbox"
	"github.com/codearena-dev/codearena/internal/store"
	"github.com/codearena-dev/codearena/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	if err := problems.Seed(context.Background(), repo, cfg.ProblemsDir); err != nil {
		slog.Error("Failed to seed problem catalog", "error", err)
		os.Exit(1)
	}

	// Code execution backend.
	var runner sandbox.Runner
	switch cfg.Sandbox.Runner {
	case "docker":
		dockerRunner, err := sandbox.NewDockerRunner(cfg.Sandbox)
		if err != nil {
			slog.Error("Failed to initialize docker runner", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := dockerRunner.Close(); closeErr != nil {
				slog.Error("Failed to close docker runner", "error", closeErr)
			}
		}()
		runner = dockerRunner
		slog.Info("Docker runner initialized")
	default:
		runner = sandbox.NewRemoteRunner(cfg.Sandbox)
		slog.Info("Remote runner initialized", "base_url", cfg.Sandbox.BaseURL)
	}

	// Chat panel services.
	conns := editor.NewConnManager()
	sessions := assistant.NewManager(repo, conns)

	var completionClient assistant.Completer
	if cfg.AIEnabled() {
		completionClient = assistant.NewClient(cfg.Completion)
		slog.Info("Assistant enabled", "base_url", cfg.Completion.BaseURL)
	} else {
		slog.Info("Assistant disabled (COMPLETION_API_KEY not set)")
	}

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, runner, cfg)
	healthHandler := api.NewHealthHandler(repo)
	assistantHandler := assistant.NewHandler(sessions, completionClient, cfg)
	syncHandler := assistant.NewSyncHandler(sessions, conns, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	baseHandler.RegisterRoutes(r)
	assistantHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/editor", syncHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Completion requests carry no local timeout, so the server write
	// timeout stays off; slow endpoints surface to the client as-is.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions.StartCleanupWorker(ctx, cfg.SessionTTL)
	slog.Info("Session cleanup worker started", "session_ttl", cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
