// Package main is the entrypoint for the ReelForge API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rudrakspatel/reelforge/internal/api"
	"github.com/rudrakspatel/reelforge/internal/api/handler"
	mw "github.com/rudrakspatel/reelforge/internal/api/middleware"
	"github.com/rudrakspatel/reelforge/internal/api/response"
	"github.com/rudrakspatel/reelforge/internal/cache"
	"github.com/rudrakspatel/reelforge/internal/compute"
	"github.com/rudrakspatel/reelforge/internal/config"
	"github.com/rudrakspatel/reelforge/internal/metrics"
	"github.com/rudrakspatel/reelforge/internal/readiness"
	"github.com/rudrakspatel/reelforge/internal/reel"
	"github.com/rudrakspatel/reelforge/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "compute_mode", cfg.Compute.Mode, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create compute client and health gate
	computeClient, err := compute.NewClient(cfg.Compute)
	if err != nil {
		return fmt.Errorf("create compute client: %w", err)
	}
	gate := compute.NewGate(computeClient, cfg.Compute.HealthTimeout)
	slog.Info("compute client initialized", "client", computeClient.Name())

	// 6. Create store and reel service
	pgStore := store.NewPostgresStore(pool)

	reelSvc := reel.NewService(pgStore, redisCache, computeClient, reel.Options{
		StepTimeout:    cfg.Compute.StepTimeout,
		StatusCacheTTL: cfg.Jobs.StatusCacheTTL,
	})

	metrics.Register()

	// 7. Media readiness probes
	probeOpts := readiness.Options{
		MaxAttempts:    cfg.Media.MaxAttempts,
		InitialDelay:   cfg.Media.InitialDelay,
		MaxDelay:       cfg.Media.MaxDelay,
		AttemptTimeout: cfg.Media.AttemptTimeout,
	}
	mediaProbes := handler.MediaProbes{
		Thumbnail: readiness.NewThumbnailProbe(cfg.Media.CDNBaseURL, probeOpts),
		Playback:  readiness.NewPlaybackProbe(cfg.Media.CDNBaseURL, probeOpts),
	}

	// 8. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 120)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:        healthHandler(pgStore, redisCache),
		StartReelHandler:     handler.NewStartReelHandler(reelSvc, gate, pgStore),
		LatestReelHandler:    handler.NewLatestReelHandler(pgStore),
		PollJobHandler:       handler.NewPollJobHandler(pgStore),
		JobStatusHandler:     handler.NewJobStatusHandler(pgStore, redisCache),
		CancelJobHandler:     handler.NewCancelJobHandler(pgStore, reelSvc),
		ComputeHealthHandler: handler.NewComputeHealthHandler(gate),
		MediaReadyHandler:    handler.NewMediaReadyHandler(mediaProbes),
		CreateKeyHandler:     handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:      handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler:     handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout. In-flight reel jobs keep running until
	// their next step write; restarts leave them resumable via re-poll.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
