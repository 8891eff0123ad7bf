// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

// Command nesttaskd runs the NestTask client core as a local daemon.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Assemble the client core (stores, migrations, session, tasks).
//  4. Restore a persisted session, if any.
//  5. Start the localhost status server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
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

	"github.com/nesttask/client/internal/api"
	"github.com/nesttask/client/internal/app"
	"github.com/nesttask/client/internal/platform/config"
	"github.com/nesttask/client/internal/platform/constants"
	pgstore "github.com/nesttask/client/internal/platform/postgres"
	redisstore "github.com/nesttask/client/internal/platform/redis"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[NestTask] client_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("status_port", cfg.StatusPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. Core Assembly ──────────────────────────────────────────────────
	core, err := app.New(startupCtx, cfg, log, app.Options{})
	must(log, err, "assemble client core")
	defer core.Dispose()

	// ── 4. Session Restore ────────────────────────────────────────────────
	user, err := core.Initialize(startupCtx)
	if err != nil {
		// A failed restore is not fatal for the daemon; it runs signed out.
		log.Warn("session_restore_failed", slog.Any("error", err))
	}
	if user != nil {
		log.Info("session_restored",
			slog.String("user_id", user.ID),
			slog.String("role", string(user.Role)),
		)
	}

	// ── 5. Status Server ──────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), core.Pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), core.Redis)
		},
	}, log)

	server := api.NewServer(cfg.StatusPort, log, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Status:    api.NewStatusHandler(core),
	})

	// ── 6. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("status server error", slog.Any("error", err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("status server shutdown error", slog.Any("error", err))
	}

	log.Info("[NestTask] client_stopped")
}

// must aborts startup with a structured log entry when err is non-nil.
func must(log *slog.Logger, err error, step string) {
	if err != nil {
		log.Error("startup_failed",
			slog.String("step", step),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
