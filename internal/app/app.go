// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

/*
Package app wires the client core together.

It is the composition root: every component is constructed here with
explicit dependency injection and torn down in reverse order by Dispose.
No package-level singletons exist; an [App] value is the whole client.

Architecture:

  - New: Connects the stores, runs migrations, wires the cache
    coordinator and its worker, the session manager, the recovery
    monitor, and the task engine.
  - Visibility hub: Embedding UIs call NotifyVisible when the app
    regains focus; the hub fans the signal to the recovery monitor,
    the task engine, and any extra subscribers.
  - Dispose: Stops background goroutines and closes connections. Safe
    to call once; the App is unusable afterwards.
*/
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nesttask/client/internal/cache"
	"github.com/nesttask/client/internal/offline"
	"github.com/nesttask/client/internal/platform/config"
	"github.com/nesttask/client/internal/platform/constants"
	"github.com/nesttask/client/internal/platform/migration"
	pgstore "github.com/nesttask/client/internal/platform/postgres"
	redisstore "github.com/nesttask/client/internal/platform/redis"
	"github.com/nesttask/client/internal/platform/sec"
	"github.com/nesttask/client/internal/remote"
	"github.com/nesttask/client/internal/session"
	"github.com/nesttask/client/internal/task"
	"github.com/nesttask/client/internal/worker"
)

// Options carries the embedding host's callbacks.
type Options struct {
	// Redirect is invoked when the recovery monitor invalidates a
	// privilege-gated view. Nil disables redirection.
	Redirect func()
}

// App is the assembled client core.
type App struct {
	Config   *config.Config
	Log      *slog.Logger
	Redis    *goredis.Client
	Pool     *pgxpool.Pool
	Remote   *remote.Client
	Cache    *cache.Coordinator
	Worker   *worker.Worker
	Detector *offline.Detector
	Sessions *session.Manager
	Recovery *session.RecoveryMonitor
	Tasks    *task.Engine

	backgroundCancel context.CancelFunc

	visMu          sync.Mutex
	visSubscribers []func(context.Context)

	disposeOnce sync.Once
}

/*
New assembles the client core.

Description: Connects Redis and PostgreSQL, runs the cache schema
migrations, and wires every component bottom-up: sealer, cache backends,
coordinator, worker, remote client, offline detector with its background
probe, session manager, recovery monitor, and task engine. Background
goroutines (worker loop, reachability probe) start here and stop in
Dispose.

Parameters:
  - ctx: context.Context, bounds the connection attempts
  - cfg: *config.Config
  - logger: *slog.Logger
  - opts: Options

Returns:
  - *App: The assembled core.
  - err: Connection, migration, or sealing-key failure.
*/
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {

	// ── 1. Stores ──────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(ctx, cfg.RedisURL, logger)
	if err != nil {
		return nil, fmt.Errorf("app_redis_connect_failed: %w", err)
	}

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("app_postgres_connect_failed: %w", err)
	}

	if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, logger); err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("app_migration_failed: %w", err)
	}

	// ── 2. Cache layer ─────────────────────────────────────────────────
	sealer, err := sec.NewSealer(cfg.CacheSecret)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("app_sealer_init_failed: %w", err)
	}

	coordinator := cache.NewCoordinator(
		cache.NewRedisBackend(rdb),
		cache.NewPostgresBackend(pool),
		sealer,
		logger,
	)

	janitor := worker.New(coordinator, logger)
	coordinator.AttachWorker(janitor)

	// ── 3. Remote service ──────────────────────────────────────────────
	client := remote.NewClient(cfg.RemoteURL, cfg.RemoteAPIKey, logger)
	realtime := remote.NewRedisRealtime(rdb, logger)

	// ── 4. Connectivity ────────────────────────────────────────────────
	detector := offline.NewDetector(logger)

	// ── 5. Session & tasks ─────────────────────────────────────────────
	sessions := session.NewManager(client, client, coordinator, client, cfg.OverrideEmail, logger)
	recovery := session.NewRecoveryMonitor(sessions, client, opts.Redirect, logger)
	tasks := task.NewEngine(client, realtime, detector, logger)

	application := &App{
		Config:   cfg,
		Log:      logger,
		Redis:    rdb,
		Pool:     pool,
		Remote:   client,
		Cache:    coordinator,
		Worker:   janitor,
		Detector: detector,
		Sessions: sessions,
		Recovery: recovery,
		Tasks:    tasks,
	}

	// The task engine follows the session: activated (bound plus initial
	// load) on sign-in, reset on sign-out.
	sessions.Subscribe(func(event session.Event, _ *session.Session) {
		switch event {
		case session.EventSignedIn:
			user := sessions.CurrentUser()
			if user == nil {
				return
			}
			activateCtx, done := context.WithTimeout(context.Background(), constants.RemoteRequestTimeout)
			defer done()
			if err := tasks.Activate(activateCtx, user.ID, user.SectionID); err != nil {
				logger.Warn("task_engine_activate_failed", slog.Any("error", err))
			}
		case session.EventSignedOut:
			tasks.Reset()
		}
	})

	application.OnVisible(func(ctx context.Context) { recovery.OnVisible(ctx) })
	application.OnVisible(func(ctx context.Context) { tasks.OnVisible(ctx) })

	// ── 6. Background goroutines ───────────────────────────────────────
	backgroundCtx, cancel := context.WithCancel(context.Background())
	application.backgroundCancel = cancel
	go janitor.Run(backgroundCtx)
	go detector.Probe(backgroundCtx, client, constants.OfflineProbeInterval)

	logger.Info("app_assembled", slog.String("environment", cfg.Environment))
	return application, nil
}

// Initialize restores a persisted session, if any, and starts the recovery
// monitor. Called once after New.
func (a *App) Initialize(ctx context.Context) (*session.User, error) {
	user, err := a.Sessions.Initialize(ctx)
	if err != nil {
		return nil, err
	}
	a.Recovery.Start(ctx)
	return user, nil
}

// # Visibility Hub

// OnVisible registers a callback for visibility-regain signals.
func (a *App) OnVisible(fn func(context.Context)) {
	a.visMu.Lock()
	defer a.visMu.Unlock()
	a.visSubscribers = append(a.visSubscribers, fn)
}

// NotifyVisible fans the visibility-regain signal out to subscribers. The
// embedding UI calls this when the app returns to the foreground.
func (a *App) NotifyVisible(ctx context.Context) {
	a.visMu.Lock()
	subscribers := make([]func(context.Context), len(a.visSubscribers))
	copy(subscribers, a.visSubscribers)
	a.visMu.Unlock()

	for _, fn := range subscribers {
		fn(ctx)
	}
}

// Dispose stops background goroutines and closes connections, in reverse
// construction order. Idempotent.
func (a *App) Dispose() {
	a.disposeOnce.Do(func() {
		a.Log.Info("app_disposing")

		if a.backgroundCancel != nil {
			a.backgroundCancel()
		}
		a.Sessions.Close()
		a.Tasks.Reset()

		a.Pool.Close()
		if err := a.Redis.Close(); err != nil {
			a.Log.Error("redis_close_failed", slog.Any("error", err))
		}
	})
}
