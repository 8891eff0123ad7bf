// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nesttask/client/internal/offline"
	"github.com/nesttask/client/internal/platform/apperr"
	"github.com/nesttask/client/internal/platform/constants"
	"github.com/nesttask/client/internal/platform/validate"
	"github.com/nesttask/client/internal/remote"
	"github.com/nesttask/client/pkg/uuidv7"
)

// Engine is the task synchronization engine.
//
// # Concurrency
//
// Safe for concurrent use. The mirror is guarded by a mutex; fetches run
// outside the lock and commit their result only when still current. Each
// LoadTasks call takes a new generation number, so a load that was
// superseded (by a newer load, a rebind, or a flip to offline) discards
// its result instead of clobbering newer state.
type Engine struct {
	api      remote.TaskAPI
	realtime remote.Realtime
	detector *offline.Detector
	log      *slog.Logger

	mu          sync.Mutex
	tasks       []Task
	loading     bool
	generation  uint64
	userID      string
	sectionID   string
	unsubscribe func()
}

// NewEngine constructs the engine. Bind attaches a user scope before any
// loading happens.
func NewEngine(api remote.TaskAPI, realtime remote.Realtime, detector *offline.Detector, logger *slog.Logger) *Engine {
	engine := &Engine{
		api:      api,
		realtime: realtime,
		detector: detector,
		log:      logger,
	}

	// Losing connectivity empties the mirror on the spot. Stale tasks are
	// never shown while offline, even without a load in flight.
	detector.Subscribe(func(state offline.State) {
		if state != offline.Offline {
			return
		}
		engine.mu.Lock()
		engine.tasks = nil
		engine.generation++
		engine.loading = false
		engine.mu.Unlock()
	})

	return engine
}

// # Scope Lifecycle

// Activate binds the engine to a signed-in user and performs the initial
// load, so the mirror is populated right after sign-in instead of waiting
// for a realtime or visibility trigger. The sign-in wiring calls this.
func (e *Engine) Activate(ctx context.Context, userID, sectionID string) error {
	if err := e.Bind(ctx, userID, sectionID); err != nil {
		return err
	}
	_, err := e.LoadTasks(ctx)
	return err
}

// Bind scopes the engine to a signed-in user and subscribes to task change
// events for that user. A previous binding is released first.
func (e *Engine) Bind(ctx context.Context, userID, sectionID string) error {
	e.Reset()

	e.mu.Lock()
	e.userID = userID
	e.sectionID = sectionID
	e.mu.Unlock()

	cancel, err := e.realtime.SubscribeTasks(ctx, userID, func(event remote.ChangeEvent) {
		if event.Table != "tasks" || event.OwnerID != userID {
			return
		}
		// The event carries identity only; reload for the data.
		reloadCtx, done := context.WithTimeout(context.Background(), constants.RemoteRequestTimeout)
		defer done()
		if _, err := e.LoadTasks(reloadCtx); err != nil {
			e.log.Warn("realtime_reload_failed", slog.Any("error", err))
		}
	})
	if err != nil {
		// The engine still works without live invalidation; visibility
		// regains and explicit loads keep the mirror fresh.
		e.log.Warn("realtime_subscribe_failed", slog.Any("error", err))
		return nil
	}

	e.mu.Lock()
	e.unsubscribe = cancel
	e.mu.Unlock()
	return nil
}

// Reset releases the user scope, drops the mirror, and invalidates any
// in-flight load. Called on sign-out.
func (e *Engine) Reset() {
	e.mu.Lock()
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.userID = ""
	e.sectionID = ""
	e.tasks = nil
	e.generation++
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// # Accessors

// Tasks returns a snapshot of the mirrored collection.
func (e *Engine) Tasks() []Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Task, len(e.tasks))
	copy(out, e.tasks)
	return out
}

// Loading reports whether a load is in flight.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// # Loading

/*
LoadTasks fetches the full task set scoped to the bound user and section.

Description: Offline, the mirror is emptied and OFFLINE_MODE returned
immediately: the empty collection is the offline contract, stale data is
never shown. Online, the fetch retries transient failures with exponential
backoff (doubling from the base, capped at the ceiling) up to the attempt
limit; retrying stops the moment connectivity is lost. The result commits
to the mirror only when the load is still the current generation and the
detector still reports online.

Parameters:
  - ctx: context.Context

Returns:
  - []Task: The fetched set, or empty when offline.
  - err: OFFLINE_MODE, SYNC_RETRY_EXHAUSTED, or ctx cancellation.
*/
func (e *Engine) LoadTasks(ctx context.Context) ([]Task, error) {
	e.mu.Lock()
	e.generation++
	generation := e.generation
	userID, sectionID := e.userID, e.sectionID
	e.loading = true
	e.mu.Unlock()

	// The loading flag drops on every exit path, but only if no newer
	// load has taken over the flag in the meantime.
	defer func() {
		e.mu.Lock()
		if e.generation == generation {
			e.loading = false
		}
		e.mu.Unlock()
	}()

	if e.detector.Offline() {
		e.commitEmpty(generation)
		return nil, apperr.OfflineMode()
	}

	records, err := e.fetchWithRetry(ctx, userID, sectionID)
	if err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(records))
	for i := range records {
		tasks = append(tasks, fromRecord(&records[i]))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != generation {
		// Superseded while in flight; a newer load or a reset owns the
		// mirror now.
		return tasks, nil
	}
	if e.detector.Offline() {
		e.tasks = nil
		return nil, apperr.OfflineMode()
	}
	e.tasks = tasks
	return tasks, nil
}

// fetchWithRetry runs the remote list call with the bounded backoff policy.
// Retrying is online-only: a connectivity loss aborts immediately.
func (e *Engine) fetchWithRetry(ctx context.Context, userID, sectionID string) ([]remote.TaskRecord, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		records, err := e.api.ListTasks(ctx, userID, sectionID)
		if err == nil {
			return records, nil
		}
		lastErr = err

		if attempt >= constants.SyncRetryAttempts {
			break
		}
		if e.detector.Offline() {
			return nil, apperr.OfflineMode()
		}

		delay := backoffDelay(attempt)
		e.log.Warn("task_fetch_retry",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if e.detector.Offline() {
			return nil, apperr.OfflineMode()
		}
	}

	return nil, apperr.SyncRetryExhausted(constants.SyncRetryAttempts, lastErr)
}

// backoffDelay doubles from the base per attempt, capped at the ceiling.
func backoffDelay(attempt int) time.Duration {
	delay := constants.SyncRetryBase << attempt
	if delay > constants.SyncRetryCeiling {
		delay = constants.SyncRetryCeiling
	}
	return delay
}

func (e *Engine) commitEmpty(generation uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation == generation {
		e.tasks = nil
	}
}

// # Mutations

/*
CreateTask stores a new task remotely and mirrors the stored row.

Description: Offline, the call fails immediately with OFFLINE_OPERATION and
nothing is queued or mutated locally. Online, the row is inserted with a
client-generated time-sortable ID and the server's response, not the
input, is appended to the mirror.

Parameters:
  - ctx: context.Context
  - draft: Task (Name required; OwnerID/SectionID default to the scope)

Returns:
  - *Task: The stored task as the server returned it.
  - err: Validation failure, OFFLINE_OPERATION, or the remote error.
*/
func (e *Engine) CreateTask(ctx context.Context, draft Task) (*Task, error) {
	err := validate.New().
		Required("name", draft.Name).
		Err()
	if err != nil {
		return nil, err
	}
	if e.detector.Offline() {
		return nil, apperr.OfflineOperation("create task")
	}

	e.mu.Lock()
	if draft.OwnerID == "" {
		draft.OwnerID = e.userID
	}
	if draft.SectionID == "" {
		draft.SectionID = e.sectionID
	}
	e.mu.Unlock()

	if draft.ID == "" {
		draft.ID = uuidv7.New()
	}
	if draft.Status == "" {
		draft.Status = StatusPending
	}

	stored, err := e.api.InsertTask(ctx, toRecord(draft))
	if err != nil {
		return nil, err
	}

	task := fromRecord(stored)
	e.mu.Lock()
	e.tasks = append(e.tasks, task)
	e.mu.Unlock()
	return &task, nil
}

// UpdateTask applies sparse changes remotely and mirrors the stored row.
// Offline, it fails immediately with OFFLINE_OPERATION.
func (e *Engine) UpdateTask(ctx context.Context, taskID string, changes remote.TaskChanges) (*Task, error) {
	if e.detector.Offline() {
		return nil, apperr.OfflineOperation("update task")
	}

	stored, err := e.api.UpdateTask(ctx, taskID, changes)
	if err != nil {
		return nil, err
	}

	task := fromRecord(stored)
	e.mu.Lock()
	for i := range e.tasks {
		if e.tasks[i].ID == taskID {
			e.tasks[i] = task
			break
		}
	}
	e.mu.Unlock()
	return &task, nil
}

// DeleteTask removes the task remotely and from the mirror. Offline, it
// fails immediately with OFFLINE_OPERATION.
func (e *Engine) DeleteTask(ctx context.Context, taskID string) error {
	if e.detector.Offline() {
		return apperr.OfflineOperation("delete task")
	}

	if err := e.api.DeleteTask(ctx, taskID); err != nil {
		return err
	}

	e.mu.Lock()
	for i := range e.tasks {
		if e.tasks[i].ID == taskID {
			e.tasks = append(e.tasks[:i], e.tasks[i+1:]...)
			break
		}
	}
	e.mu.Unlock()
	return nil
}

// # Reload Triggers

// OnVisible reloads the mirror when the app regains visibility. A flip
// from offline back to online deliberately does not reload on its own;
// the next visibility regain or explicit load picks the data up.
func (e *Engine) OnVisible(ctx context.Context) {
	e.mu.Lock()
	bound := e.userID != ""
	e.mu.Unlock()
	if !bound {
		return
	}
	if _, err := e.LoadTasks(ctx); err != nil {
		e.log.Warn("visibility_reload_failed", slog.Any("error", err))
	}
}
