// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nesttask/client/internal/platform/apperr"
	"github.com/nesttask/client/internal/platform/constants"
	"github.com/nesttask/client/internal/platform/sec"
	"github.com/nesttask/client/internal/worker"
)

// # Session Payload

// SessionRecord is the cached shape of an authenticated session. It carries
// everything needed to restore the session without a remote round trip.
type SessionRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
}

// # Coordinator

// Coordinator fans session and route-asset operations out to the primary and
// secondary cache backends and drives the cache worker on auth transitions.
//
// # Redundancy Policy
//
// The primary backend is authoritative: its write failure fails the
// operation. The secondary is best-effort; its failures are logged and
// swallowed so a degraded store never blocks login or logout.
//
// # Concurrency
//
// Safe for concurrent use. The coordinator holds no mutable state of its
// own beyond the worker handle, which is set once during composition.
type Coordinator struct {
	primary   Backend
	secondary Backend
	sealer    *sec.Sealer
	janitor   *worker.Worker
	log       *slog.Logger
}

// NewCoordinator wires the two backends and the sealer together. The worker
// handle is attached separately because the worker itself is constructed
// over this coordinator.
func NewCoordinator(primary, secondary Backend, sealer *sec.Sealer, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		primary:   primary,
		secondary: secondary,
		sealer:    sealer,
		log:       logger,
	}
}

// AttachWorker hands the coordinator its janitor. Called once by the
// composition root, before any auth transition can occur.
func (c *Coordinator) AttachWorker(janitor *worker.Worker) {
	c.janitor = janitor
}

// # Session Operations

/*
WriteSession seals and persists the session record under both backends.

Description: The payload is serialized, sealed with the AEAD, and written to
the primary store; the same sealed bytes are then mirrored to the secondary.
The sealed form means neither store ever holds plaintext tokens.

Parameters:
  - ctx: context.Context
  - record: SessionRecord

Returns:
  - err: Sealing failure or a primary-store write failure. Secondary
    failures are logged only.
*/
func (c *Coordinator) WriteSession(ctx context.Context, record *SessionRecord) error {
	plaintext, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("cache_session_encode_failed: %w", err)
	}

	sealed, err := c.sealer.Seal(plaintext)
	if err != nil {
		return fmt.Errorf("cache_session_seal_failed: %w", err)
	}

	entry := Entry{Key: constants.CacheKeySession, Value: sealed, WrittenAt: time.Now()}
	return c.fanOutWrite(ctx, entry)
}

// ReadSession restores the cached session record, preferring the primary
// backend and falling back to the secondary when the primary misses or
// fails. A miss on both reads as [apperr.NotFound].
func (c *Coordinator) ReadSession(ctx context.Context) (*SessionRecord, error) {
	entry, err := c.readWithFallback(ctx, constants.CacheKeySession)
	if err != nil {
		return nil, err
	}

	plaintext, err := c.sealer.Open(entry.Value)
	if err != nil {
		// An unopenable payload is as good as absent: the secret rotated
		// or the entry is corrupt. Treat it as a miss so callers fall
		// back to a fresh login.
		c.log.Warn("cache_session_unseal_failed", slog.Any("error", err))
		return nil, apperr.NotFound("Cache entry")
	}

	var record SessionRecord
	if err := json.Unmarshal(plaintext, &record); err != nil {
		c.log.Warn("cache_session_decode_failed", slog.Any("error", err))
		return nil, apperr.NotFound("Cache entry")
	}
	return &record, nil
}

// ClearSession removes the session payload and the resolved-role marker
// from both backends.
func (c *Coordinator) ClearSession(ctx context.Context) error {
	return c.fanOutDelete(ctx, constants.CacheKeySession, constants.CacheKeyRole)
}

// # Role Marker

// SaveRole persists the last resolved role so a later refresh can detect
// role changes without a profile read.
func (c *Coordinator) SaveRole(ctx context.Context, role string) error {
	entry := Entry{Key: constants.CacheKeyRole, Value: []byte(role), WrittenAt: time.Now()}
	return c.fanOutWrite(ctx, entry)
}

// ReadRole returns the cached role marker, or [apperr.NotFound] when no
// role has been resolved yet.
func (c *Coordinator) ReadRole(ctx context.Context) (string, error) {
	entry, err := c.readWithFallback(ctx, constants.CacheKeyRole)
	if err != nil {
		return "", err
	}
	return string(entry.Value), nil
}

// # Remember-Me

// SaveEmail stores the login email together with the remember-me flag.
func (c *Coordinator) SaveEmail(ctx context.Context, email string, remember bool) error {
	now := time.Now()
	rememberValue := "false"
	if remember {
		rememberValue = "true"
	}
	return c.fanOutWrite(ctx,
		Entry{Key: constants.CacheKeyEmail, Value: []byte(email), WrittenAt: now},
		Entry{Key: constants.CacheKeyRememberMe, Value: []byte(rememberValue), WrittenAt: now},
	)
}

// SavedEmail returns the stored login email and whether remember-me is
// enabled. Both zero values mean nothing was saved.
func (c *Coordinator) SavedEmail(ctx context.Context) (string, bool) {
	flagEntry, err := c.readWithFallback(ctx, constants.CacheKeyRememberMe)
	if err != nil || string(flagEntry.Value) != "true" {
		return "", false
	}

	emailEntry, err := c.readWithFallback(ctx, constants.CacheKeyEmail)
	if err != nil {
		return "", false
	}
	return string(emailEntry.Value), true
}

// ClearSavedEmail removes the saved email and the remember-me flag.
func (c *Coordinator) ClearSavedEmail(ctx context.Context) error {
	return c.fanOutDelete(ctx, constants.CacheKeyEmail, constants.CacheKeyRememberMe)
}

// # Route Assets

// WriteRouteAsset caches one rendered route payload. Admin assets carry the
// privileged prefix so a selective clear can skip them.
func (c *Coordinator) WriteRouteAsset(ctx context.Context, path string, payload []byte, admin bool) error {
	prefix := constants.CachePrefixRoute
	if admin {
		prefix = constants.CachePrefixAdminRoute
	}
	entry := Entry{Key: prefix + path, Value: payload, WrittenAt: time.Now()}
	return c.fanOutWrite(ctx, entry)
}

// ReadRouteAsset returns a cached route payload, checking the privileged
// prefix first.
func (c *Coordinator) ReadRouteAsset(ctx context.Context, path string) ([]byte, error) {
	entry, err := c.readWithFallback(ctx, constants.CachePrefixAdminRoute+path)
	if err == nil {
		return entry.Value, nil
	}

	entry, err = c.readWithFallback(ctx, constants.CachePrefixRoute+path)
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

/*
ClearRoutes removes cached route assets from both backends.

Description: With preserveAdmin=false the whole route prefix is dropped.
With preserveAdmin=true the route keys are enumerated and only those
outside the privileged prefix are deleted, so an admin keeps their
privileged views cached across the auth transition.

Parameters:
  - ctx: context.Context
  - preserveAdmin: keep entries under the admin route prefix

Returns:
  - err: Primary-store failure. Secondary failures are logged only.

ClearRoutes implements [worker.RouteCacheStore]; under normal operation it
runs on the worker goroutine only.
*/
func (c *Coordinator) ClearRoutes(ctx context.Context, preserveAdmin bool) error {
	if !preserveAdmin {
		if err := c.primary.Clear(ctx, constants.CachePrefixRoute); err != nil {
			return fmt.Errorf("cache_route_clear_failed: %w", err)
		}
		if err := c.secondary.Clear(ctx, constants.CachePrefixRoute); err != nil {
			c.logSecondaryFailure("clear", err)
		}
		return nil
	}

	clearSelective := func(backend Backend) error {
		keys, err := backend.Keys(ctx, constants.CachePrefixRoute)
		if err != nil {
			return err
		}
		doomed := keys[:0]
		for _, key := range keys {
			if !strings.HasPrefix(key, constants.CachePrefixAdminRoute) {
				doomed = append(doomed, key)
			}
		}
		if len(doomed) == 0 {
			return nil
		}
		return backend.Delete(ctx, doomed...)
	}

	if err := clearSelective(c.primary); err != nil {
		return fmt.Errorf("cache_route_clear_failed: %w", err)
	}
	if err := clearSelective(c.secondary); err != nil {
		c.logSecondaryFailure("clear", err)
	}
	return nil
}

// # Worker Coordination

/*
NotifyWorker sends a coordination message to the cache janitor and waits a
bounded time for its acknowledgement.

Description: The acknowledgement wait is a race against a fixed deadline;
whichever side finishes first, the caller proceeds. When no janitor is
attached, clear requests degrade to a direct synchronous [ClearRoutes] so
teardown still completes.

Parameters:
  - ctx: context.Context
  - messageType: worker.MessageType
  - event: auth event name for [worker.AuthStateChanged]

Returns:
  - err: Only from the degraded direct-clear path; the janitor path never
    fails the caller.
*/
func (c *Coordinator) NotifyWorker(ctx context.Context, messageType worker.MessageType, event string) error {
	if c.janitor == nil {
		switch messageType {
		case worker.ClearAllCaches:
			return c.ClearRoutes(ctx, false)
		case worker.PreserveAdminCaches:
			return c.ClearRoutes(ctx, true)
		default:
			return nil
		}
	}

	reply, err := c.janitor.Send(ctx, messageType, event)
	if err != nil {
		c.log.Warn("worker_notify_failed",
			slog.String("type", string(messageType)),
			slog.Any("error", err))
		return nil
	}

	if messageType == worker.AuthStateChanged {
		// Fire-and-forget; nothing to wait for.
		return nil
	}

	select {
	case ack := <-reply:
		c.log.Info("worker_acknowledged", slog.String("ack", string(ack)))
	case <-time.After(constants.WorkerAckWait):
		c.log.Warn("worker_ack_timeout", slog.String("type", string(messageType)))
	case <-ctx.Done():
	}
	return nil
}

// # Fan-Out Helpers

func (c *Coordinator) fanOutWrite(ctx context.Context, entries ...Entry) error {
	if err := c.primary.Write(ctx, entries...); err != nil {
		return fmt.Errorf("cache_primary_write_failed: %w", err)
	}
	if err := c.secondary.Write(ctx, entries...); err != nil {
		c.logSecondaryFailure("write", err)
	}
	return nil
}

func (c *Coordinator) fanOutDelete(ctx context.Context, keys ...string) error {
	if err := c.primary.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("cache_primary_delete_failed: %w", err)
	}
	if err := c.secondary.Delete(ctx, keys...); err != nil {
		c.logSecondaryFailure("delete", err)
	}
	return nil
}

func (c *Coordinator) readWithFallback(ctx context.Context, key string) (*Entry, error) {
	entry, err := c.primary.Read(ctx, key)
	if err == nil {
		return entry, nil
	}
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		c.log.Warn("cache_primary_read_failed",
			slog.String("key", key),
			slog.Any("error", err))
	}

	return c.secondary.Read(ctx, key)
}

func (c *Coordinator) logSecondaryFailure(op string, err error) {
	c.log.Warn("cache_secondary_degraded",
		slog.String("backend", c.secondary.Name()),
		slog.String("op", op),
		slog.Any("error", err))
}

var _ worker.RouteCacheStore = (*Coordinator)(nil)
