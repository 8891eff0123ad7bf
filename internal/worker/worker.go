// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

/*
Package worker runs the background cache janitor as a message-driven actor.

The janitor owns destructive route-cache maintenance so that session teardown
never races concurrent cache writers: every clear request is serialized
through a single inbox and processed by one goroutine.

Architecture:

  - Message: Typed envelope with an optional auth event payload.
  - Worker: The actor. Run drains the inbox until the context ends.
  - RouteCacheStore: Narrow contract the actor clears routes through,
    implemented by the cache coordinator.

Callers that need confirmation receive a reply channel from [Worker.Send]
and race it against their own deadline; the actor always acknowledges, even
when the underlying clear failed, so a slow store cannot wedge teardown.
*/
package worker

import (
	"context"
	"log/slog"
	"time"
)

// # Message Protocol

// MessageType discriminates janitor requests.
type MessageType string

const (
	// AuthStateChanged informs the janitor that the session state moved.
	// Fire-and-forget; carries the auth event name in [Message.Event].
	AuthStateChanged MessageType = "AUTH_STATE_CHANGED"
	// ClearAllCaches requests removal of every cached route asset.
	ClearAllCaches MessageType = "CLEAR_ALL_CACHES"
	// PreserveAdminCaches requests removal of non-admin route assets only.
	PreserveAdminCaches MessageType = "PRESERVE_ADMIN_CACHES"
)

// Ack is the janitor's confirmation payload.
type Ack string

const (
	// AckCachesCleared confirms a [ClearAllCaches] request was processed.
	AckCachesCleared Ack = "CACHES_CLEARED"
	// AckAdminCachesPreserved confirms a [PreserveAdminCaches] request
	// was processed.
	AckAdminCachesPreserved Ack = "ADMIN_CACHES_PRESERVED"
)

// Message is the envelope travelling through the janitor inbox.
type Message struct {
	Type      MessageType
	Event     string
	Timestamp time.Time

	reply chan Ack
}

// RouteCacheStore is the contract the janitor clears route assets through.
type RouteCacheStore interface {
	// ClearRoutes removes cached route assets. When preserveAdmin is true,
	// entries under the admin route prefix survive.
	ClearRoutes(ctx context.Context, preserveAdmin bool) error
}

// # Actor

// Worker is the cache janitor actor.
//
// # Concurrency
//
// Send is safe for concurrent use. All store access happens on the single
// Run goroutine, so the store never sees overlapping clears from here.
type Worker struct {
	inbox chan Message
	store RouteCacheStore
	log   *slog.Logger
}

// New constructs a janitor over the given route store.
func New(store RouteCacheStore, logger *slog.Logger) *Worker {
	return &Worker{
		// Small buffer so bursty senders (logout fan-out) do not block
		// the session manager while the actor is mid-clear.
		inbox: make(chan Message, 16),
		store: store,
		log:   logger,
	}
}

/*
Send enqueues a request and returns the channel the acknowledgement will
arrive on.

Description: Non-blocking as long as the inbox has room; otherwise waits
until the actor drains or ctx ends. The reply channel is buffered, so the
actor never blocks on a caller that stopped listening.

Parameters:
  - ctx: context.Context
  - messageType: MessageType
  - event: auth event name, only meaningful for [AuthStateChanged]

Returns:
  - <-chan Ack: Receives exactly one Ack for clear requests. Never
    receives for [AuthStateChanged].
  - err: ctx error when cancelled before the message was accepted.
*/
func (w *Worker) Send(ctx context.Context, messageType MessageType, event string) (<-chan Ack, error) {
	message := Message{
		Type:      messageType,
		Event:     event,
		Timestamp: time.Now(),
		reply:     make(chan Ack, 1),
	}

	select {
	case w.inbox <- message:
		return message.reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run drains the inbox until ctx is cancelled. It blocks, so it is started
// on its own goroutine by the composition root.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("cache_janitor_started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("cache_janitor_stopped")
			return
		case message := <-w.inbox:
			w.handle(ctx, message)
		}
	}
}

func (w *Worker) handle(ctx context.Context, message Message) {
	switch message.Type {

	case AuthStateChanged:
		// Bookkeeping only. Destructive work always arrives as an
		// explicit clear request from the coordinator.
		w.log.Info("auth_state_observed",
			slog.String("event", message.Event),
			slog.Time("at", message.Timestamp))

	case ClearAllCaches:
		if err := w.store.ClearRoutes(ctx, false); err != nil {
			w.log.Error("route_clear_failed", slog.Any("error", err))
		}
		message.reply <- AckCachesCleared

	case PreserveAdminCaches:
		if err := w.store.ClearRoutes(ctx, true); err != nil {
			w.log.Error("admin_preserving_clear_failed", slog.Any("error", err))
		}
		message.reply <- AckAdminCachesPreserved

	default:
		w.log.Warn("unknown_janitor_message", slog.String("type", string(message.Type)))
	}
}
