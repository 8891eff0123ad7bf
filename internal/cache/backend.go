// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

/*
Package cache provides the redundant session cache and its coordination
with the background cache worker.

# Architecture

Two persistent stores hold the same session material: a key-value store
(Redis, primary) and a transactional structured store (PostgreSQL,
secondary). The [Coordinator] fans writes out to both — only the primary's
failure is fatal, the secondary is best-effort redundancy. Session payloads
are sealed before they reach either store.

Route-asset entries are tagged by key prefix so the worker can clear them
selectively on auth transitions, preserving privileged-route entries for
admin-tier users.
*/
package cache

import (
	"context"
	"time"
)

// Entry is one persisted cache record.
type Entry struct {
	Key       string
	Value     []byte
	WrittenAt time.Time
}

// Backend is the uniform contract over one persistent store.
//
// # Implementations
//
//   - [RedisBackend]: the primary key-value store.
//   - [PostgresBackend]: the secondary transactional store.
//   - [MemoryBackend]: in-process store for tests and degraded startup.
//
// A missing key reads as [apperr.NotFound]; backends never invent empty
// values.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// Read returns the entry stored under key.
	Read(ctx context.Context, key string) (*Entry, error)

	// Write persists every entry, atomically where the store supports it.
	Write(ctx context.Context, entries ...Entry) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Keys lists the stored keys that start with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Clear removes every key with the given prefix. An empty prefix
	// clears all entries owned by the application.
	Clear(ctx context.Context, prefix string) error
}
