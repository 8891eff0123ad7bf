// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nesttask/client/internal/platform/apperr"
)

// MemoryBackend is an in-process [Backend] used by tests and as a degraded
// stand-in when a persistent store is unavailable at startup.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]Entry

	// FailWrites makes every write fail; tests use it to simulate a broken
	// secondary store.
	FailWrites bool
}

// NewMemoryBackend creates an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]Entry)}
}

// Name implements [Backend].
func (b *MemoryBackend) Name() string { return "memory" }

// Read implements [Backend].
func (b *MemoryBackend) Read(_ context.Context, key string) (*Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.entries[key]
	if !ok {
		return nil, apperr.NotFound("Cache entry")
	}
	return &entry, nil
}

// Write implements [Backend].
func (b *MemoryBackend) Write(_ context.Context, entries ...Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailWrites {
		return apperr.Internal(nil)
	}
	now := time.Now()
	for _, entry := range entries {
		if entry.WrittenAt.IsZero() {
			entry.WrittenAt = now
		}
		b.entries[entry.Key] = entry
	}
	return nil
}

// Delete implements [Backend].
func (b *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		delete(b.entries, key)
	}
	return nil
}

// Keys implements [Backend].
func (b *MemoryBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var keys []string
	for key := range b.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear implements [Backend].
func (b *MemoryBackend) Clear(_ context.Context, prefix string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.entries {
		if strings.HasPrefix(key, prefix) {
			delete(b.entries, key)
		}
	}
	return nil
}

// Len reports the number of stored entries. Test helper.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

var _ Backend = (*MemoryBackend)(nil)
