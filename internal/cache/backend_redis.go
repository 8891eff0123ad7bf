// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/nesttask/client/internal/platform/apperr"
)

// keyspace prefixes every key so Clear("") cannot touch foreign data on a
// shared Redis instance.
const keyspace = "nesttask:"

// RedisBackend is the primary key-value store.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend wraps an existing Redis client as a cache [Backend].
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

// Name implements [Backend].
func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) namespaced(key string) string { return keyspace + key }

// Read implements [Backend].
func (b *RedisBackend) Read(ctx context.Context, key string) (*Entry, error) {
	value, err := b.client.Get(ctx, b.namespaced(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.NotFound("Cache entry")
	}
	if err != nil {
		return nil, fmt.Errorf("cache: redis read %q: %w", key, err)
	}
	return &Entry{Key: key, Value: value}, nil
}

// Write implements [Backend]. Entries are written in one transactional
// pipeline so a page-reload equivalent never observes half a session.
func (b *RedisBackend) Write(ctx context.Context, entries ...Entry) error {
	pipeline := b.client.TxPipeline()
	for _, entry := range entries {
		pipeline.Set(ctx, b.namespaced(entry.Key), entry.Value, 0)
	}
	if _, err := pipeline.Exec(ctx); err != nil {
		return fmt.Errorf("cache: redis write: %w", err)
	}
	return nil
}

// Delete implements [Backend].
func (b *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	namespaced := make([]string, len(keys))
	for i, key := range keys {
		namespaced[i] = b.namespaced(key)
	}
	if err := b.client.Del(ctx, namespaced...).Err(); err != nil {
		return fmt.Errorf("cache: redis delete: %w", err)
	}
	return nil
}

// Keys implements [Backend].
func (b *RedisBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, b.namespaced(prefix)+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), keyspace))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("cache: redis scan: %w", err)
	}
	return keys, nil
}

// Clear implements [Backend].
func (b *RedisBackend) Clear(ctx context.Context, prefix string) error {
	keys, err := b.Keys(ctx, prefix)
	if err != nil {
		return err
	}
	return b.Delete(ctx, keys...)
}

// assert interface compliance at compile time.
var _ Backend = (*RedisBackend)(nil)
