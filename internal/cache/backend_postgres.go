// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nesttask/client/internal/platform/dberr"
)

// PostgresBackend is the secondary, transactional structured store.
//
// It exists for redundancy: if the key-value store is flushed, the session
// survives here. Coordinator policy treats its failures as best-effort.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend wraps a pgx pool as a cache [Backend]. The
// cache_entries table is created by the bundled migrations.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

// Name implements [Backend].
func (b *PostgresBackend) Name() string { return "postgres" }

// Read implements [Backend].
func (b *PostgresBackend) Read(ctx context.Context, key string) (*Entry, error) {
	const query = `
		SELECT key, value, written_at
		FROM cache_entries
		WHERE key = $1`

	entry := &Entry{}
	err := b.pool.QueryRow(ctx, query, key).Scan(&entry.Key, &entry.Value, &entry.WrittenAt)
	if err != nil {
		return nil, dberr.Wrap(err)
	}
	return entry, nil
}

// Write implements [Backend]. All entries commit in one transaction so the
// store never holds a torn session.
func (b *PostgresBackend) Write(ctx context.Context, entries ...Entry) error {
	const query = `
		INSERT INTO cache_entries (key, value, written_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, written_at = EXCLUDED.written_at`

	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		now := time.Now()
		for _, entry := range entries {
			writtenAt := entry.WrittenAt
			if writtenAt.IsZero() {
				writtenAt = now
			}
			if _, err := tx.Exec(ctx, query, entry.Key, entry.Value, writtenAt); err != nil {
				return fmt.Errorf("cache: postgres write %q: %w", entry.Key, err)
			}
		}
		return nil
	})
}

// Delete implements [Backend].
func (b *PostgresBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := b.pool.Exec(ctx, `DELETE FROM cache_entries WHERE key = ANY($1)`, keys); err != nil {
		return fmt.Errorf("cache: postgres delete: %w", err)
	}
	return nil
}

// Keys implements [Backend].
func (b *PostgresBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT key FROM cache_entries WHERE key LIKE $1 || '%' ORDER BY key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("cache: postgres keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("cache: postgres keys scan: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Clear implements [Backend].
func (b *PostgresBackend) Clear(ctx context.Context, prefix string) error {
	if _, err := b.pool.Exec(ctx,
		`DELETE FROM cache_entries WHERE key LIKE $1 || '%'`, prefix); err != nil {
		return fmt.Errorf("cache: postgres clear: %w", err)
	}
	return nil
}

var _ Backend = (*PostgresBackend)(nil)
