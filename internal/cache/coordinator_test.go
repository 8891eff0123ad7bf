// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package cache_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nesttask/client/internal/cache"
	"github.com/nesttask/client/internal/platform/apperr"
	"github.com/nesttask/client/internal/platform/constants"
	"github.com/nesttask/client/internal/platform/sec"
	"github.com/nesttask/client/internal/worker"
)

func newTestCoordinator(t *testing.T) (*cache.Coordinator, *cache.MemoryBackend, *cache.MemoryBackend) {
	t.Helper()

	sealer, err := sec.NewSealer("test-cache-secret")
	require.NoError(t, err)

	primary := cache.NewMemoryBackend()
	secondary := cache.NewMemoryBackend()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	return cache.NewCoordinator(primary, secondary, sealer, logger), primary, secondary
}

func testRecord() *cache.SessionRecord {
	return &cache.SessionRecord{
		AccessToken:  "access-token-123",
		RefreshToken: "refresh-token-456",
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second),
		UserID:       "user-1",
		Email:        "member@nesttask.com",
	}
}

/*
TestCoordinator_SessionRoundTrip verifies that a written session reads back
intact and that neither backend ever stores plaintext tokens.
*/
func TestCoordinator_SessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	coordinator, primary, secondary := newTestCoordinator(t)

	record := testRecord()
	require.NoError(t, coordinator.WriteSession(ctx, record))

	// 1. Round trip through the coordinator.
	restored, err := coordinator.ReadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, record.AccessToken, restored.AccessToken)
	assert.Equal(t, record.RefreshToken, restored.RefreshToken)
	assert.Equal(t, record.UserID, restored.UserID)

	// 2. Both backends hold the entry, sealed.
	for _, backend := range []*cache.MemoryBackend{primary, secondary} {
		entry, err := backend.Read(ctx, constants.CacheKeySession)
		require.NoError(t, err)
		assert.False(t, bytes.Contains(entry.Value, []byte(record.AccessToken)),
			"backend %s stores plaintext tokens", backend.Name())
	}
}

/*
TestCoordinator_SecondaryFailureIsNotFatal verifies the redundancy policy:
a broken secondary degrades silently while the primary keeps serving.
*/
func TestCoordinator_SecondaryFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	coordinator, primary, secondary := newTestCoordinator(t)
	secondary.FailWrites = true

	require.NoError(t, coordinator.WriteSession(ctx, testRecord()))

	_, err := primary.Read(ctx, constants.CacheKeySession)
	assert.NoError(t, err)
	assert.Zero(t, secondary.Len())
}

/*
TestCoordinator_PrimaryFailureIsFatal verifies that a primary write failure
fails the whole operation.
*/
func TestCoordinator_PrimaryFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	coordinator, primary, _ := newTestCoordinator(t)
	primary.FailWrites = true

	err := coordinator.WriteSession(ctx, testRecord())
	assert.Error(t, err)
}

/*
TestCoordinator_ReadFallsBackToSecondary verifies that a primary miss is
recovered from the secondary store.
*/
func TestCoordinator_ReadFallsBackToSecondary(t *testing.T) {
	ctx := context.Background()
	coordinator, primary, _ := newTestCoordinator(t)

	require.NoError(t, coordinator.WriteSession(ctx, testRecord()))
	require.NoError(t, primary.Delete(ctx, constants.CacheKeySession))

	restored, err := coordinator.ReadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-1", restored.UserID)
}

/*
TestCoordinator_MissingSessionReadsAsNotFound verifies the empty-cache case.
*/
func TestCoordinator_MissingSessionReadsAsNotFound(t *testing.T) {
	coordinator, _, _ := newTestCoordinator(t)

	_, err := coordinator.ReadSession(context.Background())
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

/*
TestCoordinator_ClearSession verifies that session and role markers vanish
from both backends while unrelated keys survive.
*/
func TestCoordinator_ClearSession(t *testing.T) {
	ctx := context.Background()
	coordinator, primary, secondary := newTestCoordinator(t)

	require.NoError(t, coordinator.WriteSession(ctx, testRecord()))
	require.NoError(t, coordinator.SaveRole(ctx, "admin"))
	require.NoError(t, coordinator.SaveEmail(ctx, "member@nesttask.com", true))

	require.NoError(t, coordinator.ClearSession(ctx))

	for _, backend := range []*cache.MemoryBackend{primary, secondary} {
		_, err := backend.Read(ctx, constants.CacheKeySession)
		assert.Error(t, err)
		_, err = backend.Read(ctx, constants.CacheKeyRole)
		assert.Error(t, err)
		_, err = backend.Read(ctx, constants.CacheKeyEmail)
		assert.NoError(t, err, "saved email must survive ClearSession")
	}
}

/*
TestCoordinator_SavedEmail verifies the remember-me contract: the email is
returned only when the flag is set, and clearing removes both keys.
*/
func TestCoordinator_SavedEmail(t *testing.T) {
	ctx := context.Background()
	coordinator, _, _ := newTestCoordinator(t)

	// 1. Nothing saved.
	email, remembered := coordinator.SavedEmail(ctx)
	assert.Empty(t, email)
	assert.False(t, remembered)

	// 2. Saved with remember-me off: not returned.
	require.NoError(t, coordinator.SaveEmail(ctx, "member@nesttask.com", false))
	email, remembered = coordinator.SavedEmail(ctx)
	assert.Empty(t, email)
	assert.False(t, remembered)

	// 3. Saved with remember-me on.
	require.NoError(t, coordinator.SaveEmail(ctx, "member@nesttask.com", true))
	email, remembered = coordinator.SavedEmail(ctx)
	assert.Equal(t, "member@nesttask.com", email)
	assert.True(t, remembered)

	// 4. Cleared.
	require.NoError(t, coordinator.ClearSavedEmail(ctx))
	email, remembered = coordinator.SavedEmail(ctx)
	assert.Empty(t, email)
	assert.False(t, remembered)
}

/*
TestCoordinator_ClearRoutesPreservesAdmin verifies the selective clear: with
preserveAdmin=true only non-privileged route assets are removed.
*/
func TestCoordinator_ClearRoutesPreservesAdmin(t *testing.T) {
	ctx := context.Background()
	coordinator, primary, _ := newTestCoordinator(t)

	require.NoError(t, coordinator.WriteRouteAsset(ctx, "home", []byte("home-page"), false))
	require.NoError(t, coordinator.WriteRouteAsset(ctx, "dashboard", []byte("admin-page"), true))

	require.NoError(t, coordinator.ClearRoutes(ctx, true))

	keys, err := primary.Keys(ctx, constants.CachePrefixRoute)
	require.NoError(t, err)
	assert.Equal(t, []string{constants.CachePrefixAdminRoute + "dashboard"}, keys)

	// A full clear takes the admin entry too.
	require.NoError(t, coordinator.ClearRoutes(ctx, false))
	keys, err = primary.Keys(ctx, constants.CachePrefixRoute)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

/*
TestCoordinator_RouteAssetReadPrefersAdmin verifies both prefixes are
checked when reading a cached route payload.
*/
func TestCoordinator_RouteAssetReadPrefersAdmin(t *testing.T) {
	ctx := context.Background()
	coordinator, _, _ := newTestCoordinator(t)

	require.NoError(t, coordinator.WriteRouteAsset(ctx, "settings", []byte("plain"), false))
	payload, err := coordinator.ReadRouteAsset(ctx, "settings")
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), payload)

	require.NoError(t, coordinator.WriteRouteAsset(ctx, "settings", []byte("privileged"), true))
	payload, err = coordinator.ReadRouteAsset(ctx, "settings")
	require.NoError(t, err)
	assert.Equal(t, []byte("privileged"), payload)
}

/*
TestCoordinator_NotifyWorkerWithoutJanitor verifies the degraded path: with
no janitor attached, a clear request runs synchronously.
*/
func TestCoordinator_NotifyWorkerWithoutJanitor(t *testing.T) {
	ctx := context.Background()
	coordinator, primary, _ := newTestCoordinator(t)

	require.NoError(t, coordinator.WriteRouteAsset(ctx, "home", []byte("home-page"), false))
	require.NoError(t, coordinator.NotifyWorker(ctx, worker.ClearAllCaches, ""))

	keys, err := primary.Keys(ctx, constants.CachePrefixRoute)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

/*
TestCoordinator_NotifyWorkerDelegatesToJanitor verifies that with a running
janitor attached, the clear is processed through the actor and acknowledged
within the ack window.
*/
func TestCoordinator_NotifyWorkerDelegatesToJanitor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coordinator, primary, _ := newTestCoordinator(t)
	janitor := worker.New(coordinator, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	coordinator.AttachWorker(janitor)
	go janitor.Run(ctx)

	require.NoError(t, coordinator.WriteRouteAsset(ctx, "home", []byte("home-page"), false))
	require.NoError(t, coordinator.WriteRouteAsset(ctx, "dashboard", []byte("admin-page"), true))

	start := time.Now()
	require.NoError(t, coordinator.NotifyWorker(ctx, worker.PreserveAdminCaches, ""))
	assert.Less(t, time.Since(start), constants.WorkerAckWait)

	keys, err := primary.Keys(ctx, constants.CachePrefixRoute)
	require.NoError(t, err)
	assert.Equal(t, []string{constants.CachePrefixAdminRoute + "dashboard"}, keys)
}
