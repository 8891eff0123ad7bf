// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package session_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nesttask/client/internal/platform/apperr"
	"github.com/nesttask/client/internal/remote"
	"github.com/nesttask/client/internal/role"
	"github.com/nesttask/client/internal/session"
)

func newRecoveryFixture(t *testing.T, profileRole string) (*managerFixture, *fakeAuth) {
	t.Helper()
	auth := happyAuth()
	fixture := newFixture(t, auth, happyProfiles(profileRole))
	_, err := fixture.manager.Login(context.Background(), "member@nesttask.com", "secret-pass", false)
	require.NoError(t, err)
	return fixture, auth
}

/*
TestRecoveryMonitor_ValidSession verifies the happy path: a confirmed
session settles the state machine on Valid.
*/
func TestRecoveryMonitor_ValidSession(t *testing.T) {
	fixture, auth := newRecoveryFixture(t, "user")
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	monitor := session.NewRecoveryMonitor(fixture.manager, auth, nil, logger)
	assert.Equal(t, session.StateVerifying, monitor.State())

	monitor.Start(context.Background())
	assert.Equal(t, session.StateValid, monitor.State())
}

/*
TestRecoveryMonitor_NoSession verifies that a signed-out manager settles on
Invalid without touching the remote.
*/
func TestRecoveryMonitor_NoSession(t *testing.T) {
	auth := happyAuth()
	fixture := newFixture(t, auth, happyProfiles("user"))
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	monitor := session.NewRecoveryMonitor(fixture.manager, auth, nil, logger)
	monitor.Start(context.Background())
	assert.Equal(t, session.StateInvalid, monitor.State())
}

/*
TestRecoveryMonitor_RejectedSessionRedirects verifies the gated-view rule:
a provider-rejected session on a privileged view fires the redirect.
*/
func TestRecoveryMonitor_RejectedSessionRedirects(t *testing.T) {
	fixture, auth := newRecoveryFixture(t, "admin")
	auth.getUserFn = func(context.Context, string) (*remote.AuthUser, error) {
		return nil, apperr.Unauthorized("token revoked")
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	var redirects atomic.Int32
	monitor := session.NewRecoveryMonitor(fixture.manager, auth, func() { redirects.Add(1) }, logger)

	monitor.EnterGatedView(context.Background(), role.RoleAdmin)
	assert.Equal(t, session.StateInvalid, monitor.State())
	assert.Equal(t, int32(1), redirects.Load())
}

/*
TestRecoveryMonitor_InsufficientRoleRedirects verifies that a live session
below the gated view's tier is still Invalid for that view.
*/
func TestRecoveryMonitor_InsufficientRoleRedirects(t *testing.T) {
	fixture, auth := newRecoveryFixture(t, "user")
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	var redirects atomic.Int32
	monitor := session.NewRecoveryMonitor(fixture.manager, auth, func() { redirects.Add(1) }, logger)

	monitor.EnterGatedView(context.Background(), role.RoleAdmin)
	assert.Equal(t, session.StateInvalid, monitor.State())
	assert.Equal(t, int32(1), redirects.Load())
}

/*
TestRecoveryMonitor_CachedRoleFailsGatedViewLocally verifies the cheap
local check: when the cached role is below the gated view's tier, the
verdict settles on Invalid without spending a remote call.
*/
func TestRecoveryMonitor_CachedRoleFailsGatedViewLocally(t *testing.T) {
	fixture, auth := newRecoveryFixture(t, "user")

	var checks atomic.Int32
	auth.getUserFn = func(context.Context, string) (*remote.AuthUser, error) {
		checks.Add(1)
		return &authSessionFixture("member@nesttask.com").User, nil
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	var redirects atomic.Int32
	monitor := session.NewRecoveryMonitor(fixture.manager, auth, func() { redirects.Add(1) }, logger)

	monitor.EnterGatedView(context.Background(), role.RoleAdmin)
	assert.Equal(t, session.StateInvalid, monitor.State())
	assert.Equal(t, int32(1), redirects.Load())
	assert.Zero(t, checks.Load(), "the cached role already settled the verdict")
}

/*
TestRecoveryMonitor_NetworkBlipIsNotInvalid verifies the lenient rule: an
unreachable provider does not invalidate a locally live session.
*/
func TestRecoveryMonitor_NetworkBlipIsNotInvalid(t *testing.T) {
	fixture, auth := newRecoveryFixture(t, "user")
	auth.getUserFn = func(context.Context, string) (*remote.AuthUser, error) {
		return nil, apperr.Internal(assert.AnError)
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	monitor := session.NewRecoveryMonitor(fixture.manager, auth, nil, logger)
	monitor.Start(context.Background())
	assert.Equal(t, session.StateValid, monitor.State())
}

/*
TestRecoveryMonitor_VerdictCacheBoundsAPICalls verifies the bounded cache:
within the TTL, repeated visibility regains reuse the settled verdict
instead of calling the provider again.
*/
func TestRecoveryMonitor_VerdictCacheBoundsAPICalls(t *testing.T) {
	fixture, auth := newRecoveryFixture(t, "admin")

	var checks atomic.Int32
	auth.getUserFn = func(context.Context, string) (*remote.AuthUser, error) {
		checks.Add(1)
		return &authSessionFixture("member@nesttask.com").User, nil
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	monitor := session.NewRecoveryMonitor(fixture.manager, auth, nil, logger)

	monitor.EnterGatedView(context.Background(), role.RoleAdmin)
	first := checks.Load()
	assert.Equal(t, int32(1), first)

	// Rapid focus flapping: all served from the cached verdict.
	for i := 0; i < 5; i++ {
		monitor.OnVisible(context.Background())
	}
	assert.Equal(t, first, checks.Load())
}

/*
TestRecoveryMonitor_OnVisibleIgnoredOffGatedViews verifies that visibility
regains outside gated views never trigger verification.
*/
func TestRecoveryMonitor_OnVisibleIgnoredOffGatedViews(t *testing.T) {
	fixture, auth := newRecoveryFixture(t, "user")

	var checks atomic.Int32
	auth.getUserFn = func(context.Context, string) (*remote.AuthUser, error) {
		checks.Add(1)
		return &authSessionFixture("member@nesttask.com").User, nil
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	monitor := session.NewRecoveryMonitor(fixture.manager, auth, nil, logger)

	monitor.OnVisible(context.Background())
	assert.Zero(t, checks.Load())

	monitor.EnterGatedView(context.Background(), role.RoleUser)
	monitor.LeaveGatedView()
	before := checks.Load()
	monitor.OnVisible(context.Background())
	assert.Equal(t, before, checks.Load())
}
