// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nesttask/client/internal/platform/apperr"
	"github.com/nesttask/client/internal/platform/constants"
	"github.com/nesttask/client/internal/remote"
	"github.com/nesttask/client/internal/role"
)

// RecoveryState is the validity verdict of the recovery monitor.
type RecoveryState int

const (
	// StateVerifying means a check is pending or in flight. The UI keeps
	// the current view but may show a progress affordance.
	StateVerifying RecoveryState = iota
	// StateValid means the session was confirmed live.
	StateValid
	// StateInvalid means the session is gone or insufficient for the
	// active view.
	StateInvalid
)

// String implements fmt.Stringer for log output.
func (s RecoveryState) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	default:
		return "verifying"
	}
}

// RecoveryMonitor watches session validity for privilege-gated views.
//
// # Architecture
//
// The monitor re-verifies on Start and on every visibility regain while a
// gated view is active. Verdicts are cached for a bounded window so rapid
// focus changes do not turn into an API call storm. An Invalid verdict on
// a gated view fires the redirect callback, sending the UI to its safe
// default route.
type RecoveryMonitor struct {
	manager  *Manager
	auth     remote.AuthAPI
	redirect func()
	log      *slog.Logger

	mu         sync.Mutex
	state      RecoveryState
	gatedRole  role.Role
	verifiedAt time.Time
}

// NewRecoveryMonitor constructs the monitor. The redirect callback is
// invoked when an Invalid verdict lands while a gated view is active; nil
// disables redirection.
func NewRecoveryMonitor(manager *Manager, auth remote.AuthAPI, redirect func(), logger *slog.Logger) *RecoveryMonitor {
	return &RecoveryMonitor{
		manager:  manager,
		auth:     auth,
		redirect: redirect,
		log:      logger,
		state:    StateVerifying,
	}
}

// State returns the current verdict.
func (r *RecoveryMonitor) State() RecoveryState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// EnterGatedView marks a privilege-gated view as active and verifies
// immediately. requiredRole is the minimum tier the view demands.
func (r *RecoveryMonitor) EnterGatedView(ctx context.Context, requiredRole role.Role) {
	r.mu.Lock()
	r.gatedRole = requiredRole
	r.mu.Unlock()
	r.Verify(ctx, true)
}

// LeaveGatedView marks the gated view as inactive. Visibility regains stop
// triggering re-verification until the next EnterGatedView.
func (r *RecoveryMonitor) LeaveGatedView() {
	r.mu.Lock()
	r.gatedRole = ""
	r.mu.Unlock()
}

// Start performs the initial verification. Called once by the composition
// root after the session manager initialized.
func (r *RecoveryMonitor) Start(ctx context.Context) {
	r.Verify(ctx, true)
}

// OnVisible re-verifies the session when the app regains visibility while
// a gated view is active. Recent verdicts are reused within the cache TTL.
func (r *RecoveryMonitor) OnVisible(ctx context.Context) {
	r.mu.Lock()
	gated := r.gatedRole != ""
	r.mu.Unlock()
	if !gated {
		return
	}
	r.Verify(ctx, false)
}

/*
Verify runs one validity check and settles the state machine.

Description: Transitions Verifying → Valid | Invalid. A fresh cached
verdict short-circuits the remote call unless force is set. The check has
two parts: the session must exist remotely, and when a gated view is
active the resolved role must meet the view's minimum tier. On an Invalid
verdict with a gated view active, the redirect callback fires.

Parameters:
  - ctx: context.Context
  - force: ignore the cached verdict window

Returns:
  - RecoveryState: The settled verdict.
*/
func (r *RecoveryMonitor) Verify(ctx context.Context, force bool) RecoveryState {
	r.mu.Lock()
	if !force && r.state != StateVerifying && time.Since(r.verifiedAt) < constants.RecoveryCacheTTL {
		cached := r.state
		r.mu.Unlock()
		return cached
	}
	r.state = StateVerifying
	gatedRole := r.gatedRole
	r.mu.Unlock()

	verdict := r.check(ctx, gatedRole)

	r.mu.Lock()
	r.state = verdict
	r.verifiedAt = time.Now()
	shouldRedirect := verdict == StateInvalid && gatedRole != "" && r.redirect != nil
	r.mu.Unlock()

	if shouldRedirect {
		r.log.Info("gated_view_redirect", slog.String("required_role", string(gatedRole)))
		r.redirect()
	}
	return verdict
}

func (r *RecoveryMonitor) check(ctx context.Context, gatedRole role.Role) RecoveryState {
	session := r.manager.Session()
	if session == nil {
		return StateInvalid
	}

	// Cheap local check first: a cached role below the gated view's tier
	// settles the verdict without a remote call.
	if gatedRole != "" {
		if cached := r.manager.CachedRole(ctx); cached != "" && !cached.AtLeast(gatedRole) {
			r.log.Warn("gated_view_role_insufficient",
				slog.String("have", string(cached)),
				slog.String("need", string(gatedRole)))
			return StateInvalid
		}
	}

	if _, err := r.auth.GetUser(ctx, session.AccessToken); err != nil {
		if apperr.IsCode(err, apperr.CodeUnauthorized) {
			r.log.Info("session_verification_rejected")
			return StateInvalid
		}
		// A network blip is not evidence of an invalid session. Trust the
		// local state until the provider says otherwise.
		r.log.Warn("session_verification_unreachable", slog.Any("error", err))
		return StateValid
	}

	if gatedRole != "" && !session.Role.AtLeast(gatedRole) {
		r.log.Warn("gated_view_role_insufficient",
			slog.String("have", string(session.Role)),
			slog.String("need", string(gatedRole)))
		return StateInvalid
	}
	return StateValid
}
