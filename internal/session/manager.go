// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/nesttask/client/internal/cache"
	"github.com/nesttask/client/internal/platform/apperr"
	"github.com/nesttask/client/internal/platform/constants"
	"github.com/nesttask/client/internal/platform/sec"
	"github.com/nesttask/client/internal/platform/validate"
	"github.com/nesttask/client/internal/remote"
	"github.com/nesttask/client/internal/role"
	"github.com/nesttask/client/internal/worker"
)

// # Contracts & Types

// TokenSink receives the current access token so the transport layer can
// attach it to outgoing requests.
type TokenSink interface {
	SetAccessToken(token string)
}

// Manager is the single owner of the authenticated session.
//
// # Concurrency
//
// Safe for concurrent use. Auth transitions serialize on an internal mutex;
// subscriber callbacks run outside the lock on the transitioning goroutine.
type Manager struct {
	auth          remote.AuthAPI
	profiles      remote.ProfileAPI
	store         *cache.Coordinator
	sink          TokenSink
	overrideEmail string
	log           *slog.Logger

	mu          sync.RWMutex
	session     *Session
	user        *User
	subscribers []func(Event, *Session)

	refreshMu     sync.Mutex
	refreshCancel context.CancelFunc
}

// NewManager constructs the session manager with its collaborators.
func NewManager(
	auth remote.AuthAPI,
	profiles remote.ProfileAPI,
	store *cache.Coordinator,
	sink TokenSink,
	overrideEmail string,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		auth:          auth,
		profiles:      profiles,
		store:         store,
		sink:          sink,
		overrideEmail: overrideEmail,
		log:           logger,
	}
}

// # Accessors

// Session returns a snapshot of the current session, or nil when signed out.
func (m *Manager) Session() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	snapshot := *m.session
	return &snapshot
}

// CurrentUser returns a snapshot of the resolved user, or nil when signed out.
func (m *Manager) CurrentUser() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	snapshot := *m.user
	return &snapshot
}

// Subscribe registers a callback for auth lifecycle events. The session
// argument is a snapshot; nil for [EventSignedOut].
func (m *Manager) Subscribe(fn func(Event, *Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// SavedEmail returns the remembered login email, if remember-me is on.
func (m *Manager) SavedEmail(ctx context.Context) (string, bool) {
	return m.store.SavedEmail(ctx)
}

// CachedRole returns the role persisted by the last resolution, or "" when
// nothing is cached. The recovery monitor uses it to fail gated-view
// checks locally before spending a remote call.
func (m *Manager) CachedRole(ctx context.Context) role.Role {
	cached, err := m.store.ReadRole(ctx)
	if err != nil {
		return ""
	}
	return role.Canonicalize(cached)
}

// # Lifecycle

/*
Initialize restores a previously persisted session, if one exists.

Description: Reads the sealed session record from the cache, validates the
access token against the identity provider (rotating the token pair when it
expired), resolves the profile and role, and publishes SIGNED_IN. An empty
cache is the normal signed-out start and is not an error.

Parameters:
  - ctx: context.Context

Returns:
  - *User: The restored user, or nil when no session was persisted.
  - err: Remote validation or profile resolution failure.
*/
func (m *Manager) Initialize(ctx context.Context) (*User, error) {
	record, err := m.store.ReadSession(ctx)
	if apperr.IsCode(err, apperr.CodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// ── 1. Revalidate the cached token pair ──
	// A token past its recorded expiry skips the doomed probe and goes
	// straight to rotation.
	cached := &Session{AccessToken: record.AccessToken, ExpiresAt: record.ExpiresAt}
	if cached.Expired() {
		return m.rotateRestored(ctx, record.RefreshToken)
	}

	m.sink.SetAccessToken(record.AccessToken)
	authUser, err := m.auth.GetUser(ctx, record.AccessToken)
	if err != nil {
		if !apperr.IsCode(err, apperr.CodeUnauthorized) {
			return nil, err
		}
		// The provider rejected a token that was still within its recorded
		// lifetime; rotation settles whether the session survives.
		return m.rotateRestored(ctx, record.RefreshToken)
	}

	restored := &remote.AuthSession{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		ExpiresAt:    record.ExpiresAt,
		User:         *authUser,
	}
	return m.establish(ctx, restored, 0)
}

// rotateRestored trades a persisted refresh token for a fresh pair. A
// rejected refresh token means the persisted session is dead; it is
// dropped so the next start goes straight to the login screen.
func (m *Manager) rotateRestored(ctx context.Context, refreshToken string) (*User, error) {
	rotated, err := m.auth.RefreshSession(ctx, refreshToken)
	if err != nil {
		m.log.Info("cached_session_rejected", slog.Any("error", err))
		m.sink.SetAccessToken("")
		if clearErr := m.store.ClearSession(ctx); clearErr != nil {
			m.log.Warn("stale_session_clear_failed", slog.Any("error", clearErr))
		}
		return nil, nil
	}
	return m.establish(ctx, rotated, constants.ProfileProvisionWait)
}

/*
Login authenticates with credentials and establishes the session.

Description: Credentials are validated and the email normalized before the
remote exchange. On success the session is persisted (sealed, dual-store),
the remember-me preference applied, the profile fetched or synthesized, the
role resolved by precedence, the refresh loop scheduled, and SIGNED_IN
published.

Parameters:
  - ctx: context.Context
  - email: login identifier
  - password: plain credential, never persisted
  - rememberMe: persist the email for the next login form

Returns:
  - *User: The resolved user.
  - err: Validation failure or AUTH_ERROR from the remote exchange.
*/
func (m *Manager) Login(ctx context.Context, email, password string, rememberMe bool) (*User, error) {
	err := validate.New().
		Required("email", email).
		Email("email", email).
		Required("password", password).
		MinLen("password", password, 6).
		Err()
	if err != nil {
		return nil, err
	}

	email = sec.NormalizeEmail(email)

	authSession, err := m.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, apperr.Auth("Invalid email or password", err)
	}

	if rememberMe {
		if err := m.store.SaveEmail(ctx, email, true); err != nil {
			m.log.Warn("remember_me_save_failed", slog.Any("error", err))
		}
	} else {
		if err := m.store.ClearSavedEmail(ctx); err != nil {
			m.log.Warn("remember_me_clear_failed", slog.Any("error", err))
		}
	}

	return m.establish(ctx, authSession, constants.ProfileProvisionWait)
}

/*
Signup registers a new account and establishes the session.

Description: The provider stores the metadata claims and a backend trigger
provisions the profile row, including department/batch/section links. The
longer provisioning wait accounts for that extra work before the first
profile read.

Parameters:
  - ctx: context.Context
  - details: remote.SignupDetails

Returns:
  - *User: The resolved user.
  - err: Validation failure or AUTH_ERROR from the remote exchange.
*/
func (m *Manager) Signup(ctx context.Context, details remote.SignupDetails) (*User, error) {
	err := validate.New().
		Required("email", details.Email).
		Email("email", details.Email).
		EmailDomain("email", details.Email, constants.SignupEmailDomain).
		Required("password", details.Password).
		MinLen("password", details.Password, 6).
		Required("name", details.Name).
		Err()
	if err != nil {
		return nil, err
	}

	details.Email = sec.NormalizeEmail(details.Email)
	if details.Name == "" {
		details.Name = nameFromEmail(details.Email)
	}

	authSession, err := m.auth.SignUp(ctx, details)
	if err != nil {
		return nil, apperr.Auth("Signup failed", err)
	}

	return m.establish(ctx, authSession, constants.SignupProvisionWait)
}

/*
Logout tears the session down.

Description: The in-memory session is cleared first and SIGNED_OUT published
immediately, so the app is signed out from the user's point of view before
any network work. Every cleanup step then runs regardless of earlier
failures: remote revocation, cache clearing, worker notification, and
remember-me handling. Failures are aggregated, not short-circuited.

Parameters:
  - ctx: context.Context

Returns:
  - err: Aggregate of non-fatal cleanup failures, or nil when all passed.
*/
func (m *Manager) Logout(ctx context.Context) error {
	m.stopRefreshLoop()

	m.mu.Lock()
	departing := m.session
	departingUser := m.user
	m.session = nil
	m.user = nil
	m.mu.Unlock()

	m.sink.SetAccessToken("")
	m.publish(EventSignedOut, nil)

	if departing == nil {
		return nil
	}

	var cleanup *multierror.Error

	// ── 1. Revoke the remote session (best effort) ──
	if err := m.auth.SignOut(ctx, departing.AccessToken); err != nil {
		m.log.Warn("remote_signout_failed", slog.Any("error", err))
		cleanup = multierror.Append(cleanup, err)
	}

	// ── 2. Drop persisted session material ──
	if err := m.store.ClearSession(ctx); err != nil {
		m.log.Warn("session_clear_failed", slog.Any("error", err))
		cleanup = multierror.Append(cleanup, err)
	}

	// ── 3. Honor the remember-me preference ──
	if _, remembered := m.store.SavedEmail(ctx); !remembered {
		if err := m.store.ClearSavedEmail(ctx); err != nil {
			cleanup = multierror.Append(cleanup, err)
		}
	}

	// ── 4. Route caches, preserving privileged views for admin tiers ──
	clearType := worker.ClearAllCaches
	if departingUser != nil && departingUser.Role.IsAdminTier() {
		clearType = worker.PreserveAdminCaches
	}
	if err := m.store.NotifyWorker(ctx, worker.AuthStateChanged, string(EventSignedOut)); err != nil {
		cleanup = multierror.Append(cleanup, err)
	}
	if err := m.store.NotifyWorker(ctx, clearType, ""); err != nil {
		cleanup = multierror.Append(cleanup, err)
	}

	return cleanup.ErrorOrNil()
}

/*
RefreshSession rotates the token pair using the stored refresh token.

Description: On success the new pair replaces the session and is persisted;
TOKEN_REFRESHED is published. On failure the existing session is left in
place and a recoverable error returned. Refresh failure never forces a
logout: connectivity blips must not sign the user out.

Parameters:
  - ctx: context.Context

Returns:
  - err: Unauthorized when signed out, AUTH_ERROR on a failed rotation.
*/
func (m *Manager) RefreshSession(ctx context.Context) error {
	current := m.Session()
	if current == nil {
		return apperr.Unauthorized("No active session")
	}

	rotated, err := m.auth.RefreshSession(ctx, current.RefreshToken)
	if err != nil {
		m.log.Warn("token_refresh_failed", slog.Any("error", err))
		return apperr.Auth("Session refresh failed", err)
	}

	m.mu.Lock()
	if m.session == nil {
		// Logged out while the rotation was in flight; drop the result.
		m.mu.Unlock()
		return apperr.Unauthorized("No active session")
	}
	m.session.AccessToken = rotated.AccessToken
	m.session.RefreshToken = rotated.RefreshToken
	m.session.ExpiresAt = rotated.ExpiresAt
	snapshot := *m.session
	m.mu.Unlock()

	m.sink.SetAccessToken(rotated.AccessToken)

	if err := m.persist(ctx, &snapshot); err != nil {
		m.log.Warn("refreshed_session_persist_failed", slog.Any("error", err))
	}

	m.publish(EventTokenRefreshed, &snapshot)
	return nil
}

/*
RefreshUserRole re-syncs the token role claim from the profile store.

Description: The profile store is the stronger source; when the token claim
disagrees, the mismatch is logged and the provider metadata rewritten so the
next issued token carries the profile role. The in-memory session and the
cached role marker are updated either way.

Parameters:
  - ctx: context.Context

Returns:
  - role.Role: The newly resolved role.
  - err: Unauthorized when signed out, or a profile fetch failure.
*/
func (m *Manager) RefreshUserRole(ctx context.Context) (role.Role, error) {
	current := m.Session()
	if current == nil {
		return "", apperr.Unauthorized("No active session")
	}

	profile, err := m.profiles.GetProfile(ctx, current.UserID)
	if err != nil {
		return "", apperr.ProfileFetch("Could not fetch profile for role refresh", err)
	}

	claims := parseTokenClaims(current.AccessToken)
	if claims.Role != "" && role.Canonicalize(claims.Role) != role.Canonicalize(profile.Role) {
		mismatch := apperr.RoleMismatch(claims.Role, profile.Role)
		m.log.Warn("role_claim_mismatch",
			slog.String("claims_role", claims.Role),
			slog.String("profile_role", profile.Role),
			slog.Any("error", mismatch))

		if err := m.auth.UpdateUserMetadata(ctx, current.AccessToken, remote.Claims{Role: profile.Role}); err != nil {
			m.log.Warn("role_claim_resync_failed", slog.Any("error", err))
		}
	}

	resolved := role.Resolve(claims.Role, profile.Role, m.overrideEmail, current.Email)

	m.mu.Lock()
	if m.session != nil {
		m.session.Role = resolved
	}
	if m.user != nil {
		m.user.Role = resolved
	}
	m.mu.Unlock()

	if err := m.store.SaveRole(ctx, string(resolved)); err != nil {
		m.log.Warn("role_marker_save_failed", slog.Any("error", err))
	}
	return resolved, nil
}

// ForgotPassword triggers the provider's password recovery email.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	err := validate.New().
		Required("email", email).
		Email("email", email).
		Err()
	if err != nil {
		return err
	}

	if err := m.auth.ResetPassword(ctx, sec.NormalizeEmail(email)); err != nil {
		return apperr.Auth("Password reset request failed", err)
	}
	return nil
}

// Close stops the background refresh loop. The session itself is left
// intact; Close is lifecycle teardown, not logout.
func (m *Manager) Close() {
	m.stopRefreshLoop()
}

// # Establishment

// establish turns a provider session into the canonical session: persist,
// resolve profile and role, start the refresh loop, publish SIGNED_IN.
func (m *Manager) establish(ctx context.Context, authSession *remote.AuthSession, provisionWait time.Duration) (*User, error) {
	m.sink.SetAccessToken(authSession.AccessToken)

	expiresAt := authSession.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = parseTokenClaims(authSession.AccessToken).ExpiresAt
	}

	// Give the backend provisioning trigger a head start before the first
	// profile read; a fresh account's row may not exist yet.
	if provisionWait > 0 {
		select {
		case <-time.After(provisionWait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	user, err := m.resolveUser(ctx, &authSession.User)
	if err != nil {
		return nil, err
	}

	session := &Session{
		UserID:       authSession.User.ID,
		Email:        authSession.User.Email,
		Role:         user.Role,
		AccessToken:  authSession.AccessToken,
		RefreshToken: authSession.RefreshToken,
		ExpiresAt:    expiresAt,
	}

	m.mu.Lock()
	m.session = session
	m.user = user
	snapshot := *session
	m.mu.Unlock()

	if err := m.persist(ctx, &snapshot); err != nil {
		// The live session works without the cache; restore just will not
		// survive a restart.
		m.log.Warn("session_persist_failed", slog.Any("error", err))
	}
	if err := m.store.SaveRole(ctx, string(user.Role)); err != nil {
		m.log.Warn("role_marker_save_failed", slog.Any("error", err))
	}
	if err := m.store.NotifyWorker(ctx, worker.AuthStateChanged, string(EventSignedIn)); err != nil {
		m.log.Warn("worker_notify_failed", slog.Any("error", err))
	}

	m.startRefreshLoop()
	m.publish(EventSignedIn, &snapshot)

	m.log.Info("session_established",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)))
	return user, nil
}

// resolveUser merges the provider account with the profile store row and
// resolves the role by precedence. The enriched joined view is tried first;
// the plain row is the fallback; local synthesis is the last resort.
func (m *Manager) resolveUser(ctx context.Context, authUser *remote.AuthUser) (*User, error) {
	claims := authUser.Metadata

	full, err := m.profiles.GetFullProfile(ctx, authUser.ID)
	if err == nil {
		resolved := role.Resolve(claims.Role, full.Role, m.overrideEmail, authUser.Email)
		return mergeUser(authUser, &full.ProfileRecord, full, resolved), nil
	}
	m.log.Debug("enriched_profile_unavailable", slog.Any("error", err))

	profile, err := m.profiles.GetProfile(ctx, authUser.ID)
	if err == nil {
		resolved := role.Resolve(claims.Role, profile.Role, m.overrideEmail, authUser.Email)
		return mergeUser(authUser, profile, nil, resolved), nil
	}
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		return nil, apperr.ProfileFetch("Could not load user profile", err)
	}

	// The first read beat the provisioning trigger. Synthesize the row
	// from the signup claims and insert it ourselves.
	synthesized := &remote.ProfileRecord{
		ID:           authUser.ID,
		Email:        authUser.Email,
		Name:         claims.Name,
		Role:         string(role.RoleUser),
		Phone:        claims.Phone,
		StudentID:    claims.StudentID,
		DepartmentID: claims.DepartmentID,
		BatchID:      claims.BatchID,
		SectionID:    claims.SectionID,
		CreatedAt:    authUser.CreatedAt,
	}
	if synthesized.Name == "" {
		synthesized.Name = nameFromEmail(authUser.Email)
	}

	stored, err := m.profiles.InsertProfile(ctx, synthesized)
	if err != nil {
		// Keep the login alive on the local synthesis; the trigger will
		// reconcile the row on its own schedule.
		m.log.Warn("profile_synthesis_insert_failed", slog.Any("error", err))
		stored = synthesized
	}

	resolved := role.Resolve(claims.Role, stored.Role, m.overrideEmail, authUser.Email)
	return mergeUser(authUser, stored, nil, resolved), nil
}

func mergeUser(authUser *remote.AuthUser, profile *remote.ProfileRecord, full *remote.FullProfileRecord, resolved role.Role) *User {
	user := &User{
		ID:           authUser.ID,
		Email:        authUser.Email,
		Name:         profile.Name,
		Role:         resolved,
		Phone:        profile.Phone,
		Avatar:       profile.Avatar,
		StudentID:    profile.StudentID,
		DepartmentID: profile.DepartmentID,
		BatchID:      profile.BatchID,
		SectionID:    profile.SectionID,
		CreatedAt:    profile.CreatedAt,
		LastActive:   profile.LastActive,
	}
	if user.Name == "" {
		user.Name = nameFromEmail(authUser.Email)
	}
	if full != nil {
		user.DepartmentName = full.DepartmentName
		user.BatchName = full.BatchName
		user.SectionName = full.SectionName
	}
	return user
}

// persist writes the session record through the coordinator.
func (m *Manager) persist(ctx context.Context, session *Session) error {
	return m.store.WriteSession(ctx, &cache.SessionRecord{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.ExpiresAt,
		UserID:       session.UserID,
		Email:        session.Email,
	})
}

// # Refresh Loop

// startRefreshLoop schedules the fixed-interval token rotation. Restarting
// replaces any previous loop.
func (m *Manager) startRefreshLoop() {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	if m.refreshCancel != nil {
		m.refreshCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.refreshCancel = cancel

	go func() {
		ticker := time.NewTicker(constants.TokenRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// The cadence is fixed and independent of user activity.
				// Errors are logged inside RefreshSession; the loop keeps
				// going so one failed beat does not end rotation.
				refreshCtx, done := context.WithTimeout(ctx, constants.RemoteRequestTimeout)
				_ = m.RefreshSession(refreshCtx)
				done()
			}
		}
	}()
}

func (m *Manager) stopRefreshLoop() {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	if m.refreshCancel != nil {
		m.refreshCancel()
		m.refreshCancel = nil
	}
}

// publish fans an event out to subscribers, outside the state lock.
func (m *Manager) publish(event Event, session *Session) {
	m.mu.RLock()
	subscribers := make([]func(Event, *Session), len(m.subscribers))
	copy(subscribers, m.subscribers)
	m.mu.RUnlock()

	for _, fn := range subscribers {
		fn(event, session)
	}
}
