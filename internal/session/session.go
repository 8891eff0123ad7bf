// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

/*
Package session owns the authenticated session and its lifecycle.

It handles everything from credential login and signup auto-provisioning to
cached-session restore, fixed-interval token refresh, and teardown that
survives partial failure.

Architecture:

  - Manager: Single owner of the Session. All auth transitions flow
    through it; other components observe through subscriptions.
  - RecoveryMonitor: Background validity watchdog for privilege-gated
    views, with a bounded verification cache.
  - Cache coordination: Session material is persisted through the cache
    coordinator, never written to a store directly.

The manager never exposes mutable session state: accessors return copies,
and the only writers are the manager's own operations.
*/
package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nesttask/client/internal/role"
)

// # Auth Events

// Event is an auth lifecycle notification published to subscribers.
type Event string

const (
	// EventSignedIn fires after a login, signup, or cached-session restore
	// completes with a resolved user.
	EventSignedIn Event = "SIGNED_IN"
	// EventSignedOut fires at the start of teardown, before remote
	// revocation is attempted.
	EventSignedOut Event = "SIGNED_OUT"
	// EventTokenRefreshed fires after a successful token rotation.
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// # Session & User

// Session is the canonical authenticated-session state. Exactly one live
// value exists per [Manager]; copies handed to subscribers are snapshots.
type Session struct {
	UserID       string
	Email        string
	Role         role.Role
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the access token's lifetime has passed.
func (s *Session) Expired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// User is the merged view of the identity-provider account and the profile
// store row, with the role already resolved by precedence.
type User struct {
	ID             string
	Email          string
	Name           string
	Role           role.Role
	Phone          string
	Avatar         string
	StudentID      string
	DepartmentID   string
	BatchID        string
	SectionID      string
	DepartmentName string
	BatchName      string
	SectionName    string
	CreatedAt      time.Time
	LastActive     *time.Time
}

// # Token Introspection

// tokenClaims is the subset of JWT claims the manager reads locally.
type tokenClaims struct {
	Role      string
	ExpiresAt time.Time
}

// parseTokenClaims extracts the role claim and expiry from an access token
// without verifying the signature. Verification is the server's job; the
// client only needs the claims for precedence input and refresh scheduling.
func parseTokenClaims(accessToken string) tokenClaims {
	var out tokenClaims

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return out
	}

	if raw, ok := claims["role"].(string); ok {
		out.Role = raw
	}
	// Supabase-style tokens carry the app role under user_metadata as well;
	// it wins over the top-level postgres role.
	if meta, ok := claims["user_metadata"].(map[string]any); ok {
		if raw, ok := meta["role"].(string); ok && raw != "" {
			out.Role = raw
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out
}

// nameFromEmail derives a display name from the local part of an email,
// used when signup metadata carried no name.
func nameFromEmail(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return email
	}
	return local
}
