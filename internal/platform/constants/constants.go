// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

/*
Package constants provides centralized, immutable values for the client core.

It defines default timeouts, retry policies, and cross-cutting cache keys that
are shared between different layers of the system.

Categories:

  - Session Timing: token refresh cadence and recovery re-check windows.
  - Sync Retry: backoff base, ceiling, and attempt cap for task fetches.
  - Cache Taxonomy: persisted key names and route tags.
  - Worker Protocol: coordination message and acknowledgment types.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "nesttask-client"
	AppVersion = "0.1.0-dev"

	// SignupEmailDomain is the university mail domain required at account
	// creation. Existing accounts are exempt; only signup enforces it.
	SignupEmailDomain = "diu.edu.bd"
)

// # Session Timing

const (
	// TokenRefreshInterval is the fixed cadence of the background token
	// refresh. It is independent of user activity.
	TokenRefreshInterval = 12 * time.Hour

	// RecoveryCacheTTL bounds how long the recovery monitor trusts its
	// cached session info before forcing a fresh remote check.
	RecoveryCacheTTL = 5 * time.Minute

	// ProfileProvisionWait is how long login waits for the backend trigger
	// to create the profile row before reading it.
	ProfileProvisionWait = 1 * time.Second

	// SignupProvisionWait is the longer wait after signup, when the trigger
	// has to assemble department/batch/section links as well.
	SignupProvisionWait = 2 * time.Second

	// OfflineProbeInterval is the cadence of the background reachability
	// probe feeding the offline detector.
	OfflineProbeInterval = 30 * time.Second
)

// # Sync Retry

const (
	// SyncRetryBase is the delay before the first retry.
	SyncRetryBase = 1000 * time.Millisecond

	// SyncRetryCeiling caps the exponential backoff delay.
	SyncRetryCeiling = 10000 * time.Millisecond

	// SyncRetryAttempts is the maximum number of retries after the initial
	// failed fetch. Exhausting it is terminal for that load call.
	SyncRetryAttempts = 3
)

// # Worker Protocol

const (
	// WorkerAckWait bounds how long the coordinator waits for the cache
	// worker to acknowledge a coordination message before proceeding anyway.
	WorkerAckWait = 1 * time.Second
)

// # Cache Taxonomy

const (
	// CacheKeySession holds the sealed session payload.
	CacheKeySession = "session"

	// CacheKeyEmail holds the saved login email for "remember me".
	CacheKeyEmail = "email"

	// CacheKeyRememberMe holds the remember-me preference flag.
	CacheKeyRememberMe = "remember_me"

	// CacheKeyRole holds the last resolved role, kept for refresh detection.
	CacheKeyRole = "user_role"

	// CachePrefixRoute tags cached route assets owned by the application.
	CachePrefixRoute = "route:"

	// CachePrefixAdminRoute tags route assets belonging to privileged views.
	// These survive a selective clear for admin-tier users.
	CachePrefixAdminRoute = "route:admin:"
)

// # Remote Access

const (
	// RemoteRequestTimeout is the per-request deadline for REST calls.
	RemoteRequestTimeout = 15 * time.Second

	// RemoteRateLimitRPS caps outbound requests per second to the service.
	RemoteRateLimitRPS = 20.0

	// RemoteRateLimitBurst is the burst capacity of the outbound limiter.
	RemoteRateLimitBurst = 40
)

// # Realtime Channels

const (
	// RealtimeTaskChannelPrefix is the Pub/Sub channel prefix for task
	// change notifications. The owning user ID is appended.
	RealtimeTaskChannelPrefix = "changes:tasks:"
)

// # Status Server Timing

const (
	// StatusReadTimeout is the maximum duration for reading a status request.
	StatusReadTimeout = 5 * time.Second

	// StatusWriteTimeout is the maximum duration for writing a status response.
	StatusWriteTimeout = 10 * time.Second

	// ShutdownTimeout is how long Dispose waits for components to stop.
	ShutdownTimeout = 10 * time.Second
)
