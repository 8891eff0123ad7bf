// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

/*
Package remote defines the consumed contract of the identity/data service
and its transport implementations.

# Architecture

The backend is an external collaborator: an opaque request/response service
plus a change subscription. This package owns (a) the wire types, (b) the
narrow interfaces the core components depend on, and (c) the HTTP and
Pub/Sub implementations. Nothing here contains business rules — role
resolution, caching, and retry policy all live above this layer.
*/
package remote

import (
	"context"
	"time"
)

// # Wire Types

// Claims is the identity-provider metadata attached to an account at signup.
// It may lag behind the profile store immediately after provisioning.
type Claims struct {
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Role         string `json:"role,omitempty"`
	StudentID    string `json:"studentId,omitempty"`
	DepartmentID string `json:"departmentId,omitempty"`
	BatchID      string `json:"batchId,omitempty"`
	SectionID    string `json:"sectionId,omitempty"`
}

// AuthUser is the identity-provider view of an account.
type AuthUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Metadata  Claims    `json:"user_metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthSession is the token pair issued by the identity provider.
type AuthSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         AuthUser  `json:"user"`
}

// ProfileRecord is a row of the remote users table.
type ProfileRecord struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	Phone        string     `json:"phone,omitempty"`
	Avatar       string     `json:"avatar,omitempty"`
	StudentID    string     `json:"student_id,omitempty"`
	DepartmentID string     `json:"department_id,omitempty"`
	BatchID      string     `json:"batch_id,omitempty"`
	SectionID    string     `json:"section_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActive   *time.Time `json:"last_active,omitempty"`
}

// FullProfileRecord is a row of the joined users_with_full_info view,
// available for privileged-role profile completion.
type FullProfileRecord struct {
	ProfileRecord
	DepartmentName string `json:"department_name,omitempty"`
	BatchName      string `json:"batch_name,omitempty"`
	SectionName    string `json:"section_name,omitempty"`
}

// TaskRecord is a row of the remote tasks table.
type TaskRecord struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"user_id"`
	SectionID   string    `json:"section_id,omitempty"`
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	DueAt       time.Time `json:"due_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskChanges is a sparse update: only non-nil fields are sent.
type TaskChanges struct {
	Name        *string    `json:"name,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *string    `json:"status,omitempty"`
	DueAt       *time.Time `json:"due_date,omitempty"`
	SectionID   *string    `json:"section_id,omitempty"`
}

// ChangeEvent is a server-pushed signal that backing data changed. It
// carries identity of the change, not the changed data itself; consumers
// reload.
type ChangeEvent struct {
	Table     string `json:"table"`
	OwnerID   string `json:"owner_id"`
	Kind      string `json:"kind"` // INSERT | UPDATE | DELETE
	Timestamp int64  `json:"timestamp"`
}

// SignupDetails is the metadata captured at account creation.
type SignupDetails struct {
	Email        string
	Password     string
	Name         string
	Phone        string
	StudentID    string
	DepartmentID string
	BatchID      string
	SectionID    string
}

// # Consumed Interfaces

// AuthAPI is the identity-provider surface the session manager consumes.
type AuthAPI interface {
	// SignInWithPassword exchanges credentials for a token pair.
	SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error)

	// SignUp registers a new account with the given metadata claims.
	SignUp(ctx context.Context, details SignupDetails) (*AuthSession, error)

	// GetUser validates an access token and returns the account behind it.
	// Returns [apperr.Unauthorized] when the token is no longer accepted.
	GetUser(ctx context.Context, accessToken string) (*AuthUser, error)

	// RefreshSession exchanges a refresh token for a new token pair.
	RefreshSession(ctx context.Context, refreshToken string) (*AuthSession, error)

	// SignOut revokes the local session scope on the provider.
	SignOut(ctx context.Context, accessToken string) error

	// ResetPassword triggers the provider's password recovery email.
	ResetPassword(ctx context.Context, email string) error

	// UpdateUserMetadata rewrites the account's metadata claims.
	UpdateUserMetadata(ctx context.Context, accessToken string, claims Claims) error
}

// ProfileAPI is the profile-store surface.
type ProfileAPI interface {
	// GetProfile returns the plain users row. Returns [apperr.NotFound]
	// when the provisioning trigger has not created it yet.
	GetProfile(ctx context.Context, userID string) (*ProfileRecord, error)

	// GetFullProfile returns the joined users_with_full_info row.
	GetFullProfile(ctx context.Context, userID string) (*FullProfileRecord, error)

	// InsertProfile creates a profile row, used when the first-login race
	// beat the provisioning trigger. Returns the stored row.
	InsertProfile(ctx context.Context, record *ProfileRecord) (*ProfileRecord, error)
}

// TaskAPI is the task-store surface.
type TaskAPI interface {
	// ListTasks returns every task owned by the user or shared with the
	// section. Section scoping is always included, not conditionally.
	ListTasks(ctx context.Context, userID, sectionID string) ([]TaskRecord, error)

	// InsertTask stores a new task and returns the stored row.
	InsertTask(ctx context.Context, record *TaskRecord) (*TaskRecord, error)

	// UpdateTask applies sparse changes and returns the stored row.
	UpdateTask(ctx context.Context, taskID string, changes TaskChanges) (*TaskRecord, error)

	// DeleteTask removes the task.
	DeleteTask(ctx context.Context, taskID string) error
}

// Realtime is the change-subscription surface.
type Realtime interface {
	// SubscribeTasks delivers task change events filtered by owning user.
	// The returned cancel function stops delivery.
	SubscribeTasks(ctx context.Context, userID string, fn func(ChangeEvent)) (cancel func(), err error)
}

// Pinger is the reachability probe used by the offline detector and the
// readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}
