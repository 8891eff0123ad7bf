// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

/*
Package apperr defines the centralized error handling framework for the
NestTask client core.

It provides a rich error type that bridges the gap between low-level remote
and storage errors and the taxonomy the embedding UI layer consumes.

Architecture:

  - AppError: A struct containing a machine-readable Code and a user-friendly message.
  - Taxonomy: Auth, profile, offline, and sync-retry errors each carry a fixed code
    so the UI can branch on them without string matching.
  - Mapping: Remote HTTP statuses are mapped to AppError at the client boundary.

Every error that leaves a service layer should be wrapped as an [AppError] to
ensure consistent caller-facing behavior.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// # Error Codes

const (
	CodeAuthError          = "AUTH_ERROR"
	CodeProfileFetchError  = "PROFILE_FETCH_ERROR"
	CodeRoleMismatch       = "ROLE_MISMATCH"
	CodeOfflineMode        = "OFFLINE_MODE"
	CodeOfflineOperation   = "OFFLINE_OPERATION"
	CodeSyncRetryExhausted = "SYNC_RETRY_EXHAUSTED"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeValidation         = "VALIDATION_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// AppError is the canonical error type for the NestTask client core.
//
// It carries a machine-readable code, a caller-safe message, the HTTP status
// observed on the remote boundary (zero for purely local errors), and an
// optional cause.
//
// # Security
//
// The Cause field is for logging only and is never surfaced to the embedding
// UI, to avoid leaking tokens or request internals.
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "OFFLINE_MODE").
	Code string `json:"code"`
	// Message is a human-readable description safe to surface to the UI.
	Message string `json:"error"`
	// HTTPStatus is the remote response status, when one was involved.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR results.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the input field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the caller-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Authentication Errors

// Auth creates an AUTH_ERROR for invalid credentials, a missing session, or
// a network failure during an auth exchange.
func Auth(msg string, cause error) *AppError {
	return &AppError{
		Code:    CodeAuthError,
		Message: msg,
		Cause:   cause,
	}
}

// Unauthorized creates an UNAUTHORIZED error mapped from a 401 response.
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// # Profile Errors

// ProfileFetch creates a PROFILE_FETCH_ERROR. Callers recover locally by
// synthesizing and inserting a default profile.
func ProfileFetch(msg string, cause error) *AppError {
	return &AppError{
		Code:    CodeProfileFetchError,
		Message: msg,
		Cause:   cause,
	}
}

// RoleMismatch creates a non-fatal ROLE_MISMATCH warning, raised when claims
// and the stored profile disagree on the role. It is logged, never escalated:
// resolution order decides the effective role.
func RoleMismatch(claims, profile string) *AppError {
	return &AppError{
		Code:    CodeRoleMismatch,
		Message: fmt.Sprintf("role mismatch: claims=%q profile=%q", claims, profile),
	}
}

// # Offline Errors

// OfflineMode creates an OFFLINE_MODE error. Reads fail with it while the
// client is offline; stale data is never shown as current.
func OfflineMode() *AppError {
	return &AppError{
		Code:    CodeOfflineMode,
		Message: "Offline mode: cannot fetch tasks while offline",
	}
}

// OfflineOperation creates an OFFLINE_OPERATION error. Mutations fail with it
// immediately while offline; they are never queued.
func OfflineOperation(op string) *AppError {
	return &AppError{
		Code:    CodeOfflineOperation,
		Message: "Cannot " + op + " while offline. Please connect to the internet and try again.",
	}
}

// # Sync Errors

// SyncRetryExhausted creates the terminal error surfaced after the retry cap
// is reached. The last underlying failure is kept as the cause.
func SyncRetryExhausted(attempts int, cause error) *AppError {
	return &AppError{
		Code:    CodeSyncRetryExhausted,
		Message: fmt.Sprintf("task sync failed after %d attempts", attempts),
		Cause:   cause,
	}
}

// ValidationError creates a VALIDATION_ERROR with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// # Generic Errors

// NotFound creates a NOT_FOUND error for a named resource.
//
// Example:
//
//	apperr.NotFound("Profile") // Returns "Profile not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Internal creates an INTERNAL_ERROR wrapping an unexpected failure.
// The cause is stored for logging but never surfaced.
func Internal(cause error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "An unexpected error occurred",
		Cause:   cause,
	}
}

// # Helpers

// IsCode reports whether err (or any error in its chain) is an [*AppError]
// with the given code.
func IsCode(err error, code string) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.Code == code
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}
