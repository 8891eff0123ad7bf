// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

// Package pointer provides utilities for working with pointers in Go.
//
// Task updates are sparse (only the fields the user touched are sent), so
// update payloads are built from pointer fields. These helpers keep that
// construction free of boilerplate.
package pointer

// To returns a pointer to the provided value.
func To[T any](v T) *T {
	return &v
}

// Val safely dereferences a pointer.
// If the pointer is nil, it returns the zero value of the underlying type.
func Val[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// Fallback safely dereferences a pointer.
// If the pointer is nil, it returns the provided fallback value instead.
func Fallback[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
