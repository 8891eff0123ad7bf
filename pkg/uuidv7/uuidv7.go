// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

// Package uuidv7 wraps google/uuid to generate time-ordered UUIDv7 values.
//
// Synthesized profile rows and locally originated task IDs use UUIDv7 so the
// remote tables index them without fragmentation.
package uuidv7

import "github.com/google/uuid"

// New generates a new UUIDv7 string.
//
// It panics only if the OS random source is unavailable, which is an
// unrecoverable system-level failure.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("uuidv7: failed to generate UUID: " + err.Error())
	}

	return id.String()
}
