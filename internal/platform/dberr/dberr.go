// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/nesttask/client/internal/platform/apperr"
)

// ErrNotFound is the standard error returned when a queried row doesn't exist.
var ErrNotFound = apperr.NotFound("Cache entry")

// Wrap inspects a database error and wraps it into a meaningful
// [apperr.AppError]. It hides storage details from callers while classifying
// the error type.
func Wrap(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	return apperr.Internal(err)
}
