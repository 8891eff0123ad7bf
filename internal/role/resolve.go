// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package role

import (
	"strings"

	"github.com/nesttask/client/internal/platform/sec"
)

// Canonicalize collapses an arbitrary role spelling to its canonical token.
//
// The identity provider and the profile store historically disagreed on
// hyphen versus underscore spellings, so every boundary that receives a role
// string runs it through here first. Unknown or empty input yields the empty
// Role, which resolution treats as "absent".
func Canonicalize(raw string) Role {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", "-")

	candidate := Role(normalized)
	if candidate.Valid() {
		return candidate
	}
	return ""
}

// Resolve computes the effective role from its possible sources.
//
// Precedence, highest first:
//
//  1. overrideEmail match — the configured administrative identity is always
//     granted the highest role, even if the backing profile record is
//     corrupted. This is the break-glass guarantee.
//  2. profileRole, if present and non-empty.
//  3. claimsRole from the identity provider metadata.
//  4. Default [RoleUser].
//
// Resolution is pure and synchronous. Idempotent: resolving an already
// resolved value yields the same canonical token.
func Resolve(claimsRole, profileRole, overrideEmail, actualEmail string) Role {
	if overrideEmail != "" &&
		sec.NormalizeEmail(actualEmail) == sec.NormalizeEmail(overrideEmail) {
		return RoleSuperAdmin
	}

	if resolved := Canonicalize(profileRole); resolved != "" {
		return resolved
	}

	if resolved := Canonicalize(claimsRole); resolved != "" {
		return resolved
	}

	return RoleUser
}
