// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

// Package role defines the canonical privilege tiers of the NestTask client
// and the pure resolution logic that collapses conflicting role signals into
// one value.
//
// # Architecture
//
// Entities in this package represent the "Truth" of privilege decisions.
// They perform no I/O: callers supply the already-fetched claims and profile
// data, and resolution happens once per identity-refresh event.
package role

// Role represents the authorization tier granted to an account.
//
// # Invariant
//
// Exactly one canonical spelling exists per role. Alias spellings (for
// example the underscore variant "super_admin") are collapsed by
// [Canonicalize] before storage or comparison.
type Role string

const (
	RoleSuperAdmin   Role = "super-admin"   // Unrestricted, break-glass tier.
	RoleSectionAdmin Role = "section-admin" // Manages one section's tasks.
	RoleAdmin        Role = "admin"         // Manages application content.
	RoleUser         Role = "user"          // Default role for members.
)

// level maps a role to a numeric hierarchy level to easily check permissions.
func (r Role) level() int {
	switch r {
	case RoleSuperAdmin:
		return 40
	case RoleSectionAdmin:
		return 30
	case RoleAdmin:
		return 20
	case RoleUser:
		return 10
	default:
		return 0
	}
}

// AtLeast checks if the current role meets or exceeds the required target role.
//
// # Why numeric mapping?
//
// Using numeric levels allows simple >= comparisons instead of nested
// IF/SWITCH statements when deciding whether a section admin may perform an
// admin-level action.
func (r Role) AtLeast(target Role) bool {
	return r.level() >= target.level()
}

// IsAdminTier reports whether the role belongs to the privileged tier.
// The cache coordinator preserves admin-route entries for these roles.
func (r Role) IsAdminTier() bool {
	return r.AtLeast(RoleAdmin)
}

// Valid reports whether r is one of the four canonical roles.
func (r Role) Valid() bool {
	return r.level() > 0
}
