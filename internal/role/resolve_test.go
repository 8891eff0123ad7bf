// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package role_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nesttask/client/internal/role"
)

const overrideEmail = "superadmin@nesttask.com"

/*
TestCanonicalize verifies that alias spellings collapse to one canonical
token and unknown values are treated as absent.
*/
func TestCanonicalize(t *testing.T) {
	assert.Equal(t, role.RoleSuperAdmin, role.Canonicalize("super_admin"))
	assert.Equal(t, role.RoleSuperAdmin, role.Canonicalize("super-admin"))
	assert.Equal(t, role.RoleSuperAdmin, role.Canonicalize("  Super_Admin "))
	assert.Equal(t, role.RoleSectionAdmin, role.Canonicalize("section_admin"))
	assert.Equal(t, role.RoleUser, role.Canonicalize("user"))

	assert.Equal(t, role.Role(""), role.Canonicalize(""))
	assert.Equal(t, role.Role(""), role.Canonicalize("moderator"))
}

/*
TestResolve_Precedence verifies the documented source precedence:
override email, then profile, then claims, then default.
*/
func TestResolve_Precedence(t *testing.T) {
	// 1. Override email wins even over a corrupted profile role.
	got := role.Resolve("user", "user", overrideEmail, overrideEmail)
	assert.Equal(t, role.RoleSuperAdmin, got)

	// Case and whitespace variants of the override email still match.
	got = role.Resolve("user", "user", overrideEmail, " SuperAdmin@NestTask.com ")
	assert.Equal(t, role.RoleSuperAdmin, got)

	// 2. Profile role beats claims role.
	got = role.Resolve("user", "section-admin", overrideEmail, "member@diu.edu.bd")
	assert.Equal(t, role.RoleSectionAdmin, got)

	// 3. Claims role used when the profile role is absent.
	got = role.Resolve("admin", "", overrideEmail, "member@diu.edu.bd")
	assert.Equal(t, role.RoleAdmin, got)

	// 4. Default when nothing is present.
	got = role.Resolve("", "", overrideEmail, "member@diu.edu.bd")
	assert.Equal(t, role.RoleUser, got)
}

/*
TestResolve_AliasSpelling verifies that underscore aliases from either
source never leak through resolution.
*/
func TestResolve_AliasSpelling(t *testing.T) {
	got := role.Resolve("user", "super_admin", overrideEmail, "member@diu.edu.bd")
	assert.Equal(t, role.RoleSuperAdmin, got)

	got = role.Resolve("section_admin", "", overrideEmail, "member@diu.edu.bd")
	assert.Equal(t, role.RoleSectionAdmin, got)

	// Idempotent: resolving an already canonical value changes nothing.
	again := role.Resolve("", string(got), overrideEmail, "member@diu.edu.bd")
	assert.Equal(t, got, again)
}

/*
TestResolve_NullProfileRole covers session restoration with a profile whose
role field is null and claims role "user".
*/
func TestResolve_NullProfileRole(t *testing.T) {
	got := role.Resolve("user", "", overrideEmail, "student@diu.edu.bd")
	assert.Equal(t, role.RoleUser, got)
}

/*
TestRole_Tiers verifies the privilege hierarchy helpers used by the cache
preservation policy.
*/
func TestRole_Tiers(t *testing.T) {
	assert.True(t, role.RoleSuperAdmin.IsAdminTier())
	assert.True(t, role.RoleSectionAdmin.IsAdminTier())
	assert.True(t, role.RoleAdmin.IsAdminTier())
	assert.False(t, role.RoleUser.IsAdminTier())

	assert.True(t, role.RoleSuperAdmin.AtLeast(role.RoleSectionAdmin))
	assert.False(t, role.RoleAdmin.AtLeast(role.RoleSectionAdmin))
}
