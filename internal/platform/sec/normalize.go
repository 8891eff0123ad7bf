// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package sec

import (
	"strings"

	"golang.org/x/text/secure/precis"
)

// NormalizeEmail canonicalizes an email address for comparison.
//
// # Why PRECIS?
//
// The break-glass override grants the highest role when the session email
// matches the configured administrative identity. A naive byte comparison
// can be defeated (or accidentally broken) by Unicode confusables and case
// variants, so the local part is run through the PRECIS UsernameCaseMapped
// profile and the domain is lowercased.
//
// Invalid input is returned trimmed and lowercased rather than rejected:
// normalization here serves comparison, not validation.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)

	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return strings.ToLower(email)
	}

	local, domain := email[:at], email[at+1:]
	if mapped, err := precis.UsernameCaseMapped.String(local); err == nil {
		local = mapped
	} else {
		local = strings.ToLower(local)
	}

	return local + "@" + strings.ToLower(domain)
}
