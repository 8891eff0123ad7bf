// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package sec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nesttask/client/internal/platform/sec"
)

/*
TestSealer_RoundTrip verifies Seal/Open symmetry and that the ciphertext
never contains the plaintext.
*/
func TestSealer_RoundTrip(t *testing.T) {
	sealer, err := sec.NewSealer("test-secret")
	require.NoError(t, err)

	plaintext := []byte(`{"access_token":"secret-token"}`)
	sealed, err := sealer.Seal(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "secret-token")

	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

/*
TestSealer_TamperDetection verifies that a modified payload fails to open.
*/
func TestSealer_TamperDetection(t *testing.T) {
	sealer, err := sec.NewSealer("test-secret")
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("payload"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xff
	_, err = sealer.Open(sealed)
	assert.Error(t, err)
}

/*
TestSealer_SecretRotationInvalidates verifies that an entry sealed under
one secret cannot be opened under another.
*/
func TestSealer_SecretRotationInvalidates(t *testing.T) {
	oldSealer, err := sec.NewSealer("old-secret")
	require.NoError(t, err)
	newSealer, err := sec.NewSealer("new-secret")
	require.NoError(t, err)

	sealed, err := oldSealer.Seal([]byte("payload"))
	require.NoError(t, err)

	_, err = newSealer.Open(sealed)
	assert.Error(t, err)
}

/*
TestNewSealer_EmptySecret verifies the configuration guard.
*/
func TestNewSealer_EmptySecret(t *testing.T) {
	_, err := sec.NewSealer("")
	assert.Error(t, err)
}

/*
TestNormalizeEmail verifies case folding of the local part and domain.
*/
func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"mixed_case", "Member@NestTask.Com", "member@nesttask.com"},
		{"already_lower", "member@nesttask.com", "member@nesttask.com"},
		{"no_at_sign", "NOT-AN-EMAIL", "not-an-email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sec.NormalizeEmail(tt.input))
		})
	}
}
