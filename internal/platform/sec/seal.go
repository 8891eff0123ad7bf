// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

// Package sec provides cryptographic primitives for the client core.
//
// # Architecture
//
// This package isolates security-sensitive code (cache sealing, identifier
// normalization) from the domain logic. Session payloads contain access and
// refresh tokens; they are sealed with an AEAD before reaching any cache
// backend so a copied Redis dump or database row does not leak credentials.
package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const keyLen = chacha20poly1305.KeySize

// Sealer encrypts and decrypts cache payloads with XChaCha20-Poly1305.
//
// The key is derived once from the configured cache secret via HKDF-SHA256,
// so rotating the secret invalidates every sealed entry at once.
type Sealer struct {
	key []byte
}

// NewSealer derives the sealing key from the configured secret.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("sec: empty cache secret")
	}

	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte("nesttask/cache-seal/v1"))
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("sec: key derivation failed: %w", err)
	}

	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext with a random nonce. The nonce is prepended to the
// returned ciphertext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, nil)...)
	return out, nil
}

// Open decrypts a sealed payload produced by [Sealer.Seal].
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("sec: sealed payload too short")
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}

	nonce := sealed[:chacha20poly1305.NonceSizeX]
	ciphertext := sealed[chacha20poly1305.NonceSizeX:]
	return aead.Open(nil, nonce, ciphertext, nil)
}
