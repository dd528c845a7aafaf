// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package secret seals credentials at rest.
//
// Values are encrypted with AES-256-GCM under a key derived from a
// passphrase with PBKDF2-SHA-256. Each sealed value carries its own salt:
//
//	ENC:base64(salt | nonce | ciphertext | tag)
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// SealedPrefix marks a sealed value.
const SealedPrefix = "ENC:"

const (
	// NonceSize is the AES-GCM nonce size (96 bits).
	NonceSize = 12
	// KeySize is the AES-256 key size.
	KeySize = 32
	// SaltSize is the per-value PBKDF2 salt size.
	SaltSize = 16
	// DefaultIterations follows the OWASP 2023 guidance for PBKDF2-SHA-256.
	DefaultIterations = 600000
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoPassphrase is returned when a Sealer is built without a passphrase.
	ErrNoPassphrase = errors.New("secret: empty passphrase")
	// ErrInvalidSealed indicates the sealed value is malformed.
	ErrInvalidSealed = errors.New("secret: invalid sealed value")
	// ErrOpenFailed indicates a wrong passphrase or tampered data.
	ErrOpenFailed = errors.New("secret: authentication failed (wrong passphrase?)")
)

// =============================================================================
// SEALER
// =============================================================================

// Sealer seals and opens values with one passphrase.
type Sealer struct {
	passphrase []byte
	iterations int
}

// Option configures a Sealer.
type Option func(*Sealer)

// WithIterations overrides the PBKDF2 iteration count.
func WithIterations(n int) Option {
	return func(s *Sealer) {
		if n > 0 {
			s.iterations = n
		}
	}
}

// New creates a Sealer for passphrase.
func New(passphrase string, opts ...Option) (*Sealer, error) {
	if passphrase == "" {
		return nil, ErrNoPassphrase
	}
	s := &Sealer{passphrase: []byte(passphrase), iterations: DefaultIterations}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Seal encrypts plaintext and returns the prefixed, encoded form.
func (s *Sealer) Seal(plaintext string) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("secret: salt: %w", err)
	}
	aead, err := s.aead(salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secret: nonce: %w", err)
	}

	out := make([]byte, 0, SaltSize+NonceSize+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a sealed value. Values without the prefix are returned
// unchanged.
func (s *Sealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSealed, err)
	}
	if len(data) < SaltSize+NonceSize {
		return "", ErrInvalidSealed
	}

	salt, rest := data[:SaltSize], data[SaltSize:]
	nonce, ciphertext := rest[:NonceSize], rest[NonceSize:]

	aead, err := s.aead(salt)
	if err != nil {
		return "", err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrOpenFailed
	}
	return string(plaintext), nil
}

// IsSealed reports whether value carries the sealed prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

func (s *Sealer) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(s.passphrase, salt, s.iterations, KeySize, sha256.New)
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secret: cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// zeroBytes clears key material once the cipher has been built.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
