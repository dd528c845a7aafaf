// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package secret

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSealer(t *testing.T, pass string) *Sealer {
	t.Helper()
	s, err := New(pass, WithIterations(1000))
	require.NoError(t, err)
	return s
}

func TestSealOpen(t *testing.T) {
	s := newTestSealer(t, "correct horse")

	sealed, err := s.Seal("sk-test-123")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "sk-test-123")

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", opened)
}

func TestSeal_UniquePerCall(t *testing.T) {
	s := newTestSealer(t, "pw")
	a, err := s.Seal("same")
	require.NoError(t, err)
	b, err := s.Seal("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpen_Plaintext(t *testing.T) {
	s := newTestSealer(t, "pw")
	got, err := s.Open("sk-plain")
	require.NoError(t, err)
	assert.Equal(t, "sk-plain", got)
}

func TestOpen_WrongPassphrase(t *testing.T) {
	sealed, err := newTestSealer(t, "one").Seal("secret")
	require.NoError(t, err)

	_, err = newTestSealer(t, "two").Open(sealed)
	assert.ErrorIs(t, err, ErrOpenFailed)
}

func TestOpen_Malformed(t *testing.T) {
	s := newTestSealer(t, "pw")

	_, err := s.Open(SealedPrefix + "!!!not base64")
	assert.ErrorIs(t, err, ErrInvalidSealed)

	_, err = s.Open(SealedPrefix + "AAAA")
	assert.ErrorIs(t, err, ErrInvalidSealed)

	sealed, err := s.Seal("secret")
	require.NoError(t, err)
	tampered := sealed[:len(sealed)-4] + strings.Repeat("A", 4)
	if tampered != sealed {
		_, err = s.Open(tampered)
		assert.Error(t, err)
	}
}

func TestNew_EmptyPassphrase(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrNoPassphrase)
}
