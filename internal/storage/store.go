// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// =============================================================================
// KEYS
// =============================================================================

// KeyPrefix namespaces every persisted record.
const KeyPrefix = "museAI_"

const (
	KeyState         = KeyPrefix + "appState"
	KeySettings      = KeyPrefix + "apiSettings"
	KeyConversations = KeyPrefix + "conversations"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store persists JSON-serializable values by key.
type Store interface {
	// Get decodes the value stored under key into v. It reports false
	// when the key is absent.
	Get(key string, v any) (bool, error)

	// Set encodes v and stores it under key, replacing any previous value.
	Set(key string, v any) error

	// Close releases backend resources.
	Close() error
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrCorrupt is returned when a stored value cannot be decoded.
	ErrCorrupt = errors.New("stored value is corrupt")

	// ErrInvalidKey is returned for empty keys or keys that are not
	// safe to use as file names.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrUnknownBackend is returned by Open for unsupported backends.
	ErrUnknownBackend = errors.New("unknown storage backend")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
)

// =============================================================================
// BACKEND SELECTION
// =============================================================================

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// SQLiteFileName is the database file created by Open for BackendSQLite.
const SQLiteFileName = "muse.db"

// Open creates the store for backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		return NewFileStore(dir)
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, SQLiteFileName))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\:`) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func encode(key string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return data, nil
}

func decode(key string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return nil
}
