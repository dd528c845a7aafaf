// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/morganforge/muse/internal/util"
)

// FileStore stores each key as <BaseDir>/<key>.json.
type FileStore struct {
	// BaseDir is the directory holding the record files.
	BaseDir string

	mu sync.Mutex
}

// NewFileStore creates a store in baseDir, creating the directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, errors.New("file store: empty directory")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("file store: create %s: %w", baseDir, err)
	}
	return &FileStore{BaseDir: baseDir}, nil
}

// Get implements Store.
func (s *FileStore) Get(key string, v any) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	s.mu.Lock()
	data, err := os.ReadFile(s.filePath(key))
	s.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	return true, decode(key, data, v)
}

// Set implements Store.
func (s *FileStore) Set(key string, v any) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := encode(key, v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Records may hold a credential, keep them owner-only.
	if err := util.AtomicWriteFile(s.filePath(key), data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) filePath(key string) string {
	return filepath.Join(s.BaseDir, key+".json")
}
