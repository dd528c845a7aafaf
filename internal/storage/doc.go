// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the key/value persistence used by muse.
//
// Every persisted record (UI state, API settings, conversations) is a JSON
// blob stored under a fixed key. The backend is chosen at startup.
//
// # Key Types
//
//   - Store: Get/Set/Close capability injected into the managers
//   - MemoryStore: in-process map (tests, --ephemeral)
//   - FileStore: one JSON file per key, written atomically
//   - SQLiteStore: single kv table in a SQLite database
//
// # Usage
//
//	store, err := storage.Open(storage.BackendFile, dataDir)
//	var s settings.Settings
//	found, err := store.Get(storage.KeySettings, &s)
//
// # Storage Location
//
// File stores live in ~/.muse/data/ by default; SQLite stores in
// ~/.muse/muse.db.
package storage
