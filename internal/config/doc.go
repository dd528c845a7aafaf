// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for muse.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - StorageConfig: Persistence backend selection
//   - NetworkConfig: Timeouts, retries and pacing for the chat endpoint
//   - Duration: TOML/env friendly time.Duration ("30s", "2m")
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (MUSE_*)
//   - ~/.muse/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	store, err := storage.Open(cfg.Storage.Backend, cfg.DataDir)
package config
