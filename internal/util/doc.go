// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across muse.
//
// # Key Functions
//
// String Utilities:
//   - TruncateWidth, PadRight: display-width aware layout (go-runewidth)
//   - CleanInput: trims and NFC-normalizes user text
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	text := util.CleanInput(raw)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
