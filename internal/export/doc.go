// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a character's conversation to a file.
//
// # Supported Formats
//
//   - Markdown: human-readable, with YAML front matter
//   - JSON: machine-readable
//   - HTML: standalone page; fenced code is highlighted
//
// # Usage
//
//	doc := export.NewDocument(character, convs.Conversation(character.ID))
//	exporter, err := export.ForFormat("html", export.DefaultOptions())
//	path, err := export.ToFile(doc, exporter, "")
package export
