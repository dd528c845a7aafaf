// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli defines the muse command tree.
//
// # Commands
//
//   - muse: full-screen chat (TUI) when stdout is a terminal
//   - muse chat [character]: line-mode chat with history and slash commands
//   - muse characters [bio <id>]: roster listing and character cards
//   - muse settings show|set: API settings
//   - muse export <character>: write a conversation as md, json or html
//   - muse reset: return to the character picker
//
// Every command builds its services through openApp, which applies the
// global flags on top of the config file and environment.
package cli
