// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for characters and messages.
//
// This package defines the domain types shared by every other package:
// the immutable roster entry (Character), a single chat turn (Message) and
// the message role enumeration.
//
// # Key Types
//
//   - Character: Persona the user talks to (id, name, title, bio, greeting)
//   - Message: Single turn with a role and text content
//   - Role: Message role enumeration (user, assistant, system)
//
// # Usage
//
//	greeting := model.NewMessage(model.RoleAssistant, dante.Greeting)
//	prompt := dante.SystemPrompt()
package model
