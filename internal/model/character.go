// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Character is a persona from the roster. Characters are loaded once and are
// read-only for the rest of the program.
type Character struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Title    string `json:"title" yaml:"title"`
	Avatar   string `json:"avatar" yaml:"avatar"`
	Bio      string `json:"bio" yaml:"bio"`
	Greeting string `json:"greeting" yaml:"greeting"`
}

// SystemPrompt returns the persona directive sent as the first message of
// every request.
func (c Character) SystemPrompt() string {
	return "You are " + c.Name + ". You must speak and act in their persona. Be concise, eloquent, and stay in character."
}

// GreetingMessage returns the assistant message that opens a new conversation.
func (c Character) GreetingMessage() Message {
	return NewAssistantMessage(c.Greeting)
}
