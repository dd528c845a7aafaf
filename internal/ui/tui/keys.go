// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import "github.com/charmbracelet/bubbles/key"

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the keyboard bindings. Picker keys only apply on the
// character picker; chat keys only while a conversation is open.
type KeyMap struct {
	// Picker
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Bio    key.Binding

	// Chat
	Submit    key.Binding
	Back      key.Binding
	Next      key.Binding
	Prev      key.Binding
	CancelRun key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	ChatBio   key.Binding

	// Everywhere
	Sidebar  key.Binding
	Theme    key.Binding
	Settings key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "previous"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "next"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "converse"),
		),
		Bio: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "biography"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "characters"),
		),
		Next: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "next character"),
		),
		Prev: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("C-p", "previous character"),
		),
		CancelRun: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "stop reply"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		ChatBio: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "biography"),
		),
		Sidebar: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("C-b", "sidebar"),
		),
		Theme: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "theme"),
		),
		Settings: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "settings"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// pickerHelp is the help shown on the picker.
type pickerHelp KeyMap

// ShortHelp implements help.KeyMap.
func (k pickerHelp) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Bio, k.Settings, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k pickerHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Bio},
		{k.Theme, k.Settings, k.Help, k.Quit},
	}
}

// chatHelp is the help shown in a conversation.
type chatHelp KeyMap

// ShortHelp implements help.KeyMap.
func (k chatHelp) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Back, k.CancelRun, k.Sidebar, k.Help}
}

// FullHelp implements help.KeyMap.
func (k chatHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Back, k.Next, k.Prev, k.CancelRun},
		{k.PageUp, k.PageDown, k.ChatBio, k.Sidebar},
		{k.Theme, k.Settings, k.Help, k.Quit},
	}
}
