// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package state persists the UI state record: theme, active character and
// sidebar visibility.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/muesli/termenv"
	"github.com/rs/zerolog"

	"github.com/morganforge/muse/internal/storage"
)

// Themes.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// State is the persisted UI record.
type State struct {
	Theme              string `json:"theme"`
	CurrentCharacterID string `json:"currentCharacterId"`
	IsSidebarCollapsed bool   `json:"isSidebarCollapsed"`
}

// HasCharacter reports whether a character is active.
func (s State) HasCharacter() bool {
	return s.CurrentCharacterID != ""
}

// DetectTheme picks a theme from the terminal background.
func DetectTheme() string {
	if termenv.HasDarkBackground() {
		return ThemeDark
	}
	return ThemeLight
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns the State record. Every mutation is persisted before it
// becomes visible.
type Manager struct {
	mu     sync.RWMutex
	store  storage.Store
	logger zerolog.Logger
	state  State
}

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	detect func() string
	logger zerolog.Logger
}

// WithThemeDetector replaces terminal background detection.
func WithThemeDetector(detect func() string) Option {
	return func(o *managerOptions) { o.detect = detect }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *managerOptions) { o.logger = l }
}

// NewManager loads the record from store, falling back to defaults when it
// is absent or corrupt.
func NewManager(store storage.Store, opts ...Option) (*Manager, error) {
	o := managerOptions{detect: DetectTheme, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{
		store:  store,
		logger: o.logger,
		state:  State{Theme: o.detect()},
	}

	var loaded State
	found, err := store.Get(storage.KeyState, &loaded)
	switch {
	case errors.Is(err, storage.ErrCorrupt):
		m.logger.Warn().Err(err).Msg("state record is corrupt, using defaults")
	case err != nil:
		return nil, fmt.Errorf("load state: %w", err)
	case found:
		if loaded.Theme != ThemeDark && loaded.Theme != ThemeLight {
			loaded.Theme = m.state.Theme
		}
		m.state = loaded
	}
	return m, nil
}

// Snapshot returns a copy of the current record.
func (m *Manager) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SetCurrentCharacter makes id the active character.
func (m *Manager) SetCurrentCharacter(id string) error {
	return m.mutate(func(s *State) { s.CurrentCharacterID = id })
}

// ClearCurrentCharacter returns to the character picker.
func (m *Manager) ClearCurrentCharacter() error {
	return m.mutate(func(s *State) { s.CurrentCharacterID = "" })
}

// SetTheme sets the theme. Unknown names are rejected.
func (m *Manager) SetTheme(theme string) error {
	if theme != ThemeDark && theme != ThemeLight {
		return fmt.Errorf("unknown theme %q", theme)
	}
	return m.mutate(func(s *State) { s.Theme = theme })
}

// ToggleTheme flips between dark and light and returns the new theme.
func (m *Manager) ToggleTheme() (string, error) {
	var theme string
	err := m.mutate(func(s *State) {
		if s.Theme == ThemeDark {
			s.Theme = ThemeLight
		} else {
			s.Theme = ThemeDark
		}
		theme = s.Theme
	})
	return theme, err
}

// ToggleSidebar flips the sidebar flag and returns the new value.
func (m *Manager) ToggleSidebar() (bool, error) {
	var collapsed bool
	err := m.mutate(func(s *State) {
		s.IsSidebarCollapsed = !s.IsSidebarCollapsed
		collapsed = s.IsSidebarCollapsed
	})
	return collapsed, err
}

func (m *Manager) mutate(fn func(*State)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state
	fn(&next)
	if next == m.state {
		return nil
	}
	if err := m.store.Set(storage.KeyState, next); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	m.state = next
	return nil
}
