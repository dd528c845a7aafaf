// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tui is the full-screen front end: a character picker and a chat
// view with a character sidebar.
package tui

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog"

	"github.com/morganforge/muse/internal/catalog"
	"github.com/morganforge/muse/internal/conversation"
	"github.com/morganforge/muse/internal/exchange"
	"github.com/morganforge/muse/internal/model"
	"github.com/morganforge/muse/internal/session"
	"github.com/morganforge/muse/internal/settings"
	"github.com/morganforge/muse/internal/state"
	"github.com/morganforge/muse/internal/ui/styles"
)

// =============================================================================
// STATE
// =============================================================================

type screen int

const (
	screenPicker screen = iota
	screenChat
)

type overlay int

const (
	overlayNone overlay = iota
	overlayBio
	overlaySettings
	overlayHelp
)

const (
	sidebarWidth = 26
	inputHeight  = 3
)

// Deps are the application services the model drives.
type Deps struct {
	Catalog       *catalog.Catalog
	Conversations *conversation.Store
	Session       *session.Coordinator
	Settings      *settings.Registry
	State         *state.Manager
	Logger        zerolog.Logger
}

// Options configures presentation.
type Options struct {
	// Markdown renders assistant messages with glamour.
	Markdown bool
	// WordWrap caps the markdown wrap width; 0 follows the window.
	WordWrap int
	// Output is where the program draws; it decides the colour profile.
	Output io.Writer
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model.
type Model struct {
	ctx    context.Context
	deps   Deps
	opts   Options
	logger zerolog.Logger

	theme *styles.Theme
	keys  KeyMap
	help  help.Model

	width, height int
	screen        screen
	overlay       overlay

	characters       []model.Character
	cursor           int
	activeID         string
	bioID            string
	sidebarCollapsed bool

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	md       *glamour.TermRenderer

	// In-flight exchange; at most one across all characters.
	handle      *session.Handle
	streamingID string
	streamText  string

	// failures holds annotations for failed replies that committed
	// nothing, shown until the next send to that character.
	failures map[string]string
	notice   string

	form settingsForm
}

// New builds the model. When the saved state names a character, the chat
// view opens on it.
func New(ctx context.Context, deps Deps, opts Options) Model {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	snap := deps.State.Snapshot()

	ta := textarea.New()
	ta.Placeholder = "Speak your mind..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 8000
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Line

	m := Model{
		ctx:              ctx,
		deps:             deps,
		opts:             opts,
		logger:           deps.Logger.With().Str("component", "tui").Logger(),
		keys:             DefaultKeyMap(),
		help:             help.New(),
		characters:       deps.Catalog.List(),
		sidebarCollapsed: snap.IsSidebarCollapsed,
		viewport:         viewport.New(80, 20),
		input:            ta,
		spinner:          sp,
		failures:         make(map[string]string),
	}
	m.applyTheme(snap.Theme)

	if snap.HasCharacter() {
		if _, ok := deps.Catalog.Lookup(snap.CurrentCharacterID); ok {
			if err := deps.Session.SwitchCharacter(snap.CurrentCharacterID); err == nil {
				m.activeID = snap.CurrentCharacterID
				m.screen = screenChat
				m.cursor = m.indexOf(m.activeID)
			}
		}
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case spinner.TickMsg:
		if m.streamingID == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.streamingID == m.activeID {
			m.refresh()
		}
		return m, cmd

	case deltaMsg:
		if msg.characterID == m.streamingID {
			m.streamText = msg.accumulated
			if msg.characterID == m.activeID {
				m.refresh()
			}
		}
		return m, nil

	case finalMsg:
		if msg.characterID == m.streamingID {
			m.streamText = ""
		}
		m.refreshIf(msg.characterID)
		return m, nil

	case failedMsg:
		m.refreshIf(msg.characterID)
		return m, nil

	case exchangeDoneMsg:
		return m.handleExchangeDone(msg)

	case noticeMsg:
		m.notice = msg.err.Error()
		return m, nil

	case catalogReloadedMsg:
		m.characters = m.deps.Catalog.List()
		if m.cursor >= len(m.characters) {
			m.cursor = max(0, len(m.characters)-1)
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.screen == screenChat && m.overlay == overlayNone {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleExchangeDone(msg exchangeDoneMsg) (tea.Model, tea.Cmd) {
	res := msg.result
	if res.Status == exchange.Failed && !res.Committed && res.Content != "" {
		m.failures[msg.characterID] = res.Content
	}
	if msg.characterID == m.streamingID {
		m.streamingID = ""
		m.streamText = ""
		m.handle = nil
	}
	m.logger.Debug().Str("character", msg.characterID).Stringer("status", res.Status).Msg("reply finished")
	m.refreshIf(msg.characterID)
	return m, nil
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	switch m.overlay {
	case overlaySettings:
		return m.handleSettingsKey(msg)
	case overlayBio, overlayHelp:
		switch msg.String() {
		case "esc", "enter", "q", "f1":
			m.overlay = overlayNone
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.overlay = overlayHelp
		return m, nil
	case key.Matches(msg, m.keys.Settings):
		m.form = newSettingsForm(m.deps.Settings.Saved())
		m.overlay = overlaySettings
		return m, nil
	case key.Matches(msg, m.keys.Theme):
		m.toggleTheme()
		return m, nil
	case key.Matches(msg, m.keys.Sidebar):
		m.toggleSidebar()
		return m, nil
	}

	if m.screen == screenPicker {
		return m.handlePickerKey(msg)
	}
	return m.handleChatKey(msg)
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if len(m.characters) == 0 {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Up):
		m.cursor = (m.cursor - 1 + len(m.characters)) % len(m.characters)
	case key.Matches(msg, m.keys.Down):
		m.cursor = (m.cursor + 1) % len(m.characters)
	case key.Matches(msg, m.keys.Bio):
		m.bioID = m.characters[m.cursor].ID
		m.overlay = overlayBio
	case key.Matches(msg, m.keys.Select):
		return m.switchTo(m.characters[m.cursor].ID)
	case msg.String() == "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		return m.send()
	case key.Matches(msg, m.keys.Back):
		if err := m.deps.Session.Reset(); err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.screen = screenPicker
		m.activeID = ""
		m.notice = ""
		return m, nil
	case key.Matches(msg, m.keys.Next):
		return m.cycle(1)
	case key.Matches(msg, m.keys.Prev):
		return m.cycle(-1)
	case key.Matches(msg, m.keys.CancelRun):
		if m.handle != nil {
			m.handle.Cancel()
		}
		return m, nil
	case key.Matches(msg, m.keys.ChatBio):
		m.bioID = m.activeID
		m.overlay = overlayBio
		return m, nil
	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.overlay = overlayNone
		return m, nil
	case "tab", "down":
		m.form.move(1)
		return m, nil
	case "shift+tab", "up":
		m.form.move(-1)
		return m, nil
	case "enter":
		p, err := m.form.partial()
		if err == nil {
			err = m.deps.Settings.Update(p)
		}
		if err != nil {
			m.form.err = err.Error()
			return m, nil
		}
		m.overlay = overlayNone
		m.notice = "Settings saved."
		return m, nil
	}
	var cmd tea.Cmd
	m.form, cmd = m.form.update(msg)
	return m, cmd
}

// =============================================================================
// ACTIONS
// =============================================================================

func (m Model) send() (tea.Model, tea.Cmd) {
	h, err := m.deps.Session.TrySend(m.ctx, m.activeID, m.input.Value())
	switch {
	case errors.Is(err, session.ErrEmptyMessage):
		return m, nil
	case errors.Is(err, session.ErrBusy):
		m.notice = "A reply is still being written. Wait for it to finish."
		return m, nil
	case err != nil:
		m.notice = err.Error()
		return m, nil
	}

	m.input.Reset()
	m.notice = ""
	delete(m.failures, m.activeID)
	m.handle = h
	m.streamingID = h.CharacterID()
	m.streamText = ""
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, waitFor(h))
}

func waitFor(h *session.Handle) tea.Cmd {
	return func() tea.Msg {
		return exchangeDoneMsg{characterID: h.CharacterID(), result: h.Wait()}
	}
}

func (m Model) switchTo(id string) (tea.Model, tea.Cmd) {
	if err := m.deps.Session.SwitchCharacter(id); err != nil {
		m.notice = err.Error()
		return m, nil
	}
	m.activeID = id
	m.cursor = m.indexOf(id)
	m.screen = screenChat
	m.notice = ""
	m.layout()
	cmd := m.input.Focus()
	return m, cmd
}

func (m Model) cycle(delta int) (tea.Model, tea.Cmd) {
	if len(m.characters) == 0 {
		return m, nil
	}
	i := (m.indexOf(m.activeID) + delta + len(m.characters)) % len(m.characters)
	return m.switchTo(m.characters[i].ID)
}

func (m *Model) toggleTheme() {
	name, err := m.deps.State.ToggleTheme()
	if err != nil {
		m.notice = err.Error()
		return
	}
	m.applyTheme(name)
	m.refresh()
}

func (m *Model) toggleSidebar() {
	collapsed, err := m.deps.State.ToggleSidebar()
	if err != nil {
		m.notice = err.Error()
		return
	}
	m.sidebarCollapsed = collapsed
	m.layout()
}

func (m *Model) applyTheme(name string) {
	m.theme = styles.NewTheme(name, m.opts.Output)
	m.spinner.Style = m.theme.Spinner
	m.md = nil
	m.buildMarkdown()
}

func (m *Model) buildMarkdown() {
	if !m.opts.Markdown || m.viewport.Width <= 0 {
		m.md = nil
		return
	}
	wrap := m.viewport.Width - 4
	if m.opts.WordWrap > 0 && m.opts.WordWrap < wrap {
		wrap = m.opts.WordWrap
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.theme.GlamourStyle()),
		glamour.WithWordWrap(max(20, wrap)),
	)
	if err != nil {
		m.logger.Warn().Err(err).Msg("markdown renderer unavailable")
		m.md = nil
		return
	}
	m.md = md
}

func (m Model) indexOf(id string) int {
	for i, c := range m.characters {
		if c.ID == id {
			return i
		}
	}
	return 0
}

// layout sizes the viewport and input for the window.
func (m *Model) layout() {
	if m.width == 0 {
		return
	}
	chatWidth := m.width
	if !m.sidebarCollapsed {
		chatWidth -= sidebarWidth
	}
	// header, notice line, input border + rows, status bar
	chatHeight := m.height - 1 - 1 - (inputHeight + 1) - 1
	m.viewport.Width = max(10, chatWidth)
	m.viewport.Height = max(3, chatHeight)
	m.input.SetWidth(max(10, chatWidth-2))
	m.help.Width = m.width
	m.buildMarkdown()
	m.refresh()
}

// Busy reports whether a reply is streaming.
func (m Model) Busy() bool {
	return m.streamingID != ""
}
