// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morganforge/muse/internal/catalog"
	"github.com/morganforge/muse/internal/conversation"
	"github.com/morganforge/muse/internal/exchange"
	"github.com/morganforge/muse/internal/model"
	"github.com/morganforge/muse/internal/provider"
	"github.com/morganforge/muse/internal/session"
	"github.com/morganforge/muse/internal/settings"
	"github.com/morganforge/muse/internal/state"
	"github.com/morganforge/muse/internal/storage"
)

const replyStream = "data: {\"choices\":[{\"delta\":{\"content\":\"Ave\"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\", traveler.\"}}]}\n\n" +
	"data: [DONE]\n\n"

type env struct {
	deps     Deps
	renderer *Renderer
	open     func() (io.ReadCloser, error)
}

func newEnv(t *testing.T, backing storage.Store) *env {
	t.Helper()
	cat := catalog.New()
	st, err := state.NewManager(backing, state.WithThemeDetector(func() string { return state.ThemeDark }))
	require.NoError(t, err)
	convs, err := conversation.New(backing, cat, st, zerolog.Nop())
	require.NoError(t, err)
	reg, err := settings.NewRegistry(backing, settings.WithEnvironment(map[string]string{}))
	require.NoError(t, err)
	require.NoError(t, reg.Update(settings.Partial{APIKey: settings.String("sk-test")}))

	e := &env{renderer: NewRenderer()}
	e.open = func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(replyStream)), nil }
	transport := provider.TransportFunc(func(context.Context, provider.Request) (io.ReadCloser, error) {
		return e.open()
	})
	orch := exchange.New(convs, reg, cat, transport, e.renderer, zerolog.Nop())
	e.deps = Deps{
		Catalog:       cat,
		Conversations: convs,
		Session:       session.New(convs, reg, orch, e.renderer, zerolog.Nop()),
		Settings:      reg,
		State:         st,
		Logger:        zerolog.Nop(),
	}
	return e
}

func (e *env) model() Model {
	m := New(context.Background(), e.deps, Options{Output: &bytes.Buffer{}})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(Model)
	}
	return m, cmd
}

func typed(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	down  = tea.KeyMsg{Type: tea.KeyDown}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func TestPicker_SelectOpensChat(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	m := e.model()

	assert.Equal(t, screenPicker, m.screen)
	assert.Contains(t, m.View(), "William Shakespeare")

	m, _ = press(t, m, down, down, enter)

	assert.Equal(t, screenChat, m.screen)
	assert.Equal(t, "dante", m.activeID)
	active, ok := e.deps.Conversations.Active()
	require.True(t, ok)
	assert.Equal(t, "dante", active)
	assert.Contains(t, m.viewport.View(), "Greetings, traveler.")
}

func TestNew_ResumesSavedCharacter(t *testing.T) {
	backing := storage.NewMemoryStore()
	e := newEnv(t, backing)
	require.NoError(t, e.deps.Session.SwitchCharacter("hugo"))

	m := newEnv(t, backing).model()

	assert.Equal(t, screenChat, m.screen)
	assert.Equal(t, "hugo", m.activeID)
}

func TestChat_SendCommitsReply(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	m := e.model()
	m, _ = press(t, m, down, down, enter)

	m, _ = press(t, m, typed("Hello"))
	m, cmd := press(t, m, enter)
	require.NotNil(t, cmd)
	require.NotNil(t, m.handle)
	assert.True(t, m.Busy())
	assert.Empty(t, m.input.Value())

	res := m.handle.Wait()
	require.Equal(t, exchange.Completed, res.Status)

	next, _ := m.Update(exchangeDoneMsg{characterID: "dante", result: res})
	m = next.(Model)

	assert.False(t, m.Busy())
	conv := e.deps.Conversations.Conversation("dante")
	require.Len(t, conv, 3)
	assert.Equal(t, model.NewUserMessage("Hello"), conv[1])
	assert.Contains(t, m.viewport.View(), "Ave, traveler.")
}

func TestChat_DeltaShowsStreamingText(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	m := e.model()
	m, _ = press(t, m, enter)
	m.streamingID = m.activeID

	next, _ := m.Update(deltaMsg{characterID: m.activeID, accumulated: "Good morrow"})
	m = next.(Model)

	assert.Contains(t, m.viewport.View(), "Good morrow")
}

func TestChat_FailedReplyShowsAnnotation(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	e.open = func() (io.ReadCloser, error) {
		return nil, &provider.NetworkError{Status: 500}
	}
	m := e.model()
	m, _ = press(t, m, enter)

	m, _ = press(t, m, typed("Speak"))
	m, _ = press(t, m, enter)
	require.NotNil(t, m.handle)
	res := m.handle.Wait()
	require.Equal(t, exchange.Failed, res.Status)

	next, _ := m.Update(exchangeDoneMsg{characterID: m.activeID, result: res})
	m = next.(Model)

	assert.Contains(t, m.viewport.View(), "An error occurred")
	assert.Contains(t, m.viewport.View(), "API Error (500): Unknown error")
	assert.Equal(t, 3, e.deps.Conversations.Len("shakespeare"))
	assert.Empty(t, m.failures, "committed annotations render from the conversation")
}

func TestChat_MissingKeyShowsNotice(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	require.NoError(t, e.deps.Settings.Update(settings.Partial{APIKey: settings.String("")}))
	m := e.model()
	m, _ = press(t, m, enter)

	m, cmd := press(t, m, typed("Hello"), enter)
	assert.Nil(t, cmd)
	assert.Nil(t, m.handle)
	assert.Equal(t, settings.ErrMissingCredential.Error(), m.notice)
	assert.Equal(t, 1, e.deps.Conversations.Len("shakespeare"))
}

func TestChat_BackReturnsToPicker(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	m := e.model()
	m, _ = press(t, m, enter)
	require.Equal(t, screenChat, m.screen)

	m, _ = press(t, m, esc)

	assert.Equal(t, screenPicker, m.screen)
	_, ok := e.deps.Conversations.Active()
	assert.False(t, ok)
	assert.Equal(t, 1, e.deps.Conversations.Len("shakespeare"), "history is kept")
}

func TestChat_CycleCharacters(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	m := e.model()
	m, _ = press(t, m, enter)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.Equal(t, "goethe", m.activeID)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlP}, tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Equal(t, "hugo", m.activeID)
}

func TestToggles_Persist(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	m := e.model()
	require.Equal(t, state.ThemeDark, m.theme.Name)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlT}, tea.KeyMsg{Type: tea.KeyCtrlB})

	assert.Equal(t, state.ThemeLight, m.theme.Name)
	assert.True(t, m.sidebarCollapsed)
	snap := e.deps.State.Snapshot()
	assert.Equal(t, state.ThemeLight, snap.Theme)
	assert.True(t, snap.IsSidebarCollapsed)
}

func TestSettingsOverlay_Save(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	m := e.model()

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Equal(t, overlaySettings, m.overlay)
	assert.Contains(t, m.View(), "API settings")

	tab := tea.KeyMsg{Type: tea.KeyTab}
	m, _ = press(t, m, tab, tab, tab, typed("gpt-4o"), enter)

	assert.Equal(t, overlayNone, m.overlay)
	got := e.deps.Settings.Get()
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, "sk-test", got.APIKey, "blank key field keeps the stored key")
}

func TestSettingsOverlay_RejectsUnknownProvider(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	m := e.model()

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	m.form.inputs[fieldProvider].SetValue("claude")
	m, _ = press(t, m, enter)

	assert.Equal(t, overlaySettings, m.overlay)
	assert.Contains(t, m.form.err, "unknown provider")
	assert.Equal(t, settings.ProviderChatGPT, e.deps.Settings.Get().Provider)
}

func TestBioOverlay(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	m := e.model()

	m, _ = press(t, m, down, typed("b"))
	require.Equal(t, overlayBio, m.overlay)
	assert.Contains(t, m.View(), "Johann von Goethe")

	m, _ = press(t, m, esc)
	assert.Equal(t, overlayNone, m.overlay)
}

type sink struct{ msgs []tea.Msg }

func (s *sink) Send(msg tea.Msg) { s.msgs = append(s.msgs, msg) }

func TestRenderer_Attach(t *testing.T) {
	r := NewRenderer()
	r.Delta("dante", "Ave", "Ave") // dropped

	s := &sink{}
	r.Attach(s)
	r.Delta("dante", ", traveler.", "Ave, traveler.")
	r.Final("dante", "Ave, traveler.")
	r.Failed("dante", "x", errors.New("boom"))
	r.Notice(settings.ErrMissingCredential)
	r.CatalogReloaded()

	require.Len(t, s.msgs, 5)
	assert.Equal(t, deltaMsg{characterID: "dante", accumulated: "Ave, traveler."}, s.msgs[0])
	assert.Equal(t, finalMsg{characterID: "dante"}, s.msgs[1])
	assert.Equal(t, failedMsg{characterID: "dante", content: "x"}, s.msgs[2])
	assert.Equal(t, catalogReloadedMsg{}, s.msgs[4])
}
