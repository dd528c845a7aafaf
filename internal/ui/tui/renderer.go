// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/muse/internal/exchange"
)

// =============================================================================
// MESSAGES
// =============================================================================

type deltaMsg struct {
	characterID string
	accumulated string
}

type finalMsg struct {
	characterID string
}

type failedMsg struct {
	characterID string
	content     string
}

type noticeMsg struct {
	err error
}

type catalogReloadedMsg struct{}

// exchangeDoneMsg is produced by the command that waits on a session
// handle.
type exchangeDoneMsg struct {
	characterID string
	result      exchange.Result
}

// =============================================================================
// RENDERER
// =============================================================================

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Renderer turns exchange callbacks into program messages. Callbacks made
// before Attach are dropped.
type Renderer struct {
	mu     sync.RWMutex
	sender Sender
}

// NewRenderer creates an unattached Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Attach sets the program that receives messages.
func (r *Renderer) Attach(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sender = s
}

func (r *Renderer) send(msg tea.Msg) {
	r.mu.RLock()
	s := r.sender
	r.mu.RUnlock()
	if s != nil {
		s.Send(msg)
	}
}

// Delta implements exchange.Renderer.
func (r *Renderer) Delta(characterID, _, accumulated string) {
	r.send(deltaMsg{characterID: characterID, accumulated: accumulated})
}

// Final implements exchange.Renderer.
func (r *Renderer) Final(characterID, _ string) {
	r.send(finalMsg{characterID: characterID})
}

// Failed implements exchange.Renderer.
func (r *Renderer) Failed(characterID, content string, _ error) {
	r.send(failedMsg{characterID: characterID, content: content})
}

// Notice implements exchange.Renderer.
func (r *Renderer) Notice(err error) {
	r.send(noticeMsg{err: err})
}

// CatalogReloaded tells the program to re-read the roster.
func (r *Renderer) CatalogReloaded() {
	r.send(catalogReloadedMsg{})
}
