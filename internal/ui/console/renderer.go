// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package console renders conversations to a line-oriented terminal.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/morganforge/muse/internal/model"
	"github.com/morganforge/muse/internal/ui/styles"
	"github.com/morganforge/muse/internal/util"
)

// Catalog resolves character names for labels.
type Catalog interface {
	Lookup(id string) (model.Character, bool)
}

// Options configures a Renderer.
type Options struct {
	// Markdown enables the glamour re-render of completed replies. It only
	// takes effect when the output is a terminal.
	Markdown bool
	// WordWrap is the glamour wrap width; 0 uses the terminal width.
	WordWrap int
}

// Renderer writes exchange output as plain lines. Fragments are written as
// they arrive; on a terminal the completed reply is then redrawn as
// markdown.
type Renderer struct {
	mu      sync.Mutex
	out     io.Writer
	theme   *styles.Theme
	catalog Catalog
	md      *glamour.TermRenderer
	opts    Options
	width   int

	streamed string // raw text written for the current reply
}

// NewRenderer creates a Renderer writing to out.
func NewRenderer(out io.Writer, theme *styles.Theme, catalog Catalog, opts Options) *Renderer {
	r := &Renderer{
		out:     out,
		catalog: catalog,
		opts:    opts,
		width:   Width(out),
	}
	r.applyTheme(theme)
	return r
}

// SetTheme switches the styles used for subsequent output.
func (r *Renderer) SetTheme(theme *styles.Theme) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyTheme(theme)
}

func (r *Renderer) applyTheme(theme *styles.Theme) {
	r.theme = theme
	r.md = nil
	if !r.opts.Markdown || !IsTerminal(r.out) {
		return
	}
	wrap := r.opts.WordWrap
	if wrap <= 0 || wrap > r.width {
		wrap = r.width
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(theme.GlamourStyle()),
		glamour.WithWordWrap(wrap),
	)
	if err == nil {
		r.md = md
	}
}

func (r *Renderer) name(characterID string) string {
	if ch, ok := r.catalog.Lookup(characterID); ok {
		return ch.Name
	}
	return characterID
}

// =============================================================================
// EXCHANGE CALLBACKS
// =============================================================================

// Delta writes fragment. The first fragment of a reply is preceded by the
// character's label.
func (r *Renderer) Delta(characterID, fragment, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.streamed == "" {
		fmt.Fprintln(r.out, r.theme.AssistantLabel.Render(r.name(characterID)))
	}
	io.WriteString(r.out, fragment)
	r.streamed += fragment
}

// Final ends the reply, redrawing it as markdown when enabled.
func (r *Renderer) Final(characterID, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() { r.streamed = "" }()

	if content == "" {
		return
	}
	if r.md != nil && r.erase() {
		if rendered, err := r.md.Render(content); err == nil {
			fmt.Fprintln(r.out, r.theme.AssistantLabel.Render(r.name(characterID)))
			io.WriteString(r.out, strings.TrimRight(rendered, "\n")+"\n")
			return
		}
		// The raw text is gone; write it again.
		fmt.Fprintln(r.out, r.theme.AssistantLabel.Render(r.name(characterID)))
		io.WriteString(r.out, content)
	}
	fmt.Fprintln(r.out)
}

// Failed ends the reply with the error annotation.
func (r *Renderer) Failed(characterID, content string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() { r.streamed = "" }()

	annotation := strings.TrimPrefix(content, r.streamed)
	if r.streamed == "" {
		fmt.Fprintln(r.out, r.theme.AssistantLabel.Render(r.name(characterID)))
	}
	annotation = strings.TrimLeft(annotation, "\n")
	if r.streamed != "" {
		fmt.Fprint(r.out, "\n\n")
	}
	fmt.Fprintln(r.out, r.theme.Annotation.Render(annotation))
}

// Notice writes an inline warning.
func (r *Renderer) Notice(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, r.theme.RenderWarning(err.Error()))
}

// erase clears the rows taken by the streamed text and its label. It
// reports false when there is nothing to clear.
func (r *Renderer) erase() bool {
	if r.streamed == "" {
		return false
	}
	rows := 1 // label
	for _, line := range strings.Split(r.streamed, "\n") {
		w := util.StringWidth(line)
		rows += max(1, (w+r.width-1)/r.width)
	}
	// Cursor is on the last streamed row; move to the label row and clear
	// everything below.
	fmt.Fprintf(r.out, "\r\x1b[%dA\x1b[J", rows-1)
	return true
}

// =============================================================================
// STATIC OUTPUT
// =============================================================================

// Message prints a stored message with its author label.
func (r *Renderer) Message(characterID string, msg model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	label := r.theme.UserLabel.Render(model.RoleUser.DisplayName())
	if msg.Role != model.RoleUser {
		label = r.theme.AssistantLabel.Render(r.name(characterID))
	}
	body := msg.Content
	if r.md != nil && msg.Role != model.RoleUser {
		if rendered, err := r.md.Render(body); err == nil {
			body = strings.TrimRight(rendered, "\n")
		}
	}
	fmt.Fprintln(r.out, label)
	fmt.Fprintln(r.out, body)
	fmt.Fprintln(r.out)
}

// Conversation prints a whole conversation.
func (r *Renderer) Conversation(characterID string, msgs []model.Message) {
	for _, m := range msgs {
		r.Message(characterID, m)
	}
}

// Bio prints a character card.
func (r *Renderer) Bio(ch model.Character) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s\n", r.theme.Avatar.Render(ch.Avatar), r.theme.HeaderTitle.Render(ch.Name))
	fmt.Fprintln(r.out, r.theme.HeaderSubtitle.Render(ch.Title))
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, ch.Bio)
}

// Info prints an informational line.
func (r *Renderer) Info(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, r.theme.RenderInfo(msg))
}

// Roster prints the character table.
func (r *Renderer) Roster(chars []model.Character, activeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	io.WriteString(r.out, RosterTable(chars, activeID, r.width))
}
