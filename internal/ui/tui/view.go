// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/morganforge/muse/internal/model"
	"github.com/morganforge/muse/internal/util"
)

// =============================================================================
// CONVERSATION CONTENT
// =============================================================================

func (m *Model) refreshIf(characterID string) {
	if characterID == m.activeID {
		m.refresh()
	}
}

// refresh rebuilds the viewport content for the active conversation.
func (m *Model) refresh() {
	if m.activeID == "" {
		return
	}
	ch, _ := m.deps.Catalog.Lookup(m.activeID)
	t := m.theme

	var b strings.Builder
	for _, msg := range m.deps.Conversations.Conversation(m.activeID) {
		if msg.Role == model.RoleUser {
			b.WriteString(t.UserLabel.Render(model.RoleUser.DisplayName()))
			b.WriteString("\n")
			b.WriteString(t.UserMessage.Render(m.wrap(msg.Content)))
		} else {
			b.WriteString(t.AssistantLabel.Render(ch.Name))
			b.WriteString("\n")
			b.WriteString(m.renderAssistant(msg.Content))
		}
		b.WriteString("\n\n")
	}

	if m.streamingID == m.activeID {
		b.WriteString(t.AssistantLabel.Render(ch.Name))
		b.WriteString("\n")
		b.WriteString(t.AssistantMessage.Render(m.wrap(m.streamText) + " " + m.spinner.View()))
		b.WriteString("\n")
	} else if annotation, ok := m.failures[m.activeID]; ok {
		b.WriteString(t.AssistantLabel.Render(ch.Name))
		b.WriteString("\n")
		b.WriteString(t.Annotation.Render(m.wrap(annotation)))
		b.WriteString("\n")
	}

	m.viewport.SetContent(strings.TrimRight(b.String(), "\n"))
	m.viewport.GotoBottom()
}

func (m *Model) renderAssistant(content string) string {
	if m.md != nil {
		if out, err := m.md.Render(content); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	return m.theme.AssistantMessage.Render(m.wrap(content))
}

func (m *Model) wrap(s string) string {
	width := m.viewport.Width - 2
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	var base string
	if m.screen == screenPicker {
		base = m.pickerView()
	} else {
		base = m.chatView()
	}

	var box string
	switch m.overlay {
	case overlayBio:
		box = m.bioView()
	case overlaySettings:
		box = m.form.view(m.theme)
	case overlayHelp:
		box = m.helpView()
	default:
		return base
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		m.theme.OverlayBox.Render(box))
}

func (m Model) pickerView() string {
	t := m.theme
	var b strings.Builder
	b.WriteString(t.Header.Width(m.width).Render("muse - choose a character"))
	b.WriteString("\n\n")

	cardWidth := min(m.width-4, 72)
	for i, c := range m.characters {
		line := t.Avatar.Render(c.Avatar) + " " + t.HeaderTitle.Render(c.Name) + "  " + t.HeaderSubtitle.Render(c.Title)
		// Show where the conversation left off once the user has spoken.
		if msgs := m.deps.Conversations.Conversation(c.ID); len(msgs) > 1 {
			last := msgs[len(msgs)-1]
			line += "\n" + t.Muted.Render(last.Role.DisplayName()+": "+last.Preview(max(10, cardWidth-16)))
		}
		style := t.Card
		if i == m.cursor {
			style = t.CardSelected
		}
		b.WriteString(style.Width(cardWidth).Render(line))
		b.WriteString("\n")
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(t.RenderWarning(m.notice))
	}

	content := b.String()
	gap := m.height - lipgloss.Height(content) - 1
	if gap > 0 {
		content += strings.Repeat("\n", gap)
	}
	return content + "\n" + m.help.ShortHelpView(pickerHelp(m.keys).ShortHelp())
}

func (m Model) chatView() string {
	t := m.theme
	ch, _ := m.deps.Catalog.Lookup(m.activeID)

	header := t.Header.Width(m.width).Render(ch.Avatar + " " + ch.Name + "  " + t.HeaderSubtitle.Render(ch.Title))

	body := m.viewport.View()
	if !m.sidebarCollapsed {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), body)
	}

	notice := ""
	if m.notice != "" {
		notice = t.RenderWarning(m.notice)
	}

	input := t.InputContainer.Render(m.input.View())
	status := m.statusView()

	return lipgloss.JoinVertical(lipgloss.Left, header, body, notice, input, status)
}

func (m Model) sidebarView() string {
	t := m.theme
	inner := sidebarWidth - 3
	var b strings.Builder
	for _, c := range m.characters {
		name := util.TruncateWidth(c.Name, inner-2)
		switch {
		case c.ID == m.activeID:
			b.WriteString(t.SidebarItemSelected.Render("> " + name))
		case c.ID == m.streamingID:
			b.WriteString(t.SidebarItem.Render("~ " + name))
		default:
			b.WriteString(t.SidebarItem.Render("  " + name))
		}
		b.WriteString("\n")
	}
	return t.Sidebar.Width(sidebarWidth - 1).Height(m.viewport.Height).Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) statusView() string {
	left := m.help.ShortHelpView(chatHelp(m.keys).ShortHelp())
	if m.streamingID != "" {
		ch, _ := m.deps.Catalog.Lookup(m.streamingID)
		left = m.spinner.View() + " " + ch.Name + " is writing...  " + left
	}
	return m.theme.StatusBar.Width(m.width).MaxHeight(1).Render(left)
}

func (m Model) bioView() string {
	t := m.theme
	ch, ok := m.deps.Catalog.Lookup(m.bioID)
	if !ok {
		return t.RenderError("unknown character")
	}
	width := min(60, max(20, m.width-10))
	var b strings.Builder
	b.WriteString(t.Avatar.Render(ch.Avatar) + " " + t.HeaderTitle.Render(ch.Name))
	b.WriteString("\n")
	b.WriteString(t.HeaderSubtitle.Render(ch.Title))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Width(width).Render(ch.Bio))
	b.WriteString("\n\n")
	b.WriteString(t.Muted.Render("Esc to close"))
	return b.String()
}

func (m Model) helpView() string {
	var km help.KeyMap = pickerHelp(m.keys)
	if m.screen == screenChat {
		km = chatHelp(m.keys)
	}
	return m.theme.OverlayTitle.Render("Keys") + "\n" + m.help.FullHelpView(km.FullHelp())
}
