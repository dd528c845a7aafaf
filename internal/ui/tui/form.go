// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/muse/internal/settings"
	"github.com/morganforge/muse/internal/ui/styles"
)

const (
	fieldProvider = iota
	fieldURL
	fieldKey
	fieldModel
	fieldCount
)

var fieldLabels = [fieldCount]string{"Provider", "Custom URL", "API key", "Model"}

// settingsForm edits the saved API settings. The key field starts empty;
// leaving it empty keeps the stored key.
type settingsForm struct {
	inputs [fieldCount]textinput.Model
	focus  int
	err    string
}

func newSettingsForm(saved settings.Settings) settingsForm {
	var f settingsForm
	for i := range f.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 512
		f.inputs[i] = in
	}

	f.inputs[fieldProvider].Placeholder = settings.ProviderChatGPT + " or " + settings.ProviderCustom
	f.inputs[fieldProvider].SetValue(saved.Provider)
	f.inputs[fieldURL].Placeholder = "https://host/v1/chat/completions"
	f.inputs[fieldURL].SetValue(saved.CustomURL)
	f.inputs[fieldKey].EchoMode = textinput.EchoPassword
	f.inputs[fieldKey].EchoCharacter = '*'
	if saved.APIKey != "" {
		f.inputs[fieldKey].Placeholder = "unchanged (" + settings.KeyFingerprint(saved.APIKey) + ")"
	} else {
		f.inputs[fieldKey].Placeholder = "sk-..."
	}
	f.inputs[fieldModel].Placeholder = settings.DefaultModel
	f.inputs[fieldModel].SetValue(saved.Model)

	f.inputs[fieldProvider].Focus()
	return f
}

func (f *settingsForm) move(delta int) {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + fieldCount) % fieldCount
	f.inputs[f.focus].Focus()
}

func (f settingsForm) update(msg tea.Msg) (settingsForm, tea.Cmd) {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

// partial returns the update described by the form.
func (f settingsForm) partial() (settings.Partial, error) {
	provider, err := settings.ParseProvider(f.inputs[fieldProvider].Value())
	if err != nil {
		return settings.Partial{}, err
	}

	p := settings.Partial{
		Provider:  settings.String(provider),
		CustomURL: settings.String(f.inputs[fieldURL].Value()),
		Model:     settings.String(f.inputs[fieldModel].Value()),
	}
	if key := strings.TrimSpace(f.inputs[fieldKey].Value()); key != "" {
		p.APIKey = settings.String(key)
	}
	return p, nil
}

func (f settingsForm) view(theme *styles.Theme) string {
	var b strings.Builder
	b.WriteString(theme.OverlayTitle.Render("API settings"))
	b.WriteString("\n")
	for i, in := range f.inputs {
		label := fmt.Sprintf("%-11s", fieldLabels[i])
		if i == f.focus {
			b.WriteString(theme.SidebarItemSelected.Render("> " + label))
		} else {
			b.WriteString(theme.SidebarItem.Render("  " + label))
		}
		b.WriteString(" ")
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	if f.err != "" {
		b.WriteString("\n")
		b.WriteString(theme.RenderError(f.err))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(theme.Muted.Render("Tab next field  Enter save  Esc cancel"))
	return b.String()
}
