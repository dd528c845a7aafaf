// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names, matching the persisted UI state.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Theme holds the styled components for one output.
type Theme struct {
	Name         string
	IsDark       bool
	ColorProfile termenv.Profile

	renderer *lipgloss.Renderer

	// ==========================================================================
	// LAYOUT
	// ==========================================================================

	App            lipgloss.Style
	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style
	StatusBar      lipgloss.Style
	ShortcutKey    lipgloss.Style
	ShortcutDesc   lipgloss.Style

	// ==========================================================================
	// SIDEBAR AND PICKER
	// ==========================================================================

	Sidebar             lipgloss.Style
	SidebarItem         lipgloss.Style
	SidebarItemSelected lipgloss.Style
	Card                lipgloss.Style
	CardSelected        lipgloss.Style
	Avatar              lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel        lipgloss.Style
	AssistantLabel   lipgloss.Style
	UserMessage      lipgloss.Style
	AssistantMessage lipgloss.Style
	Annotation       lipgloss.Style
	Spinner          lipgloss.Style

	// ==========================================================================
	// INPUT AND OVERLAYS
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	OverlayBox     lipgloss.Style
	OverlayTitle   lipgloss.Style
	Muted          lipgloss.Style

	// ==========================================================================
	// STATUS
	// ==========================================================================

	SuccessStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
	InfoStyle    lipgloss.Style
}

// NewTheme builds a theme for output w. name selects the dark or light half
// of every adaptive colour; anything other than ThemeLight is dark.
func NewTheme(name string, w io.Writer) *Theme {
	r := lipgloss.NewRenderer(w)
	isDark := name != ThemeLight
	r.SetHasDarkBackground(isDark)
	if !isDark {
		name = ThemeLight
	} else {
		name = ThemeDark
	}

	t := &Theme{
		Name:         name,
		IsDark:       isDark,
		ColorProfile: r.ColorProfile(),
		renderer:     r,
	}
	t.initStyles()
	return t
}

// Renderer returns the lip gloss renderer the styles were built with.
func (t *Theme) Renderer() *lipgloss.Renderer {
	return t.renderer
}

// GlamourStyle returns the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	s := t.renderer.NewStyle

	t.App = s()

	t.Header = s().
		Bold(true).
		Foreground(Gold).
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = s().
		Bold(true).
		Foreground(Gold)

	t.HeaderSubtitle = s().
		Foreground(TextSecondary).
		Italic(true)

	t.StatusBar = s().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ShortcutKey = s().
		Foreground(Ink).
		Bold(true)

	t.ShortcutDesc = s().
		Foreground(TextMuted)

	// Sidebar and picker
	t.Sidebar = s().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.SidebarItem = s().
		Foreground(TextSecondary)

	t.SidebarItemSelected = s().
		Foreground(Gold).
		Bold(true)

	t.Card = s().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.CardSelected = t.Card.
		BorderForeground(Gold)

	t.Avatar = s().
		Foreground(TextInverse).
		Background(Gold).
		Bold(true).
		Padding(0, 1)

	// Messages
	t.UserLabel = s().
		Foreground(Ink).
		Bold(true)

	t.AssistantLabel = s().
		Foreground(Gold).
		Bold(true)

	t.UserMessage = s().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.AssistantMessage = s().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.Annotation = s().
		Foreground(Rose).
		Italic(true)

	t.Spinner = s().
		Foreground(Gold)

	// Input and overlays
	t.InputContainer = s().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = s().
		Foreground(Ink).
		Bold(true)

	t.OverlayBox = s().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Gold).
		Padding(1, 2)

	t.OverlayTitle = s().
		Foreground(Gold).
		Bold(true).
		MarginBottom(1)

	t.Muted = s().
		Foreground(TextMuted)

	// Status
	t.SuccessStyle = s().Foreground(Sage).Bold(true)
	t.ErrorStyle = s().Foreground(Rose).Bold(true)
	t.WarningStyle = s().Foreground(Amber).Bold(true)
	t.InfoStyle = s().Foreground(Ink)
}

// RenderSuccess renders message with the success indicator.
func (t *Theme) RenderSuccess(message string) string {
	return t.SuccessStyle.Render(StatusIndicators.Success + " " + message)
}

// RenderError renders message with the error indicator.
func (t *Theme) RenderError(message string) string {
	return t.ErrorStyle.Render(StatusIndicators.Error + " " + message)
}

// RenderWarning renders message with the warning indicator.
func (t *Theme) RenderWarning(message string) string {
	return t.WarningStyle.Render(StatusIndicators.Warning + " " + message)
}

// RenderInfo renders message with the info indicator.
func (t *Theme) RenderInfo(message string) string {
	return t.InfoStyle.Render(StatusIndicators.Info + " " + message)
}
