// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Gold - Primary accent, character names, selections
var Gold = lipgloss.AdaptiveColor{Light: "#A16207", Dark: "#FACC15"}

// GoldDeep - Darker gold for backgrounds
var GoldDeep = lipgloss.AdaptiveColor{Light: "#854D0E", Dark: "#422006"}

// Ink - User highlights, prompts
var Ink = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#93C5FD"}

// Sage - Success states
var Sage = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#6EE7B7"}

// =============================================================================
// SEMANTIC COLORS
// =============================================================================

// Rose - Errors, failed replies
var Rose = lipgloss.AdaptiveColor{Light: "#BE123C", Dark: "#FB7185"}

// Amber - Notices, warnings
var Amber = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}

// =============================================================================
// SURFACE COLORS
// =============================================================================

// Surface - Main background
var Surface = lipgloss.AdaptiveColor{Light: "#FFFBEB", Dark: "#1C1917"}

// SurfaceDim - Headers, status bar, sidebar
var SurfaceDim = lipgloss.AdaptiveColor{Light: "#F5F0E1", Dark: "#141210"}

// Overlay - Borders, separators
var Overlay = lipgloss.AdaptiveColor{Light: "#D6CFC0", Dark: "#44403C"}

// =============================================================================
// TEXT COLORS
// =============================================================================

// TextPrimary - Main body text
var TextPrimary = lipgloss.AdaptiveColor{Light: "#292524", Dark: "#E7E5E4"}

// TextSecondary - Titles, labels
var TextSecondary = lipgloss.AdaptiveColor{Light: "#57534E", Dark: "#A8A29E"}

// TextMuted - Hints
var TextMuted = lipgloss.AdaptiveColor{Light: "#A8A29E", Dark: "#78716C"}

// TextInverse - Text on coloured backgrounds
var TextInverse = lipgloss.AdaptiveColor{Light: "#FFFBEB", Dark: "#1C1917"}

// =============================================================================
// STATUS INDICATORS
// =============================================================================

// StatusIndicatorSet contains text indicators for status states.
type StatusIndicatorSet struct {
	Success string
	Error   string
	Warning string
	Info    string
	Active  string
}

// StatusIndicators are ASCII so they survive any terminal and read without
// colour.
var StatusIndicators = StatusIndicatorSet{
	Success: "[OK]",
	Error:   "[X]",
	Warning: "[!]",
	Info:    "[i]",
	Active:  "[*]",
}
