// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"strings"

	"github.com/morganforge/muse/internal/model"
	"github.com/morganforge/muse/internal/util"
)

const (
	columnGap   = 2
	minBioWidth = 12
)

// RosterTable lays out chars as ID, NAME, TITLE columns fitted to width.
// The active character is marked with an asterisk.
func RosterTable(chars []model.Character, activeID string, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}

	idW, nameW := len("ID"), len("NAME")
	for _, c := range chars {
		idW = max(idW, util.StringWidth(c.ID))
		nameW = max(nameW, util.StringWidth(c.Name))
	}
	// "* " marker column
	titleW := max(minBioWidth, width-2-idW-nameW-2*columnGap)

	var b strings.Builder
	row := func(marker, id, name, title string) {
		b.WriteString(marker)
		b.WriteString(util.PadRight(id, idW+columnGap))
		b.WriteString(util.PadRight(util.TruncateWidth(name, nameW), nameW+columnGap))
		b.WriteString(strings.TrimRight(util.TruncateWidth(title, titleW), " "))
		b.WriteByte('\n')
	}

	row("  ", "ID", "NAME", "TITLE")
	for _, c := range chars {
		marker := "  "
		if c.ID == activeID {
			marker = "* "
		}
		row(marker, c.ID, c.Name, c.Title)
	}
	return b.String()
}
