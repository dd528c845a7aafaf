// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morganforge/muse/internal/catalog"
	"github.com/morganforge/muse/internal/model"
	"github.com/morganforge/muse/internal/settings"
	"github.com/morganforge/muse/internal/ui/styles"
	"github.com/morganforge/muse/internal/util"
)

func newTestRenderer(buf *bytes.Buffer) *Renderer {
	// A buffer is not a terminal: no colour and no markdown redraw.
	return NewRenderer(buf, styles.NewTheme(styles.ThemeDark, buf), catalog.New(), Options{Markdown: true})
}

func TestRenderer_StreamThenFinal(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	r.Delta("dante", "Ave", "Ave")
	r.Delta("dante", ", traveler.", "Ave, traveler.")
	r.Final("dante", "Ave, traveler.")

	assert.Equal(t, "Dante Alighieri\nAve, traveler.\n", buf.String())
}

func TestRenderer_ConsecutiveReplies(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	r.Delta("hugo", "Oui", "Oui")
	r.Final("hugo", "Oui")
	r.Delta("hugo", "Non", "Non")
	r.Final("hugo", "Non")

	assert.Equal(t, "Victor Hugo\nOui\nVictor Hugo\nNon\n", buf.String())
}

func TestRenderer_FailedAfterPartial(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	r.Delta("shakespeare", "Hello wor", "Hello wor")
	r.Failed("shakespeare", "Hello wor\n\n**An error occurred:** *connection reset*", errors.New("connection reset"))

	assert.Equal(t,
		"William Shakespeare\nHello wor\n\n**An error occurred:** *connection reset*\n",
		buf.String())
}

func TestRenderer_FailedWithoutPartial(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	r.Failed("goethe", "**An error occurred:** *API Error (500): Unknown error*", errors.New("API Error (500): Unknown error"))

	assert.Equal(t, "Johann von Goethe\n**An error occurred:** *API Error (500): Unknown error*\n", buf.String())
}

func TestRenderer_EmptyFinalPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)
	r.Final("dante", "")
	assert.Empty(t, buf.String())
}

func TestRenderer_Notice(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)
	r.Notice(settings.ErrMissingCredential)
	assert.Equal(t, "[!] "+settings.ErrMissingCredential.Error()+"\n", buf.String())
}

func TestRenderer_Conversation(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	r.Conversation("austen", []model.Message{
		model.NewAssistantMessage("It is a pleasure."),
		model.NewUserMessage("Likewise."),
	})

	assert.Equal(t, "Jane Austen\nIt is a pleasure.\n\nYou\nLikewise.\n\n", buf.String())
}

func TestRenderer_Bio(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)
	ch, ok := catalog.New().Lookup("tolstoy")
	require.True(t, ok)

	r.Bio(ch)

	out := buf.String()
	assert.Contains(t, out, "Leo Tolstoy")
	assert.Contains(t, out, "Russian Novelist")
	assert.Contains(t, out, "War and Peace")
}

func TestRosterTable(t *testing.T) {
	chars := []model.Character{
		{ID: "dante", Name: "Dante Alighieri", Title: "Supreme Poet"},
		{ID: "hugo", Name: "Victor Hugo", Title: "French Poet & Novelist"},
	}

	out := RosterTable(chars, "hugo", 80)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "  ID     NAME             TITLE", lines[0])
	assert.Equal(t, "  dante  Dante Alighieri  Supreme Poet", lines[1])
	assert.Equal(t, "* hugo   Victor Hugo      French Poet & Novelist", lines[2])
}

func TestRosterTable_FitsWidth(t *testing.T) {
	chars := []model.Character{
		{ID: "shakespeare", Name: "William Shakespeare", Title: "The Bard of Avon, playwright and poet"},
	}

	out := RosterTable(chars, "", 50)
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		assert.LessOrEqual(t, util.StringWidth(line), 50, line)
	}
	assert.Contains(t, out, "...")
}
