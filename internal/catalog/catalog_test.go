// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morganforge/muse/internal/model"
)

func TestNew_BuiltinRoster(t *testing.T) {
	c := New()
	require.Equal(t, 6, c.Len())

	ids := make([]string, 0, c.Len())
	for _, ch := range c.List() {
		ids = append(ids, ch.ID)
	}
	assert.Equal(t, []string{"shakespeare", "goethe", "dante", "tolstoy", "austen", "hugo"}, ids)

	dante, ok := c.Lookup("dante")
	require.True(t, ok)
	assert.Equal(t, "Dante Alighieri", dante.Name)
	assert.Equal(t, "Supreme Poet", dante.Title)
	assert.Equal(t,
		"Greetings, traveler. You find me pondering the path to righteousness. What allegories does your journey present?",
		dante.Greeting)

	_, ok = c.Lookup("homer")
	assert.False(t, ok)
}

func TestList_ReturnsCopy(t *testing.T) {
	c := New()
	list := c.List()
	list[0].Name = "changed"

	ch, _ := c.Lookup(list[0].ID)
	assert.NotEqual(t, "changed", ch.Name)
	assert.NotEqual(t, "changed", c.List()[0].Name)
}

func TestFromCharacters_Validation(t *testing.T) {
	tests := []struct {
		name  string
		chars []model.Character
	}{
		{"empty", nil},
		{"missing id", []model.Character{{Name: "A", Greeting: "hi"}}},
		{"missing name", []model.Character{{ID: "a", Greeting: "hi"}}},
		{"missing greeting", []model.Character{{ID: "a", Name: "A"}}},
		{"duplicate", []model.Character{
			{ID: "a", Name: "A", Greeting: "hi"},
			{ID: "a", Name: "B", Greeting: "hey"},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromCharacters(tc.chars)
			assert.ErrorIs(t, err, ErrInvalidRoster)
		})
	}
}

const customRoster = `
characters:
  - id: homer
    name: Homer
    title: Epic Poet
    greeting: Sing, muse.
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(customRoster), 0600))

	c := New()
	require.NoError(t, c.LoadFile(path))
	assert.Equal(t, 1, c.Len())

	homer, ok := c.Lookup("homer")
	require.True(t, ok)
	assert.Equal(t, "Sing, muse.", homer.Greeting)
}

func TestLoadFile_InvalidKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte("characters: [{id: x}]"), 0600))

	c := New()
	err := c.LoadFile(path)
	assert.ErrorIs(t, err, ErrInvalidRoster)
	assert.Equal(t, 6, c.Len())

	assert.Error(t, c.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(customRoster), 0600))

	c := New()
	require.NoError(t, c.LoadFile(path))

	w, err := NewWatcher(c, path, zerolog.Nop())
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	reloaded := make(chan error, 4)
	w.OnReload = func(err error) { reloaded <- err }
	w.Start()
	defer w.Close()

	updated := customRoster + `
  - id: sappho
    name: Sappho
    greeting: Come, sacred lyre.
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0600))

	deadline := time.After(5 * time.Second)
	for c.Len() != 2 {
		select {
		case <-reloaded:
		case <-deadline:
			t.Fatal("roster was not reloaded")
		}
	}
	_, ok := c.Lookup("sappho")
	assert.True(t, ok)
}
