// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog provides the read-only roster of characters.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/morganforge/muse/internal/model"
)

//go:embed roster.yaml
var builtinRoster []byte

// ErrInvalidRoster is returned when a roster document fails validation.
var ErrInvalidRoster = errors.New("invalid roster")

// rosterFile is the on-disk layout of a roster document.
type rosterFile struct {
	Characters []model.Character `yaml:"characters"`
}

// roster is an immutable snapshot; the catalog swaps whole snapshots.
type roster struct {
	order []model.Character
	byID  map[string]model.Character
}

// Catalog answers character lookups. It is safe for concurrent use.
type Catalog struct {
	current atomic.Pointer[roster]
}

// New returns a catalog holding the built-in roster.
func New() *Catalog {
	r, err := parseRoster(builtinRoster)
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in roster: %v", err))
	}
	c := &Catalog{}
	c.current.Store(r)
	return c
}

// FromCharacters builds a catalog from an explicit list.
func FromCharacters(chars []model.Character) (*Catalog, error) {
	r, err := buildRoster(chars)
	if err != nil {
		return nil, err
	}
	c := &Catalog{}
	c.current.Store(r)
	return c, nil
}

// LoadFile replaces the roster with the one stored at path. On failure the
// current roster is kept.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read roster: %w", err)
	}
	r, err := parseRoster(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	c.current.Store(r)
	return nil
}

// Lookup returns the character with id.
func (c *Catalog) Lookup(id string) (model.Character, bool) {
	ch, ok := c.current.Load().byID[id]
	return ch, ok
}

// List returns the roster in its declared order.
func (c *Catalog) List() []model.Character {
	order := c.current.Load().order
	out := make([]model.Character, len(order))
	copy(out, order)
	return out
}

// Len returns the number of characters.
func (c *Catalog) Len() int {
	return len(c.current.Load().order)
}

func parseRoster(data []byte) (*roster, error) {
	var doc rosterFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoster, err)
	}
	return buildRoster(doc.Characters)
}

func buildRoster(chars []model.Character) (*roster, error) {
	if len(chars) == 0 {
		return nil, fmt.Errorf("%w: no characters", ErrInvalidRoster)
	}

	r := &roster{
		order: make([]model.Character, 0, len(chars)),
		byID:  make(map[string]model.Character, len(chars)),
	}
	for i, ch := range chars {
		ch.ID = strings.TrimSpace(ch.ID)
		ch.Name = strings.TrimSpace(ch.Name)
		ch.Greeting = strings.TrimSpace(ch.Greeting)
		ch.Bio = strings.TrimSpace(ch.Bio)

		switch {
		case ch.ID == "":
			return nil, fmt.Errorf("%w: character %d has no id", ErrInvalidRoster, i)
		case ch.Name == "":
			return nil, fmt.Errorf("%w: character %q has no name", ErrInvalidRoster, ch.ID)
		case ch.Greeting == "":
			return nil, fmt.Errorf("%w: character %q has no greeting", ErrInvalidRoster, ch.ID)
		}
		if _, dup := r.byID[ch.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidRoster, ch.ID)
		}
		r.byID[ch.ID] = ch
		r.order = append(r.order, ch)
	}
	return r, nil
}
