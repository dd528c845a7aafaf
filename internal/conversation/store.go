// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation owns the per-character message logs and the active
// character pointer.
package conversation

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/morganforge/muse/internal/model"
	"github.com/morganforge/muse/internal/state"
	"github.com/morganforge/muse/internal/storage"
)

// ErrInvalidArgument is returned for unknown characters, empty content and
// appends to a conversation that does not exist.
var ErrInvalidArgument = errors.New("invalid argument")

// Catalog resolves character ids.
type Catalog interface {
	Lookup(id string) (model.Character, bool)
}

// storedMessage is the persisted form. Roles are parsed leniently so that
// one bad entry does not discard a whole history.
type storedMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// =============================================================================
// STORE
// =============================================================================

// Store is the append-only conversation log. Messages are keyed by
// character id, so an exchange that outlives a character switch still
// lands in its own conversation.
type Store struct {
	mu      sync.RWMutex
	store   storage.Store
	catalog Catalog
	state   *state.Manager
	logger  zerolog.Logger

	convs map[string][]model.Message
}

// New loads the conversations record from store.
func New(store storage.Store, catalog Catalog, st *state.Manager, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		store:   store,
		catalog: catalog,
		state:   st,
		logger:  logger,
		convs:   make(map[string][]model.Message),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	var raw map[string][]storedMessage
	found, err := s.store.Get(storage.KeyConversations, &raw)
	if errors.Is(err, storage.ErrCorrupt) {
		s.logger.Warn().Err(err).Msg("conversations record is corrupt, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}
	if !found {
		return nil
	}

	for id, msgs := range raw {
		conv := make([]model.Message, 0, len(msgs))
		for i, m := range msgs {
			role, err := model.ParseRole(m.Role)
			if err != nil {
				s.logger.Warn().Str("character", id).Int("index", i).Err(err).Msg("dropping stored message")
				continue
			}
			conv = append(conv, model.NewMessage(role, m.Content))
		}
		if len(conv) > 0 {
			s.convs[id] = conv
		}
	}
	return nil
}

// EnsureConversation seeds a conversation with the character's greeting if
// none exists. Calling it again has no effect.
func (s *Store) EnsureConversation(characterID string) error {
	ch, ok := s.catalog.Lookup(characterID)
	if !ok {
		return fmt.Errorf("%w: unknown character %q", ErrInvalidArgument, characterID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.convs[characterID]; exists {
		return nil
	}
	s.convs[characterID] = []model.Message{ch.GreetingMessage()}
	if err := s.persistLocked(); err != nil {
		delete(s.convs, characterID)
		return err
	}
	return nil
}

// Select ensures a conversation for characterID and makes it active.
func (s *Store) Select(characterID string) error {
	if err := s.EnsureConversation(characterID); err != nil {
		return err
	}
	return s.state.SetCurrentCharacter(characterID)
}

// Append adds a message to characterID's conversation and persists it. If
// the write fails the message is removed again and the error returned.
func (s *Store) Append(characterID string, role model.Role, content string) (model.Message, error) {
	if content == "" {
		return model.Message{}, fmt.Errorf("%w: empty content", ErrInvalidArgument)
	}
	if !role.Valid() {
		return model.Message{}, fmt.Errorf("%w: role %q", ErrInvalidArgument, role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[characterID]
	if !ok {
		return model.Message{}, fmt.Errorf("%w: no conversation for %q", ErrInvalidArgument, characterID)
	}

	msg := model.NewMessage(role, content)
	s.convs[characterID] = append(conv, msg)
	if err := s.persistLocked(); err != nil {
		s.convs[characterID] = conv
		return model.Message{}, err
	}
	return msg, nil
}

// Conversation returns a copy of characterID's messages, or an empty slice.
func (s *Store) Conversation(characterID string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneMessages(s.convs[characterID])
}

// Len returns the number of messages stored for characterID.
func (s *Store) Len(characterID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs[characterID])
}

// Characters returns the ids that have a conversation, sorted.
func (s *Store) Characters() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.convs))
	for id := range s.convs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Active returns the active character, if any.
func (s *Store) Active() (string, bool) {
	id := s.state.Snapshot().CurrentCharacterID
	return id, id != ""
}

// ResetActive clears the active pointer. History is kept.
func (s *Store) ResetActive() error {
	return s.state.ClearCurrentCharacter()
}

func (s *Store) persistLocked() error {
	if err := s.store.Set(storage.KeyConversations, s.convs); err != nil {
		return fmt.Errorf("save conversations: %w", err)
	}
	return nil
}
