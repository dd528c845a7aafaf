// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morganforge/muse/internal/catalog"
	"github.com/morganforge/muse/internal/model"
	"github.com/morganforge/muse/internal/state"
	"github.com/morganforge/muse/internal/storage"
)

func newStore(t *testing.T, backing storage.Store) *Store {
	t.Helper()
	st, err := state.NewManager(backing, state.WithThemeDetector(func() string { return state.ThemeDark }))
	require.NoError(t, err)
	s, err := New(backing, catalog.New(), st, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestEnsureConversation_SeedsGreetingOnce(t *testing.T) {
	s := newStore(t, storage.NewMemoryStore())

	require.NoError(t, s.EnsureConversation("dante"))
	require.NoError(t, s.EnsureConversation("dante"))

	conv := s.Conversation("dante")
	require.Len(t, conv, 1)
	assert.Equal(t, model.RoleAssistant, conv[0].Role)
	assert.Equal(t,
		"Greetings, traveler. You find me pondering the path to righteousness. What allegories does your journey present?",
		conv[0].Content)
}

func TestEnsureConversation_UnknownCharacter(t *testing.T) {
	s := newStore(t, storage.NewMemoryStore())
	assert.ErrorIs(t, s.EnsureConversation("homer"), ErrInvalidArgument)
	assert.ErrorIs(t, s.Select("homer"), ErrInvalidArgument)
	assert.Empty(t, s.Characters())
}

func TestAppend(t *testing.T) {
	s := newStore(t, storage.NewMemoryStore())
	require.NoError(t, s.EnsureConversation("hugo"))

	msg, err := s.Append("hugo", model.RoleUser, "Bonjour")
	require.NoError(t, err)
	assert.Equal(t, model.NewUserMessage("Bonjour"), msg)

	conv := s.Conversation("hugo")
	require.Len(t, conv, 2)
	assert.Equal(t, "Bonjour", conv[1].Content)
}

func TestAppend_InvalidArguments(t *testing.T) {
	s := newStore(t, storage.NewMemoryStore())
	require.NoError(t, s.EnsureConversation("hugo"))

	_, err := s.Append("hugo", model.RoleUser, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = s.Append("goethe", model.RoleUser, "Hallo")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = s.Append("hugo", model.Role("narrator"), "x")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Equal(t, 1, s.Len("hugo"))
}

func TestConversation_ReturnsCopy(t *testing.T) {
	s := newStore(t, storage.NewMemoryStore())
	require.NoError(t, s.EnsureConversation("austen"))

	conv := s.Conversation("austen")
	conv[0].Content = "changed"
	assert.NotEqual(t, "changed", s.Conversation("austen")[0].Content)

	assert.Empty(t, s.Conversation("nobody"))
}

func TestSelectAndReset(t *testing.T) {
	backing := storage.NewMemoryStore()
	s := newStore(t, backing)

	_, ok := s.Active()
	assert.False(t, ok)

	require.NoError(t, s.Select("tolstoy"))
	id, ok := s.Active()
	assert.True(t, ok)
	assert.Equal(t, "tolstoy", id)

	require.NoError(t, s.ResetActive())
	_, ok = s.Active()
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len("tolstoy"), "history survives reset")
}

func TestPersistence_ReloadAndLegacyRoles(t *testing.T) {
	backing := storage.NewMemoryStore()
	backing.SetRaw(storage.KeyConversations, []byte(`{
		"dante": [
			{"role": "ai", "content": "Greetings, traveler."},
			{"role": "user", "content": "Hello"},
			{"role": "wizard", "content": "dropped"},
			{"role": "assistant", "content": "Ave"}
		]
	}`))

	s := newStore(t, backing)
	assert.Equal(t, []model.Message{
		model.NewAssistantMessage("Greetings, traveler."),
		model.NewUserMessage("Hello"),
		model.NewAssistantMessage("Ave"),
	}, s.Conversation("dante"))

	_, err := s.Append("dante", model.RoleUser, "Onward")
	require.NoError(t, err)

	reloaded := newStore(t, backing)
	assert.Equal(t, s.Conversation("dante"), reloaded.Conversation("dante"))
	assert.Equal(t, []string{"dante"}, reloaded.Characters())
}

func TestPersistence_CorruptRecord(t *testing.T) {
	backing := storage.NewMemoryStore()
	backing.SetRaw(storage.KeyConversations, []byte(`{"dante": 12`))

	s := newStore(t, backing)
	assert.Empty(t, s.Characters())
}

// flakyStore fails conversation writes on demand.
type flakyStore struct {
	storage.Store
	fail atomic.Bool
}

func (f *flakyStore) Set(key string, v any) error {
	if key == storage.KeyConversations && f.fail.Load() {
		return errors.New("disk full")
	}
	return f.Store.Set(key, v)
}

func TestAppend_RollsBackOnPersistFailure(t *testing.T) {
	backing := &flakyStore{Store: storage.NewMemoryStore()}
	s := newStore(t, backing)
	require.NoError(t, s.EnsureConversation("goethe"))

	backing.fail.Store(true)
	_, err := s.Append("goethe", model.RoleUser, "Guten Tag")
	require.Error(t, err)
	assert.Equal(t, 1, s.Len("goethe"))

	assert.Error(t, s.EnsureConversation("hugo"))
	assert.Equal(t, []string{"goethe"}, s.Characters())
}

func TestAppend_Concurrent(t *testing.T) {
	s := newStore(t, storage.NewMemoryStore())
	require.NoError(t, s.EnsureConversation("shakespeare"))
	require.NoError(t, s.EnsureConversation("austen"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "shakespeare"
			if i%2 == 1 {
				id = "austen"
			}
			_, err := s.Append(id, model.RoleUser, fmt.Sprintf("line %d", i))
			assert.NoError(t, err)
			_ = s.Conversation(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 26, s.Len("shakespeare"))
	assert.Equal(t, 26, s.Len("austen"))
}
