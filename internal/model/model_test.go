// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"user", RoleUser, false},
		{"assistant", RoleAssistant, false},
		{"system", RoleSystem, false},
		{"ai", RoleAssistant, false},
		{"tool", "", true},
		{"", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseRole(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMessage_UnmarshalLegacyRole(t *testing.T) {
	var msgs []Message
	err := json.Unmarshal([]byte(`[{"role":"ai","content":"Greetings"},{"role":"user","content":"Hi"}]`), &msgs)
	require.NoError(t, err)

	assert.Equal(t, []Message{
		{Role: RoleAssistant, Content: "Greetings"},
		{Role: RoleUser, Content: "Hi"},
	}, msgs)
}

func TestMessage_UnmarshalUnknownRole(t *testing.T) {
	var msg Message
	err := json.Unmarshal([]byte(`{"role":"wizard","content":"x"}`), &msg)
	assert.Error(t, err)
}

func TestMessage_Preview(t *testing.T) {
	msg := NewUserMessage("Ça va, mon ami? Très bien.")
	assert.Equal(t, msg.Content, msg.Preview(100))
	assert.Equal(t, "Ça va,...", msg.Preview(9))
	assert.Equal(t, "Ça", msg.Preview(2))
}

func TestCharacter_SystemPrompt(t *testing.T) {
	c := Character{ID: "dante", Name: "Dante Alighieri"}
	assert.Equal(t,
		"You are Dante Alighieri. You must speak and act in their persona. Be concise, eloquent, and stay in character.",
		c.SystemPrompt())
}

func TestCloneMessages_Independent(t *testing.T) {
	orig := []Message{NewUserMessage("a")}
	clone := CloneMessages(orig)
	clone[0].Content = "b"
	assert.Equal(t, "a", orig[0].Content)

	assert.NotNil(t, CloneMessages(nil))
	assert.Empty(t, CloneMessages(nil))
}
