// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "muse.log")

	l, err := New(Options{Level: "info", Path: path})
	require.NoError(t, err)

	lg := Component(l.Logger, "exchange")
	lg.Info().Str("character", "dante").Msg("exchange completed")
	l.Debug().Msg("filtered")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "exchange", rec["component"])
	assert.Equal(t, "dante", rec["character"])
	assert.Equal(t, "info", rec["level"])
	assert.Contains(t, rec, "time")
}

func TestComponent_TagsChild(t *testing.T) {
	var buf bytes.Buffer
	parent := zerolog.New(&buf).With().Str("app", "muse").Logger()

	child := Component(parent, "transport")
	child.Warn().Msg("slow stream")
	parent.Warn().Msg("untagged")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var tagged, plain map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &tagged))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &plain))
	assert.Equal(t, "transport", tagged["component"])
	assert.Equal(t, "muse", tagged["app"])
	assert.NotContains(t, plain, "component", "the parent is not modified")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "debug", Console: true, Stderr: &buf})
	require.NoError(t, err)
	defer l.Close()

	l.Debug().Msg("hello console")
	assert.Contains(t, buf.String(), "hello console")
}

func TestNew_NoWriters(t *testing.T) {
	l, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, zerolog.Disabled, l.GetLevel())
	assert.NoError(t, l.Close())
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(Options{Level: "shout"})
	assert.Error(t, err)
}
