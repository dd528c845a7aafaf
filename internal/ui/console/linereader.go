// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
)

// ErrInterrupted is returned by ReadLine when the user presses Ctrl+C at the
// prompt.
var ErrInterrupted = errors.New("interrupted")

// LineReader reads input lines with history and line editing.
type LineReader struct {
	line        *liner.State
	historyFile string
}

// NewLineReader creates a LineReader. History is loaded from historyFile
// when it exists; an empty path disables persistence.
func NewLineReader(historyFile string) *LineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &LineReader{line: line, historyFile: historyFile}
	r.loadHistory()
	return r
}

func (r *LineReader) loadHistory() {
	if r.historyFile == "" {
		return
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
}

// SetCompleter completes slash commands.
func (r *LineReader) SetCompleter(words []string) {
	r.line.SetCompleter(func(input string) []string {
		var out []string
		for _, w := range words {
			if strings.HasPrefix(w, input) {
				out = append(out, w)
			}
		}
		return out
	})
}

// ReadLine reads one line. It returns io.EOF on Ctrl+D and ErrInterrupted on
// Ctrl+C.
func (r *LineReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	switch {
	case errors.Is(err, liner.ErrPromptAborted):
		return "", ErrInterrupted
	case err != nil:
		return "", io.EOF
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the
// terminal.
func (r *LineReader) Close() error {
	if r.historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(r.historyFile), 0o700); err == nil {
			if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
				r.line.WriteHistory(f)
				f.Close()
			}
		}
	}
	return r.line.Close()
}
