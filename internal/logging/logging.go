// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the application's zerolog logger.
//
// The TUI owns the terminal, so by default log records go to a file under
// the data directory. Line-mode commands may additionally echo records to
// stderr through a console writer.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Options configures New.
type Options struct {
	// Level is a zerolog level name ("debug", "info", ...).
	Level string

	// Path is the log file. Empty disables file logging.
	Path string

	// Console echoes records to Stderr in human-readable form.
	Console bool

	// Stderr defaults to os.Stderr.
	Stderr io.Writer
}

// Logger wraps the root logger and the file it writes to.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// New creates the root logger. Close must be called to release the file.
func New(opts Options) (*Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	l := &Logger{}

	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0700); err != nil {
			return nil, fmt.Errorf("log directory: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = f
		writers = append(writers, f)
	}

	if opts.Console {
		stderr := opts.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        stderr,
			TimeFormat: time.Kitchen,
			NoColor:    !isTerminal(stderr),
		})
	}

	switch len(writers) {
	case 0:
		l.Logger = zerolog.Nop()
		return l, nil
	case 1:
		l.Logger = zerolog.New(writers[0])
	default:
		l.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...))
	}
	l.Logger = l.Logger.Level(level).With().Timestamp().Logger()
	return l, nil
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Component returns a child logger tagged with name.
func Component(parent zerolog.Logger, name string) zerolog.Logger {
	return parent.With().Str("component", name).Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
