// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/morganforge/muse/internal/model"
	"github.com/morganforge/muse/internal/util"
)

// ErrEmptyConversation is returned for a conversation with no messages.
var ErrEmptyConversation = errors.New("conversation has no messages")

// ErrUnknownFormat is returned by ForFormat.
var ErrUnknownFormat = errors.New("unknown export format")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a conversation to one format.
type Exporter interface {
	Export(doc *Document) ([]byte, error)
	// FileExtension returns the extension including the dot.
	FileExtension() string
	MimeType() string
}

// Document is a conversation with the character it belongs to.
type Document struct {
	Character  model.Character
	Messages   []model.Message
	ExportedAt time.Time
}

// NewDocument creates a Document stamped with the current time.
func NewDocument(ch model.Character, msgs []model.Message) *Document {
	return &Document{
		Character:  ch,
		Messages:   model.CloneMessages(msgs),
		ExportedAt: time.Now(),
	}
}

func (d *Document) validate() error {
	if d == nil || len(d.Messages) == 0 {
		return ErrEmptyConversation
	}
	return nil
}

// speaker returns the display label for a message author.
func (d *Document) speaker(role model.Role) string {
	if role == model.RoleUser {
		return role.DisplayName()
	}
	return d.Character.Name
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// IncludeMetadata adds a metadata header.
	IncludeMetadata bool

	// Theme for HTML export ("light" or "dark").
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata: true,
		Theme:           "dark",
	}
}

// Formats lists the names accepted by ForFormat.
var Formats = []string{"md", "json", "html"}

// ForFormat returns the exporter for a format name.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownFormat, format, strings.Join(Formats, ", "))
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToFile exports doc and writes it to path. An empty path writes
// "<character>_<timestamp><ext>" in the current directory. The file is
// written atomically and readable by the owner only.
func ToFile(doc *Document, exporter Exporter, path string) (string, error) {
	content, err := exporter.Export(doc)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if path == "" {
		path = DefaultFilename(doc, exporter)
	}
	if err := util.AtomicWriteFile(path, content, 0o600); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return filepath.Clean(path), nil
}

// DefaultFilename returns the name ToFile uses when none is given.
func DefaultFilename(doc *Document, exporter Exporter) string {
	return fmt.Sprintf("%s_%s%s",
		sanitizeFilename(doc.Character.ID),
		doc.ExportedAt.Format("20060102_150405"),
		exporter.FileExtension(),
	)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(s)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			result = append(result, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			result = append(result, '_')
		case r < 32 || r == 127:
			result = append(result, '-')
		default:
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "conversation"
	}
	return string(result)
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
