// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/morganforge/muse/internal/model"
)

// JSONExporter exports conversations to JSON.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonCharacter struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}

type jsonDocument struct {
	Character  jsonCharacter   `json:"character"`
	ExportedAt *time.Time      `json:"exportedAt,omitempty"`
	Messages   []model.Message `json:"messages"`
}

// Export converts a conversation to indented JSON.
func (e *JSONExporter) Export(doc *Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}
	out := jsonDocument{
		Character: jsonCharacter{ID: doc.Character.ID, Name: doc.Character.Name, Title: doc.Character.Title},
		Messages:  doc.Messages,
	}
	if e.options.IncludeMetadata {
		ts := doc.ExportedAt.UTC()
		out.ExportedAt = &ts
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
