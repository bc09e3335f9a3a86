// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/jeranaias/tradedesk/internal/model"
)

// JSONExporter exports conversations to JSON. The conversation is always
// written whole; options only affect the envelope.
type JSONExporter struct {
	options *Options
}

// Document is the JSON export envelope.
type Document struct {
	Generator    string              `json:"generator"`
	ExportedAt   time.Time           `json:"exported_at"`
	Conversation *model.Conversation `json:"conversation"`
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a conversation to JSON format.
func (e *JSONExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, errors.New("conversation is nil")
	}
	return json.MarshalIndent(Document{
		Generator:    "tradedesk",
		ExportedAt:   e.options.now().UTC(),
		Conversation: conv,
	}, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
