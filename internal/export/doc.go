// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversation transcripts to disk.
//
// Two formats are supported: Markdown, for reading, and JSON, which keeps
// the conversation exactly as the API returned it. Files are written
// atomically so an interrupted export never leaves half a transcript.
//
// # Usage
//
//	path, err := export.ExportToFile(conv, export.NewMarkdownExporter(nil), nil)
package export
