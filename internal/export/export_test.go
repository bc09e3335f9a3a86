// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tradedesk/internal/model"
)

var fixedNow = time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)

func sampleConversation() *model.Conversation {
	created := model.Timestamp{Time: time.Date(2025, 3, 4, 9, 15, 0, 0, time.UTC)}
	return &model.Conversation{
		ID:        "c1",
		Title:     "Banks: undervalued?",
		Mode:      model.ModeReal,
		CreatedAt: created,
		UpdatedAt: created,
		Messages: []model.Message{
			{ID: "u1", Role: model.RoleUser, Content: "Find undervalued banks", CreatedAt: created},
			{ID: "a1", Role: model.RoleAssistant, Content: "Here are **three** picks.", CreatedAt: created},
			{ID: "u2", Role: model.RoleUser, Content: "and IT?", Status: model.StatusFailed},
		},
	}
}

func testOptions(dir string) *Options {
	opts := DefaultOptions()
	opts.OutputDir = dir
	opts.Now = func() time.Time { return fixedNow }
	return opts
}

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(testOptions("")).Export(sampleConversation())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\ntitle: \"Banks: undervalued?\"\n"))
	assert.Contains(t, md, "mode: real\n")
	assert.Contains(t, md, "messages: 3\n")
	assert.Contains(t, md, "# Banks: undervalued?\n")
	assert.Contains(t, md, "### You <sub>09:15:00</sub>")
	assert.Contains(t, md, "Here are **three** picks.")
	assert.Contains(t, md, "### You (not delivered)\n", "no timestamp when the message has none")
	assert.Contains(t, md, "March 4, 2025")
}

func TestMarkdownExport_NoMetadata(t *testing.T) {
	opts := testOptions("")
	opts.IncludeMetadata = false
	opts.IncludeTimestamps = false
	out, err := NewMarkdownExporter(opts).Export(sampleConversation())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "# Banks"))
	assert.NotContains(t, string(out), "<sub>")
}

func TestMarkdownExport_RejectsEmpty(t *testing.T) {
	_, err := NewMarkdownExporter(nil).Export(&model.Conversation{ID: "x"})
	assert.Error(t, err)
	_, err = NewMarkdownExporter(nil).Export(nil)
	assert.Error(t, err)
}

func TestJSONExport(t *testing.T) {
	out, err := NewJSONExporter(testOptions("")).Export(sampleConversation())
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "tradedesk", doc.Generator)
	assert.True(t, doc.ExportedAt.Equal(fixedNow))
	require.Len(t, doc.Conversation.Messages, 3)
	assert.Equal(t, model.StatusFailed, doc.Conversation.Messages[2].Status)
}

func TestExportToFile_GeneratedName(t *testing.T) {
	dir := t.TempDir()
	path, err := ExportMarkdown(sampleConversation(), testOptions(dir))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "conversation_Banks-_undervalued-_20250304_103000.md"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Find undervalued banks")
}

func TestExportToFile_ExplicitPath(t *testing.T) {
	opts := testOptions("")
	opts.Path = filepath.Join(t.TempDir(), "nested", "out.json")
	path, err := ExportJSON(sampleConversation(), opts)
	require.NoError(t, err)
	assert.Equal(t, opts.Path, path)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestForFormat(t *testing.T) {
	for _, name := range []string{"", "md", "Markdown"} {
		e, err := ForFormat(name, nil)
		require.NoError(t, err)
		assert.Equal(t, ".md", e.FileExtension())
	}
	e, err := ForFormat("json", nil)
	require.NoError(t, err)
	assert.Equal(t, "application/json", e.MimeType())

	_, err = ForFormat("pdf", nil)
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "conversation", sanitizeFilename(""))
	assert.Equal(t, "a-b_c", sanitizeFilename("a/b c"))
	assert.Len(t, []rune(sanitizeFilename(strings.Repeat("x", 80))), 50)
}
