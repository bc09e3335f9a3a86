// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_CreatesParentsAndReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	require.NoError(t, AtomicWriteFile(path, []byte("first"), 0600))
	require.NoError(t, AtomicWriteFile(path, []byte("second"), 0600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

// =============================================================================
// WIDTH TESTS
// =============================================================================

func TestTruncateWidth(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"fits", "RELIANCE", 10, "RELIANCE"},
		{"exact", "TCS", 3, "TCS"},
		{"cut", "HDFCBANK", 5, "HDFC…"},
		{"zero", "INFY", 0, ""},
		{"wide chars", "世界世界", 5, "世界…"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TruncateWidth(tc.in, tc.width))
		})
	}
}

func TestFitWidth(t *testing.T) {
	assert.Equal(t, "TCS  ", FitWidth("TCS", 5))
	assert.Equal(t, "  1.5", FitWidthLeft("1.5", 5))
	assert.Equal(t, 5, StringWidth(FitWidth("INFOSYS", 5)))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "hello", FirstLine("\n  hello \nworld"))
	assert.Equal(t, "", FirstLine("\n \n"))
}
