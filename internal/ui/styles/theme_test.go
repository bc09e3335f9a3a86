// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTheme_ExplicitNames(t *testing.T) {
	dark := NewTheme("dark")
	assert.True(t, dark.IsDark)

	light := NewTheme("LIGHT")
	assert.False(t, light.IsDark)
	assert.Contains(t, []string{"light", "notty"}, light.MarkdownStyle)
}

func TestLayout(t *testing.T) {
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{79, LayoutNarrow},
		{80, LayoutMedium},
		{120, LayoutMedium},
		{121, LayoutWide},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Layout(tt.width), "width %d", tt.width)
	}
}

func TestSigned(t *testing.T) {
	assert.Equal(t, Gain, Signed(0))
	assert.Equal(t, Gain, Signed(1.5))
	assert.Equal(t, Loss, Signed(-0.01))
}
