// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Ellipsis is appended by TruncateWidth when it cuts a string short.
const Ellipsis = "…"

// cols pins ambiguous-width runes (the ellipsis, box drawing) to one column
// regardless of the user's locale.
var cols = func() *runewidth.Condition {
	c := runewidth.NewCondition()
	c.EastAsianWidth = false
	return c
}()

// TruncateWidth fits s into maxWidth terminal columns, counting wide
// (CJK) characters as two. Truncated strings end in Ellipsis.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if cols.StringWidth(s) <= maxWidth {
		return s
	}
	return cols.Truncate(s, maxWidth, Ellipsis)
}

// FitWidth truncates or right-pads s to exactly width columns.
func FitWidth(s string, width int) string {
	return cols.FillRight(TruncateWidth(s, width), width)
}

// FitWidthLeft truncates or left-pads s to exactly width columns; used
// for right-aligned numeric columns.
func FitWidthLeft(s string, width int) string {
	return cols.FillLeft(TruncateWidth(s, width), width)
}

// StringWidth returns the display width of s.
func StringWidth(s string) int {
	return cols.StringWidth(s)
}

// FirstLine returns the first non-empty line of s, trimmed.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
