// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the colors and lipgloss styles of the TUI.
// Colors are AdaptiveColor pairs, so one theme serves light and dark
// terminals.
package styles
