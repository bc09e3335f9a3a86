// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the Bubble Tea program of the trading assistant.
//
// The model is a thin view over the chat controller: key presses and slash
// commands call controller operations in tea.Cmds, and controller updates
// arrive through a channel that the model drains one message at a time.
// Rendering reads the conversation store and panel presenter directly.
package chat
