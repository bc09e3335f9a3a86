// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components renders the pieces of the TUI: the conversation
// sidebar, the transcript, the side panel and toast notifications.
// Components are pure functions of their inputs; state lives in the
// chat controller and the notify queue.
package components
