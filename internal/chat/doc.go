// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat orchestrates a chat turn against the trading-assistant API.
//
// The Controller sends a message, streams the reply into the conversation
// store, routes inline market payloads to the side panel and reports
// failures as notifications. Front ends (TUI, REPL, one-shot ask) all
// drive the same Controller and re-render from its Update callbacks.
//
// A turn runs like this:
//
//  1. With no active conversation, one is created through the API.
//  2. The user message is appended and an empty assistant reply opened.
//  3. The stream body is dispatched: text deltas grow the reply, payloads
//     replace the panel, [DONE] ends the turn.
//  4. The reply is closed (or failed under the configured policy) and the
//     conversation optionally re-fetched from the server.
package chat
