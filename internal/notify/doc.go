// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notify carries user-visible notifications from the chat and
// panel layers to whichever front end is running.
//
// Producers depend only on the Notifier interface. The TUI plugs in a
// Queue, which keeps short-lived toasts that expire on their own; the line
// REPL prints them; tests use a Recorder.
//
// # Key Types
//
//   - Level: info, success, warning, error (each with its own lifetime)
//   - Notification: one message with its level and timestamps
//   - Queue: bounded, expiring toast list (newest first)
//
// # Usage
//
//	q := notify.NewQueue()
//	notify.Success(q, "Conversation title updated")
//	for _, n := range q.Tick(time.Now()) {
//	    fmt.Println(n.Level, n.Message)
//	}
package notify
