// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation holds the in-memory conversation store.
//
// The Store owns every conversation for the lifetime of the process. It
// keeps them in listing order (newest first), tracks the active one, and
// enforces the single-writer rule for streamed replies: each conversation
// has at most one open assistant message, and text deltas only ever land
// on it.
//
// # Key Types
//
//   - Store: ordered, mutex-guarded conversation collection
//   - FailurePolicy: what happens to an optimistic turn whose send failed
//
// # Usage
//
//	store := conversation.NewStore()
//	id, _, _ := store.AppendUserMessage("", "show my holdings") // lazy start
//	if _, err := store.BeginAssistantReply(id); err != nil {
//	    return err // conversation.ErrReplyInProgress
//	}
//	store.ApplyTextDelta(id, "You hold ")
//	store.ApplyTextDelta(id, "3 positions.")
//	store.CloseReply(id)
package conversation
