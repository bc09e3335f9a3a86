// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// These are the shapes exchanged with the trading-assistant API and held by
// the conversation store. They carry no behaviour beyond small accessors;
// mutation rules (append-only replies, the open-reply slot) live in the
// conversation package.
//
// # Key Types
//
//   - Conversation: a chat thread with id, title, mode and ordered messages
//   - Message: one user or assistant turn
//   - Mode: real (live broker account) or simulation (paper trading)
//   - Timestamp: lenient JSON time accepting the API's naive ISO format
//
// # Usage
//
//	conv := model.NewConversation("", model.ModeReal)
//	conv.Messages = append(conv.Messages, model.NewUserMessage("show my holdings"))
//	fmt.Println(conv.DisplayTitle(), conv.MessageCount())
package model
