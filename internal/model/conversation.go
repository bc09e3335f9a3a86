// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// DefaultTitle is used for conversations created without a title.
const DefaultTitle = "New chat"

// =============================================================================
// MODE TYPE
// =============================================================================

// Mode selects which account a conversation trades against.
type Mode string

const (
	ModeReal       Mode = "real"
	ModeSimulation Mode = "simulation"
)

// ParseMode validates a mode name. The empty string means ModeReal, which is
// how the API treats conversations that predate modes.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeReal:
		return ModeReal, nil
	case ModeSimulation:
		return ModeSimulation, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want real or simulation)", s)
	}
}

// String returns the string representation of the mode.
func (m Mode) String() string {
	if m == "" {
		return string(ModeReal)
	}
	return string(m)
}

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a chat thread and its ordered messages.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Mode      Mode      `json:"mode,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// NewConversation creates an empty conversation with a generated ID.
func NewConversation(title string, mode Mode) *Conversation {
	now := Now()
	return &Conversation{
		ID:        generateID("conv_"),
		Title:     title,
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]Message, 0),
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return &out
}

// DisplayTitle returns the title or DefaultTitle when unset.
func (c *Conversation) DisplayTitle() string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	return DefaultTitle
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// LastMessage returns the most recent message.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// LastAssistantMessage returns the most recent assistant message.
func (c *Conversation) LastAssistantMessage() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleAssistant {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

// Preview returns a short preview taken from the first user message.
func (c *Conversation) Preview(maxWidth int) string {
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			return m.Preview(maxWidth)
		}
	}
	return ""
}

// =============================================================================
// LISTING
// =============================================================================

// ConversationMeta holds lightweight metadata for listing.
type ConversationMeta struct {
	ID           string
	Title        string
	Mode         Mode
	MessageCount int
	UpdatedAt    Timestamp
	Preview      string
}

// Meta returns listing metadata for the conversation.
func (c *Conversation) Meta() ConversationMeta {
	return ConversationMeta{
		ID:           c.ID,
		Title:        c.DisplayTitle(),
		Mode:         c.Mode,
		MessageCount: len(c.Messages),
		UpdatedAt:    c.UpdatedAt,
		Preview:      c.Preview(50),
	}
}
