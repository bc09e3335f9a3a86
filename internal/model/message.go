// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"github.com/google/uuid"

	"github.com/jeranaias/tradedesk/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// STATUS TYPE
// =============================================================================

// Status marks the delivery outcome of a message. The zero value is OK.
type Status string

const (
	StatusOK     Status = ""
	StatusFailed Status = "failed"
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"created_at"`

	// Status is set locally when a send fails under the mark-failed
	// policy; the API never reports it.
	Status Status `json:"status,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        generateID("msg_"),
		Role:      role,
		Content:   content,
		CreatedAt: Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates an empty assistant message ready to accumulate
// a streamed reply.
func NewAssistantMessage() Message {
	return NewMessage(RoleAssistant, "")
}

// Failed reports whether the message was marked as not delivered.
func (m Message) Failed() bool {
	return m.Status == StatusFailed
}

// IsEmpty returns true if the message has no content.
func (m Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// Preview returns the first line of the content fitted to maxWidth columns.
func (m Message) Preview(maxWidth int) string {
	return util.TruncateWidth(util.FirstLine(m.Content), maxWidth)
}

func generateID(prefix string) string {
	return prefix + uuid.NewString()
}
