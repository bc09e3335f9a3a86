// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MODE TESTS
// =============================================================================

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeReal, false},
		{"real", ModeReal, false},
		{" Simulation ", ModeSimulation, false},
		{"paper", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMode(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

// =============================================================================
// TIMESTAMP TESTS
// =============================================================================

func TestTimestamp_UnmarshalNaiveISO(t *testing.T) {
	var msg Message
	raw := `{"role":"user","content":"hi","created_at":"2025-03-04T09:15:30.123000"}`
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := time.Date(2025, 3, 4, 9, 15, 30, 123000000, time.UTC)
	if !msg.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", msg.CreatedAt.Time, want)
	}
}

func TestTimestamp_NullAndZero(t *testing.T) {
	var msg Message
	if err := json.Unmarshal([]byte(`{"role":"assistant","content":"","created_at":null}`), &msg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !msg.CreatedAt.IsZero() {
		t.Errorf("CreatedAt should be zero, got %v", msg.CreatedAt.Time)
	}

	out, err := json.Marshal(Message{Role: RoleUser})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(out), `"created_at":null`) {
		t.Errorf("zero timestamp should encode as null, got %s", out)
	}
}

func TestTimestamp_Invalid(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"yesterday"`), &ts); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation_CloneIsIndependent(t *testing.T) {
	conv := NewConversation("", ModeReal)
	conv.Messages = append(conv.Messages, NewUserMessage("buy TCS"))

	clone := conv.Clone()
	clone.Messages[0].Content = "changed"
	clone.Messages = append(clone.Messages, NewAssistantMessage())

	if conv.Messages[0].Content != "buy TCS" {
		t.Errorf("original mutated through clone: %q", conv.Messages[0].Content)
	}
	if conv.MessageCount() != 1 {
		t.Errorf("original MessageCount = %d, want 1", conv.MessageCount())
	}
}

func TestConversation_Accessors(t *testing.T) {
	conv := NewConversation("  ", ModeSimulation)
	if conv.DisplayTitle() != DefaultTitle {
		t.Errorf("DisplayTitle() = %q, want %q", conv.DisplayTitle(), DefaultTitle)
	}
	if _, ok := conv.LastMessage(); ok {
		t.Error("LastMessage on empty conversation should report false")
	}

	conv.Messages = append(conv.Messages,
		NewUserMessage("how is\nINFY doing"),
		Message{Role: RoleAssistant, Content: "up 2%"},
		NewUserMessage("and TCS?"),
	)

	last, ok := conv.LastAssistantMessage()
	if !ok || last.Content != "up 2%" {
		t.Errorf("LastAssistantMessage() = %q, %v", last.Content, ok)
	}
	if got := conv.Preview(50); got != "how is" {
		t.Errorf("Preview() = %q, want %q", got, "how is")
	}

	meta := conv.Meta()
	if meta.MessageCount != 3 || meta.Mode != ModeSimulation || meta.Title != DefaultTitle {
		t.Errorf("Meta() = %+v", meta)
	}
}

func TestNewMessage_IDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewUserMessage("x").ID
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
