// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"fmt"
	"testing"
	"time"
)

func TestLevel_Durations(t *testing.T) {
	if LevelError.Duration() <= LevelInfo.Duration() {
		t.Error("error toasts should outlive info toasts")
	}
	if LevelWarning.String() != "warning" {
		t.Errorf("LevelWarning.String() = %q", LevelWarning.String())
	}
}

func TestQueue_NewestFirstAndBounded(t *testing.T) {
	q := NewQueue()
	for i := 0; i < DefaultMaxVisible+2; i++ {
		Info(q, fmt.Sprintf("toast %d", i))
	}

	items := q.Items()
	if len(items) != DefaultMaxVisible {
		t.Fatalf("len = %d, want %d", len(items), DefaultMaxVisible)
	}
	if items[0].Message != fmt.Sprintf("toast %d", DefaultMaxVisible+1) {
		t.Errorf("newest toast should be first, got %q", items[0].Message)
	}
	if items[0].ID == items[1].ID {
		t.Error("toasts should get distinct ids")
	}
}

func TestQueue_TickExpires(t *testing.T) {
	q := NewQueue()
	start := time.Now()
	q.Push(Notification{Level: LevelInfo, Message: "short", At: start})
	q.Push(Notification{Level: LevelError, Message: "long", At: start})

	live := q.Tick(start.Add(DefaultDuration + time.Millisecond))
	if len(live) != 1 || live[0].Message != "long" {
		t.Fatalf("after info lifetime, live = %+v", live)
	}
	if got := live[0].Remaining(start.Add(DefaultDuration)); got != ErrorDuration-DefaultDuration {
		t.Errorf("Remaining = %v", got)
	}
	if live := q.Tick(start.Add(ErrorDuration)); len(live) != 0 {
		t.Errorf("all toasts should expire, got %d", len(live))
	}
}

func TestQueue_RemoveAndDismiss(t *testing.T) {
	q := NewQueue()
	a := q.Push(New(LevelInfo, "a"))
	q.Push(New(LevelInfo, "b"))
	q.Push(New(LevelInfo, "c"))

	q.Remove(a)
	q.DismissNewest()
	items := q.Items()
	if len(items) != 1 || items[0].Message != "b" {
		t.Fatalf("items = %+v", items)
	}
	q.Clear()
	if q.Len() != 0 {
		t.Error("Clear should empty the queue")
	}
}

func TestRecorderAndHelpers(t *testing.T) {
	var r Recorder
	Success(&r, "Conversation title updated")
	Errorf(&r, "Failed to load %s", "history")
	Warn(nil, "ignored")

	if got := r.Messages(LevelError); len(got) != 1 || got[0] != "Failed to load history" {
		t.Errorf("error messages = %v", got)
	}
	if len(r.All()) != 2 {
		t.Errorf("All() = %d items, want 2", len(r.All()))
	}
	Discard.Notify(New(LevelInfo, "dropped"))
}
