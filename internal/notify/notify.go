// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// LEVEL
// =============================================================================

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// Auto-dismiss lifetimes. Errors stay up longer so they can be read.
const (
	DefaultDuration = 4 * time.Second
	WarningDuration = 6 * time.Second
	ErrorDuration   = 8 * time.Second
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Duration returns how long a toast of this level stays visible.
func (l Level) Duration() time.Duration {
	switch l {
	case LevelWarning:
		return WarningDuration
	case LevelError:
		return ErrorDuration
	default:
		return DefaultDuration
	}
}

// =============================================================================
// NOTIFICATION
// =============================================================================

// Notification is one user-visible message.
type Notification struct {
	ID       int
	Level    Level
	Message  string
	At       time.Time
	Duration time.Duration
}

// New builds a notification stamped now with its level's lifetime.
func New(level Level, message string) Notification {
	return Notification{
		Level:    level,
		Message:  message,
		At:       time.Now(),
		Duration: level.Duration(),
	}
}

// Expired reports whether the notification should be gone at now.
func (n Notification) Expired(now time.Time) bool {
	return now.Sub(n.At) >= n.Duration
}

// Remaining returns the time left before auto-dismiss at now.
func (n Notification) Remaining(now time.Time) time.Duration {
	if r := n.Duration - now.Sub(n.At); r > 0 {
		return r
	}
	return 0
}

// =============================================================================
// NOTIFIER
// =============================================================================

// Notifier accepts notifications. Implementations must be safe for
// concurrent use; producers call from stream goroutines.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

// Notify calls f(n).
func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// Info sends an info notification.
func Info(to Notifier, msg string) { send(to, LevelInfo, msg) }

// Success sends a success notification.
func Success(to Notifier, msg string) { send(to, LevelSuccess, msg) }

// Warn sends a warning notification.
func Warn(to Notifier, msg string) { send(to, LevelWarning, msg) }

// Error sends an error notification.
func Error(to Notifier, msg string) { send(to, LevelError, msg) }

// Errorf sends a formatted error notification.
func Errorf(to Notifier, format string, args ...any) {
	send(to, LevelError, fmt.Sprintf(format, args...))
}

func send(to Notifier, level Level, msg string) {
	if to == nil {
		return
	}
	to.Notify(New(level, msg))
}

// =============================================================================
// RECORDER
// =============================================================================

// Recorder keeps every notification it receives.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify records n.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of everything recorded, oldest first.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Messages returns the recorded messages of the given level.
func (r *Recorder) Messages(level Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.items {
		if n.Level == level {
			out = append(out, n.Message)
		}
	}
	return out
}
