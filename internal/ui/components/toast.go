// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/tradedesk/internal/notify"
	"github.com/jeranaias/tradedesk/internal/ui/styles"
)

// ToastTickInterval is how often expired toasts are swept.
const ToastTickInterval = 500 * time.Millisecond

// maxVisibleToasts caps the stack; older toasts stay queued.
const maxVisibleToasts = 3

// ToastTickMsg drives toast expiry.
type ToastTickMsg struct {
	Time time.Time
}

// ToastTickCmd schedules the next sweep.
func ToastTickCmd() tea.Cmd {
	return tea.Tick(ToastTickInterval, func(t time.Time) tea.Msg {
		return ToastTickMsg{Time: t}
	})
}

func toastIcon(l notify.Level) string {
	switch l {
	case notify.LevelSuccess:
		return "✓"
	case notify.LevelWarning:
		return "!"
	case notify.LevelError:
		return "✗"
	default:
		return "i"
	}
}

func toastStyle(t *styles.Theme, l notify.Level) lipgloss.Style {
	switch l {
	case notify.LevelSuccess:
		return t.ToastSuccess
	case notify.LevelWarning:
		return t.ToastWarning
	case notify.LevelError:
		return t.ToastError
	default:
		return t.ToastInfo
	}
}

// RenderToast renders one notification at most width columns wide.
func RenderToast(t *styles.Theme, n notify.Notification, width int, now time.Time) string {
	if width < 20 {
		width = 20
	}
	inner := width - 4
	body := toastIcon(n.Level) + " " + n.Message
	if secs := int(n.Remaining(now).Seconds()); n.Level == notify.LevelError && secs > 0 {
		body += fmt.Sprintf(" (%ds)", secs)
	}
	return toastStyle(t, n.Level).Width(inner).Render(lipgloss.NewStyle().Width(inner).Render(body))
}

// RenderToastStack renders the newest toasts, oldest on top.
func RenderToastStack(t *styles.Theme, items []notify.Notification, width int, now time.Time) string {
	if len(items) == 0 {
		return ""
	}
	if len(items) > maxVisibleToasts {
		items = items[len(items)-maxVisibleToasts:]
	}
	parts := make([]string, 0, len(items))
	for _, n := range items {
		parts = append(parts, RenderToast(t, n, width, now))
	}
	return strings.Join(parts, "\n")
}
