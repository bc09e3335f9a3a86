// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/tradedesk/internal/chat"
	"github.com/jeranaias/tradedesk/internal/notify"
	"github.com/jeranaias/tradedesk/internal/panel"
	"github.com/jeranaias/tradedesk/internal/ui/components"
	"github.com/jeranaias/tradedesk/internal/ui/styles"
)

// =============================================================================
// MARKDOWN
// =============================================================================

// renderMarkdown renders content for a terminal of the given width. Output
// falls back to the raw text if rendering fails.
func renderMarkdown(content, style string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(max(width-4, MinTerminalWidth)),
	)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}

// displayReply writes a reply, as markdown when w is a terminal.
func (a *app) displayReply(w io.Writer, content string) {
	if isTerminal(w) {
		theme := styles.NewTheme(a.cfg.UI.Theme)
		fmt.Fprint(w, renderMarkdown(content, theme.MarkdownStyle, terminalWidth(w)))
		return
	}
	fmt.Fprintln(w, content)
}

// displayPanel writes the panel's current payload, if any.
func (a *app) displayPanel(w io.Writer, st panel.State) {
	if st.Mode == panel.ModeNone || st.Data == nil {
		return
	}
	st.Visible = true
	theme := styles.NewTheme(a.cfg.UI.Theme)
	out := components.RenderPanel(theme, st, a.cfg.Periods(), 60)
	if out != "" {
		fmt.Fprintln(w, out)
	}
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// lineNotifier prints notifications as single lines.
func lineNotifier(w io.Writer) notify.Notifier {
	var mu sync.Mutex
	return notify.Func(func(n notify.Notification) {
		style := DimStyle
		switch n.Level {
		case notify.LevelSuccess:
			style = SuccessStyle
		case notify.LevelWarning:
			style = WarningStyle
		case notify.LevelError:
			style = ErrorStyle
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, style.Render(n.Message))
	})
}

// =============================================================================
// STREAMING
// =============================================================================

// streamPrinter echoes the growing reply of one conversation as it
// streams. It is a chat.Observer.
type streamPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	ctrl    *chat.Controller
	active  bool
	printed int
}

func newStreamPrinter(w io.Writer, ctrl *chat.Controller) *streamPrinter {
	sp := &streamPrinter{w: w, ctrl: ctrl}
	ctrl.Subscribe(sp.update)
	return sp
}

// begin starts echoing a new reply.
func (sp *streamPrinter) begin() {
	sp.mu.Lock()
	sp.active = true
	sp.printed = 0
	sp.mu.Unlock()
}

// end stops echoing and reports whether anything was printed.
func (sp *streamPrinter) end() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.active = false
	return sp.printed > 0
}

func (sp *streamPrinter) update(u chat.Update) {
	if u.Kind != chat.UpdateMessages {
		return
	}
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if !sp.active {
		return
	}
	conv, ok := sp.ctrl.Store().Get(u.ConversationID)
	if !ok {
		return
	}
	last, ok := conv.LastAssistantMessage()
	if !ok || len(last.Content) <= sp.printed {
		return
	}
	fmt.Fprint(sp.w, last.Content[sp.printed:])
	sp.printed = len(last.Content)
}
