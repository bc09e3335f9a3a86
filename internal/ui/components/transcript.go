// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/tradedesk/internal/model"
	"github.com/jeranaias/tradedesk/internal/ui/styles"
)

// Transcript renders conversation messages. Assistant replies are markdown
// and go through glamour; finished replies are cached by message ID.
type Transcript struct {
	theme *styles.Theme
	width int

	mu       sync.Mutex
	renderer *glamour.TermRenderer
	cache    map[string]string
}

// NewTranscript creates a transcript renderer.
func NewTranscript(t *styles.Theme) *Transcript {
	return &Transcript{theme: t, cache: make(map[string]string)}
}

// SetWidth sets the wrap width, rebuilding the markdown renderer.
func (tr *Transcript) SetWidth(width int) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if width == tr.width && tr.renderer != nil {
		return
	}
	tr.width = width
	tr.cache = make(map[string]string)
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(tr.theme.MarkdownStyle),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		tr.renderer = nil
		return
	}
	tr.renderer = r
}

// Render renders msgs. openID is the assistant message still streaming,
// which is rendered as plain text and never cached.
func (tr *Transcript) Render(msgs []model.Message, openID string) string {
	if len(msgs) == 0 {
		return tr.theme.Muted.Render("Ask about your portfolio, a stock, or today's market movers.")
	}
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		switch m.Role {
		case model.RoleUser:
			b.WriteString(tr.theme.UserLabel.Render("You"))
			b.WriteString(" " + tr.theme.Timestamp.Render(m.CreatedAt.Local().Format("15:04")))
			b.WriteString("\n")
			b.WriteString(tr.theme.UserText.Render(m.Content))
			b.WriteString("\n")
		default:
			b.WriteString(tr.theme.AssistantLabel.Render("Assistant"))
			if m.Failed() {
				b.WriteString(" " + tr.theme.FailedLabel.Render("(not delivered)"))
			}
			b.WriteString("\n")
			b.WriteString(tr.assistant(m, m.ID == openID))
		}
	}
	return b.String()
}

func (tr *Transcript) assistant(m model.Message, open bool) string {
	if m.Content == "" {
		return tr.theme.Muted.Render("  …") + "\n"
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if open || tr.renderer == nil {
		return tr.theme.UserText.Width(max(tr.width-2, 20)).Render(m.Content) + "\n"
	}
	key := m.ID + "\x00" + m.Content
	if out, ok := tr.cache[key]; ok {
		return out
	}
	out, err := tr.renderer.Render(m.Content)
	if err != nil {
		out = m.Content + "\n"
	}
	tr.cache[key] = out
	return out
}
