// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/tradedesk/internal/model"
	"github.com/jeranaias/tradedesk/internal/ui/components"
	"github.com/jeranaias/tradedesk/internal/ui/styles"
	"github.com/jeranaias/tradedesk/internal/util"
)

// Fixed rows: header, input box (3) and status bar.
const chromeHeight = 5

// toastWidth is the width of the toast stack.
const toastWidth = 44

// =============================================================================
// LAYOUT
// =============================================================================

type layout struct {
	sidebar    bool
	panel      bool
	transcript int // transcript width
	body       int // body height
	toasts     string
}

func (m Model) computeLayout() layout {
	var l layout
	mode := styles.Layout(m.width)
	l.sidebar = m.showSidebar && mode == styles.LayoutWide
	l.panel = mode != styles.LayoutNarrow && m.ctrl.Panel().State().Visible

	l.transcript = m.width
	if l.sidebar {
		l.transcript -= components.SidebarWidth
	}
	if l.panel {
		l.transcript -= components.PanelWidth
	}
	l.transcript = max(l.transcript, 20)

	l.toasts = components.RenderToastStack(m.theme, m.toasts.Items(), min(toastWidth, m.width), now())
	toastRows := 0
	if l.toasts != "" {
		toastRows = lipgloss.Height(l.toasts)
	}
	l.body = max(m.height-chromeHeight-toastRows, 3)
	return l
}

// relayout resizes the viewport and input for the current state and
// re-renders the transcript.
func (m Model) relayout() Model {
	if !m.ready {
		return m
	}
	l := m.computeLayout()
	m.viewport.Width = l.transcript
	m.viewport.Height = l.body
	m.input.Width = max(m.width-6, 10)
	m.transcript.SetWidth(l.transcript)
	return m.refreshContent()
}

// refreshContent re-renders the active conversation into the viewport.
func (m Model) refreshContent() Model {
	conv, ok := m.activeConversation()
	var msgs []model.Message
	openID := ""
	if ok {
		msgs = conv.Messages
		if m.ctrl.Store().HasOpenReply(conv.ID) {
			if last, ok := conv.LastAssistantMessage(); ok {
				openID = last.ID
			}
		}
	}
	m.viewport.SetContent(m.transcript.Render(msgs, openID))
	if m.followTail {
		m.viewport.GotoBottom()
	}
	return m
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the program.
func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}
	l := m.computeLayout()

	var body string
	if m.showHelp {
		body = lipgloss.NewStyle().Height(l.body).MaxHeight(l.body).Render(m.renderHelp())
	} else {
		cols := make([]string, 0, 3)
		if l.sidebar {
			cols = append(cols, components.RenderSidebar(m.theme, m.sidebarItems(), l.body))
		}
		cols = append(cols, lipgloss.NewStyle().Width(l.transcript).Height(l.body).Render(m.viewport.View()))
		if l.panel {
			cols = append(cols, components.RenderPanel(m.theme, m.ctrl.Panel().State(), m.opts.Periods, l.body))
		}
		body = lipgloss.JoinHorizontal(lipgloss.Top, cols...)
	}

	parts := []string{m.renderHeader(), body}
	if l.toasts != "" {
		parts = append(parts, lipgloss.PlaceHorizontal(m.width, lipgloss.Right, l.toasts))
	}
	parts = append(parts,
		m.theme.Input.Width(max(m.width-2, 10)).Render(m.input.View()),
		m.renderStatus(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("TradeDesk")
	badge := m.theme.ModeReal.Render("REAL")
	if m.ctrl.Mode() == model.ModeSimulation {
		badge = m.theme.ModeSim.Render("SIMULATION")
	}
	conv := "New chat"
	if c, ok := m.activeConversation(); ok {
		conv = c.DisplayTitle()
	}
	user := ""
	if m.auth != nil && m.auth.Username() != "" {
		user = m.auth.Username()
	}
	left := title + " " + badge + " " + m.theme.HeaderMeta.Render(util.TruncateWidth(conv, max(m.width/2, 10)))
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(user)-2, 1)
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + m.theme.HeaderMeta.Render(user))
}

func (m Model) renderStatus() string {
	if m.streaming {
		return m.theme.StatusBar.Render(m.spinner.View() + " Receiving reply… esc to stop")
	}
	return m.theme.StatusBar.Width(m.width).Render(m.help.ShortHelpView(m.keys.ShortHelp()))
}

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(m.theme.PanelTitle.Render("Keys"))
	b.WriteString("\n")
	b.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
	b.WriteString("\n\n")
	b.WriteString(m.theme.PanelTitle.Render("Commands"))
	b.WriteString("\n")
	for _, c := range SlashCommands {
		name := c.Name
		if c.Args != "" {
			name += " " + c.Args
		}
		b.WriteString(fmt.Sprintf("%s %s\n", m.theme.Label.Render(util.FitWidth(name, 34)), c.Usage))
	}
	b.WriteString("\n")
	b.WriteString(m.theme.Muted.Render("Esc or F1 closes this help."))
	return m.theme.Help.Render(b.String())
}

func (m Model) sidebarItems() []components.SidebarItem {
	store := m.ctrl.Store()
	active := store.ActiveID()
	metas := store.List()
	items := make([]components.SidebarItem, len(metas))
	for i, meta := range metas {
		items[i] = components.SidebarItem{
			Meta:      meta,
			Active:    meta.ID == active,
			Streaming: store.HasOpenReply(meta.ID),
		}
	}
	return items
}
