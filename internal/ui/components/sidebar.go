// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/jeranaias/tradedesk/internal/model"
	"github.com/jeranaias/tradedesk/internal/ui/styles"
	"github.com/jeranaias/tradedesk/internal/util"
)

// SidebarWidth is the sidebar's width including its border.
const SidebarWidth = 28

// SidebarItem is one conversation row.
type SidebarItem struct {
	Meta      model.ConversationMeta
	Active    bool
	Streaming bool
}

// RenderSidebar lists conversations, numbered for /switch.
func RenderSidebar(t *styles.Theme, items []SidebarItem, height int) string {
	inner := SidebarWidth - 3
	var b strings.Builder
	b.WriteString(t.SidebarTitle.Render("Conversations"))
	b.WriteString("\n")

	if len(items) == 0 {
		b.WriteString(t.Muted.Render(util.FitWidth("No conversations", inner)))
	}
	for i, it := range items {
		marker := " "
		style := t.SidebarItem
		switch {
		case it.Streaming:
			marker = "…"
			style = t.SidebarStreaming
		case it.Active:
			marker = "›"
			style = t.SidebarActive
		}
		line := fmt.Sprintf("%s%2d %s", marker, i+1, it.Meta.Title)
		b.WriteString(style.Render(util.FitWidth(line, inner)))
		b.WriteString("\n")
		if it.Meta.Preview != "" {
			b.WriteString(t.Muted.Render(util.FitWidth("    "+it.Meta.Preview, inner)))
			b.WriteString("\n")
		}
	}
	return t.Sidebar.Width(SidebarWidth - 1).Height(max(height, 1)).Render(strings.TrimRight(b.String(), "\n"))
}
