// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/tradedesk/internal/export"
	"github.com/jeranaias/tradedesk/internal/market"
	"github.com/jeranaias/tradedesk/internal/model"
	"github.com/jeranaias/tradedesk/internal/notify"
)

// SlashCommand describes one slash command for /help.
type SlashCommand struct {
	Name  string
	Args  string
	Usage string
}

// SlashCommands lists the commands the input accepts.
var SlashCommands = []SlashCommand{
	{Name: "/new", Args: "[title]", Usage: "start a new conversation"},
	{Name: "/rename", Args: "<title>", Usage: "rename the current conversation"},
	{Name: "/delete", Usage: "delete the current conversation"},
	{Name: "/switch", Args: "<n|id>", Usage: "open conversation n from the sidebar"},
	{Name: "/refresh", Usage: "reload the current conversation from the server"},
	{Name: "/period", Args: "<1d|5d|1mo|6mo|1y|5y>", Usage: "change the chart window"},
	{Name: "/panel", Usage: "show or hide the side panel"},
	{Name: "/export", Args: "[markdown|json]", Usage: "save the conversation to a file"},
	{Name: "/copy", Usage: "copy the last reply to the clipboard"},
	{Name: "/help", Usage: "show keys and commands"},
	{Name: "/quit", Usage: "exit"},
}

// splitCommand separates "/name rest of line".
func splitCommand(line string) (name, args string) {
	line = strings.TrimSpace(line)
	name, args, _ = strings.Cut(line, " ")
	return strings.ToLower(name), strings.TrimSpace(args)
}

// runCommand executes a slash command typed into the input.
func (m Model) runCommand(line string) (tea.Model, tea.Cmd) {
	name, args := splitCommand(line)
	ctrl := m.ctrl

	switch name {
	case "/new":
		m.followTail = true
		return m, m.action("new", func(ctx context.Context) error {
			_, err := ctrl.NewConversation(ctx, args)
			return err
		})

	case "/rename":
		id := ctrl.Store().ActiveID()
		if id == "" {
			notify.Warn(m.toasts, "No conversation to rename")
			return m, nil
		}
		if args == "" {
			notify.Warn(m.toasts, "Usage: /rename <title>")
			return m, nil
		}
		return m, m.action("rename", func(ctx context.Context) error {
			return ctrl.Rename(ctx, id, args)
		})

	case "/delete":
		id := ctrl.Store().ActiveID()
		if id == "" {
			notify.Warn(m.toasts, "No conversation to delete")
			return m, nil
		}
		return m, m.action("delete", func(ctx context.Context) error {
			return ctrl.Delete(ctx, id)
		})

	case "/switch":
		id, ok := m.resolveConversation(args)
		if !ok {
			notify.Warn(m.toasts, fmt.Sprintf("No conversation %q", args))
			return m, nil
		}
		if err := ctrl.Switch(id); err != nil {
			m.reportLocal(err)
		}
		m.followTail = true
		return m.relayout(), nil

	case "/refresh":
		id := ctrl.Store().ActiveID()
		if id == "" {
			return m, nil
		}
		return m, m.action("refresh", func(ctx context.Context) error {
			return ctrl.Refresh(ctx, id)
		})

	case "/period":
		p, err := market.ParsePeriod(args)
		if err != nil {
			notify.Warn(m.toasts, err.Error())
			return m, nil
		}
		return m, m.action("period", func(ctx context.Context) error {
			return ctrl.LoadSeries(ctx, p)
		})

	case "/panel":
		ctrl.Panel().Toggle()
		return m.relayout(), nil

	case "/export":
		m.export(args)
		return m.relayout(), nil

	case "/copy":
		m.copyLastReply()
		return m.relayout(), nil

	case "/help":
		m.showHelp = !m.showHelp
		return m.relayout(), nil

	case "/quit", "/exit":
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	}

	notify.Warn(m.toasts, fmt.Sprintf("Unknown command %s (try /help)", name))
	return m.relayout(), nil
}

// resolveConversation accepts a 1-based sidebar index or a conversation id.
func (m Model) resolveConversation(arg string) (string, bool) {
	ids := m.ctrl.Store().IDs()
	if n, err := strconv.Atoi(arg); err == nil {
		if n >= 1 && n <= len(ids) {
			return ids[n-1], true
		}
		return "", false
	}
	for _, id := range ids {
		if id == arg {
			return id, true
		}
	}
	return "", false
}

func (m Model) activeConversation() (*model.Conversation, bool) {
	conv, ok := m.ctrl.Store().Active()
	return conv, ok && conv != nil
}

func (m Model) export(format string) {
	conv, ok := m.activeConversation()
	if !ok || conv.IsEmpty() {
		notify.Warn(m.toasts, "Nothing to export yet")
		return
	}
	opts := export.DefaultOptions()
	opts.OutputDir = m.opts.ExportDir
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		notify.Warn(m.toasts, err.Error())
		return
	}
	path, err := export.ExportToFile(conv, exporter, opts)
	if err != nil {
		notify.Errorf(m.toasts, "Export failed: %v", err)
		return
	}
	notify.Success(m.toasts, "Exported to "+path)
}

func (m Model) copyLastReply() {
	conv, ok := m.activeConversation()
	if !ok {
		notify.Warn(m.toasts, "Nothing to copy")
		return
	}
	msg, ok := conv.LastAssistantMessage()
	if !ok || msg.Content == "" {
		notify.Warn(m.toasts, "Nothing to copy")
		return
	}
	if err := m.opts.Clipboard(msg.Content); err != nil {
		notify.Errorf(m.toasts, "Copy failed: %v", err)
		return
	}
	notify.Success(m.toasts, "Reply copied")
}
