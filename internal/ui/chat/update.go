// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	controller "github.com/jeranaias/tradedesk/internal/chat"
	"github.com/jeranaias/tradedesk/internal/conversation"
	"github.com/jeranaias/tradedesk/internal/notify"
	"github.com/jeranaias/tradedesk/internal/panel"
	"github.com/jeranaias/tradedesk/internal/session"
	"github.com/jeranaias/tradedesk/internal/ui/components"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m = m.relayout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.followTail = m.viewport.AtBottom()
		return m, cmd

	case controllerMsg:
		if msg.update.Kind == controller.UpdatePanel || msg.update.Kind == controller.UpdateConversations {
			m = m.relayout()
		} else {
			m = m.refreshContent()
		}
		return m, waitForUpdate(m.updates)

	case sendDoneMsg:
		m.streaming = false
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.reportLocal(msg.err)
		return m.relayout(), nil

	case loadedMsg:
		if msg.err != nil {
			m.logger.Warn("Initial load failed", zap.Error(msg.err))
		}
		return m.relayout(), nil

	case actionDoneMsg:
		if msg.err != nil {
			m.logger.Debug("Action failed", zap.String("action", msg.action), zap.Error(msg.err))
			m.reportLocal(msg.err)
		}
		return m.relayout(), nil

	case spinner.TickMsg:
		if !m.streaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case components.ToastTickMsg:
		before := m.toasts.Len()
		m.toasts.Tick(msg.Time)
		if m.toasts.Len() != before {
			m = m.relayout()
		}
		return m, components.ToastTickCmd()

	case session.CheckedMsg:
		return m, m.auth.CheckCmd(m.opts.SessionCheck)

	case session.ExpiredMsg:
		m.ended = msg.Reason
		if m.cancel != nil {
			m.cancel()
		}
		m.logger.Info("Session ended", zap.String("reason", string(msg.Reason)))
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// reportLocal notifies errors the controller does not notify itself.
func (m Model) reportLocal(err error) {
	switch {
	case err == nil, errors.Is(err, controller.ErrEmptyMessage):
	case errors.Is(err, conversation.ErrReplyInProgress):
		notify.Warn(m.toasts, "Wait for the current reply to finish")
	case errors.Is(err, conversation.ErrNotFound):
		notify.Error(m.toasts, "No such conversation")
	case errors.Is(err, controller.ErrNoPanel), errors.Is(err, panel.ErrNoQuote):
		notify.Warn(m.toasts, "Chart periods need a single-stock quote in the panel")
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.showHelp {
			m.showHelp = false
			return m.relayout(), nil
		}
		if m.streaming && m.cancel != nil {
			m.cancel()
		}
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m.relayout(), nil

	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.SetValue("")
		if strings.HasPrefix(text, "/") {
			return m.runCommand(text)
		}
		if m.streaming {
			notify.Warn(m.toasts, "Wait for the current reply to finish")
			m.input.SetValue(text)
			return m, nil
		}
		var cmd tea.Cmd
		m, cmd = m.send(text)
		return m.relayout(), cmd

	case key.Matches(msg, m.keys.NewChat):
		return m.runCommand("/new")

	case key.Matches(msg, m.keys.NextChat):
		return m.cycle(1)

	case key.Matches(msg, m.keys.PrevChat):
		return m.cycle(-1)

	case key.Matches(msg, m.keys.ToggleSidebar):
		m.showSidebar = !m.showSidebar
		return m.relayout(), nil

	case key.Matches(msg, m.keys.TogglePanel):
		m.ctrl.Panel().Toggle()
		return m.relayout(), nil

	case key.Matches(msg, m.keys.CopyReply):
		return m.runCommand("/copy")

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.followTail = m.viewport.AtBottom()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// cycle moves the active conversation by delta, wrapping around.
func (m Model) cycle(delta int) (tea.Model, tea.Cmd) {
	ids := m.ctrl.Store().IDs()
	if len(ids) == 0 {
		return m, nil
	}
	cur := 0
	active := m.ctrl.Store().ActiveID()
	for i, id := range ids {
		if id == active {
			cur = i
			break
		}
	}
	next := ((cur+delta)%len(ids) + len(ids)) % len(ids)
	if err := m.ctrl.Switch(ids[next]); err != nil {
		m.reportLocal(err)
	}
	m.followTail = true
	return m.relayout(), nil
}

// now is the clock used for toast rendering.
var now = time.Now
