// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/tradedesk/internal/api"
	"github.com/jeranaias/tradedesk/internal/notify"
	"github.com/jeranaias/tradedesk/internal/session"
	uichat "github.com/jeranaias/tradedesk/internal/ui/chat"
)

// runTUI logs in and runs the terminal UI until the user quits, the
// session ends or ctx is done.
func (a *app) runTUI(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client, auth, err := a.connect(ctx)
	if err != nil {
		return err
	}
	return a.runProgram(ctx, client, auth)
}

func (a *app) runProgram(ctx context.Context, client *api.Client, auth *session.Auth) error {
	toasts := notify.NewQueue()
	ctrl := a.newController(client, toasts)

	exportDir, err := os.Getwd()
	if err != nil {
		exportDir = "."
	}
	m := uichat.New(ctrl, auth, toasts, uichat.Options{
		Theme:       a.cfg.UI.Theme,
		ShowSidebar: a.cfg.UI.ShowSidebar,
		ShowPanel:   a.cfg.UI.ShowPanel,
		Periods:     a.cfg.Periods(),
		ExportDir:   exportDir,
		Logger:      a.logger,
	})

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	auth.OnLogout(func(reason session.LogoutReason) {
		p.Send(session.ExpiredMsg{Reason: reason})
	})

	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal UI: %w", err)
	}
	if fm, ok := final.(uichat.Model); ok && fm.Ended() != "" {
		a.logger.Info("Session ended", zap.String("reason", string(fm.Ended())))
		fmt.Fprintf(a.stderr, "%s session ended (%s). Log in again to continue.\n",
			WarningStyle.Render("!"), fm.Ended())
		return &ExitError{Code: ExitAuthError, Err: errQuiet}
	}
	return nil
}
