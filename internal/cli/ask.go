// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/tradedesk/internal/market"
	"github.com/jeranaias/tradedesk/internal/notify"
	"github.com/jeranaias/tradedesk/internal/panel"
)

// askResult is the --json payload of ask.
type askResult struct {
	ConversationID string         `json:"conversation_id"`
	Reply          string         `json:"reply"`
	Panel          string         `json:"panel,omitempty"`
	Data           market.Payload `json:"data,omitempty"`
	Cancelled      bool           `json:"cancelled,omitempty"`
}

func (a *app) newAskCommand() *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and print the reply",
		Long: `Send one message and print the reply. The question is read from the
arguments, or from stdin when there are none.

The reply is rendered as markdown when stdout is a terminal and printed
as plain text otherwise. With --json the reply and any market data are
printed as one JSON document.`,
		Example: `  tradedesk ask "show my holdings"
  echo "top gainers today" | tradedesk ask --json
  tradedesk ask --conversation 42 "and the losers?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" && !IsTTY() {
				data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 64*1024))
				if err != nil {
					return err
				}
				question = strings.TrimSpace(string(data))
			}
			if question == "" {
				return &ExitError{Code: ExitUsageError, Err: errors.New("ask needs a question")}
			}
			return a.runAsk(cmd, question, conversationID)
		},
	}
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "continue an existing conversation")
	return cmd
}

func (a *app) runAsk(cmd *cobra.Command, question, conversationID string) error {
	ctx := cmd.Context()
	client, _, err := a.connect(ctx)
	if err != nil {
		return err
	}

	// Failures are returned as errors, so notifications only go to the log.
	ctrl := a.newController(client, notify.Func(func(n notify.Notification) {
		a.logger.Debug("Notification", zap.Stringer("level", n.Level), zap.String("message", n.Message))
	}))

	if conversationID != "" {
		if err := ctrl.LoadInitial(ctx); err != nil {
			return err
		}
		if err := ctrl.Switch(conversationID); err != nil {
			return &ExitError{Code: ExitNotFound, Err: errors.New("no conversation " + conversationID)}
		}
	}

	res, err := ctrl.Send(ctx, question)
	if err != nil {
		if a.flags.jsonOut {
			_ = NewJSONErrorResponse("ask", err).Write(a.stdout)
			return &ExitError{Code: ExitCode(err), Err: errQuiet}
		}
		return err
	}
	st := ctrl.Panel().State()

	if a.flags.jsonOut {
		out := askResult{
			ConversationID: res.ConversationID,
			Reply:          res.Reply.Content,
			Cancelled:      res.Cancelled,
		}
		if st.Mode != panel.ModeNone {
			out.Panel = string(st.Mode)
			out.Data = st.Data
		}
		return NewJSONResponse("ask", out).Write(a.stdout)
	}

	a.displayReply(a.stdout, res.Reply.Content)
	if isTerminal(a.stdout) {
		a.displayPanel(a.stdout, st)
	}
	return nil
}
