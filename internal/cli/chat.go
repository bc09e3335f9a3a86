// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/tradedesk/internal/chat"
	"github.com/jeranaias/tradedesk/internal/config"
	"github.com/jeranaias/tradedesk/internal/export"
	"github.com/jeranaias/tradedesk/internal/market"
	"github.com/jeranaias/tradedesk/internal/panel"
	"github.com/jeranaias/tradedesk/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader provides line editing and persistent history.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader() *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeLine)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &lineReader{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(r.historyFile); err == nil {
		_, _ = r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

// ReadInput prompts for one line and records it in history.
func (r *lineReader) ReadInput(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the
// terminal.
func (r *lineReader) Close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// COMPLETION
// =============================================================================

// replCommands are the slash commands of line-mode chat.
var replCommands = []struct{ name, args, usage string }{
	{"/new", "[title]", "start a new conversation"},
	{"/list", "", "list conversations"},
	{"/switch", "<n>", "open conversation n"},
	{"/panel", "", "print the latest market data again"},
	{"/period", "<p>", "reload the chart window"},
	{"/export", "[fmt]", "save the conversation"},
	{"/help", "", "show commands"},
	{"/quit", "", "exit"},
}

// completeLine completes command names, chart periods and export formats.
func completeLine(line string) []string {
	if !strings.HasPrefix(line, "/") {
		return nil
	}
	name, partial, hasArg := strings.Cut(line, " ")
	name = strings.ToLower(name)

	var out []string
	if !hasArg {
		for _, c := range replCommands {
			if strings.HasPrefix(c.name, name) {
				out = append(out, c.name)
			}
		}
		return out
	}

	var values []string
	switch name {
	case "/period":
		for _, p := range market.Periods {
			values = append(values, string(p))
		}
	case "/export":
		values = export.Formats
	}
	partial = strings.ToLower(strings.TrimSpace(partial))
	for _, v := range values {
		if strings.HasPrefix(v, partial) {
			out = append(out, name+" "+v)
		}
	}
	return out
}

// =============================================================================
// COMMAND
// =============================================================================

func (a *app) newChatCommand() *cobra.Command {
	var resume bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in line mode",
		Long: `Chat with the assistant without the full-screen UI. Replies stream
as they arrive; holdings and stock data are printed after the reply.

Commands inside the chat:
  /new [title]   start a new conversation
  /list          list conversations
  /switch <n>    open conversation n
  /panel         print the latest market data again
  /period <p>    reload the chart for 1d, 5d, 1mo, 6mo, 1y or 5y
  /export [fmt]  save the conversation (markdown or json)
  /quit          exit (Ctrl+D also works)

Ctrl+C stops a reply that is streaming.`,
		Example: `  tradedesk chat
  tradedesk chat --resume --mode simulation`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !IsTTY() {
				return &ExitError{Code: ExitUsageError, Err: errors.New("chat needs a terminal; use ask for scripts")}
			}
			return a.runChat(cmd.Context(), resume)
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "continue the most recent conversation")
	return cmd
}

// chatSession is the state of a line-mode chat.
type chatSession struct {
	a       *app
	ctrl    *chat.Controller
	printer *streamPrinter
	out     io.Writer
}

func (a *app) runChat(ctx context.Context, resume bool) error {
	client, _, err := a.connect(ctx)
	if err != nil {
		return err
	}
	ctrl := a.newController(client, lineNotifier(a.stderr))
	s := &chatSession{a: a, ctrl: ctrl, out: a.stdout, printer: newStreamPrinter(a.stdout, ctrl)}

	if resume {
		if err := ctrl.LoadInitial(ctx); err != nil {
			return err
		}
	}

	fmt.Fprintln(s.out, TitleStyle.Render("TradeDesk")+" "+DimStyle.Render("("+string(ctrl.Mode())+" mode, /help for commands)"))
	if conv, ok := ctrl.Store().Active(); ok {
		fmt.Fprintln(s.out, DimStyle.Render("Continuing "+conv.DisplayTitle()))
	}

	input := newLineReader()
	defer input.Close()

	for {
		line, err := input.ReadInput(promptStyle.Render("you› "))
		if errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(s.out, DimStyle.Render("Ctrl+D or /quit exits"))
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "/"):
			if quit := s.command(ctx, line); quit {
				return nil
			}
		default:
			s.send(ctx, line)
		}
	}
}

// send streams one reply. Ctrl+C cancels the reply, not the chat.
func (s *chatSession) send(parent context.Context, text string) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	fmt.Fprint(s.out, assistantStyle.Render("assistant› "))
	s.printer.begin()
	res, err := s.ctrl.Send(ctx, text)
	if s.printer.end() || err == nil {
		fmt.Fprintln(s.out)
	}
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			return
		}
		// The controller has already reported API failures.
		s.a.logger.Debug("Send failed", zap.Error(err))
		return
	}
	if res.Stats.Payloads > 0 {
		s.a.displayPanel(s.out, s.ctrl.Panel().State())
	}
}

// command runs a slash command and reports whether the chat should end.
func (s *chatSession) command(ctx context.Context, line string) bool {
	name, args, _ := strings.Cut(line, " ")
	args = strings.TrimSpace(args)
	store := s.ctrl.Store()

	switch strings.ToLower(name) {
	case "/quit", "/exit", "/q":
		return true

	case "/help", "/h":
		for _, c := range replCommands {
			fmt.Fprintln(s.out, DimStyle.Render(fmt.Sprintf("%-14s %s", c.name+" "+c.args, c.usage)))
		}

	case "/new":
		_, _ = s.ctrl.NewConversation(ctx, args)

	case "/list":
		if err := s.ctrl.LoadInitial(ctx); err != nil {
			return false
		}
		for i, meta := range store.List() {
			marker := " "
			if meta.ID == store.ActiveID() {
				marker = "›"
			}
			fmt.Fprintf(s.out, "%s %2d  %s  %s\n", marker, i+1,
				util.FitWidth(meta.Title, 32), DimStyle.Render(fmt.Sprintf("%d messages", meta.MessageCount)))
		}

	case "/switch":
		ids := store.IDs()
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 || n > len(ids) {
			fmt.Fprintln(s.out, WarningStyle.Render("Usage: /switch <n> (see /list)"))
			return false
		}
		if err := s.ctrl.Switch(ids[n-1]); err == nil {
			if conv, ok := store.Active(); ok {
				fmt.Fprintln(s.out, DimStyle.Render("Now in "+conv.DisplayTitle()))
			}
		}

	case "/panel":
		st := s.ctrl.Panel().State()
		if st.Data == nil {
			fmt.Fprintln(s.out, DimStyle.Render("No market data yet"))
			return false
		}
		s.a.displayPanel(s.out, st)

	case "/period":
		p, err := market.ParsePeriod(args)
		if err != nil {
			fmt.Fprintln(s.out, WarningStyle.Render(err.Error()))
			return false
		}
		switch err := s.ctrl.LoadSeries(ctx, p); {
		case errors.Is(err, panel.ErrNoQuote), errors.Is(err, chat.ErrNoPanel):
			fmt.Fprintln(s.out, WarningStyle.Render("Chart periods need a single-stock quote"))
			return false
		case err != nil:
			// The presenter has already reported fetch failures.
			return false
		}
		s.a.displayPanel(s.out, s.ctrl.Panel().State())

	case "/export":
		conv, ok := store.Active()
		if !ok || conv.IsEmpty() {
			fmt.Fprintln(s.out, WarningStyle.Render("Nothing to export yet"))
			return false
		}
		opts := export.DefaultOptions()
		exporter, err := export.ForFormat(args, opts)
		if err != nil {
			fmt.Fprintln(s.out, WarningStyle.Render(err.Error()))
			return false
		}
		path, err := export.ExportToFile(conv, exporter, opts)
		if err != nil {
			fmt.Fprintln(s.out, ErrorStyle.Render("Export failed: "+err.Error()))
			return false
		}
		fmt.Fprintln(s.out, SuccessStyle.Render("Exported to "+path))

	default:
		fmt.Fprintln(s.out, WarningStyle.Render("Unknown command "+name+" (try /help)"))
	}
	return false
}
