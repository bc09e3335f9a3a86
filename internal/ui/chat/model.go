// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	controller "github.com/jeranaias/tradedesk/internal/chat"
	"github.com/jeranaias/tradedesk/internal/market"
	"github.com/jeranaias/tradedesk/internal/notify"
	"github.com/jeranaias/tradedesk/internal/session"
	"github.com/jeranaias/tradedesk/internal/ui/components"
	"github.com/jeranaias/tradedesk/internal/ui/styles"
)

// DefaultSessionCheck is how often the session's expiry is polled.
const DefaultSessionCheck = 5 * time.Second

// updateBuffer is the controller update backlog. Updates are re-render
// signals, so a full buffer drops them.
const updateBuffer = 64

// Options configures the program.
type Options struct {
	Theme       string
	ShowSidebar bool
	ShowPanel   bool
	Periods     []market.Period
	ExportDir   string
	Logger      *zap.Logger

	// Clipboard writes text to the system clipboard.
	Clipboard func(string) error

	SessionCheck time.Duration
}

// Model is the Bubble Tea model.
type Model struct {
	ctrl   *controller.Controller
	auth   *session.Auth
	toasts *notify.Queue
	opts   Options
	logger *zap.Logger

	theme      *styles.Theme
	keys       KeyMap
	help       help.Model
	input      textinput.Model
	viewport   viewport.Model
	spinner    spinner.Model
	transcript *components.Transcript
	updates    chan controller.Update

	width, height int
	ready         bool

	streaming bool
	cancel    context.CancelFunc

	showSidebar bool
	showHelp    bool
	followTail  bool

	// ended is set when the session lapsed and the program quit.
	ended session.LogoutReason
}

// New creates the model. toasts must be the notifier the controller was
// built with so its notifications show up as toasts.
func New(ctrl *controller.Controller, auth *session.Auth, toasts *notify.Queue, opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.Periods) == 0 {
		opts.Periods = market.Periods
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}
	if opts.SessionCheck <= 0 {
		opts.SessionCheck = DefaultSessionCheck
	}
	if toasts == nil {
		toasts = notify.NewQueue()
	}

	theme := styles.NewTheme(opts.Theme)

	input := textinput.New()
	input.Placeholder = "Ask about a stock, your portfolio or the market… (/help)"
	input.Prompt = "› "
	input.PromptStyle = theme.InputPrompt
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	updates := make(chan controller.Update, updateBuffer)
	ctrl.Subscribe(func(u controller.Update) {
		select {
		case updates <- u:
		default:
		}
	})
	if !opts.ShowPanel {
		ctrl.Panel().Dismiss()
	}

	return Model{
		ctrl:        ctrl,
		auth:        auth,
		toasts:      toasts,
		opts:        opts,
		logger:      opts.Logger,
		theme:       theme,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		input:       input,
		viewport:    viewport.New(80, 20),
		spinner:     sp,
		transcript:  components.NewTranscript(theme),
		updates:     updates,
		showSidebar: opts.ShowSidebar,
		followTail:  true,
	}
}

// Ended reports why the session ended, or "" if the user quit.
func (m Model) Ended() session.LogoutReason { return m.ended }

// Init starts the initial load and the background tickers.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		m.loadInitial(),
		waitForUpdate(m.updates),
		components.ToastTickCmd(),
	}
	if m.auth != nil {
		cmds = append(cmds, m.auth.CheckCmd(m.opts.SessionCheck))
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// COMMANDS
// =============================================================================

func waitForUpdate(ch <-chan controller.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return controllerMsg{update: u}
	}
}

func (m Model) loadInitial() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return loadedMsg{err: ctrl.LoadInitial(ctx)}
	}
}

// action runs fn in a tea.Cmd with a request timeout.
func (m Model) action(name string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return actionDoneMsg{action: name, err: fn(ctx)}
	}
}

// send starts a reply stream. The returned model carries the cancel func.
func (m Model) send(text string) (Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.streaming = true
	m.followTail = true
	ctrl := m.ctrl
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		res, err := ctrl.Send(ctx, text)
		return sendDoneMsg{result: res, err: err}
	})
}
