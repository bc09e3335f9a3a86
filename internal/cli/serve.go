// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/tradedesk/internal/config"
	"github.com/jeranaias/tradedesk/internal/devserver"
	"github.com/jeranaias/tradedesk/internal/storage"
)

// serveOptions are the serve-dev flags.
type serveOptions struct {
	addr       string
	dbPath     string
	script     string
	secret     string
	username   string
	password   string
	chunkDelay time.Duration
	rpm        int
	tui        bool
}

func (a *app) newServeDevCommand() *cobra.Command {
	var o serveOptions
	cmd := &cobra.Command{
		Use:   "serve-dev",
		Short: "Run a local development API",
		Long: `Run a local server that speaks the same API as the trading assistant:
login, conversations, streamed replies and price history. Replies come
from a YAML script matched by keyword; market data is synthetic but
repeatable. Conversations are kept in a SQLite file.

With --script the file is watched and reloaded when it changes. With
--tui the terminal UI is started against the server, logged in as the
development user, and the server stops when the UI exits.`,
		Example: `  tradedesk serve-dev
  tradedesk serve-dev --tui --chunk-delay 40ms
  tradedesk serve-dev --script replies.yaml --db :memory:`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServeDev(cmd.Context(), o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.addr, "addr", devserver.DefaultAddr, "listen address")
	f.StringVar(&o.dbPath, "db", "", `SQLite file, or ":memory:" (default ~/.tradedesk/devserver.db)`)
	f.StringVar(&o.script, "script", "", "reply script (default: built-in)")
	f.StringVar(&o.secret, "secret", "", "token signing secret (default: random per run)")
	f.StringVar(&o.username, "user", "trader", "development account name")
	f.StringVar(&o.password, "password", "trader", "development account password")
	f.DurationVar(&o.chunkDelay, "chunk-delay", 0, "pause between streamed text frames")
	f.IntVar(&o.rpm, "rate-limit", devserver.DefaultRequestsPerMinute, "requests per minute per client, 0 disables")
	f.BoolVar(&o.tui, "tui", false, "also start the terminal UI against the server")
	return cmd
}

func (a *app) runServeDev(parent context.Context, o serveOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if o.dbPath == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return err
		}
		o.dbPath = filepath.Join(dir, "devserver.db")
	}
	db, err := storage.Open(o.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.EnsureUser(ctx, o.username, o.password); err != nil {
		return fmt.Errorf("failed to create development user: %w", err)
	}

	opts := []devserver.Option{devserver.WithLogger(a.logger)}
	if o.script != "" {
		sc, err := devserver.LoadScript(o.script)
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		opts = append(opts, devserver.WithScript(sc))
	}
	srv := devserver.New(db, devserver.Config{
		Secret:            o.secret,
		ChunkDelay:        o.chunkDelay,
		RequestsPerMinute: o.rpm,
	}, opts...)

	ln, err := net.Listen("tcp", o.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", o.addr, err)
	}
	baseURL := "http://" + ln.Addr().String() + "/api"

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx, ln) })
	if o.script != "" {
		g.Go(func() error { return devserver.WatchScript(gctx, o.script, srv) })
	}

	if o.tui {
		a.cfg.API.BaseURL = baseURL
		a.cfg.API.Username = o.username
		a.cfg.API.Password = o.password
		a.cfg.API.Token = ""
		g.Go(func() error {
			defer stop()
			return a.runTUI(gctx)
		})
	} else {
		fmt.Fprintf(a.stdout, "%s %s\n", SuccessStyle.Render("Serving"), baseURL)
		fmt.Fprintf(a.stdout, "%s TRADEDESK_API_URL=%s TRADEDESK_USERNAME=%s TRADEDESK_PASSWORD=%s tradedesk\n",
			DimStyle.Render("Connect with:"), baseURL, o.username, o.password)
	}

	err = g.Wait()
	stats := srv.Stats()
	a.logger.Info("Development server finished",
		zap.Int64("requests", stats.Requests),
		zap.Int64("streams", stats.Streams),
	)
	return err
}
