// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/tradedesk/internal/config"
	"github.com/jeranaias/tradedesk/internal/logging"
	"github.com/jeranaias/tradedesk/internal/model"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	verbose    bool
	logPath    string
	apiURL     string
	mode       string
	jsonOut    bool
}

// app is the state built by the root command before a subcommand runs.
type app struct {
	flags  globalFlags
	cfg    *config.Config
	logger *zap.Logger

	stdout io.Writer
	stderr io.Writer
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}

	root := &cobra.Command{
		Use:   "tradedesk",
		Short: "Terminal client for the trading assistant",
		Long: `tradedesk talks to the trading-assistant API. Replies stream in as
they are written; holdings and stock data that arrive with a reply are
shown in the side panel.

Run without arguments to start the terminal UI.

Credentials come from the environment:
  TRADEDESK_USERNAME  account name (or api.username in the config file)
  TRADEDESK_PASSWORD  password, exchanged for a token at startup
  TRADEDESK_TOKEN     an access token to use as is`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.stdout = cmd.OutOrStdout()
			a.stderr = cmd.ErrOrStderr()
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default ~/.tradedesk/config.toml)")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&a.flags.logPath, "log-file", "", `log file, or "stderr"`)
	pf.StringVar(&a.flags.apiURL, "api-url", "", "API base URL")
	pf.StringVar(&a.flags.mode, "mode", "", "conversation mode: real or simulation")
	pf.BoolVar(&a.flags.jsonOut, "json", false, "print machine-readable JSON where supported")

	root.AddCommand(
		a.newChatCommand(),
		a.newAskCommand(),
		a.newConversationsCommand(),
		a.newHistoryCommand(),
		a.newServeDevCommand(),
		a.newConfigCommand(),
		a.newVersionCommand(),
	)
	return root
}

// setup loads the config, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if a.flags.configPath != "" {
		cfg, err = config.LoadFromPath(a.flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		if cfg == nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		fmt.Fprintf(a.stderr, "Warning: %v (using defaults)\n", err)
	}

	if a.flags.apiURL != "" {
		cfg.API.BaseURL = a.flags.apiURL
	}
	if a.flags.mode != "" {
		mode, err := model.ParseMode(a.flags.mode)
		if err != nil {
			return &ExitError{Code: ExitUsageError, Err: err}
		}
		cfg.Chat.Mode = string(mode)
	}
	if a.flags.logPath != "" {
		cfg.Log.Path = a.flags.logPath
	}
	config.SetGlobal(cfg)
	a.cfg = cfg

	logPath, err := cfg.LogPath()
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}
	a.logger, err = logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Path:    logPath,
		Verbose: a.flags.verbose,
	})
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}
	a.logger.Debug("Starting",
		zap.String("command", cmd.CommandPath()),
		zap.String("version", Version),
		zap.String("api", cfg.API.BaseURL),
	)
	return nil
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		code := ExitCode(err)
		if !errors.Is(err, errQuiet) {
			fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:")+" "+err.Error())
		}
		return code
	}
	return ExitSuccess
}
