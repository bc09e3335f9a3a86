// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tradedesk/internal/config"
)

func (a *app) newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit the configuration file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration (credentials redacted)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(a.stdout, a.cfg.String())
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := a.configFile()
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, path)
				return nil
			},
		},
		a.newConfigInitCommand(),
		&cobra.Command{
			Use:   "get KEY",
			Short: "Print one setting",
			Long:  "Print one setting. Keys:\n  " + strings.Join(config.GetAllKeys(), "\n  "),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := a.cfg.Get(args[0])
				if err != nil {
					return &ExitError{Code: ExitUsageError, Err: err}
				}
				fmt.Fprintln(a.stdout, v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Change one setting in the configuration file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.configSet(args[0], args[1])
			},
		},
	)
	return cmd
}

func (a *app) newConfigInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.configFile()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return &ExitError{Code: ExitUsageError, Err: fmt.Errorf("%s exists (use --force to overwrite)", path)}
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, SuccessStyle.Render("Wrote "+path))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// configFile is --config, or the default TOML path.
func (a *app) configFile() (string, error) {
	if a.flags.configPath != "" {
		return a.flags.configPath, nil
	}
	return config.ConfigPathTOML()
}

// configSet edits the file itself so environment overrides are not
// written back.
func (a *app) configSet(key, value string) error {
	path, err := a.configFile()
	if err != nil {
		return err
	}
	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		load := config.LoadTOML
		if strings.HasSuffix(path, ".json") {
			load = config.LoadJSON
		}
		if err := load(cfg, path); err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return statErr
	}

	if err := cfg.Set(key, value); err != nil {
		return &ExitError{Code: ExitUsageError, Err: err}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}

	save := config.SaveTOML
	if strings.HasSuffix(path, ".json") {
		save = config.SaveJSON
	}
	if err := save(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s %s = %s\n", SuccessStyle.Render("Set"), key, value)
	return nil
}
