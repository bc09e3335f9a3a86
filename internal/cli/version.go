// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func (a *app) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version":    Version,
				"commit":     GitCommit,
				"build_date": BuildDate,
				"go":         runtime.Version(),
				"platform":   runtime.GOOS + "/" + runtime.GOARCH,
			}
			if a.flags.jsonOut {
				return NewJSONResponse("version", info).Write(a.stdout)
			}
			fmt.Fprintf(a.stdout, "tradedesk %s (%s, built %s)\n", Version, GitCommit, BuildDate)
			fmt.Fprintf(a.stdout, "%s %s\n", DimStyle.Render(info["go"]), DimStyle.Render(info["platform"]))
			return nil
		},
	}
}
