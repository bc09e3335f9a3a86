// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tradedesk/internal/market"
	"github.com/jeranaias/tradedesk/internal/ui/components"
)

func (a *app) newHistoryCommand() *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "history SYMBOL",
		Short: "Show a stock's closing-price history",
		Long: `Fetch the closing-price series for SYMBOL and print a sparkline with
the range. The period defaults to panel.default_period from the config.`,
		Example: `  tradedesk history TCS
  tradedesk history RELIANCE --period 1y --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.cfg.DefaultPeriod()
			if period != "" {
				var err error
				if p, err = market.ParsePeriod(period); err != nil {
					return &ExitError{Code: ExitUsageError, Err: err}
				}
			}
			symbol := strings.ToUpper(strings.TrimSpace(args[0]))

			ctx := cmd.Context()
			client, _, err := a.connect(ctx)
			if err != nil {
				return err
			}
			points, err := client.StockHistory(ctx, symbol, p)
			if err != nil {
				return err
			}

			if a.flags.jsonOut {
				return NewJSONResponse("history", map[string]any{
					"symbol": symbol,
					"period": p,
					"points": points,
				}).Write(a.stdout)
			}
			if len(points) == 0 {
				fmt.Fprintln(a.stdout, DimStyle.Render("No data for "+symbol+" over "+string(p)))
				return nil
			}

			first, last := points[0], points[len(points)-1]
			lo, hi := first.Value, first.Value
			for _, pt := range points {
				lo = min(lo, pt.Value)
				hi = max(hi, pt.Value)
			}
			width := min(terminalWidth(a.stdout)-4, 100)
			fmt.Fprintln(a.stdout, TitleStyle.Render(symbol)+" "+DimStyle.Render(string(p)))
			fmt.Fprintln(a.stdout, components.Sparkline(points, width))
			fmt.Fprintf(a.stdout, "%s %s  %s %s  %s %s  %s %s\n",
				LabelStyle.Render("first"), market.FormatPrice(first.Value),
				LabelStyle.Render("last"), market.FormatPrice(last.Value),
				LabelStyle.Render("low"), market.FormatPrice(lo),
				LabelStyle.Render("high"), market.FormatPrice(hi),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&period, "period", "p", "", "1d, 5d, 1mo, 6mo, 1y or 5y")
	return cmd
}
