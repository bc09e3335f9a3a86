// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tradedesk/internal/export"
	"github.com/jeranaias/tradedesk/internal/model"
	"github.com/jeranaias/tradedesk/internal/util"
)

func (a *app) newConversationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv", "convs"},
		Short:   "List, show, rename, delete and export conversations",
	}
	cmd.AddCommand(
		a.newConvListCommand(),
		a.newConvShowCommand(),
		a.newConvRenameCommand(),
		a.newConvDeleteCommand(),
		a.newConvExportCommand(),
	)
	return cmd
}

func (a *app) newConvListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations in the current mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, _, err := a.connect(ctx)
			if err != nil {
				return err
			}
			convs, err := client.ListConversations(ctx, a.cfg.Mode())
			if err != nil {
				return err
			}
			metas := make([]model.ConversationMeta, len(convs))
			for i, c := range convs {
				metas[i] = c.Meta()
			}
			if a.flags.jsonOut {
				return NewJSONResponse("conversations list", metas).Write(a.stdout)
			}
			if len(metas) == 0 {
				fmt.Fprintln(a.stdout, DimStyle.Render("No conversations yet"))
				return nil
			}
			fmt.Fprintln(a.stdout, LabelStyle.Render(fmt.Sprintf("%-10s %-32s %8s  %s", "ID", "TITLE", "MESSAGES", "UPDATED")))
			for _, m := range metas {
				updated := ""
				if !m.UpdatedAt.IsZero() {
					updated = m.UpdatedAt.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(a.stdout, "%-10s %s %8d  %s\n",
					util.TruncateWidth(m.ID, 10), util.FitWidth(m.Title, 32), m.MessageCount, updated)
			}
			return nil
		},
	}
}

func (a *app) newConvShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print a conversation transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, _, err := a.connect(ctx)
			if err != nil {
				return err
			}
			conv, err := client.GetConversation(ctx, args[0])
			if err != nil {
				return err
			}
			if a.flags.jsonOut {
				return NewJSONResponse("conversations show", conv).Write(a.stdout)
			}
			if conv.IsEmpty() {
				fmt.Fprintln(a.stdout, DimStyle.Render(conv.DisplayTitle()+" has no messages"))
				return nil
			}
			md, err := export.NewMarkdownExporter(export.DefaultOptions()).Export(conv)
			if err != nil {
				return err
			}
			a.displayReply(a.stdout, string(md))
			return nil
		},
	}
}

func (a *app) newConvRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID TITLE",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			title := strings.TrimSpace(strings.Join(args[1:], " "))
			client, _, err := a.connect(ctx)
			if err != nil {
				return err
			}
			conv, err := client.RenameConversation(ctx, args[0], title)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, SuccessStyle.Render("Renamed to "+conv.DisplayTitle()))
			return nil
		},
	}
}

func (a *app) newConvDeleteCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !yes {
				fmt.Fprintf(a.stdout, "Delete conversation %s? [y/N] ", args[0])
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if ans := strings.ToLower(strings.TrimSpace(answer)); ans != "y" && ans != "yes" {
					fmt.Fprintln(a.stdout, DimStyle.Render("Cancelled"))
					return nil
				}
			}
			client, _, err := a.connect(ctx)
			if err != nil {
				return err
			}
			if err := client.DeleteConversation(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, SuccessStyle.Render("Deleted "+args[0]))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (a *app) newConvExportCommand() *cobra.Command {
	var (
		format   string
		output   string
		noHeader bool
	)
	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Save a conversation as markdown or JSON",
		Args:  cobra.ExactArgs(1),
		Example: `  tradedesk conversations export 42
  tradedesk conversations export 42 --format json -o review.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, _, err := a.connect(ctx)
			if err != nil {
				return err
			}
			conv, err := client.GetConversation(ctx, args[0])
			if err != nil {
				return err
			}
			opts := export.DefaultOptions()
			opts.Path = output
			opts.IncludeMetadata = !noHeader
			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return &ExitError{Code: ExitUsageError, Err: err}
			}
			path, err := export.ExportToFile(conv, exporter, opts)
			if err != nil {
				return err
			}
			if a.flags.jsonOut {
				return NewJSONResponse("conversations export", map[string]string{"path": path}).Write(a.stdout)
			}
			fmt.Fprintln(a.stdout, SuccessStyle.Render("Exported to "+path))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "markdown or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: generated name in the current directory)")
	cmd.Flags().BoolVar(&noHeader, "no-metadata", false, "omit the title block")
	return cmd
}
