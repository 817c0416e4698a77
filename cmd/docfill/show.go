package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/docfill/internal/history"
	"github.com/Zuo-Peng/docfill/internal/render"
	"github.com/Zuo-Peng/docfill/internal/session"
)

func showCmd() *cobra.Command {
	var hit, context int
	var query string
	var values bool

	cmd := &cobra.Command{
		Use:   "show <session>",
		Short: "Print a recorded session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := history.Open(cfg.HistoryPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			row, err := store.GetSession(ctx, args[0])
			if err != nil {
				return err
			}
			if row == nil {
				return fmt.Errorf("session not found: %s", args[0])
			}

			if values {
				vals, err := store.GetValues(ctx, row.SessionID)
				if err != nil {
					return err
				}
				for _, k := range slices.Sorted(maps.Keys(vals)) {
					fmt.Printf("%s\t%s\t%s\n", k, session.FormatPlaceholderName(k), tsvField(vals[k]))
				}
				return nil
			}

			msgs, err := store.GetMessages(ctx, row.SessionID)
			if err != nil {
				return err
			}

			tty := isTerminal()
			width := 0
			if tty {
				width = terminalWidth()
			}
			out, _ := render.Transcript(msgs, render.Options{
				Header:  fmt.Sprintf("%s  %s  %s  %s", row.SessionID, row.Template, row.Phase, row.Progress),
				Hit:     hit,
				Context: context,
				Width:   width,
				Query:   query,
				Plain:   !tty,
			})
			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().IntVar(&hit, "hit", 0, "Message number to mark (1-based, as printed by search)")
	cmd.Flags().IntVar(&context, "context", -1, "Messages before/after --hit to show (-1 = all)")
	cmd.Flags().StringVar(&query, "query", "", "Search query for keyword highlighting")
	cmd.Flags().BoolVar(&values, "values", false, "Print the collected values as TSV instead")

	return cmd
}
