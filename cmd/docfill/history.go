package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/docfill/internal/history"
	"github.com/Zuo-Peng/docfill/internal/tui"
)

func historyCmd() *cobra.Command {
	var since string
	var limit int
	var prune time.Duration

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse recorded sessions, newest first",
		Long: `Opens a TUI panel with every recorded session (newest first) and its
transcript. When stdout is piped, prints TSV instead:
  sessionID, updatedAt, phase, progress, template, downloadPath`,
		Args: cobra.NoArgs,
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
			if prune > 0 {
				n, err := store.Prune(ctx, time.Now().Add(-prune))
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "Pruned %d sessions\n", n)
				return nil
			}

			sinceT, err := parseSince(since)
			if err != nil {
				return err
			}

			if isTerminal() {
				_, err := tui.RunBrowse(ctx, store, "", history.SearchOptions{Since: sinceT, Limit: limit})
				return err
			}

			rows, err := store.ListSessions(ctx, history.ListOptions{Since: sinceT, Limit: limit})
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(os.Stderr, "No sessions recorded.")
				return nil
			}
			for _, r := range rows {
				fmt.Printf("%s\t%s\t%s\t%s\t%s\t%s\n",
					r.SessionID,
					r.UpdatedAt.Local().Format("2006-01-02 15:04"),
					r.Phase,
					r.Progress,
					tsvField(r.Template),
					tsvField(r.DownloadPath),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "Only sessions updated since date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max sessions (0 = default)")
	cmd.Flags().DurationVar(&prune, "prune", 0, "Delete sessions not updated within this duration (e.g. 720h) and exit")

	return cmd
}

// tsvField keeps a value on one TSV cell; empty values become "-".
func tsvField(s string) string {
	if s == "" {
		return "-"
	}
	return strings.NewReplacer("\t", " ", "\n", " ").Replace(s)
}
