package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/docfill/internal/history"
	"github.com/Zuo-Peng/docfill/internal/render"
	"github.com/Zuo-Peng/docfill/internal/tui"
)

func searchCmd() *cobra.Command {
	var sender, since string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across recorded transcripts",
		Long: `Search recorded transcripts using FTS5. Output is TSV for fzf integration:
  sessionID, message, updatedAt, template, snippet

Recommended shell function (add to .zshrc):
  dfs() {
    docfill search "$*" | fzf \
      --ansi \
      --delimiter='\t' --with-nth=3.. \
      --preview 'docfill show {1} --hit {2} --context 5 --query {q}' \
      --preview-window=right:60%:wrap \
      --bind 'enter:execute(docfill open {1})'
  }`,
		Args: cobra.ExactArgs(1),
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

			sinceT, err := parseSince(since)
			if err != nil {
				return err
			}
			opts := history.SearchOptions{
				Sender: sender,
				Since:  sinceT,
				Limit:  limit,
			}

			// Interactive TUI when stdout is a terminal; TSV output for pipes
			ctx := cmd.Context()
			if isTerminal() {
				_, err := tui.RunBrowse(ctx, store, args[0], opts)
				return err
			}

			opts.Query = args[0]
			results, err := store.Search(ctx, opts)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(os.Stderr, "No results found.")
				return nil
			}

			for _, r := range results {
				snippet := strings.NewReplacer("\t", " ", "\n", " ").Replace(r.Snippet)
				// first two fields (session, message number) stay plain for fzf {1} {2}
				fmt.Printf("%s\t%d\t%s\t%s\t%s\n",
					r.SessionID,
					r.Seq+1,
					r.UpdatedAt.Local().Format("2006-01-02 15:04"),
					tsvField(r.Template),
					render.HighlightSnippet(snippet, false),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "", "Filter by sender (user/assistant)")
	cmd.Flags().StringVar(&since, "since", "", "Filter sessions updated since date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Max results")

	return cmd
}
