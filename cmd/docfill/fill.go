package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/docfill/internal/api"
	"github.com/Zuo-Peng/docfill/internal/history"
	"github.com/Zuo-Peng/docfill/internal/logger"
	"github.com/Zuo-Peng/docfill/internal/tui"
	"github.com/Zuo-Peng/docfill/internal/workflow"
)

func fillCmd() *cobra.Command {
	var dir, htmlPath string
	var sets []string
	var noHistory, noDownload bool

	cmd := &cobra.Command{
		Use:   "fill [file]",
		Short: "Upload a .docx template and fill its placeholders",
		Long: `Uploads a template and walks through its placeholders one question at a time.

In a terminal this opens the interactive TUI. When stdout is piped, answers are
read from stdin one per line, the conversation goes to stdout and alerts to
stderr; the preview is printed as text and the document is downloaded:

  printf 'Ann Lee\nNew York\n' | docfill fill nda.docx --set city=NYC > transcript.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log := logger.New(cfg.LogPath, cfg.LogLevel)
			defer func() {
				_ = log.Sync()
			}()

			client := api.NewClient(cfg.ServerURL, cfg.Timeout)
			opts := workflow.Options{Logger: log, ServerURL: cfg.ServerURL}
			if cfg.RecordHistory && !noHistory {
				store, err := history.Open(cfg.HistoryPath)
				if err != nil {
					log.Warn("history", "history disabled", map[string]interface{}{"error": err, "path": cfg.HistoryPath})
				} else {
					defer store.Close()
					opts.Recorder = store
				}
			}
			if dir == "" {
				dir = cfg.DownloadDir
			}

			var file string
			if len(args) > 0 {
				file = args[0]
			}

			if isTerminal() && term.IsTerminal(int(os.Stdin.Fd())) && len(sets) == 0 {
				return tui.RunFill(cmd.Context(), func(v workflow.View) *workflow.Flow {
					return workflow.New(client, v, opts)
				}, tui.FillOptions{File: file, DownloadDir: dir})
			}

			if file == "" {
				return errors.New("a template file is required when not running in a terminal")
			}
			edits, err := parseSets(sets)
			if err != nil {
				return err
			}
			return runLines(cmd.Context(), client, opts, lineOptions{
				File:       file,
				Dir:        dir,
				HTMLPath:   htmlPath,
				Edits:      edits,
				NoDownload: noDownload,
				Width:      80,
			}, os.Stdin, os.Stdout, os.Stderr)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory for the downloaded document (default from config)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Change a collected value after the preview (placeholder=value, repeatable)")
	cmd.Flags().StringVar(&htmlPath, "html", "", "Also save the preview as a standalone HTML file")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this session locally")
	cmd.Flags().BoolVar(&noDownload, "no-download", false, "Stop after the preview")

	return cmd
}

// parseSets turns placeholder=value pairs into an ordered edit list.
func parseSets(sets []string) ([][2]string, error) {
	out := make([][2]string, 0, len(sets))
	for _, s := range sets {
		key, value, ok := strings.Cut(s, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q (want placeholder=value)", s)
		}
		out = append(out, [2]string{key, value})
	}
	return out, nil
}
