package main

import (
	"fmt"
	"os"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/docfill/internal/api"
	"github.com/Zuo-Peng/docfill/internal/history"
	"github.com/Zuo-Peng/docfill/internal/logger"
)

func downloadCmd() *cobra.Command {
	var dir string
	var copyPath, urlOnly bool

	cmd := &cobra.Command{
		Use:   "download <session>",
		Short: "Download the generated document of a server session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log := logger.New(cfg.LogPath, cfg.LogLevel)
			defer func() {
				_ = log.Sync()
			}()

			sessionID := args[0]
			client := api.NewClient(cfg.ServerURL, cfg.Timeout)
			if urlOnly {
				fmt.Println(client.DownloadURL(sessionID))
				return nil
			}
			if dir == "" {
				dir = cfg.DownloadDir
			}

			path, err := client.Download(cmd.Context(), sessionID, dir)
			if err != nil {
				log.Warn("download", "download failed", map[string]interface{}{"error": err, "session_id": sessionID})
				return fmt.Errorf("download %s: %s", sessionID, api.Detail(err))
			}
			log.Info("download", "document saved", map[string]interface{}{"session_id": sessionID, "path": path})

			if cfg.RecordHistory {
				if store, err := history.Open(cfg.HistoryPath); err == nil {
					if err := store.MarkDownloaded(cmd.Context(), sessionID, path); err != nil {
						log.Warn("history", "record failed", map[string]interface{}{"error": err})
					}
					store.Close()
				}
			}

			fmt.Println(path)
			if copyPath {
				if err := clipboard.WriteAll(path); err != nil {
					fmt.Fprintf(os.Stderr, "clipboard: %v\n", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Target directory (default from config)")
	cmd.Flags().BoolVar(&copyPath, "copy", false, "Copy the saved path to the clipboard")
	cmd.Flags().BoolVar(&urlOnly, "url", false, "Print the download URL instead of downloading")

	return cmd
}
