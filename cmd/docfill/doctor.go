package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/docfill/internal/api"
	"github.com/Zuo-Peng/docfill/internal/history"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: config, server reachability, and history stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			fmt.Println("=== Config ===")
			fmt.Printf("  Server:    %s\n", cfg.ServerURL)
			fmt.Printf("  Timeout:   %s\n", cfg.Timeout)
			checkDir("Downloads", cfg.DownloadDir)
			fmt.Printf("  Log:       %s (%s)\n", cfg.LogPath, cfg.LogLevel)
			fmt.Printf("  Recording: %t\n", cfg.RecordHistory)

			fmt.Println("\n=== Server ===")
			ctx, cancel := context.WithTimeout(cmd.Context(), min(cfg.Timeout, 10*time.Second))
			defer cancel()
			start := time.Now()
			status, err := api.NewClient(cfg.ServerURL, cfg.Timeout).Ping(ctx)
			if err != nil {
				fmt.Printf("  Status: UNREACHABLE (%s)\n", api.Detail(err))
			} else {
				fmt.Printf("  Status: OK (HTTP %d in %s)\n", status, time.Since(start).Round(time.Millisecond))
			}

			fmt.Println("\n=== History ===")
			fmt.Printf("  Path: %s\n", cfg.HistoryPath)
			if _, err := os.Stat(cfg.HistoryPath); os.IsNotExist(err) {
				fmt.Println("  Status: NOT FOUND (created on the first 'docfill fill')")
				return nil
			}

			store, err := history.Open(cfg.HistoryPath)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			version, err := store.SchemaVersion(cmd.Context())
			if err != nil {
				return fmt.Errorf("schema version: %w", err)
			}
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			fmt.Printf("  Schema:   v%s\n", version)
			fmt.Printf("  Sessions: %d\n", stats.Sessions)
			fmt.Printf("  Messages: %d\n", stats.Messages)

			fmt.Println("\n=== FTS5 ===")
			if stats.Indexed == stats.Messages {
				fmt.Printf("  FTS5 entries: %d\n", stats.Indexed)
				fmt.Println("  Status: OK (synced)")
			} else {
				fmt.Printf("  Status: MISMATCH (messages=%d, fts=%d)\n", stats.Messages, stats.Indexed)
			}

			if info, err := os.Stat(cfg.HistoryPath); err == nil {
				sizeMB := float64(info.Size()) / 1024 / 1024
				fmt.Printf("\n=== DB Size: %.1f MB ===\n", sizeMB)
			}

			return nil
		},
	}
}

func checkDir(name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (NOT FOUND)\n", name, path)
	} else if !info.IsDir() {
		fmt.Printf("  %s: %s (NOT A DIRECTORY)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (OK)\n", name, path)
	}
}
