package main

import (
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/docfill/internal/history"
	"github.com/Zuo-Peng/docfill/internal/open"
)

func openCmd() *cobra.Command {
	var editor string

	cmd := &cobra.Command{
		Use:   "open <session>",
		Short: "Open the downloaded document of a recorded session",
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

			return open.OpenSession(cmd.Context(), store, args[0], editor)
		},
	}

	cmd.Flags().StringVar(&editor, "editor", "", "Program to open the document with (default: system opener)")

	return cmd
}
