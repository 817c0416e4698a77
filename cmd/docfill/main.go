package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/docfill/internal/config"
)

var version = "dev"

// errReported means the failure was already shown to the user.
var errReported = errors.New("already reported")

var overrides struct {
	server  string
	timeout time.Duration
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "docfill",
		Short:         "docfill - fill document templates by chatting with a generation server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&overrides.server, "server", "", "Server base URL (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&overrides.timeout, "timeout", 0, "HTTP timeout (overrides config)")

	rootCmd.AddCommand(fillCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(downloadCmd())
	rootCmd.AddCommand(openCmd())
	rootCmd.AddCommand(doctorCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// loadConfig is config.Load with the global flags applied on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if overrides.server != "" {
		cfg.ServerURL = overrides.server
	}
	if overrides.timeout > 0 {
		cfg.Timeout = overrides.timeout
	}
	return cfg, nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// parseSince accepts YYYY-MM-DD in local time; "" means no filter.
func parseSince(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}
