package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hopper/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		history bool
		lines   int
		follow  bool
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon run log (or the outcome history with --history)",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path, err := resolveLogPath(ctx, history)
			if err != nil {
				return err
			}
			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			followCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return logs.Follow(followCtx, path, offset, 250*time.Millisecond, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "Show the file outcome history log instead of the run log")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as they are written")
	return cmd
}

// resolveLogPath prefers the paths the running daemon reports and falls back
// to the configured log directory.
func resolveLogPath(ctx *commandContext, history bool) (string, error) {
	if client, err := ctx.dialClient(); err == nil {
		defer client.Close()
		if status, err := client.Status(); err == nil {
			if history && status.HistoryPath != "" {
				return status.HistoryPath, nil
			}
			if !history && status.LogPath != "" {
				return status.LogPath, nil
			}
		}
	}
	cfg := ctx.configValue()
	if cfg == nil {
		return "", fmt.Errorf("no configuration available to locate logs")
	}
	if history {
		return cfg.HistoryLogPath(), nil
	}
	return logs.LatestRunLog(cfg.Paths.LogDir)
}
