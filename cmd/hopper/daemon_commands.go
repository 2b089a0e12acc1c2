package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hopper/internal/daemonctl"
	"hopper/internal/ipc"
	"hopper/internal/policy"
	"hopper/internal/preflight"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start processing, launching the daemon if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.resolvedConfigPath()},
				10*time.Second,
			)
			if err != nil {
				return err
			}
			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Processing started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Processing already running")
			case daemonctl.StartStateRefused:
				return fmt.Errorf("daemon refused to start processing: %s", result.Message)
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop processing after the current batch (the daemon keeps running)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Stop(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Processing stopped")
				return nil
			})
		},
	}

	shutdownCmd := &cobra.Command{
		Use:   "shutdown",
		Short: "Stop processing and terminate the daemon process",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			pid, err := daemonctl.Shutdown(ctx.socketPath(), 10*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Daemon stopped (pid %d)\n", pid)
			return nil
		},
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Process the input directory once without starting the poll loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RunOnce()
				if err != nil {
					return err
				}
				printBatch(cmd.OutOrStdout(), resp.Batch)
				return nil
			})
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show processing status, counters and recent outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ctx.dialClient()
			if err != nil {
				if statusJSON {
					return err
				}
				printOfflineStatus(stdout, ctx, shouldColorize(stdout))
				return nil
			}
			defer client.Close()
			resp, err := client.Status()
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, resp)
			}
			printStatus(stdout, resp, shouldColorize(stdout))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show the recent outcome window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History()
				if err != nil {
					return err
				}
				printHistory(cmd.OutOrStdout(), resp.Lines)
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, shutdownCmd, runCmd, statusCmd, historyCmd}
}

func printStatus(out io.Writer, resp *ipc.StatusResponse, colorize bool) {
	printSectionHeader(out, "Daemon", colorize)
	if resp.Running {
		fmt.Fprintln(out, renderStatusLine("Processing", statusOK, "running", colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Processing", statusWarn, "stopped", colorize))
	}
	fmt.Fprintln(out, renderValueLine("PID", strconv.Itoa(resp.PID)))
	fmt.Fprintln(out, renderValueLine("Input", resp.InputDir))
	if resp.LogPath != "" {
		fmt.Fprintln(out, renderValueLine("Log", resp.LogPath))
	}
	fmt.Fprintln(out, renderValueLine("History log", resp.HistoryPath))
	if resp.CatalogPath != "" {
		fmt.Fprintln(out, renderValueLine("Catalog", resp.CatalogPath))
	}
	if resp.MetricsAddr != "" {
		fmt.Fprintln(out, renderValueLine("Metrics", "http://"+resp.MetricsAddr+"/metrics"))
	}
	if resp.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusError, resp.LastError, colorize))
	}
	if resp.LastBatch != nil {
		fmt.Fprintln(out, renderValueLine("Last batch", fmt.Sprintf("%d files, %s (%s)",
			resp.LastBatch.Files,
			resp.LastBatch.Duration.Round(time.Millisecond),
			humanize.Time(resp.LastBatch.Started))))
	}
	fmt.Fprintln(out)

	printSectionHeader(out, "Directories", colorize)
	for _, check := range resp.Preflight {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	fmt.Fprintln(out)

	printSectionHeader(out, "Counters", colorize)
	fmt.Fprint(out, renderTable([]string{"Counter", "Value"}, [][]string{
		{"Processed", humanize.Comma(resp.Processed)},
		{"Valid", humanize.Comma(resp.Valid)},
		{"Failed", humanize.Comma(resp.Failed)},
		{"In flight", strconv.Itoa(resp.InFlight)},
		{"Batches", humanize.Comma(resp.Batches)},
	}, 1))
	fmt.Fprintln(out)

	printSectionHeader(out, fmt.Sprintf("Recent outcomes (last %d)", resp.HistorySize), colorize)
	printHistory(out, resp.History)
}

func printOfflineStatus(out io.Writer, ctx *commandContext, colorize bool) {
	printSectionHeader(out, "Daemon", colorize)
	fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	cfg := ctx.configValue()
	if cfg == nil {
		return
	}
	fmt.Fprintln(out)
	printSectionHeader(out, "Directories", colorize)
	for _, check := range preflight.RunAll(policy.NewSettings(cfg).Snapshot()) {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
}

func printHistory(out io.Writer, lines []string) {
	if len(lines) == 0 {
		fmt.Fprintln(out, "No files processed yet")
		return
	}
	fmt.Fprintln(out, strings.Join(lines, "\n"))
}

func printBatch(out io.Writer, batch ipc.BatchSummary) {
	if batch.Files == 0 {
		fmt.Fprintln(out, "Input directory is empty")
		return
	}
	fmt.Fprintf(out, "Processed %d files in %s: %d valid, %d invalid, %d unresolved\n",
		batch.Files, batch.Duration.Round(time.Millisecond), batch.Valid, batch.Invalid, batch.Unresolved)
}
