package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hopper/internal/daemonctl"
	"hopper/internal/ipc"
)

func newShellCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive console: run, once, status, history, set, config, stop, exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runShell(ctx *commandContext, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "hopper console; type `help` for commands")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		verb := strings.ToLower(fields[0])
		if verb == "exit" || verb == "quit" {
			return nil
		}
		if err := shellDispatch(ctx, out, verb, fields[1:]); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		fmt.Fprintln(out)
	}
}

func shellDispatch(ctx *commandContext, out io.Writer, verb string, args []string) error {
	switch verb {
	case "help":
		fmt.Fprintln(out, "run                start polling (launches the daemon if needed)")
		fmt.Fprintln(out, "once               process the input directory a single time")
		fmt.Fprintln(out, "stop               stop polling after the current batch")
		fmt.Fprintln(out, "status             counters, directories and recent outcomes")
		fmt.Fprintln(out, "history            recent outcomes only")
		fmt.Fprintln(out, "set <key> <value>  change a setting; `set help` lists keys")
		fmt.Fprintln(out, "config             show the live settings")
		fmt.Fprintln(out, "exit               leave the console (the daemon keeps running)")
		return nil
	case "run":
		exe, err := os.Executable()
		if err != nil {
			return err
		}
		result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe,
			daemonctl.LaunchOptions{ConfigPath: ctx.resolvedConfigPath()}, 10*time.Second)
		if err != nil {
			return err
		}
		switch result.State {
		case daemonctl.StartStateRefused:
			return fmt.Errorf("daemon refused to start processing: %s", result.Message)
		case daemonctl.StartStateAlreadyRunning:
			fmt.Fprintln(out, "File processing job already running.")
		default:
			fmt.Fprintln(out, "File processing job started.")
		}
		return nil
	case "set":
		if len(args) == 1 && strings.EqualFold(args[0], "help") {
			printSetKeys(out)
			return nil
		}
		if len(args) < 2 {
			return fmt.Errorf("usage: set <key> <value>")
		}
		return ctx.withClient(func(client *ipc.Client) error {
			return applySetting(out, client, args[0], strings.Join(args[1:], " "))
		})
	case "once", "stop", "status", "history", "config":
	default:
		return fmt.Errorf("invalid command %q", verb)
	}

	return ctx.withClient(func(client *ipc.Client) error {
		switch verb {
		case "once":
			resp, err := client.RunOnce()
			if err != nil {
				return err
			}
			printBatch(out, resp.Batch)
		case "stop":
			if _, err := client.Stop(); err != nil {
				return err
			}
			fmt.Fprintln(out, "Processing stopped")
		case "status":
			resp, err := client.Status()
			if err != nil {
				return err
			}
			printStatus(out, resp, false)
		case "history":
			resp, err := client.History()
			if err != nil {
				return err
			}
			printHistory(out, resp.Lines)
		case "config":
			resp, err := client.Config()
			if err != nil {
				return err
			}
			printConfig(out, resp)
		}
		return nil
	})
}
