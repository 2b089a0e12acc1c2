package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"hopper/internal/ipc"
	"hopper/internal/policy"
)

func newSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting on the running daemon (`hopper set help` lists keys)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				if strings.EqualFold(args[0], "help") {
					printSetKeys(out)
					return nil
				}
				return fmt.Errorf("set %s: value is required", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				return applySetting(out, client, args[0], args[1])
			})
		},
	}
}

func applySetting(out io.Writer, client *ipc.Client, key, value string) error {
	resp, err := client.Set(key, value)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s -> %s\n", resp.Key, displayValue(resp.Previous), displayValue(resp.Current))
	return nil
}

func displayValue(v string) string {
	if v == "" {
		return "(none)"
	}
	return v
}

func printSetKeys(out io.Writer) {
	rows := make([][]string, 0, len(policy.Keys))
	for _, key := range policy.Keys {
		name := key.Name
		if len(key.Aliases) > 0 {
			name += " (" + strings.Join(key.Aliases, ", ") + ")"
		}
		rows = append(rows, []string{name, key.Usage})
	}
	fmt.Fprint(out, renderTable([]string{"Key", "Description"}, rows))
}
