package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hopper/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var autoStart bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the hopper daemon in the foreground",
		Long: "Run the hopper daemon in the foreground. Polling begins when a client sends\n" +
			"`hopper start`, or immediately with --start.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				ConfigPath: ctx.persistPath(),
				AutoStart:  autoStart,
			})
		},
	}
	cmd.Flags().BoolVar(&autoStart, "start", false, "Begin polling immediately")
	return cmd
}
