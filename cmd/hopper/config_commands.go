package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hopper/internal/config"
	"hopper/internal/ipc"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintf(out, "Drop files into the input directory after running `hopper start --config %s`.\n", filepath.Clean(target))
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file and create the managed directories",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, resolved, exists, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", resolved)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the live settings (or the file's when the daemon is down)",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, source := liveOrFileConfig(ctx)
			if jsonOut {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Source: %s\n", source)
			printConfig(out, resp)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output settings as JSON")
	return cmd
}

func liveOrFileConfig(ctx *commandContext) (*ipc.ConfigResponse, string) {
	if client, err := ctx.dialClient(); err == nil {
		defer client.Close()
		if resp, err := client.Config(); err == nil {
			return resp, "daemon"
		}
	}
	return configResponse(ctx.configValue()), ctx.resolvedConfigPath()
}

func configResponse(cfg *config.Config) *ipc.ConfigResponse {
	return &ipc.ConfigResponse{
		InputDir:          cfg.Paths.InputDir,
		OutputDir:         cfg.Paths.OutputDir,
		FailedDir:         cfg.Paths.FailedDir,
		ArchiveDir:        cfg.Paths.ArchiveDir,
		LogDir:            cfg.Paths.LogDir,
		MaxFileSizeMB:     cfg.Validation.MaxFileSizeMB,
		AllowedExtensions: cfg.Validation.AllowedExtensions,
		HistorySize:       cfg.Workflow.HistorySize,
		PollInterval:      cfg.Workflow.PollInterval,
		HistoryFile:       cfg.Logging.HistoryFile,
		ErrorFile:         cfg.Logging.ErrorFile,
	}
}

func printConfig(out io.Writer, resp *ipc.ConfigResponse) {
	maxBytes := uint64(resp.MaxFileSizeMB * 1024 * 1024)
	rows := [][]string{
		{"input", resp.InputDir},
		{"output", resp.OutputDir},
		{"failed", resp.FailedDir},
		{"archive", resp.ArchiveDir},
		{"log dir", resp.LogDir},
		{"mb", fmt.Sprintf("%s (%s)", strconv.FormatFloat(resp.MaxFileSizeMB, 'f', -1, 64), humanize.IBytes(maxBytes))},
		{"extensions", strings.Join(resp.AllowedExtensions, ", ")},
		{"history", strconv.Itoa(resp.HistorySize)},
		{"interval", fmt.Sprintf("%ds", resp.PollInterval)},
		{"logfile", resp.HistoryFile},
		{"error log", resp.ErrorFile},
	}
	fmt.Fprint(out, renderTable([]string{"Setting", "Value"}, rows))
}
