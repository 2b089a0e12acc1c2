// Package daemonrun assembles and runs the hopper daemon process.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"hopper/internal/config"
	"hopper/internal/daemon"
	"hopper/internal/ipc"
	"hopper/internal/logging"
	"hopper/internal/mirror"
)

// Options configures daemon process runtime behavior.
type Options struct {
	ConfigPath string
	// AutoStart begins polling as soon as the daemon is up.
	AutoStart bool
}

// PIDPath returns the daemon pid file for cfg.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "hopper.pid")
}

// Run starts the hopper daemon and blocks until SIGINT/SIGTERM or ctx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logger, logPath, err := logging.NewDaemonLogger(cfg, runID)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logSettingsSnapshot(logger, cfg)

	daemonOpts := []daemon.Option{
		daemon.WithConfigPath(opts.ConfigPath),
		daemon.WithLogPath(logPath),
	}
	m, err := mirror.New(signalCtx, cfg.Mirror)
	if err != nil {
		return fmt.Errorf("init mirror: %w", err)
	}
	if m != nil {
		daemonOpts = append(daemonOpts, daemon.WithUploader(m))
	}

	d, err := daemon.New(cfg, logger, daemonOpts...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Error("daemon shutdown incomplete", logging.Error(err))
		}
	}()

	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ipcServer, err := ipc.NewServer(signalCtx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if opts.AutoStart {
		if err := d.Start(signalCtx); err != nil {
			logger.Warn("processing start failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "daemon_start_failed"),
				logging.String(logging.FieldErrorHint, "run `hopper status` to see which directory check failed"),
				logging.String(logging.FieldImpact, "files in the input directory will not be processed"),
			)
		}
	}

	<-signalCtx.Done()
	logger.Info("hopper daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logSettingsSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("settings snapshot",
		logging.String(logging.FieldEventType, "settings_snapshot"),
		logging.String("input_dir", cfg.Paths.InputDir),
		logging.String("output_dir", cfg.Paths.OutputDir),
		logging.String("failed_dir", cfg.Paths.FailedDir),
		logging.String("archive_dir", cfg.Paths.ArchiveDir),
		logging.Any("allowed_extensions", cfg.Validation.AllowedExtensions),
		logging.Int64("max_file_size_bytes", cfg.MaxFileSizeBytes()),
		logging.Int("poll_interval_seconds", cfg.Workflow.PollInterval),
		logging.Bool("catalog_enabled", cfg.Catalog.Enabled),
		logging.String("metrics_listen", cfg.Metrics.Listen),
		logging.String("mirror_bucket", cfg.Mirror.Bucket),
	)
}
