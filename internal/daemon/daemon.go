package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"hopper/internal/catalog"
	"hopper/internal/config"
	"hopper/internal/ledger"
	"hopper/internal/logging"
	"hopper/internal/metrics"
	"hopper/internal/notifications"
	"hopper/internal/policy"
	"hopper/internal/preflight"
	"hopper/internal/processor"
	"hopper/internal/scheduler"
)

var (
	// ErrLocked is returned by New when another daemon holds the lock.
	ErrLocked = errors.New("another hopper daemon instance is already running")
	// ErrAlreadyRunning is returned by Start when processing is active.
	ErrAlreadyRunning = errors.New("processing already running")
	// ErrCatalogDisabled is returned by catalog queries when no catalog is open.
	ErrCatalogDisabled = errors.New("catalog disabled")
)

// Option customizes daemon construction.
type Option func(*Daemon)

// WithUploader mirrors output artifacts through u after each valid file.
func WithUploader(u processor.Uploader) Option {
	return func(d *Daemon) {
		d.uploader = u
	}
}

// WithNotifier replaces the notifier built from the notifications config.
func WithNotifier(n notifications.Notifier) Option {
	return func(d *Daemon) {
		d.notifier = n
	}
}

// WithConfigPath sets the file that settings changes are saved to on Close.
func WithConfigPath(path string) Option {
	return func(d *Daemon) {
		d.configPath = strings.TrimSpace(path)
	}
}

// WithLogPath records the run log location reported by Status.
func WithLogPath(path string) Option {
	return func(d *Daemon) {
		d.logPath = path
	}
}

// Daemon owns the processing pipeline for one hopper process.
type Daemon struct {
	logger     *slog.Logger
	configPath string
	logPath    string
	uploader   processor.Uploader
	notifier   notifications.Notifier

	settings   *policy.Settings
	ledger     *ledger.Ledger
	catalog    *catalog.Store
	scheduler  *scheduler.Scheduler
	collector  *metrics.Collector
	metricsSrv *metrics.Server

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	dirty     bool
	closeOnce sync.Once
	closeErr  error
}

// Status represents daemon runtime information.
type Status struct {
	Running     bool
	PID         int
	Scheduler   scheduler.Status
	Counters    ledger.Snapshot
	Policy      policy.Policy
	Preflight   []preflight.Result
	ConfigPath  string
	LockPath    string
	LogPath     string
	HistoryPath string
	CatalogPath string
	MetricsAddr string
}

// New builds the pipeline from cfg and acquires the single-instance lock.
// The managed directories are created when missing.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	d := &Daemon{
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	if err := d.build(cfg, logger); err != nil {
		if d.catalog != nil {
			_ = d.catalog.Close()
		}
		if d.ledger != nil {
			_ = d.ledger.Close()
		}
		d.release()
		return nil, err
	}
	d.logger.Info("hopper daemon ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("input_dir", cfg.Paths.InputDir),
		logging.String("lock", d.lockPath),
		logging.Bool("catalog", d.catalog != nil),
		logging.Bool("mirror", d.uploader != nil),
	)
	return d, nil
}

func (d *Daemon) build(cfg *config.Config, logger *slog.Logger) error {
	l, err := ledger.New(cfg.Workflow.HistorySize, cfg.HistoryLogPath(), ledger.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	d.ledger = l

	if cfg.Catalog.Enabled {
		store, err := catalog.Open(cfg.CatalogPath(), logger)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		d.catalog = store
		l.AddSink(store)
	}

	d.settings = policy.NewSettings(cfg)
	var procOpts []processor.Option
	if d.uploader != nil {
		procOpts = append(procOpts, processor.WithUploader(d.uploader))
	}
	proc := processor.New(l, logger, procOpts...)

	if d.notifier == nil {
		d.notifier = notifications.New(cfg.Notifications)
	}
	d.collector = metrics.New(l)
	d.scheduler = scheduler.New(d.settings, proc, l, logger,
		scheduler.WithBatchObserver(d.collector.ObserveBatch),
		scheduler.WithBatchObserver(d.notifyBatch),
		scheduler.WithFailureObserver(d.notifyFailure),
	)

	if cfg.Metrics.Listen != "" {
		srv, err := d.collector.Listen(cfg.Metrics.Listen, logger)
		if err != nil {
			return fmt.Errorf("start metrics endpoint: %w", err)
		}
		d.metricsSrv = srv
	}
	return nil
}

func (d *Daemon) notifyBatch(report scheduler.BatchReport) {
	if err := d.notifier.NotifyBatch(context.Background(), report); err != nil {
		logging.WarnWithContext(d.logger, "batch notification failed", "notification_failed",
			logging.Error(err),
			logging.String("batch_id", report.ID),
			logging.String(logging.FieldImpact, "operator not alerted about this batch"),
		)
	}
}

func (d *Daemon) notifyFailure(cause error) {
	if err := d.notifier.NotifyError(context.Background(), cause, "polling the input directory"); err != nil {
		logging.WarnWithContext(d.logger, "failure notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "operator not alerted that polling stopped"),
		)
	}
}

// Start runs preflight checks against the current policy and begins polling.
func (d *Daemon) Start(ctx context.Context) error {
	if d.scheduler.Running() {
		return ErrAlreadyRunning
	}
	if err := preflight.Err(preflight.RunAll(d.settings.Snapshot())); err != nil {
		logging.WarnWithContext(d.logger, "processing not started", "daemon_start_refused",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "create the missing directories or fix their permissions"),
		)
		return err
	}
	if err := d.scheduler.Start(ctx); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			return ErrAlreadyRunning
		}
		return err
	}
	return nil
}

// Stop ends polling after the current batch drains.
func (d *Daemon) Stop() {
	d.scheduler.Stop()
}

// RunOnce processes whatever is in the input directory right now.
func (d *Daemon) RunOnce(ctx context.Context) (scheduler.BatchReport, error) {
	return d.scheduler.RunOnce(ctx)
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	pol := d.settings.Snapshot()
	status := Status{
		Running:     d.scheduler.Running(),
		PID:         os.Getpid(),
		Scheduler:   d.scheduler.Status(),
		Counters:    d.ledger.Snapshot(),
		Policy:      pol,
		Preflight:   preflight.RunAll(pol),
		ConfigPath:  d.configPath,
		LockPath:    d.lockPath,
		LogPath:     d.logPath,
		HistoryPath: d.ledger.HistoryPath(),
	}
	if d.catalog != nil {
		status.CatalogPath = d.catalog.Path()
	}
	if d.metricsSrv != nil {
		status.MetricsAddr = d.metricsSrv.Addr()
	}
	return status
}

// History returns the formatted outcome window, oldest first.
func (d *Daemon) History() []string {
	return d.ledger.History()
}

// Config returns a copy of the live settings.
func (d *Daemon) Config() config.Config {
	return d.settings.Config()
}

// Set applies one operator setting. The history window and history log
// follow the change immediately; everything else applies from the next batch.
func (d *Daemon) Set(key, value string) (policy.Change, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	change, err := d.settings.Apply(key, value)
	if err != nil {
		return policy.Change{}, err
	}
	switch change.Key {
	case "history":
		if err := d.ledger.Resize(d.settings.Snapshot().HistorySize); err != nil {
			return change, err
		}
	case "logfile":
		if err := d.ledger.SetHistoryPath(d.settings.HistoryLogPath()); err != nil {
			return change, err
		}
	}
	d.dirty = true
	d.logger.Info("setting changed",
		logging.String(logging.FieldEventType, "setting_changed"),
		logging.String("key", change.Key),
		logging.String("previous", change.Previous),
		logging.String("current", change.Current),
	)
	return change, nil
}

// CatalogRecent returns the newest catalog records.
func (d *Daemon) CatalogRecent(ctx context.Context, limit int) ([]catalog.Record, error) {
	if d.catalog == nil {
		return nil, ErrCatalogDisabled
	}
	return d.catalog.Recent(ctx, limit)
}

// CatalogStats returns per-outcome totals across all runs.
func (d *Daemon) CatalogStats(ctx context.Context) (map[ledger.Outcome]int, error) {
	if d.catalog == nil {
		return nil, ErrCatalogDisabled
	}
	return d.catalog.Stats(ctx)
}

// Close stops processing, saves changed settings and releases resources.
func (d *Daemon) Close() error {
	d.closeOnce.Do(func() {
		d.Stop()
		var errs []error
		if d.metricsSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			errs = append(errs, d.metricsSrv.Shutdown(ctx))
			cancel()
		}
		errs = append(errs, d.saveSettings())
		if d.catalog != nil {
			errs = append(errs, d.catalog.Close())
		}
		errs = append(errs, d.ledger.Close())
		d.release()
		d.closeErr = errors.Join(errs...)
		d.logger.Info("hopper daemon closed", logging.String(logging.FieldEventType, "daemon_closed"))
	})
	return d.closeErr
}

func (d *Daemon) saveSettings() error {
	d.mu.Lock()
	dirty := d.dirty
	d.mu.Unlock()
	if !dirty || d.configPath == "" {
		return nil
	}
	// An operator may have broken the file while the daemon ran.
	if _, _, _, err := config.Load(d.configPath); errors.Is(err, config.ErrMalformed) {
		logging.WarnWithContext(d.logger, "settings not saved", "settings_save_skipped",
			logging.String("path", d.configPath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "operator changes from this run are lost"),
			logging.String(logging.FieldErrorHint, "fix the config file and reapply the settings"),
		)
		return fmt.Errorf("save settings: %s is malformed; not overwriting it", d.configPath)
	}
	cfg := d.settings.Config()
	if err := cfg.Save(d.configPath); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	d.logger.Info("settings saved", logging.String("path", d.configPath))
	return nil
}

func (d *Daemon) release() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_lock_release_failed"),
			logging.String(logging.FieldImpact, "the next daemon start may report a stale lock"),
		)
	}
}
