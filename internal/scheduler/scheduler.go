package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"hopper/internal/ledger"
	"hopper/internal/logging"
	"hopper/internal/policy"
	"hopper/internal/processor"
)

// ErrAlreadyRunning is returned by Start when the loop is active.
var ErrAlreadyRunning = errors.New("scheduler already running")

// PolicySource supplies the settings snapshot for each batch.
type PolicySource interface {
	Snapshot() policy.Policy
}

// FileProcessor handles one file and records its outcome.
type FileProcessor interface {
	Process(ctx context.Context, path string, pol policy.Policy) processor.Result
}

// Ledger receives batch-level counters and outcomes the processor could not record.
type Ledger interface {
	SetInFlight(n int)
	AddProcessed(n int)
	Record(ledger.Entry) error
}

// BatchReport summarizes one poll cycle.
type BatchReport struct {
	ID         string
	Started    time.Time
	Duration   time.Duration
	Files      int
	Valid      int
	Invalid    int
	Unresolved int
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running   bool
	Batches   int64
	LastBatch BatchReport
	LastError string
}

// Scheduler runs batches until stopped or until the input directory cannot be
// listed.
type Scheduler struct {
	policy    PolicySource
	processor FileProcessor
	ledger    Ledger
	logger    *slog.Logger

	// batchMu keeps batches strictly sequential across the loop and RunOnce.
	batchMu sync.Mutex

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastBatch BatchReport
	batches   int64
	observers []func(BatchReport)
	onFailure []func(error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithBatchObserver registers fn to be called after every non-empty batch.
func WithBatchObserver(fn func(BatchReport)) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// WithFailureObserver registers fn to be called when polling stops on an error.
func WithFailureObserver(fn func(error)) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.onFailure = append(s.onFailure, fn)
		}
	}
}

// New constructs a scheduler.
func New(policy PolicySource, proc FileProcessor, l Ledger, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		policy:    policy,
		processor: proc,
		ledger:    l,
		logger:    logging.NewComponentLogger(logger, "scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins polling in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.lastErr = nil
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(runCtx)
	s.logger.Info("scheduler started", logging.String(logging.FieldEventType, "scheduler_started"))
	return nil
}

// Stop ends polling and waits for the current batch to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped", logging.String(logging.FieldEventType, "scheduler_stopped"))
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Status returns the latest scheduler information.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := Status{
		Running:   s.running,
		Batches:   s.batches,
		LastBatch: s.lastBatch,
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.running = false
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		s.batchMu.Lock()
		pol := s.policy.Snapshot()
		// Tasks must not observe Stop; the batch drains instead.
		_, err := s.runBatch(context.WithoutCancel(ctx), pol)
		s.batchMu.Unlock()
		if err != nil {
			s.setLastError(err)
			logging.ErrorWithContext(s.logger, "input directory listing failed; polling stopped", "scheduler_failed",
				logging.Error(err),
				logging.String("input_dir", pol.InputDir),
				logging.String(logging.FieldErrorHint, "fix the input directory and run `hopper start`"),
			)
			for _, fn := range s.onFailure {
				fn(err)
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(pol.PollInterval):
		}
	}
}

// RunOnce processes a single batch synchronously with the current policy.
// When the poll loop is mid-batch, RunOnce waits for that batch to finish
// and then lists the input directory again.
func (s *Scheduler) RunOnce(ctx context.Context) (BatchReport, error) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return s.runBatch(ctx, s.policy.Snapshot())
}

// runBatch must be called with batchMu held.
func (s *Scheduler) runBatch(ctx context.Context, pol policy.Policy) (BatchReport, error) {
	files, err := ListFiles(pol.InputDir)
	if err != nil {
		return BatchReport{}, err
	}
	report := BatchReport{
		ID:      uuid.NewString(),
		Started: time.Now(),
		Files:   len(files),
	}
	if len(files) == 0 {
		return report, nil
	}

	ctx = logging.WithBatchID(ctx, report.ID)
	logger := logging.WithContext(ctx, s.logger)
	logger.Debug("batch started", logging.Int("files", len(files)))

	results := make([]processor.Result, len(files))
	s.ledger.SetInFlight(len(files))
	var wg sync.WaitGroup
	for i, path := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.processFile(ctx, logger, path, pol)
		}()
	}
	wg.Wait()
	s.ledger.SetInFlight(0)
	s.ledger.AddProcessed(len(files))

	for _, res := range results {
		switch res.Outcome {
		case ledger.Valid:
			report.Valid++
		case ledger.Invalid:
			report.Invalid++
		default:
			report.Unresolved++
		}
	}
	report.Duration = time.Since(report.Started)

	s.mu.Lock()
	s.lastBatch = report
	s.batches++
	s.mu.Unlock()
	for _, fn := range s.observers {
		fn(report)
	}

	logger.Info("batch complete",
		logging.Int("files", report.Files),
		logging.Int("valid", report.Valid),
		logging.Int("failed", report.Invalid+report.Unresolved),
		logging.Duration("duration", report.Duration),
		logging.String(logging.FieldEventType, "batch_complete"),
	)
	return report, nil
}

func (s *Scheduler) processFile(ctx context.Context, logger *slog.Logger, path string, pol policy.Policy) (res processor.Result) {
	ctx, tracker := processor.WithTracker(ctx)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic while processing: %v", r)
			if recorded, ok := tracker.Recorded(); ok {
				res = recorded
				logging.ErrorWithContext(logger, "file processing panicked after its outcome was recorded", "file_panic",
					logging.String(logging.FieldFile, recorded.File),
					logging.String(logging.FieldOutcome, recorded.Outcome.String()),
					logging.Error(err),
				)
				return
			}
			res = processor.Result{File: filepath.Base(path), Outcome: ledger.Unresolved, Reason: err.Error(), Err: err}
			batchID, _ := logging.BatchIDFromContext(ctx)
			_ = s.ledger.Record(res.Entry(batchID))
			logging.ErrorWithContext(logger, "file processing panicked", "file_panic",
				logging.String(logging.FieldFile, res.File),
				logging.Error(err),
			)
		}
	}()
	return s.processor.Process(ctx, path, pol)
}

func (s *Scheduler) setLastError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// ListFiles returns the regular files directly inside dir, sorted by name.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list input directory: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}
