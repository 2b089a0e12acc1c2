package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hopper/internal/checksum"
	"hopper/internal/compress"
	"hopper/internal/fileutil"
	"hopper/internal/ledger"
	"hopper/internal/logging"
	"hopper/internal/policy"
	"hopper/internal/validate"
)

// Recorder stores terminal outcomes.
type Recorder interface {
	Record(ledger.Entry) error
}

// Uploader copies a finished artifact elsewhere. Failures never change the
// file's outcome.
type Uploader interface {
	Upload(ctx context.Context, localPath string) error
}

// Result is the terminal state of one file.
type Result struct {
	File     string
	Outcome  ledger.Outcome
	Reason   string
	Checksum string
	Size     int64
	// Artifacts lists the output files written for a Valid result.
	Artifacts []string
	// Destination is where the original ended up; empty when it stayed in
	// the input directory.
	Destination string
	Err         error
}

// Entry converts the result into a ledger entry.
func (r Result) Entry(batchID string) ledger.Entry {
	return ledger.Entry{
		BatchID:  batchID,
		File:     r.File,
		Outcome:  r.Outcome,
		Reason:   r.Reason,
		Checksum: r.Checksum,
		Size:     r.Size,
	}
}

type trackerKey struct{}

// Tracker remembers the result Process handed to the recorder, so a caller
// recovering from a panic can tell whether the file was already counted.
type Tracker struct {
	result   Result
	recorded bool
}

// WithTracker returns ctx carrying a fresh Tracker. A Tracker belongs to a
// single Process call.
func WithTracker(ctx context.Context) (context.Context, *Tracker) {
	t := &Tracker{}
	return context.WithValue(ctx, trackerKey{}, t), t
}

// Recorded returns the recorded result, if any.
func (t *Tracker) Recorded() (Result, bool) {
	return t.result, t.recorded
}

// Processor is safe for concurrent use. Files whose artifacts share a stem
// are processed one at a time.
type Processor struct {
	recorder Recorder
	uploader Uploader
	logger   *slog.Logger
	stems    stemLocks
}

// Option customizes a Processor.
type Option func(*Processor)

// WithUploader mirrors artifacts of valid files through u.
func WithUploader(u Uploader) Option {
	return func(p *Processor) {
		p.uploader = u
	}
}

// New constructs a processor recording outcomes into recorder.
func New(recorder Recorder, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		recorder: recorder,
		logger:   logging.NewComponentLogger(logger, "processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles path under pol and records the outcome. The returned Result
// is the one recorded.
func (p *Processor) Process(ctx context.Context, path string, pol policy.Policy) Result {
	name := filepath.Base(path)
	ctx = logging.WithFile(ctx, name)
	logger := logging.WithContext(ctx, p.logger)
	start := time.Now()

	check := validate.Validate(path, pol.MaxSizeBytes, pol.AllowedExtensions)
	var res Result
	if check.OK {
		res = p.processValid(ctx, logger, path, pol, check.Size)
	} else {
		res = p.processInvalid(logger, path, pol, check)
	}
	p.record(ctx, logger, res, time.Since(start))
	return res
}

func (p *Processor) processInvalid(logger *slog.Logger, path string, pol policy.Policy, check validate.Result) Result {
	res := Result{
		File:    filepath.Base(path),
		Outcome: ledger.Invalid,
		Reason:  check.Reason,
		Size:    check.Size,
	}
	dest, err := fileutil.MoveInto(path, pol.FailedDir, fileutil.SkipExisting)
	if err != nil {
		return p.unresolved(logger, path, pol, res, fmt.Errorf("move to failed: %w", err), nil)
	}
	res.Destination = dest
	return res
}

func (p *Processor) processValid(ctx context.Context, logger *slog.Logger, path string, pol policy.Policy, size int64) Result {
	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	checksumPath := filepath.Join(pol.OutputDir, stem+".checksum")
	gzipPath := filepath.Join(pol.OutputDir, stem+".gz")
	res := Result{File: name, Outcome: ledger.Valid, Size: size}

	release, shared := p.stems.acquire(filepath.Join(pol.OutputDir, stem))
	defer release()
	if shared {
		logging.WarnWithContext(logger, "output artifacts shared with another file", "artifact_collision",
			logging.String("stem", stem),
			logging.String(logging.FieldImpact, "artifacts hold whichever file finishes last"),
			logging.String(logging.FieldErrorHint, "give input files distinct base names"),
		)
	}

	sum, err := checksum.WriteFile(path, checksumPath)
	if err != nil {
		return p.unresolved(logger, path, pol, res, err, []string{checksumPath})
	}
	res.Checksum = sum
	logger.Debug("checksum written", logging.String("path", checksumPath))

	if err := compress.File(path, gzipPath); err != nil {
		return p.unresolved(logger, path, pol, res, err, []string{checksumPath, gzipPath})
	}
	logger.Debug("compressed copy written", logging.String("path", gzipPath))

	dest, err := fileutil.MoveInto(path, pol.ArchiveDir, fileutil.SkipExisting)
	if err != nil {
		return p.unresolved(logger, path, pol, res, fmt.Errorf("archive: %w", err), []string{checksumPath, gzipPath})
	}
	res.Destination = dest
	res.Artifacts = []string{checksumPath, gzipPath}

	p.mirror(ctx, logger, res.Artifacts)
	return res
}

// unresolved removes partial artifacts and tries to park the original in the
// failed directory. If that also fails the original stays where it is.
func (p *Processor) unresolved(logger *slog.Logger, path string, pol policy.Policy, res Result, cause error, artifacts []string) Result {
	for _, artifact := range artifacts {
		if err := os.Remove(artifact); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("partial artifact left behind",
				logging.String("path", artifact),
				logging.Error(err),
				logging.String(logging.FieldEventType, "artifact_cleanup_failed"),
				logging.String(logging.FieldImpact, "output directory holds an incomplete artifact"),
				logging.String(logging.FieldErrorHint, "remove the file manually"),
			)
		}
	}

	res.Outcome = ledger.Unresolved
	res.Reason = cause.Error()
	res.Err = cause
	res.Checksum = ""
	res.Artifacts = nil

	if _, statErr := os.Stat(path); statErr == nil {
		dest, err := fileutil.MoveInto(path, pol.FailedDir, fileutil.SkipExisting)
		if err != nil {
			res.Err = errors.Join(cause, fmt.Errorf("fallback to failed: %w", err))
		} else {
			res.Destination = dest
		}
	}

	logging.ErrorWithContext(logger, "file processing failed", "file_unresolved",
		logging.String(logging.FieldOutcome, res.Outcome.String()),
		logging.Error(res.Err),
		logging.String("destination", res.Destination),
		logging.String(logging.FieldErrorHint, "check permissions and free space on the managed directories"),
	)
	return res
}

func (p *Processor) mirror(ctx context.Context, logger *slog.Logger, artifacts []string) {
	if p.uploader == nil {
		return
	}
	for _, artifact := range artifacts {
		if err := p.uploader.Upload(ctx, artifact); err != nil {
			logging.WarnWithContext(logger, "artifact mirror upload failed", "mirror_upload_failed",
				logging.String("path", artifact),
				logging.Error(err),
				logging.String(logging.FieldImpact, "artifact exists locally but not in the mirror bucket"),
				logging.String(logging.FieldErrorHint, "check mirror bucket credentials and connectivity"),
			)
		}
	}
}

func (p *Processor) record(ctx context.Context, logger *slog.Logger, res Result, elapsed time.Duration) {
	batchID, _ := logging.BatchIDFromContext(ctx)
	// Marked before Record: the ledger counts before it calls its sinks.
	if t, ok := ctx.Value(trackerKey{}).(*Tracker); ok {
		t.result, t.recorded = res, true
	}
	if p.recorder != nil {
		// The ledger logs its own write failures; the outcome is counted regardless.
		_ = p.recorder.Record(res.Entry(batchID))
	}
	if res.Outcome == ledger.Unresolved {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldOutcome, res.Outcome.String()),
		logging.Duration("duration", elapsed),
		logging.String(logging.FieldEventType, "file_processed"),
	}
	if res.Reason != "" {
		attrs = append(attrs, logging.String(logging.FieldReason, res.Reason))
	}
	logger.Info("file processed", logging.Args(attrs...)...)
}
