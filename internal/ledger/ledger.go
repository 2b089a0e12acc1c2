package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hopper/internal/logging"
)

// Sink receives every recorded entry after the ledger lock is released.
type Sink interface {
	Append(Entry)
}

// Snapshot is a consistent copy of the ledger state.
type Snapshot struct {
	Processed   int64
	Valid       int64
	Failed      int64
	InFlight    int
	HistorySize int
	History     []string
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used for history file failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the timestamp source for entries without one.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu          sync.Mutex
	size        int
	window      []Entry
	processed   int64
	valid       int64
	failed      int64
	inFlight    int
	historyPath string
	history     *os.File
	sinks       []Sink
	logger      *slog.Logger
	now         func() time.Time
}

// New constructs a ledger keeping the last size entries. When historyPath is
// non-empty every entry is also appended to that file.
func New(size int, historyPath string, opts ...Option) (*Ledger, error) {
	if size < 1 {
		return nil, fmt.Errorf("history size must be at least 1, got %d", size)
	}
	l := &Ledger{
		size:   size,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if historyPath != "" {
		if err := l.SetHistoryPath(historyPath); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Record registers a terminal outcome: counter, window, history file and then
// sinks. A history file write failure is logged and returned, but the entry is
// still counted.
func (l *Ledger) Record(entry Entry) error {
	if entry.Time.IsZero() {
		entry.Time = l.now().UTC()
	}

	l.mu.Lock()
	if entry.Outcome == Valid {
		l.valid++
	} else {
		l.failed++
	}
	if len(l.window) == l.size {
		copy(l.window, l.window[1:])
		l.window = l.window[:l.size-1]
	}
	l.window = append(l.window, entry)

	var writeErr error
	if l.history != nil {
		if _, err := l.history.WriteString(entry.Line() + "\n"); err != nil {
			writeErr = fmt.Errorf("append history %s: %w", l.historyPath, err)
		}
	}
	sinks := append([]Sink(nil), l.sinks...)
	l.mu.Unlock()

	if writeErr != nil {
		logging.ErrorWithContext(l.logger, "history log write failed", "ledger_history_write",
			logging.String(logging.FieldFile, entry.File),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the log directory"),
			logging.Error(writeErr),
		)
	}

	for _, sink := range sinks {
		sink.Append(entry)
	}
	return writeErr
}

// SetInFlight replaces the in-flight count.
func (l *Ledger) SetInFlight(n int) {
	l.mu.Lock()
	l.inFlight = n
	l.mu.Unlock()
}

// AddProcessed adds n to the cumulative processed counter.
func (l *Ledger) AddProcessed(n int) {
	l.mu.Lock()
	l.processed += int64(n)
	l.mu.Unlock()
}

// Resize changes the window size. Shrinking drops the oldest entries.
func (l *Ledger) Resize(size int) error {
	if size < 1 {
		return fmt.Errorf("history size must be at least 1, got %d", size)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.size = size
	if excess := len(l.window) - size; excess > 0 {
		l.window = append([]Entry(nil), l.window[excess:]...)
	}
	return nil
}

// SetHistoryPath switches the history log to path, closing the previous file.
func (l *Ledger) SetHistoryPath(path string) error {
	if path == "" {
		return errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history log: %w", err)
	}

	l.mu.Lock()
	prev := l.history
	l.history = f
	l.historyPath = path
	l.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// HistoryPath returns the current history log path, or "" when disabled.
func (l *Ledger) HistoryPath() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.historyPath
}

// AddSink wires an additional sink that receives every recorded entry.
func (l *Ledger) AddSink(sink Sink) {
	if sink == nil {
		return
	}
	l.mu.Lock()
	l.sinks = append(l.sinks, sink)
	l.mu.Unlock()
}

// Snapshot returns counters and the history window in one consistent read.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		Processed:   l.processed,
		Valid:       l.valid,
		Failed:      l.failed,
		InFlight:    l.inFlight,
		HistorySize: l.size,
		History:     l.linesLocked(),
	}
}

// History returns the window lines, oldest first.
func (l *Ledger) History() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.linesLocked()
}

// Entries returns a copy of the window entries, oldest first.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.window...)
}

func (l *Ledger) linesLocked() []string {
	lines := make([]string, len(l.window))
	for i, entry := range l.window {
		lines[i] = entry.Line()
	}
	return lines
}

// Close releases the history log file.
func (l *Ledger) Close() error {
	l.mu.Lock()
	f := l.history
	l.history = nil
	l.mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}
