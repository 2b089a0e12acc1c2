// Package policy holds the live operator settings and hands out immutable
// per-batch snapshots of them.
package policy

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"hopper/internal/config"
	"hopper/internal/validate"
)

// Policy is the value-type view of the settings a batch runs with.
type Policy struct {
	InputDir          string
	OutputDir         string
	FailedDir         string
	ArchiveDir        string
	LogDir            string
	MaxSizeBytes      int64
	AllowedExtensions []string
	HistorySize       int
	PollInterval      time.Duration
}

// Key describes one operator-settable key.
type Key struct {
	Name    string
	Aliases []string
	Usage   string
}

// Keys lists the keys accepted by Apply, in display order.
var Keys = []Key{
	{Name: "input", Usage: "input directory polled for new files"},
	{Name: "output", Usage: "directory receiving .checksum and .gz artifacts"},
	{Name: "failed", Usage: "directory receiving rejected files"},
	{Name: "archive", Usage: "directory receiving originals of valid files"},
	{Name: "addext", Usage: "allow an extension, e.g. csv or .csv"},
	{Name: "delext", Usage: "disallow an extension"},
	{Name: "history", Aliases: []string{"job_num"}, Usage: "number of recent outcomes kept for status"},
	{Name: "mb", Usage: "maximum file size in megabytes"},
	{Name: "logfile", Usage: "history log file name inside the log directory"},
	{Name: "interval", Usage: "poll interval in seconds"},
}

// ErrUnknownKey is returned by Apply for keys not listed in Keys.
var ErrUnknownKey = errors.New("unknown setting")

// Change reports what Apply modified.
type Change struct {
	Key      string
	Previous string
	Current  string
}

// Settings guards the mutable configuration. Reads take snapshots; writes are
// validated against a copy before they are committed.
type Settings struct {
	mu  sync.RWMutex
	cfg config.Config
}

// NewSettings wraps a copy of cfg.
func NewSettings(cfg *config.Config) *Settings {
	return &Settings{cfg: cfg.Clone()}
}

// Snapshot returns the policy for the next batch.
func (s *Settings) Snapshot() Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Policy{
		InputDir:          s.cfg.Paths.InputDir,
		OutputDir:         s.cfg.Paths.OutputDir,
		FailedDir:         s.cfg.Paths.FailedDir,
		ArchiveDir:        s.cfg.Paths.ArchiveDir,
		LogDir:            s.cfg.Paths.LogDir,
		MaxSizeBytes:      s.cfg.MaxFileSizeBytes(),
		AllowedExtensions: slices.Clone(s.cfg.Validation.AllowedExtensions),
		HistorySize:       s.cfg.Workflow.HistorySize,
		PollInterval:      time.Duration(s.cfg.Workflow.PollInterval) * time.Second,
	}
}

// Config returns a deep copy of the current configuration.
func (s *Settings) Config() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// HistoryLogPath returns the current history log location.
func (s *Settings) HistoryLogPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.HistoryLogPath()
}

// Apply sets key to value. Directory keys create the directory if needed.
func (s *Settings) Apply(key, value string) (Change, error) {
	name, ok := canonicalKey(key)
	if !ok {
		return Change{}, fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return Change{}, fmt.Errorf("%s: value is required", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.Clone()
	change := Change{Key: name}
	switch name {
	case "input", "output", "failed", "archive":
		dir, err := config.ExpandPath(value)
		if err != nil {
			return Change{}, fmt.Errorf("%s: %w", name, err)
		}
		target := dirField(&next, name)
		change.Previous, change.Current = *target, dir
		*target = dir
	case "addext":
		ext := validate.NormalizeExtension(value)
		change.Previous = strings.Join(next.Validation.AllowedExtensions, ",")
		if !slices.Contains(next.Validation.AllowedExtensions, ext) {
			next.Validation.AllowedExtensions = append(next.Validation.AllowedExtensions, ext)
		}
		change.Current = strings.Join(next.Validation.AllowedExtensions, ",")
	case "delext":
		ext := validate.NormalizeExtension(value)
		change.Previous = strings.Join(next.Validation.AllowedExtensions, ",")
		next.Validation.AllowedExtensions = slices.DeleteFunc(next.Validation.AllowedExtensions, func(e string) bool {
			return e == ext
		})
		change.Current = strings.Join(next.Validation.AllowedExtensions, ",")
	case "history":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return Change{}, fmt.Errorf("history: expected a positive integer, got %q", value)
		}
		change.Previous = strconv.Itoa(next.Workflow.HistorySize)
		next.Workflow.HistorySize = n
		change.Current = value
	case "mb":
		mb, err := strconv.ParseFloat(value, 64)
		if err != nil || mb <= 0 {
			return Change{}, fmt.Errorf("mb: expected a positive number, got %q", value)
		}
		change.Previous = strconv.FormatFloat(next.Validation.MaxFileSizeMB, 'f', -1, 64)
		next.Validation.MaxFileSizeMB = mb
		change.Current = strconv.FormatFloat(mb, 'f', -1, 64)
	case "logfile":
		change.Previous = next.Logging.HistoryFile
		next.Logging.HistoryFile = value
		change.Current = value
	case "interval":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return Change{}, fmt.Errorf("interval: expected a positive integer, got %q", value)
		}
		change.Previous = strconv.Itoa(next.Workflow.PollInterval)
		next.Workflow.PollInterval = n
		change.Current = value
	}

	if err := next.Validate(); err != nil {
		return Change{}, err
	}
	if isDirKey(name) {
		if err := os.MkdirAll(change.Current, 0o755); err != nil {
			return Change{}, fmt.Errorf("%s: create directory: %w", name, err)
		}
	}
	s.cfg = next
	return change, nil
}

func canonicalKey(key string) (string, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, k := range Keys {
		if k.Name == key || slices.Contains(k.Aliases, key) {
			return k.Name, true
		}
	}
	return "", false
}

func isDirKey(name string) bool {
	switch name {
	case "input", "output", "failed", "archive":
		return true
	}
	return false
}

func dirField(cfg *config.Config, name string) *string {
	switch name {
	case "input":
		return &cfg.Paths.InputDir
	case "output":
		return &cfg.Paths.OutputDir
	case "failed":
		return &cfg.Paths.FailedDir
	default:
		return &cfg.Paths.ArchiveDir
	}
}
