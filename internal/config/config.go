package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// ErrMalformed marks a settings file that exists but cannot be decoded.
var ErrMalformed = errors.New("malformed settings file")

// Paths contains the managed directories and the daemon control socket.
type Paths struct {
	InputDir   string `toml:"input_dir"`
	OutputDir  string `toml:"output_dir"`
	FailedDir  string `toml:"failed_dir"`
	ArchiveDir string `toml:"archive_dir"`
	LogDir     string `toml:"log_dir"`
	SocketPath string `toml:"socket_path"`
}

// Validation contains the file admission policy.
type Validation struct {
	// MaxFileSizeMB is compared against the file size in bytes after
	// multiplying by 1024*1024.
	MaxFileSizeMB float64 `toml:"max_file_size_mb"`
	// AllowedExtensions are stored with a leading dot and case-folded.
	AllowedExtensions []string `toml:"allowed_extensions"`
}

// Workflow contains scheduler timing and status retention.
type Workflow struct {
	PollInterval int `toml:"poll_interval"`
	HistorySize  int `toml:"history_size"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
	HistoryFile   string `toml:"history_file"`
	ErrorFile     string `toml:"error_file"`
}

// Catalog controls the persistent SQLite record of processed files.
type Catalog struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Metrics controls the Prometheus endpoint. An empty Listen disables it.
type Metrics struct {
	Listen string `toml:"listen"`
}

// Mirror controls the optional S3 copy of output artifacts. An empty Bucket
// disables it.
type Mirror struct {
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
	Region string `toml:"region"`
}

// Notifications controls ntfy batch alerts. An empty NtfyTopic disables them.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	FailuresOnly   bool   `toml:"failures_only"`
}

// Config encapsulates all configuration values for hopper.
//
// Configuration sections by subsystem:
//   - Paths: managed directories and the IPC socket
//   - Validation: size and extension admission policy
//   - Workflow: poll interval and status history size
//   - Logging: log format, level, retention, history/error filenames
//   - Catalog: SQLite outcome catalog
//   - Metrics: Prometheus listen address
//   - Mirror: S3 artifact mirror
//   - Notifications: ntfy batch alerts
type Config struct {
	Paths      Paths      `toml:"paths"`
	Validation Validation `toml:"validation"`
	Workflow   Workflow   `toml:"workflow"`
	Logging    Logging    `toml:"logging"`
	Catalog    Catalog    `toml:"catalog"`
	Metrics    Metrics    `toml:"metrics"`
	Mirror     Mirror     `toml:"mirror"`

	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		if err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil {
			return nil, resolvedPath, exists, fmt.Errorf("%w: parse config %s: %w", ErrMalformed, resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// LoadOrDefault behaves like Load but falls back to the default settings when
// the file cannot be parsed. The parse error is still returned so callers can
// warn about it; cfg is non-nil whenever errors.Is(err, ErrMalformed).
func LoadOrDefault(path string) (*Config, string, bool, error) {
	cfg, resolved, exists, err := Load(path)
	if err == nil || !errors.Is(err, ErrMalformed) {
		return cfg, resolved, exists, err
	}
	fallback := Default()
	if normErr := fallback.normalize(); normErr != nil {
		return nil, resolved, exists, normErr
	}
	return &fallback, resolved, exists, err
}

// Save writes the configuration to path as TOML, creating parent directories.
func (c *Config) Save(path string) error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(path) == "" {
		return errors.New("config path is empty")
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() Config {
	clone := *c
	clone.Validation.AllowedExtensions = append([]string(nil), c.Validation.AllowedExtensions...)
	return clone
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(defaultProjectConfigFile)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the managed directories. It is idempotent.
func (c *Config) EnsureDirectories() error {
	for _, dir := range c.ManagedDirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ManagedDirs lists the directories hopper reads from and writes to.
func (c *Config) ManagedDirs() []string {
	return []string{
		c.Paths.InputDir,
		c.Paths.OutputDir,
		c.Paths.FailedDir,
		c.Paths.ArchiveDir,
		c.Paths.LogDir,
	}
}

// MaxFileSizeBytes converts the configured megabyte limit to bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(math.Floor(c.Validation.MaxFileSizeMB * 1024 * 1024))
}

// HistoryLogPath returns the append-only outcome history file.
func (c *Config) HistoryLogPath() string {
	return filepath.Join(c.Paths.LogDir, c.Logging.HistoryFile)
}

// ErrorLogPath returns the append-only error log file.
func (c *Config) ErrorLogPath() string {
	return filepath.Join(c.Paths.LogDir, c.Logging.ErrorFile)
}

// CatalogPath returns the SQLite catalog location.
func (c *Config) CatalogPath() string {
	if strings.TrimSpace(c.Catalog.Path) != "" {
		return c.Catalog.Path
	}
	return filepath.Join(c.Paths.LogDir, defaultCatalogFile)
}

// LockPath returns the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "hopper.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
