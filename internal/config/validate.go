package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateValidation(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	named := []struct {
		key   string
		value string
	}{
		{"paths.input_dir", c.Paths.InputDir},
		{"paths.output_dir", c.Paths.OutputDir},
		{"paths.failed_dir", c.Paths.FailedDir},
		{"paths.archive_dir", c.Paths.ArchiveDir},
		{"paths.log_dir", c.Paths.LogDir},
	}
	for _, entry := range named {
		if strings.TrimSpace(entry.value) == "" {
			return fmt.Errorf("%s must be set", entry.key)
		}
	}
	input := filepath.Clean(c.Paths.InputDir)
	for _, entry := range named[1:] {
		if filepath.Clean(entry.value) == input {
			return fmt.Errorf("%s must differ from paths.input_dir", entry.key)
		}
	}
	return nil
}

func (c *Config) validateValidation() error {
	if c.Validation.MaxFileSizeMB <= 0 {
		return errors.New("validation.max_file_size_mb must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.poll_interval": c.Workflow.PollInterval,
		"workflow.history_size":  c.Workflow.HistorySize,
	})
}

func (c *Config) validateLogging() error {
	for key, name := range map[string]string{
		"logging.history_file": c.Logging.HistoryFile,
		"logging.error_file":   c.Logging.ErrorFile,
	} {
		if name != filepath.Base(name) {
			return fmt.Errorf("%s must be a file name, not a path", key)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
