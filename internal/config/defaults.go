package config

const (
	defaultInputDir          = "~/.local/share/hopper/input"
	defaultOutputDir         = "~/.local/share/hopper/output"
	defaultFailedDir         = "~/.local/share/hopper/failed"
	defaultArchiveDir        = "~/.local/share/hopper/archive"
	defaultLogDir            = "~/.local/share/hopper/logs"
	defaultHistoryFile       = "file_process_history.txt"
	defaultErrorFile         = "err.txt"
	defaultMaxFileSizeMB     = 1.0
	defaultPollInterval      = 1
	defaultHistorySize       = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
	defaultCatalogFile       = "catalog.db"
	defaultMirrorPrefix      = "hopper"
	defaultNtfyTimeout       = 10
	defaultConfigPath        = "~/.config/hopper/config.toml"
	defaultProjectConfigFile = "hopper.toml"
	socketFileName           = "hopper.sock"
)

var defaultAllowedExtensions = []string{".txt", ".doc"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:   defaultInputDir,
			OutputDir:  defaultOutputDir,
			FailedDir:  defaultFailedDir,
			ArchiveDir: defaultArchiveDir,
			LogDir:     defaultLogDir,
		},
		Validation: Validation{
			MaxFileSizeMB:     defaultMaxFileSizeMB,
			AllowedExtensions: append([]string(nil), defaultAllowedExtensions...),
		},
		Workflow: Workflow{
			PollInterval: defaultPollInterval,
			HistorySize:  defaultHistorySize,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
			HistoryFile:   defaultHistoryFile,
			ErrorFile:     defaultErrorFile,
		},
		Catalog: Catalog{
			Enabled: true,
		},
		Mirror: Mirror{
			Prefix: defaultMirrorPrefix,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			FailuresOnly:   true,
		},
	}
}
