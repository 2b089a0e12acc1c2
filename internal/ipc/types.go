package ipc

import "time"

// StartRequest asks the daemon to begin polling.
type StartRequest struct{}

// StartResponse indicates whether polling was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest asks the daemon to stop polling after the current batch.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// RunOnceRequest processes the input directory once without starting the loop.
type RunOnceRequest struct{}

// RunOnceResponse reports the batch that was run.
type RunOnceResponse struct {
	Batch BatchSummary `json:"batch"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// BatchSummary describes one poll cycle.
type BatchSummary struct {
	ID         string        `json:"id"`
	Started    time.Time     `json:"started"`
	Duration   time.Duration `json:"duration"`
	Files      int           `json:"files"`
	Valid      int           `json:"valid"`
	Invalid    int           `json:"invalid"`
	Unresolved int           `json:"unresolved"`
}

// CheckResult is one preflight directory check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// StatusResponse combines scheduler, counter and path information.
type StatusResponse struct {
	Running     bool          `json:"running"`
	PID         int           `json:"pid"`
	Processed   int64         `json:"processed"`
	Valid       int64         `json:"valid"`
	Failed      int64         `json:"failed"`
	InFlight    int           `json:"in_flight"`
	HistorySize int           `json:"history_size"`
	History     []string      `json:"history"`
	Batches     int64         `json:"batches"`
	LastBatch   *BatchSummary `json:"last_batch,omitempty"`
	LastError   string        `json:"last_error"`
	Preflight   []CheckResult `json:"preflight"`
	InputDir    string        `json:"input_dir"`
	ConfigPath  string        `json:"config_path"`
	LockPath    string        `json:"lock_path"`
	LogPath     string        `json:"log_path"`
	HistoryPath string        `json:"history_path"`
	CatalogPath string        `json:"catalog_path"`
	MetricsAddr string        `json:"metrics_addr"`
}

// HistoryRequest fetches the status history window.
type HistoryRequest struct{}

// HistoryResponse holds formatted outcome lines, oldest first.
type HistoryResponse struct {
	Lines []string `json:"lines"`
}

// SetRequest changes one operator setting.
type SetRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SetResponse reports the applied change.
type SetResponse struct {
	Key      string `json:"key"`
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

// ConfigRequest fetches the live settings.
type ConfigRequest struct{}

// ConfigResponse mirrors the operator-visible settings.
type ConfigResponse struct {
	InputDir          string   `json:"input_dir"`
	OutputDir         string   `json:"output_dir"`
	FailedDir         string   `json:"failed_dir"`
	ArchiveDir        string   `json:"archive_dir"`
	LogDir            string   `json:"log_dir"`
	MaxFileSizeMB     float64  `json:"max_file_size_mb"`
	AllowedExtensions []string `json:"allowed_extensions"`
	HistorySize       int      `json:"history_size"`
	PollInterval      int      `json:"poll_interval"`
	HistoryFile       string   `json:"history_file"`
	ErrorFile         string   `json:"error_file"`
}

// CatalogListRequest fetches recent catalog records.
type CatalogListRequest struct {
	Limit int `json:"limit"`
}

// CatalogRecord is one persisted outcome.
type CatalogRecord struct {
	ID          int64     `json:"id"`
	BatchID     string    `json:"batch_id"`
	File        string    `json:"file"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason"`
	Checksum    string    `json:"checksum"`
	Size        int64     `json:"size"`
	ProcessedAt time.Time `json:"processed_at"`
}

// CatalogListResponse holds records newest first plus all-time totals.
type CatalogListResponse struct {
	Records []CatalogRecord `json:"records"`
	Totals  map[string]int  `json:"totals"`
}
