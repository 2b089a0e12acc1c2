// Package logging assembles structured slog loggers and formatting helpers used
// across hopper.
//
// It owns the configurable console/JSON handlers, tees ERROR records into the
// plain-text error log, and exposes context-aware helpers so processing code
// can tag log lines with batch ids and file names. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
