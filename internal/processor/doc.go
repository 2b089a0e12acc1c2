// Package processor runs a single discovered file through validation and
// artifact production.
//
// A file moves Discovered -> Validating -> Valid | Invalid and ends Terminal
// once its outcome is recorded. Valid files yield <stem>.checksum and
// <stem>.gz in the output directory and are archived; invalid files are moved
// to the failed directory. An I/O error at any step removes the artifacts
// written so far, falls back to the failed directory and records an
// Unresolved outcome. Every call records exactly one ledger entry.
package processor
