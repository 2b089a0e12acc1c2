// Package config loads, normalizes, validates, and persists hopper settings.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads and writes TOML files, and bootstraps the managed
// directories (input, output, failed, archive, log). The Config type is the
// flat settings record the daemon hands to the policy layer; operator changes
// made at runtime are written back with Save when the daemon shuts down.
//
// A settings file that cannot be parsed degrades to defaults through
// LoadOrDefault rather than stopping the daemon.
package config
