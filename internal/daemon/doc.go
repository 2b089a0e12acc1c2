// Package daemon coordinates the long-running hopper process.
//
// It wires configuration, the outcome ledger, the optional SQLite catalog,
// the processor and scheduler, and the Prometheus endpoint into a single
// lifecycle, with flock-based locking to prevent two daemons sharing a log
// directory. Operator requests arriving over IPC (start, stop, status,
// history, settings changes) land here; settings changes are applied to the
// live policy and written back to the config file on shutdown.
//
// Keep orchestration logic here: per-file work belongs to the processor and
// batch timing to the scheduler.
package daemon
