// Package ledger tracks processing outcomes for the lifetime of the daemon.
//
// A Ledger owns the cumulative counters (processed, valid, failed, in-flight),
// a bounded window of the most recent outcome lines shown by `hopper status`,
// and the append-only history log on disk. Every mutation happens under one
// mutex so a reader never observes a counter bump without its history line.
// Sinks (the SQLite catalog, for example) are notified after the lock is
// released, in completion order.
package ledger
