// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, the request/response DTOs, and the
// conversion from daemon, ledger and catalog models to wire representations.
// Reuse these types when adding endpoints so older CLI builds keep working.
package ipc
