// Package preflight verifies that the managed directories are usable before
// the scheduler is started.
//
// The daemon runs RunAll against the current policy on every start request
// and refuses to begin polling when any check fails. The CLI status command
// renders the same results so operators see which directory is at fault.
package preflight
