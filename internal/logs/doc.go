// Package logs reads and follows hopper's log files for `hopper logs`.
//
// Only complete lines are returned: a trailing line without a newline stays
// unread until the writer finishes it. A file that shrinks below the
// caller's offset is read again from the start.
package logs
