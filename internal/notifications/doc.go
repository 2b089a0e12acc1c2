// Package notifications posts batch summaries to an ntfy topic.
//
// New returns a no-op Notifier when no topic is configured, so callers never
// need to check whether alerts are enabled.
package notifications
