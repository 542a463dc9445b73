// Package notifications pushes recording events to ntfy.
//
// NewService returns a no-op when no topic is configured, so callers publish
// unconditionally. Events cover recording start, save and failure plus
// sensor availability transitions.
package notifications
