// Package notifications delivers job lifecycle events to operators and other
// services.
//
// Two transports are supported: ntfy (human-facing, terminal outcomes only)
// and a NATS subject (machine-facing, every event as JSON). NewService combines
// whichever are configured and degrades to a no-op when neither is.
package notifications
