// Package preflight provides readiness checks for the external services and
// filesystem paths lessonmedia depends on.
//
// The daemon logs RunAll results once at startup and the CLI "status" command
// renders them. Checks never block a run; the coordinator relies on the
// binary availability captured by internal/deps instead.
package preflight
