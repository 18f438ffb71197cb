// Package api defines the wire-format types of the daemon's HTTP API and a
// small client for them. It translates jobs.Job records and dependency checks
// into transport DTOs so the CLI can render daemon state without importing
// daemon internals.
//
// # Key Types
//
// SubmitRequest/SubmitResponse: the POST /api/jobs trigger and its immediate
// acknowledgement. Acceptance only means a run was started; the outcome is
// read back through Job.
//
// Job: a persisted job record. Manifest is passed through as
// json.RawMessage to avoid double-encoding.
//
// DaemonStatus: running state, in-flight identities, per-kind readiness,
// job counts, and dependency availability.
//
// # Design Notes
//
// DTOs use snake_case JSON tags. Timestamps use RFC3339 with milliseconds.
// A job that has never run is reported with status "idle" rather than 404.
package api
