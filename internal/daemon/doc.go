// Package daemon coordinates the long-running lessonmedia process.
//
// It wires configuration, the job store, and the workflow coordinator into a
// single lifecycle with flock-based locking to prevent multiple instances. The
// daemon sweeps orphaned scratch directories at startup, serves the HTTP
// trigger surface and /metrics, and waits for in-flight runs on shutdown
// because runs are never cancelled mid-stage.
//
// Keep orchestration logic here: pipeline steps live in internal/workflow
// while the daemon focuses on startup, shutdown, and the API.
package daemon
