// Package services defines shared utilities consumed by pipeline stages and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job identities, kinds, stage names, and run
//     identifiers for logging.
//   - Failure markers plus the Wrap helper that classify every stage error into
//     the pipeline's error taxonomy (shape, missing asset, tool execution,
//     upload, infrastructure, remote, timeout).
//
// Use these helpers when wiring new stage logic so failure handling and
// observability stay uniform across job kinds.
package services
