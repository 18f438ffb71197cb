// Package staging owns the job-scoped scratch directories under
// paths.staging_dir.
//
// A Stager hands out one Scratch per run via Acquire and removes it via
// Release; Release runs exactly once per Scratch and is skipped (and logged)
// when workflow.retain_scratch is set. CleanStale sweeps directories left
// behind by a crashed process.
package staging
