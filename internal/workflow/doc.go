// Package workflow coordinates media production runs.
//
// Coordinator.Run accepts a job and returns immediately; the run proceeds on
// its own goroutine through the ordered stage list of its kind, writing
// processing before the first external call and exactly one terminal status
// (ready or failed) at the end. A Guard keyed by job identity keeps at most
// one run per identity in flight for the lifetime of the process; it is not
// persisted, so a restart forgets in-flight identities and leaves their
// records stuck in processing until an operator resets them.
//
// Stages run strictly in order except the independent image and narration
// calls of a single segment, which run together under an errgroup.
package workflow
