package preflight

import (
	"context"

	"lessonmedia/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// HealthChecker is satisfied by the generative client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BucketChecker is satisfied by the publisher.
type BucketChecker interface {
	CheckBucket(ctx context.Context) error
}

// Targets are the remote services to probe. Nil targets are reported as
// not configured.
type Targets struct {
	Generative  HealthChecker
	ObjectStore BucketChecker
	Encoders    EncoderLister
}

// RunAll executes every preflight check for cfg.
func RunAll(ctx context.Context, cfg *config.Config, targets Targets) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckFreeSpace("Staging free space", cfg.Paths.StagingDir, MinFreeBytes),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckGenerative(ctx, targets.Generative),
		CheckObjectStore(ctx, targets.ObjectStore),
		CheckEncoders(ctx, cfg, targets.Encoders),
	}
	return results
}

// Failed filters results down to failures.
func Failed(results []Result) []Result {
	var out []Result
	for _, result := range results {
		if !result.Passed {
			out = append(out, result)
		}
	}
	return out
}
