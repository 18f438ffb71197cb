// Package stageexec runs one named pipeline stage with consistent progress
// persistence, logging, and failure tagging.
package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lessonmedia/internal/logging"
	"lessonmedia/internal/services"
)

// ProgressStore records the stage a run is currently in.
type ProgressStore interface {
	UpdateStage(ctx context.Context, jobID, runID, stage string) error
}

// Observer receives stage timings.
type Observer interface {
	StageFinished(kind, stage string, elapsed time.Duration, err error)
}

// Options identifies the run a stage belongs to.
type Options struct {
	Logger   *slog.Logger
	Store    ProgressStore
	Observer Observer
	JobID    string
	RunID    string
	Kind     string
}

// Run executes fn as stage name. The stage is persisted before fn runs and is
// attached to the context fn receives. Errors fn returns without a failure
// marker are tagged as infrastructure errors for this stage.
func Run(ctx context.Context, opts Options, name string, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("stage %s has no body", name)
	}
	stageCtx := services.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, opts.Logger)

	if opts.Store != nil {
		if err := opts.Store.UpdateStage(stageCtx, opts.JobID, opts.RunID, name); err != nil {
			return services.Wrap(services.ErrInfrastructure, name, "persist stage", "record stage progress", err)
		}
	}
	logger.Debug("stage started", logging.String(logging.FieldEventType, "stage_start"))

	started := time.Now()
	err := fn(stageCtx)
	elapsed := time.Since(started)
	if err != nil && !tagged(err) {
		err = services.Wrap(services.ErrInfrastructure, name, "execute", "", err)
	}
	if opts.Observer != nil {
		opts.Observer.StageFinished(opts.Kind, name, elapsed, err)
	}

	if err != nil {
		details := services.Details(err)
		logger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String(logging.FieldErrorKind, details.Kind),
			logging.Duration("elapsed", elapsed),
			logging.Error(err),
		)
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", elapsed),
	)
	return nil
}

func tagged(err error) bool {
	var wrapped *services.Error
	return errors.As(err, &wrapped)
}
