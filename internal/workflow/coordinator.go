package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lessonmedia/internal/config"
	"lessonmedia/internal/deps"
	"lessonmedia/internal/jobs"
	"lessonmedia/internal/logging"
	"lessonmedia/internal/media/ffmpeg"
	"lessonmedia/internal/media/ffprobe"
	"lessonmedia/internal/metrics"
	"lessonmedia/internal/notifications"
	"lessonmedia/internal/publisher"
	"lessonmedia/internal/services"
	"lessonmedia/internal/stage"
	"lessonmedia/internal/staging"
)

// JobStore persists run status.
type JobStore interface {
	MarkProcessing(ctx context.Context, jobID string, kind jobs.Kind, runID string) error
	UpdateStage(ctx context.Context, jobID, runID, stage string) error
	MarkReady(ctx context.Context, jobID, runID, resultURL, manifestJSON string) error
	MarkFailed(ctx context.Context, jobID, runID, message, errorKind string) error
}

// MediaTool renders and muxes local media.
type MediaTool interface {
	TranscodePCM(ctx context.Context, in ffmpeg.PCMInput, output string) error
	Composite(ctx context.Context, req ffmpeg.CompositeRequest) error
	Stitch(ctx context.Context, req ffmpeg.StitchRequest) (ffmpeg.StitchMode, error)
}

// Prober measures media files.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// ArtifactPublisher uploads finished files.
type ArtifactPublisher interface {
	PublishAt(ctx context.Context, jobID, localPath string, kind publisher.ContentKind, ts time.Time) (string, error)
}

// Dependencies are constructed once at process start and shared by all runs.
type Dependencies struct {
	Config    *config.Config
	Store     JobStore
	Generator stage.Generator
	Media     MediaTool
	Prober    Prober
	Stager    *staging.Stager
	Publisher ArtifactPublisher
	Notifier  notifications.Service
	Metrics   *metrics.Recorder
	Logger    *slog.Logger
	// Binaries holds the startup availability check; nil skips the check.
	Binaries deps.Availability
}

func (d Dependencies) validate() error {
	var missing []string
	if d.Config == nil {
		missing = append(missing, "config")
	}
	if d.Store == nil {
		missing = append(missing, "store")
	}
	if d.Generator == nil {
		missing = append(missing, "generator")
	}
	if d.Media == nil {
		missing = append(missing, "media tool")
	}
	if d.Prober == nil {
		missing = append(missing, "prober")
	}
	if d.Stager == nil {
		missing = append(missing, "stager")
	}
	if d.Publisher == nil {
		missing = append(missing, "publisher")
	}
	if len(missing) > 0 {
		return fmt.Errorf("workflow dependencies missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

type pipeline func(ctx context.Context, run *jobRun) (result, error)

// result is what a successful pipeline hands back for the ready write.
type result struct {
	URL      string
	Manifest any
}

// Coordinator owns run lifecycles.
type Coordinator struct {
	deps      Dependencies
	runner    *stage.Runner
	guard     *Guard
	logger    *slog.Logger
	pipelines map[jobs.Kind]pipeline
	now       func() time.Time

	wg sync.WaitGroup
}

// NewCoordinator validates deps and reports unavailable binaries once.
func NewCoordinator(d Dependencies) (*Coordinator, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	if d.Notifier == nil {
		d.Notifier = notifications.NewService(&config.Config{}, d.Logger)
	}
	c := &Coordinator{
		deps:   d,
		runner: stage.NewRunner(d.Generator, d.Logger),
		guard:  NewGuard(),
		logger: logging.NewComponentLogger(d.Logger, "workflow"),
		now:    time.Now,
	}
	c.pipelines = map[jobs.Kind]pipeline{
		jobs.KindCinematicVideo:   c.runCinematic,
		jobs.KindSlideshowVideo:   c.runSlideshow,
		jobs.KindDialogueAudio:    c.runDialogue,
		jobs.KindIllustratedStory: c.runStory,
	}
	c.reportMissingBinaries()
	return c, nil
}

func (c *Coordinator) reportMissingBinaries() {
	for _, status := range c.deps.Binaries {
		if status.Available {
			continue
		}
		var affected []string
		for _, kind := range jobs.Kinds() {
			for _, name := range c.requiredBinaries(kind) {
				if name == status.Name {
					affected = append(affected, string(kind))
				}
			}
		}
		if len(affected) == 0 {
			continue
		}
		logging.WarnWithContext(c.logger, "required binary unavailable", "dependency_missing",
			logging.String("binary", status.Name),
			logging.String("command", status.Command),
			logging.String("detail", status.Detail),
			logging.String(logging.FieldErrorHint, "install "+status.Name+" or set media."+status.Name+"_binary"),
			logging.String(logging.FieldImpact, "jobs of kind "+strings.Join(affected, ", ")+" will fail"),
		)
	}
}

// requiredBinaries lists the executables a kind cannot run without.
func (c *Coordinator) requiredBinaries(kind jobs.Kind) []string {
	switch kind {
	case jobs.KindSlideshowVideo:
		return []string{"ffmpeg", "ffprobe"}
	case jobs.KindCinematicVideo, jobs.KindDialogueAudio:
		return []string{"ffmpeg"}
	case jobs.KindIllustratedStory:
		if c.deps.Config.Story.Narration {
			return []string{"ffmpeg"}
		}
	}
	return nil
}

// Run starts a run for jobID unless one is already in flight. It returns
// whether the run was accepted; the outcome is observable only through the
// job store. The run ignores cancellation of ctx.
func (c *Coordinator) Run(ctx context.Context, jobID, kind string, payload json.RawMessage) bool {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		c.logger.Warn("run rejected: empty job id",
			logging.String(logging.FieldEventType, "run_rejected"),
			logging.String(logging.FieldErrorHint, "supply a job_id"),
			logging.String(logging.FieldImpact, "nothing was started"),
		)
		return false
	}
	token, ok := c.guard.TryAcquire(jobID)
	if !ok {
		c.logger.Info("run already in flight; ignoring duplicate",
			logging.String(logging.FieldJobID, jobID),
			logging.String(logging.FieldEventType, "run_duplicate"),
		)
		return false
	}
	c.wg.Add(1)
	go c.execute(context.WithoutCancel(ctx), token, jobID, strings.TrimSpace(kind), payload)
	return true
}

// Wait blocks until every accepted run has settled.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Active lists identities with a run in flight.
func (c *Coordinator) Active() []string {
	return c.guard.Snapshot()
}

// Health reports per-kind readiness based on the startup binary check.
func (c *Coordinator) Health() []stage.Health {
	out := make([]stage.Health, 0, len(jobs.Kinds()))
	for _, kind := range jobs.Kinds() {
		missing := c.deps.Binaries.Missing(c.requiredBinaries(kind)...)
		if len(missing) == 0 {
			out = append(out, stage.Healthy(string(kind)))
			continue
		}
		details := make([]string, 0, len(missing))
		for _, status := range missing {
			details = append(details, status.Detail)
		}
		out = append(out, stage.Unhealthy(string(kind), details...))
	}
	return out
}

func (c *Coordinator) execute(ctx context.Context, token, jobID, kind string, raw json.RawMessage) {
	defer c.wg.Done()
	defer c.guard.Release(jobID, token)

	run := &jobRun{
		c:       c,
		jobID:   jobID,
		runID:   uuid.NewString(),
		kind:    jobs.Kind(kind),
		started: c.now().UTC(),
	}
	ctx = services.WithJobID(ctx, jobID)
	ctx = services.WithKind(ctx, kind)
	ctx = services.WithRunID(ctx, run.runID)
	run.logger = logging.WithContext(ctx, c.logger)

	if err := c.deps.Store.MarkProcessing(ctx, jobID, run.kind, run.runID); err != nil {
		logging.ErrorWithContext(run.logger, "could not record processing; run abandoned", "run_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the job database"),
			logging.String(logging.FieldImpact, "job status was not updated"),
		)
		return
	}
	c.deps.Metrics.JobStarted(kind)
	c.notify(ctx, run, notifications.EventJobStarted, notifications.Payload{})
	run.logger.Info("run started", logging.String(logging.FieldEventType, "run_start"))

	var (
		res    result
		runErr error
	)
	defer func() {
		if recovered := recover(); recovered != nil {
			runErr = services.Wrap(services.ErrInfrastructure, run.currentStage(), "panic",
				fmt.Sprintf("internal error: %v", recovered), nil)
			run.logger.Error("run panicked",
				logging.String(logging.FieldEventType, "run_panic"),
				logging.Any("panic", recovered),
				logging.String("stack", string(debug.Stack())),
			)
		}
		if run.scratch != nil {
			_ = c.deps.Stager.Release(run.scratch)
		}
		c.finish(ctx, run, res, runErr)
	}()

	res, runErr = c.prepareAndRun(ctx, run, raw)
}

func (c *Coordinator) prepareAndRun(ctx context.Context, run *jobRun, raw json.RawMessage) (result, error) {
	kind, err := jobs.ParseKind(string(run.kind))
	if err != nil {
		return result{}, services.Wrap(services.ErrValidation, "", "dispatch", err.Error(), nil)
	}
	pipe := c.pipelines[kind]
	if missing := c.deps.Binaries.Missing(c.requiredBinaries(kind)...); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, status := range missing {
			names = append(names, status.Name)
		}
		return result{}, services.Wrap(services.ErrInfrastructure, "", "dispatch",
			fmt.Sprintf("required binaries unavailable: %s", strings.Join(names, ", ")), nil)
	}
	payload, err := decodePayload(raw)
	if err != nil {
		return result{}, err
	}
	run.payload = payload

	scratch, err := c.deps.Stager.Acquire(run.jobID)
	if err != nil {
		return result{}, services.Wrap(services.ErrInfrastructure, "", "acquire scratch", "", err)
	}
	run.scratch = scratch
	return pipe(ctx, run)
}

func (c *Coordinator) finish(ctx context.Context, run *jobRun, res result, runErr error) {
	elapsed := c.now().UTC().Sub(run.started)
	if runErr == nil && strings.TrimSpace(res.URL) == "" {
		runErr = services.Wrap(services.ErrUpload, "publish", "finish", "run produced no published artifact", nil)
	}

	if runErr == nil {
		manifest, err := json.Marshal(res.Manifest)
		if err != nil {
			runErr = services.Wrap(services.ErrInfrastructure, "", "encode manifest", "", err)
		} else {
			c.markReady(ctx, run, res.URL, string(manifest), elapsed)
			return
		}
	}
	c.markFailed(ctx, run, runErr, elapsed)
}

func (c *Coordinator) markReady(ctx context.Context, run *jobRun, url, manifest string, elapsed time.Duration) {
	if err := c.deps.Store.MarkReady(ctx, run.jobID, run.runID, url, manifest); err != nil {
		c.logStatusWriteFailure(run, jobs.StatusReady, err)
	}
	c.deps.Metrics.JobFinished(string(run.kind), string(jobs.StatusReady), "", elapsed)
	run.logger.Info("run ready",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("result_url", url),
		logging.Duration("elapsed", elapsed),
	)
	c.notify(ctx, run, notifications.EventJobReady, notifications.Payload{
		"url":             url,
		"elapsed_seconds": elapsed.Seconds(),
	})
}

func (c *Coordinator) markFailed(ctx context.Context, run *jobRun, runErr error, elapsed time.Duration) {
	details := services.Details(runErr)
	if err := c.deps.Store.MarkFailed(ctx, run.jobID, run.runID, details.Message, details.Kind); err != nil {
		c.logStatusWriteFailure(run, jobs.StatusFailed, err)
	}
	c.deps.Metrics.JobFinished(string(run.kind), string(jobs.StatusFailed), details.Kind, elapsed)
	run.logger.Error("run failed",
		logging.String(logging.FieldEventType, "run_failed"),
		logging.String(logging.FieldErrorKind, details.Kind),
		logging.String("failed_stage", details.Stage),
		logging.Duration("elapsed", elapsed),
		logging.Error(runErr),
	)
	c.notify(ctx, run, notifications.EventJobFailed, notifications.Payload{
		"stage":      details.Stage,
		"error":      details.Message,
		"error_kind": details.Kind,
	})
}

func (c *Coordinator) logStatusWriteFailure(run *jobRun, status jobs.Status, err error) {
	hint := "check the job database"
	if errors.Is(err, jobs.ErrStaleRun) {
		hint = "the record was reset or restarted by another run"
	}
	logging.ErrorWithContext(run.logger, "terminal status not recorded", "status_write_failed",
		logging.String("status", string(status)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "persisted status may be stale"),
	)
}

func (c *Coordinator) notify(ctx context.Context, run *jobRun, event notifications.Event, payload notifications.Payload) {
	payload["job_id"] = run.jobID
	payload["kind"] = string(run.kind)
	payload["run_id"] = run.runID
	if err := c.deps.Notifier.Publish(ctx, event, payload); err != nil {
		run.logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}
