package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lessonmedia/internal/config"
	"lessonmedia/internal/deps"
	"lessonmedia/internal/jobs"
	"lessonmedia/internal/logging"
	"lessonmedia/internal/media/ffmpeg"
	"lessonmedia/internal/media/ffprobe"
	"lessonmedia/internal/metrics"
	"lessonmedia/internal/notifications"
	"lessonmedia/internal/preflight"
	"lessonmedia/internal/publisher"
	"lessonmedia/internal/services/genai"
	"lessonmedia/internal/staging"
	"lessonmedia/internal/workflow"
)

// Runtime holds the process-wide collaborators shared by the daemon and the
// in-process `run` command.
type Runtime struct {
	Config       *config.Config
	Logger       *slog.Logger
	Store        *jobs.Store
	Metrics      *metrics.Recorder
	Generator    *genai.Client
	Publisher    *publisher.Publisher
	Notifier     notifications.Service
	Dependencies []deps.Status
	Coordinator  *workflow.Coordinator
}

// Build opens the store and constructs every collaborator. Callers must Close
// the runtime.
func Build(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	recorder := metrics.New()
	pub, err := publisher.New(cfg.ObjectStore, logger)
	if err != nil {
		return nil, err
	}
	store, err := jobs.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	client := genai.NewClient(genai.ConfigFrom(cfg), genai.WithPollObserver(recorder.OperationPolled))
	notifier := notifications.NewService(cfg, logger)

	coordinator, err := workflow.NewCoordinator(workflow.Dependencies{
		Config:    cfg,
		Store:     store,
		Generator: client,
		Media:     ffmpeg.NewTool(ffmpeg.SettingsFromConfig(cfg), logger, ffmpeg.WithObserver(recorder)),
		Prober:    ffprobe.NewProber(cfg.Media.FFprobeBinary),
		Stager:    staging.NewStager(cfg.Paths.StagingDir, cfg.Workflow.RetainScratch, logger),
		Publisher: pub,
		Notifier:  notifier,
		Metrics:   recorder,
		Logger:    logger,
		Binaries:  deps.Index(statuses),
	})
	if err != nil {
		_ = notifier.Close()
		_ = store.Close()
		return nil, err
	}

	return &Runtime{
		Config:       cfg,
		Logger:       logger,
		Store:        store,
		Metrics:      recorder,
		Generator:    client,
		Publisher:    pub,
		Notifier:     notifier,
		Dependencies: statuses,
		Coordinator:  coordinator,
	}, nil
}

// Preflight runs the readiness checks against this runtime's services.
func (r *Runtime) Preflight(ctx context.Context) []preflight.Result {
	return preflight.RunAll(ctx, r.Config, preflight.Targets{
		Generative:  r.Generator,
		ObjectStore: r.Publisher,
	})
}

// Close waits for in-flight runs and releases the store and notifier.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	r.Coordinator.Wait()
	return errors.Join(r.Notifier.Close(), r.Store.Close())
}
