package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"lessonmedia/internal/api"
	"lessonmedia/internal/config"
	"lessonmedia/internal/deps"
	"lessonmedia/internal/jobs"
	"lessonmedia/internal/logging"
	"lessonmedia/internal/metrics"
	"lessonmedia/internal/stage"
	"lessonmedia/internal/staging"
)

// Runner starts pipeline runs; *workflow.Coordinator satisfies it.
type Runner interface {
	Run(ctx context.Context, jobID, kind string, payload json.RawMessage) bool
	Active() []string
	Health() []stage.Health
	Wait()
}

// ErrInvalidRequest marks submissions rejected before reaching the runner.
var ErrInvalidRequest = errors.New("invalid request")

// Daemon owns the process lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *jobs.Store
	runner       Runner
	metrics      *metrics.Recorder
	dependencies []deps.Status

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	runCtx  atomic.Pointer[context.Context]
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobs.Store, runner Runner, recorder *metrics.Recorder, dependencies []deps.Status, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || runner == nil {
		return nil, errors.New("daemon requires config, store, and runner")
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "lessonmedia.lock")
	d := &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		store:        store,
		runner:       runner,
		metrics:      recorder,
		dependencies: dependencies,
		lockPath:     lockPath,
		lock:         flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, sweeps stale scratch, and starts the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another lessonmedia daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.runCtx.Store(&runCtx)
	d.sweepScratch(runCtx)
	d.reportStuck(runCtx)

	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		d.runCtx.Store(nil)
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("lessonmedia daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop closes the API, waits for in-flight runs, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if active := d.runner.Active(); len(active) > 0 {
		d.logger.Info("waiting for in-flight runs", logging.Strings("jobs", active))
	}
	d.runner.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
			logging.String(logging.FieldImpact, "next start may report another instance"),
		)
	}
	d.runCtx.Store(nil)
	d.running.Store(false)
	d.logger.Info("lessonmedia daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon. The store is owned by the caller.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Submit validates a trigger and hands it to the runner.
func (d *Daemon) Submit(ctx context.Context, req api.SubmitRequest) (api.SubmitResponse, error) {
	jobID := strings.TrimSpace(req.JobID)
	if jobID == "" {
		return api.SubmitResponse{}, fmt.Errorf("%w: job_id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Kind) == "" {
		return api.SubmitResponse{}, fmt.Errorf("%w: kind is required", ErrInvalidRequest)
	}
	// Runs outlive the request; without a daemon context they detach from it.
	runCtx := context.WithoutCancel(ctx)
	if stored := d.runCtx.Load(); stored != nil {
		runCtx = *stored
	}
	if d.runner.Run(runCtx, jobID, req.Kind, req.Payload) {
		return api.SubmitResponse{Accepted: true, JobID: jobID, Status: string(jobs.StatusProcessing)}, nil
	}
	job, err := d.store.Get(ctx, jobID)
	if err != nil {
		return api.SubmitResponse{}, err
	}
	return api.SubmitResponse{JobID: jobID, Status: api.FromJob(jobID, job).Status}, nil
}

// Job returns the persisted record for jobID (idle when absent).
func (d *Daemon) Job(ctx context.Context, jobID string) (api.Job, error) {
	job, err := d.store.Get(ctx, jobID)
	if err != nil {
		return api.Job{}, err
	}
	return api.FromJob(jobID, job), nil
}

// Jobs lists records filtered by status.
func (d *Daemon) Jobs(ctx context.Context, statuses []jobs.Status) ([]api.Job, error) {
	records, err := d.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return api.FromJobs(records), nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Active:       d.runner.Active(),
		Kinds:        api.FromHealth(d.runner.Health()),
		Dependencies: api.FromDependencies(d.dependencies),
	}
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("job stats unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "stats_failed"),
			logging.String(logging.FieldErrorHint, "check the job database"),
			logging.String(logging.FieldImpact, "status omits job counts"),
		)
	}
	status.JobCounts = api.FromCounts(stats)
	return status
}

// MetricsRecorder exposes the recorder served at /metrics.
func (d *Daemon) MetricsRecorder() *metrics.Recorder {
	return d.metrics
}

func (d *Daemon) sweepScratch(ctx context.Context) {
	maxAge := d.cfg.StaleScratchAge()
	if maxAge <= 0 {
		return
	}
	result := staging.CleanStale(ctx, d.cfg.Paths.StagingDir, maxAge, d.logger)
	if len(result.Removed) > 0 || len(result.Errors) > 0 {
		d.logger.Info("stale scratch swept",
			logging.String(logging.FieldEventType, "scratch_sweep"),
			logging.Int("removed", len(result.Removed)),
			logging.Int("errors", len(result.Errors)),
		)
	}
}

// reportStuck warns about records left processing by a previous process. They
// are not reset automatically.
func (d *Daemon) reportStuck(ctx context.Context) {
	records, err := d.store.List(ctx, jobs.StatusProcessing)
	if err != nil || len(records) == 0 {
		return
	}
	ids := make([]string, 0, len(records))
	for _, job := range records {
		ids = append(ids, job.ID)
	}
	logging.WarnWithContext(d.logger, "jobs left processing by a previous run", "stuck_jobs",
		logging.Strings("jobs", ids),
		logging.String(logging.FieldErrorHint, "run `lessonmedia jobs reset-stuck` to mark them failed"),
		logging.String(logging.FieldImpact, "their status will not change until reset or rerun"),
	)
}
