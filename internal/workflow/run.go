package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"lessonmedia/internal/fileutil"
	"lessonmedia/internal/jobs"
	"lessonmedia/internal/language"
	"lessonmedia/internal/logging"
	"lessonmedia/internal/media/ffmpeg"
	"lessonmedia/internal/publisher"
	"lessonmedia/internal/services"
	"lessonmedia/internal/services/genai"
	"lessonmedia/internal/stage"
	"lessonmedia/internal/stageexec"
	"lessonmedia/internal/staging"
)

// jobRun is the state of one accepted run.
type jobRun struct {
	c       *Coordinator
	jobID   string
	runID   string
	kind    jobs.Kind
	payload Payload
	scratch *staging.Scratch
	started time.Time
	logger  *slog.Logger

	mu    sync.Mutex
	stage string
}

func (r *jobRun) currentStage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

// step runs fn as a named stage of this run.
func (r *jobRun) step(ctx context.Context, name string, fn func(context.Context) error) error {
	r.mu.Lock()
	r.stage = name
	r.mu.Unlock()
	return stageexec.Run(ctx, stageexec.Options{
		Logger:   r.logger,
		Store:    r.c.deps.Store,
		Observer: r.c.deps.Metrics,
		JobID:    r.jobID,
		RunID:    r.runID,
		Kind:     string(r.kind),
	}, name, fn)
}

// parallel runs independent stages together and waits for all of them.
// Panics are converted to errors so they cannot escape the run.
func (r *jobRun) parallel(ctx context.Context, fns ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		g.Go(func() (err error) {
			defer func() {
				if recovered := recover(); recovered != nil {
					r.logger.Error("parallel stage panicked",
						logging.String(logging.FieldEventType, "run_panic"),
						logging.Any("panic", recovered),
						logging.String("stack", string(debug.Stack())),
					)
					err = services.Wrap(services.ErrInfrastructure, r.currentStage(), "panic",
						fmt.Sprintf("internal error: %v", recovered), nil)
				}
			}()
			return fn(gctx)
		})
	}
	return g.Wait()
}

// structured runs a manifest stage and decodes it into target.
func (r *jobRun) structured(ctx context.Context, name, prompt string, shape stage.Shape, target any) error {
	return r.step(ctx, name, func(ctx context.Context) error {
		return r.c.runner.Structured(ctx, stage.Spec{Name: name, Prompt: prompt, Shape: shape}, target)
	})
}

// image generates an image, writes it to dest, and returns it for reuse as a
// reference.
func (r *jobRun) image(ctx context.Context, name, prompt string, refs []genai.InlineData, dest string) (genai.InlineData, error) {
	var out genai.InlineData
	err := r.step(ctx, name, func(ctx context.Context) error {
		data, err := r.c.runner.Binary(ctx, stage.Spec{
			Name:   name,
			Mode:   genai.ModeImage,
			Prompt: prompt,
			Config: genai.GenerationConfig{
				AspectRatio:     r.c.deps.Config.Generative.VideoAspectRatio,
				ReferenceImages: refs,
			},
		})
		if err != nil {
			return err
		}
		if err := writeAsset(name, dest, data.Data); err != nil {
			return err
		}
		out = data
		return nil
	})
	return out, err
}

// speech generates narration as PCM, then transcodes it to dest.
func (r *jobRun) speech(ctx context.Context, name, transcodeName, prompt string, cfg genai.GenerationConfig, dest string) error {
	pcmPath := strings.TrimSuffix(dest, filepath.Ext(dest)) + ".pcm"
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = language.ISO2(r.payload.Language)
	}
	var format genai.PCMFormat
	err := r.step(ctx, name, func(ctx context.Context) error {
		data, err := r.c.runner.Binary(ctx, stage.Spec{Name: name, Mode: genai.ModeAudio, Prompt: prompt, Config: cfg})
		if err != nil {
			return err
		}
		format, err = genai.ParsePCMFormat(data.MIMEType)
		if err != nil {
			return services.Wrap(services.ErrMissingAsset, name, "decode audio", "speech payload is not raw PCM", err)
		}
		return writeAsset(name, pcmPath, data.Data)
	})
	if err != nil {
		return err
	}
	return r.step(ctx, transcodeName, func(ctx context.Context) error {
		return r.c.deps.Media.TranscodePCM(ctx, ffmpeg.PCMInput{
			Path:         pcmPath,
			SampleFormat: format.SampleFormat,
			SampleRate:   format.SampleRate,
			Channels:     format.Channels,
		}, dest)
	})
}

// publish uploads path under this run's timestamp prefix.
func (r *jobRun) publish(ctx context.Context, name, path string, kind publisher.ContentKind) (string, error) {
	var url string
	err := r.step(ctx, name, func(ctx context.Context) error {
		var err error
		url, err = r.c.deps.Publisher.PublishAt(ctx, r.jobID, path, kind, r.started)
		return err
	})
	return url, err
}

// duration probes path. Probe failures are logged and reported as zero.
func (r *jobRun) duration(ctx context.Context, path string) float64 {
	result, err := r.c.deps.Prober.Inspect(ctx, path)
	if err != nil {
		r.logger.Warn("duration probe failed",
			logging.String("path", filepath.Base(path)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "probe_failed"),
			logging.String(logging.FieldErrorHint, "check ffprobe installation"),
			logging.String(logging.FieldImpact, "manifest omits the duration"),
		)
		return 0
	}
	return result.DurationSeconds()
}

// silentClips returns the durations of clips that carry no audio stream. A clip
// whose probe fails is assumed to have audio; a zero duration uses fallback.
func (r *jobRun) silentClips(ctx context.Context, clips []string, fallback float64) map[int]float64 {
	silent := make(map[int]float64)
	for i, clip := range clips {
		result, err := r.c.deps.Prober.Inspect(ctx, clip)
		if err != nil {
			r.logger.Warn("clip probe failed",
				logging.String("path", filepath.Base(clip)),
				logging.Error(err),
				logging.String(logging.FieldEventType, "probe_failed"),
				logging.String(logging.FieldErrorHint, "check ffprobe installation"),
				logging.String(logging.FieldImpact, "re-encode fallback expects an audio stream"),
			)
			continue
		}
		if result.AudioStreamCount() > 0 {
			continue
		}
		seconds := result.DurationSeconds()
		if seconds <= 0 {
			seconds = fallback
		}
		silent[i] = seconds
	}
	return silent
}

func writeAsset(stageName, path string, data []byte) error {
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrInfrastructure, stageName, "write asset", filepath.Base(path), err)
	}
	return nil
}

// segmentName is the 1-based stage name for segment index i.
func segmentName(prefix string, i int) string {
	return fmt.Sprintf("%s-%d", prefix, i+1)
}
