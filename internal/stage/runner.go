package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"lessonmedia/internal/logging"
	"lessonmedia/internal/services"
	"lessonmedia/internal/services/genai"
)

// Generator is the subset of the generative client a Runner needs.
type Generator interface {
	Generate(ctx context.Context, req genai.Request) (genai.Response, error)
	SubmitVideo(ctx context.Context, req genai.Request) (genai.Operation, error)
	AwaitOperation(ctx context.Context, op genai.Operation) (genai.Operation, error)
	Download(ctx context.Context, uri, dest string) (int64, error)
}

// Spec describes one generative step.
type Spec struct {
	Name   string
	Mode   genai.Mode
	Prompt string
	Config genai.GenerationConfig
	Shape  Shape
}

func (s Spec) request() genai.Request {
	return genai.Request{Mode: s.Mode, Prompt: s.Prompt, Config: s.Config}
}

// Runner executes Specs against a Generator.
type Runner struct {
	gen    Generator
	logger *slog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(gen Generator, logger *slog.Logger) *Runner {
	return &Runner{gen: gen, logger: logging.NewComponentLogger(logger, "stage-runner")}
}

// Structured runs a text step and decodes the validated manifest into target.
func (r *Runner) Structured(ctx context.Context, spec Spec, target any) error {
	if spec.Mode == "" {
		spec.Mode = genai.ModeText
	}
	if spec.Config.ResponseMIMEType == "" {
		spec.Config.ResponseMIMEType = "application/json"
	}
	resp, err := r.gen.Generate(ctx, spec.request())
	if err != nil {
		return remoteError(spec.Name, "generate manifest", err)
	}
	extraction := Extract(resp.Text, spec.Shape)
	if !extraction.OK() {
		logging.WithContext(ctx, r.logger).Warn("structured output rejected",
			logging.String(logging.FieldEventType, "structured_output_rejected"),
			logging.String("reason", string(extraction.Failure.Reason)),
			logging.String("detail", extraction.Failure.Detail),
			logging.String("snippet", extraction.Failure.Snippet),
			logging.String("finish_reason", resp.FinishReason),
		)
		return services.Wrap(services.ErrShape, spec.Name, "extract manifest",
			"Model output did not match the expected manifest", extraction.Failure)
	}
	if err := extraction.Decode(target); err != nil {
		return services.Wrap(services.ErrShape, spec.Name, "decode manifest",
			"Manifest could not be decoded", err)
	}
	return nil
}

// Binary runs an image or audio step and returns the inline payload.
func (r *Runner) Binary(ctx context.Context, spec Spec) (genai.InlineData, error) {
	resp, err := r.gen.Generate(ctx, spec.request())
	if err != nil {
		return genai.InlineData{}, remoteError(spec.Name, "generate asset", err)
	}
	want := expectedMIMEPrefix(spec.Mode)
	if resp.Inline == nil || resp.Inline.Empty() {
		detail := fmt.Sprintf("no %s payload in response (finish_reason=%q)", spec.Mode, resp.FinishReason)
		if text := strings.TrimSpace(resp.Text); text != "" {
			detail += fmt.Sprintf(" text=%s", summarizePayloadSnippet(text))
		}
		return genai.InlineData{}, services.Wrap(services.ErrMissingAsset, spec.Name, "generate asset", detail, nil)
	}
	if want != "" && !strings.HasPrefix(strings.ToLower(resp.Inline.MIMEType), want) {
		return genai.InlineData{}, services.Wrap(services.ErrMissingAsset, spec.Name, "generate asset",
			fmt.Sprintf("expected %s payload, got %q", want, resp.Inline.MIMEType), nil)
	}
	return *resp.Inline, nil
}

// Video submits a video step, waits for the operation, and downloads the
// resulting clip to dest.
func (r *Runner) Video(ctx context.Context, spec Spec, dest string) error {
	spec.Mode = genai.ModeVideo
	op, err := r.gen.SubmitVideo(ctx, spec.request())
	if err != nil {
		return remoteError(spec.Name, "submit video", err)
	}
	logging.WithContext(ctx, r.logger).Debug("video operation submitted", logging.String("operation", op.Name))
	done, err := r.gen.AwaitOperation(ctx, op)
	if err != nil {
		return remoteError(spec.Name, "await video", err)
	}
	if strings.TrimSpace(done.VideoURI) == "" {
		return services.Wrap(services.ErrMissingAsset, spec.Name, "await video",
			fmt.Sprintf("operation %s finished without a video reference", done.Name), nil)
	}
	size, err := r.gen.Download(ctx, done.VideoURI, dest)
	if err != nil {
		return remoteError(spec.Name, "download video", err)
	}
	logging.WithContext(ctx, r.logger).Debug("video downloaded",
		logging.String("operation", done.Name),
		logging.Int64("bytes", size),
	)
	return nil
}

func expectedMIMEPrefix(mode genai.Mode) string {
	switch mode {
	case genai.ModeImage:
		return "image/"
	case genai.ModeAudio:
		return "audio/"
	default:
		return ""
	}
}

func remoteError(stage, operation string, err error) error {
	if errors.Is(err, genai.ErrPollTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stage, operation, "Generative operation did not finish in time", err)
	}
	return services.Wrap(services.ErrRemote, stage, operation, "Generative service call failed", err)
}
