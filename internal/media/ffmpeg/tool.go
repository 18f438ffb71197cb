package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"lessonmedia/internal/config"
	"lessonmedia/internal/logging"
	"lessonmedia/internal/services"
)

const stderrTailLines = 12

// commandRunner executes a binary and returns its captured stderr.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Observer receives the outcome of every ffmpeg invocation.
type Observer interface {
	ToolRun(tool, operation string, elapsed time.Duration, err error)
}

// Layout positions the elements of a slide composite on the canvas.
type Layout struct {
	CanvasWidth    int
	CanvasHeight   int
	CanvasColor    string
	FrameRate      int
	ImageSize      int
	ImageX         int
	ImageY         int
	TextX          int
	TitleY         int
	TitleFontSize  int
	BulletY        int
	BulletSpacing  int
	BulletFontSize int
}

// Settings configures a Tool.
type Settings struct {
	Binary       string
	AudioCodec   string
	AudioBitrate string
	Font         Font
	Layout       Layout
}

// SettingsFromConfig derives Tool settings from the media section.
func SettingsFromConfig(cfg *config.Config) Settings {
	m := cfg.Media
	return Settings{
		Binary:       m.FFmpegBinary,
		AudioCodec:   m.AudioCodec,
		AudioBitrate: m.AudioBitrate,
		Font:         ResolveFont(m.FontCandidates, m.DefaultFont),
		Layout: Layout{
			CanvasWidth:    m.CanvasWidth,
			CanvasHeight:   m.CanvasHeight,
			CanvasColor:    m.CanvasColor,
			FrameRate:      m.FrameRate,
			ImageSize:      m.ImageSize,
			ImageX:         m.ImageX,
			ImageY:         m.ImageY,
			TextX:          m.TextX,
			TitleY:         m.TitleY,
			TitleFontSize:  m.TitleFontSize,
			BulletY:        m.BulletY,
			BulletSpacing:  m.BulletSpacing,
			BulletFontSize: m.BulletFontSize,
		},
	}
}

// ExecError describes a failed ffmpeg invocation.
type ExecError struct {
	Binary   string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", e.Binary, e.ExitCode, stderrTail(e.Stderr))
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Tool wraps the ffmpeg binary.
type Tool struct {
	settings Settings
	logger   *slog.Logger
	run      commandRunner
	observer Observer
}

// Option customizes a Tool.
type Option func(*Tool)

// WithCommandRunner allows injecting a custom command runner for tests.
func WithCommandRunner(r commandRunner) Option {
	return func(t *Tool) {
		if r != nil {
			t.run = r
		}
	}
}

// WithObserver reports each invocation to o.
func WithObserver(o Observer) Option {
	return func(t *Tool) {
		t.observer = o
	}
}

// NewTool constructs an ffmpeg wrapper.
func NewTool(settings Settings, logger *slog.Logger, opts ...Option) *Tool {
	if strings.TrimSpace(settings.Binary) == "" {
		settings.Binary = "ffmpeg"
	}
	if settings.AudioCodec == "" {
		settings.AudioCodec = "libmp3lame"
	}
	if settings.AudioBitrate == "" {
		settings.AudioBitrate = "128k"
	}
	if settings.Font == (Font{}) {
		settings.Font = Font{Name: "Sans"}
	}
	t := &Tool{
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "ffmpeg"),
		run:      defaultCommandRunner,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Binary returns the configured executable.
func (t *Tool) Binary() string {
	return t.settings.Binary
}

// exec runs ffmpeg with args and removes output on failure.
func (t *Tool) exec(ctx context.Context, operation, output string, args []string) error {
	full := append([]string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}, args...)
	started := time.Now()
	stderr, err := t.run(ctx, t.settings.Binary, full...)
	elapsed := time.Since(started)
	if t.observer != nil {
		t.observer.ToolRun("ffmpeg", operation, elapsed, err)
	}
	logger := logging.WithContext(ctx, t.logger)
	if err == nil {
		logger.Debug("ffmpeg completed",
			logging.String("operation", operation),
			logging.Duration("elapsed", elapsed),
			logging.String("output", output),
		)
		return nil
	}

	if output != "" {
		_ = os.Remove(output)
	}
	execErr := &ExecError{
		Binary:   t.settings.Binary,
		Args:     full,
		ExitCode: exitCode(err),
		Stderr:   string(stderr),
		Err:      err,
	}
	stage, _ := services.StageFromContext(ctx)
	logger.Debug("ffmpeg failed",
		logging.String("operation", operation),
		logging.Int("exit_code", execErr.ExitCode),
		logging.String("args", strings.Join(full, " ")),
	)
	return services.Wrap(services.ErrToolExecution, stage, operation,
		fmt.Sprintf("ffmpeg exited with code %d: %s", execErr.ExitCode, stderrTail(execErr.Stderr)), execErr)
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func stderrTail(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) > stderrTailLines {
		lines = lines[len(lines)-stderrTailLines:]
	}
	tail := strings.TrimSpace(strings.Join(lines, " | "))
	if tail == "" {
		return "<no stderr>"
	}
	return tail
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}
