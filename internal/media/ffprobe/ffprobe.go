package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"lessonmedia/internal/services"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the container.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Format captures container-level metadata.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

type commandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// Prober runs ffprobe.
type Prober struct {
	binary string
	run    commandRunner
}

// Option customizes a Prober.
type Option func(*Prober)

// WithCommandRunner replaces process execution, for tests.
func WithCommandRunner(r commandRunner) Option {
	return func(p *Prober) {
		if r != nil {
			p.run = r
		}
	}
}

// NewProber constructs a Prober for binary, defaulting to "ffprobe".
func NewProber(binary string, opts ...Option) *Prober {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	p := &Prober{binary: binary, run: defaultCommandRunner}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Inspect probes path and decodes the JSON report.
func (p *Prober) Inspect(ctx context.Context, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	stage, _ := services.StageFromContext(ctx)
	stdout, stderr, err := p.run(ctx, p.binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrToolExecution, stage, "probe",
			fmt.Sprintf("ffprobe failed: %s", strings.TrimSpace(string(stderr))), err)
	}
	var result Result
	if err := json.Unmarshal(stdout, &result); err != nil {
		return Result{}, services.Wrap(services.ErrToolExecution, stage, "probe", "ffprobe output was not JSON", err)
	}
	return result, nil
}

// VideoStreamCount returns the number of video streams.
func (r Result) VideoStreamCount() int {
	return r.countType("video")
}

// AudioStreamCount returns the number of audio streams.
func (r Result) AudioStreamCount() int {
	return r.countType("audio")
}

func (r Result) countType(kind string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			count++
		}
	}
	return count
}

// AudioChannels returns the channel count of the first audio stream, or 0.
func (r Result) AudioChannels() int {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return stream.Channels
		}
	}
	return 0
}

// DurationSeconds returns the container duration, falling back to the longest
// stream duration. Unparseable or missing values yield 0.
func (r Result) DurationSeconds() float64 {
	if d := parseFloat(r.Format.Duration); d > 0 {
		return d
	}
	longest := 0.0
	for _, stream := range r.Streams {
		if d := parseFloat(stream.Duration); d > longest {
			longest = d
		}
	}
	return longest
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0
	}
	return parsed
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
