package ffprobe

import (
	"context"
	"errors"
	"testing"

	"lessonmedia/internal/services"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Duration: "8.0"},
			{CodecType: "audio", Channels: 2, Duration: "8.2"},
			{CodecType: "audio", Channels: 6},
		},
		Format: Format{Duration: "8.25"},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.AudioChannels() != 2 {
		t.Fatalf("expected first audio stream channels, got %d", result.AudioChannels())
	}
	if result.DurationSeconds() != 8.25 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{
		Streams: []Stream{{Duration: "3.5"}, {Duration: "bad"}, {Duration: "4.25"}},
		Format:  Format{Duration: "N/A"},
	}
	if result.DurationSeconds() != 4.25 {
		t.Fatalf("expected longest stream duration, got %v", result.DurationSeconds())
	}
	if (Result{}).DurationSeconds() != 0 {
		t.Fatal("expected zero duration for empty result")
	}
}

func TestInspectDecodesOutput(t *testing.T) {
	var gotArgs []string
	prober := NewProber("", WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
		if name != "ffprobe" {
			t.Fatalf("expected default binary, got %q", name)
		}
		gotArgs = args
		return []byte(`{"streams":[{"codec_type":"audio","channels":1}],"format":{"duration":"12.5"}}`), nil, nil
	}))
	result, err := prober.Inspect(context.Background(), "/tmp/narration.mp3")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.DurationSeconds() != 12.5 || result.AudioChannels() != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if gotArgs[len(gotArgs)-1] != "/tmp/narration.mp3" || gotArgs[len(gotArgs)-2] != "--" {
		t.Fatalf("path should follow --, got %v", gotArgs)
	}
}

func TestInspectFailureIsToolExecution(t *testing.T) {
	prober := NewProber("ffprobe", WithCommandRunner(func(context.Context, string, ...string) ([]byte, []byte, error) {
		return nil, []byte("No such file"), errors.New("exit status 1")
	}))
	ctx := services.WithStage(context.Background(), "composite-1")
	_, err := prober.Inspect(ctx, "missing.mp3")
	if !errors.Is(err, services.ErrToolExecution) {
		t.Fatalf("expected tool execution error, got %v", err)
	}
	if details := services.Details(err); details.Stage != "composite-1" {
		t.Fatalf("expected stage from context, got %+v", details)
	}

	if _, err := prober.Inspect(ctx, "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
