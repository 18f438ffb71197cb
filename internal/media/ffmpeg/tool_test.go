package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"lessonmedia/internal/logging"
	"lessonmedia/internal/services"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	// fail returns a stderr/error pair for the call, or nil error to succeed.
	fail func(idx int, args []string) ([]byte, error)
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	idx := len(f.calls)
	f.calls = append(f.calls, call{name: name, args: append([]string(nil), args...)})
	f.mu.Unlock()
	if f.fail != nil {
		return f.fail(idx, args)
	}
	return nil, nil
}

type recordingObserver struct {
	ops  []string
	errs int
}

func (o *recordingObserver) ToolRun(tool, op string, _ time.Duration, err error) {
	o.ops = append(o.ops, tool+":"+op)
	if err != nil {
		o.errs++
	}
}

func testSettings() Settings {
	return Settings{
		Binary:       "ffmpeg-test",
		AudioCodec:   "libmp3lame",
		AudioBitrate: "96k",
		Font:         Font{Name: "Sans"},
		Layout: Layout{
			CanvasWidth: 1920, CanvasHeight: 1080, CanvasColor: "0x0F172A", FrameRate: 30,
			ImageSize: 720, ImageX: 100, ImageY: 180, TextX: 900,
			TitleY: 200, TitleFontSize: 56, BulletY: 340, BulletSpacing: 80, BulletFontSize: 36,
		},
	}
}

func argValue(t *testing.T, args []string, flag string) string {
	t.Helper()
	idx := slices.Index(args, flag)
	if idx < 0 || idx+1 >= len(args) {
		t.Fatalf("flag %s missing from %v", flag, args)
	}
	return args[idx+1]
}

func TestTranscodePCMArgs(t *testing.T) {
	runner := &fakeRunner{}
	tool := NewTool(testSettings(), logging.NewNop(), WithCommandRunner(runner.run))
	err := tool.TranscodePCM(context.Background(), PCMInput{Path: "in.pcm", SampleRate: 24000, Channels: 1}, "out.mp3")
	if err != nil {
		t.Fatalf("TranscodePCM: %v", err)
	}
	if len(runner.calls) != 1 || runner.calls[0].name != "ffmpeg-test" {
		t.Fatalf("unexpected calls %+v", runner.calls)
	}
	args := runner.calls[0].args
	if argValue(t, args, "-f") != "s16le" || argValue(t, args, "-ar") != "24000" || argValue(t, args, "-ac") != "1" {
		t.Fatalf("raw input parameters must be explicit: %v", args)
	}
	if slices.Index(args, "-f") > slices.Index(args, "-i") {
		t.Fatalf("input format must precede -i: %v", args)
	}
	if argValue(t, args, "-c:a") != "libmp3lame" || argValue(t, args, "-b:a") != "96k" {
		t.Fatalf("unexpected codec args: %v", args)
	}
	if args[len(args)-1] != "out.mp3" || args[0] != "-hide_banner" {
		t.Fatalf("unexpected arg framing: %v", args)
	}

	if err := tool.TranscodePCM(context.Background(), PCMInput{Path: "in.pcm"}, "out.mp3"); err == nil {
		t.Fatal("expected error when rate and channels are missing")
	}
}

func TestCompositeGraphLayout(t *testing.T) {
	runner := &fakeRunner{}
	tool := NewTool(testSettings(), logging.NewNop(), WithCommandRunner(runner.run))
	req := CompositeRequest{
		ImagePath:  "slide.png",
		AudioPath:  "narration.mp3",
		Title:      "Photosynthesis: the basics",
		Bullets:    []string{"Light [energy]", "Water; CO2", "Sugar's made"},
		MaxSeconds: 30,
		Output:     "segment.mp4",
	}
	if err := tool.Composite(context.Background(), req); err != nil {
		t.Fatalf("Composite: %v", err)
	}
	args := runner.calls[0].args
	graph := argValue(t, args, "-filter_complex")

	if strings.Count(graph, "drawtext=") != 4 {
		t.Fatalf("expected title plus 3 bullets, got %q", graph)
	}
	for _, want := range []string{
		"[0:v]scale=w=720:h=720:force_original_aspect_ratio=increase[scaled]",
		"[scaled]crop=w=720:h=720[img]",
		"color=c=0x0F172A:s=1920x1080:r=30[bg]",
		"[bg][img]overlay=x=100:y=180:shortest=1[v0]",
		"text='Photosynthesis the basics'",
		"y=200[v1]", "y=340[v2]", "y=420[v3]", "y=500[v4]",
		"[v4]format=yuv420p[vout]",
	} {
		if !strings.Contains(graph, want) {
			t.Errorf("graph missing %q:\n%s", want, graph)
		}
	}
	if strings.Contains(graph, "Sugar's") || strings.Contains(graph, "CO2;") {
		t.Fatalf("bullet text was not sanitized: %s", graph)
	}
	if argValue(t, args, "-loop") != "1" || argValue(t, args, "-t") != "30.000" {
		t.Fatalf("unexpected loop/limit args: %v", args)
	}
	if !slices.Contains(args, "-shortest") || argValue(t, args, "-map") != "[vout]" {
		t.Fatalf("audio must drive duration: %v", args)
	}
}

func TestCompositeSkipsEmptyText(t *testing.T) {
	runner := &fakeRunner{}
	tool := NewTool(testSettings(), logging.NewNop(), WithCommandRunner(runner.run))
	err := tool.Composite(context.Background(), CompositeRequest{
		ImagePath: "a.png", AudioPath: "a.mp3", Title: "!!!", Bullets: []string{"", "Only one"}, Output: "o.mp4",
	})
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	args := runner.calls[0].args
	graph := argValue(t, args, "-filter_complex")
	if strings.Count(graph, "drawtext=") != 1 || !strings.Contains(graph, "[v1]format=yuv420p[vout]") {
		t.Fatalf("unexpected graph %q", graph)
	}
	if slices.Contains(args, "-t") {
		t.Fatalf("no duration cap requested: %v", args)
	}
}

func TestExecFailureWrapsAndRemovesOutput(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "partial.mp3")
	if err := os.WriteFile(output, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	runner := &fakeRunner{fail: func(int, []string) ([]byte, error) {
		return []byte("line one\nInvalid data found when processing input\n"), errors.New("exit status 1")
	}}
	observer := &recordingObserver{}
	tool := NewTool(testSettings(), logging.NewNop(), WithCommandRunner(runner.run), WithObserver(observer))

	ctx := services.WithStage(context.Background(), "transcode")
	err := tool.TranscodePCM(ctx, PCMInput{Path: "in.pcm", SampleRate: 24000, Channels: 1}, output)
	if !errors.Is(err, services.ErrToolExecution) {
		t.Fatalf("expected tool execution error, got %v", err)
	}
	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecError in chain, got %T", err)
	}
	if !strings.Contains(execErr.Stderr, "Invalid data") || !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("stderr not surfaced: %v", err)
	}
	if services.Details(err).Stage != "transcode" {
		t.Fatalf("expected stage in details, got %+v", services.Details(err))
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Fatalf("partial output should be removed, stat err = %v", statErr)
	}
	if len(observer.ops) != 1 || observer.ops[0] != "ffmpeg:transcode" || observer.errs != 1 {
		t.Fatalf("unexpected observer record %+v", observer)
	}
}

func TestStderrTailKeepsLastLines(t *testing.T) {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, "line")
	}
	lines = append(lines, "final error")
	tail := stderrTail(strings.Join(lines, "\n"))
	if !strings.HasSuffix(tail, "final error") || strings.Count(tail, " | ") != stderrTailLines-1 {
		t.Fatalf("unexpected tail %q", tail)
	}
	if stderrTail("  ") != "<no stderr>" {
		t.Fatal("expected placeholder for empty stderr")
	}
}

func TestNewToolDefaults(t *testing.T) {
	tool := NewTool(Settings{}, nil)
	if tool.Binary() != "ffmpeg" || tool.settings.AudioCodec != "libmp3lame" || tool.settings.Font.Name != "Sans" {
		t.Fatalf("unexpected defaults %+v", tool.settings)
	}
}
