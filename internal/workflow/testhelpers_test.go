package workflow_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"lessonmedia/internal/config"
	"lessonmedia/internal/deps"
	"lessonmedia/internal/jobs"
	"lessonmedia/internal/logging"
	"lessonmedia/internal/media/ffmpeg"
	"lessonmedia/internal/media/ffprobe"
	"lessonmedia/internal/metrics"
	"lessonmedia/internal/notifications"
	"lessonmedia/internal/publisher"
	"lessonmedia/internal/services/genai"
	"lessonmedia/internal/staging"
	"lessonmedia/internal/testsupport"
	"lessonmedia/internal/workflow"
)

const pcmMIME = "audio/L16;codec=pcm;rate=24000"

type fakeGenerator struct {
	mu       sync.Mutex
	manifest string
	requests []genai.Request
	submits  []genai.Request
	awaits   int
	// gate, when set, blocks every text request until it is closed.
	gate chan struct{}
	// panicOn panics for requests of this mode.
	panicOn genai.Mode
}

func (f *fakeGenerator) Generate(ctx context.Context, req genai.Request) (genai.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	gate := f.gate
	f.mu.Unlock()

	if f.panicOn != "" && req.Mode == f.panicOn {
		panic("generator exploded")
	}
	switch req.Mode {
	case genai.ModeText:
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return genai.Response{}, ctx.Err()
			}
		}
		return genai.Response{Text: f.manifest, FinishReason: "STOP"}, nil
	case genai.ModeImage:
		return genai.Response{Inline: &genai.InlineData{MIMEType: "image/png", Data: []byte("png")}}, nil
	case genai.ModeAudio:
		return genai.Response{Inline: &genai.InlineData{MIMEType: pcmMIME, Data: []byte{0, 1, 0, 1}}}, nil
	}
	return genai.Response{}, fmt.Errorf("unexpected mode %q", req.Mode)
}

func (f *fakeGenerator) SubmitVideo(_ context.Context, req genai.Request) (genai.Operation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, req)
	return genai.Operation{Name: fmt.Sprintf("operations/%d", len(f.submits))}, nil
}

func (f *fakeGenerator) AwaitOperation(_ context.Context, op genai.Operation) (genai.Operation, error) {
	f.mu.Lock()
	f.awaits++
	f.mu.Unlock()
	op.Done = true
	op.VideoURI = "https://video.test/" + strings.TrimPrefix(op.Name, "operations/")
	return op, nil
}

func (f *fakeGenerator) Download(_ context.Context, uri, dest string) (int64, error) {
	return 3, os.WriteFile(dest, []byte(uri), 0o644)
}

func (f *fakeGenerator) byMode(mode genai.Mode) []genai.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []genai.Request
	for _, req := range f.requests {
		if req.Mode == mode {
			out = append(out, req)
		}
	}
	return out
}

type fakeMedia struct {
	mu         sync.Mutex
	transcodes []ffmpeg.PCMInput
	composites []ffmpeg.CompositeRequest
	stitches   []ffmpeg.StitchRequest
	stitchErr  error
}

func (f *fakeMedia) TranscodePCM(_ context.Context, in ffmpeg.PCMInput, output string) error {
	f.mu.Lock()
	f.transcodes = append(f.transcodes, in)
	f.mu.Unlock()
	return os.WriteFile(output, []byte("mp3"), 0o644)
}

func (f *fakeMedia) Composite(_ context.Context, req ffmpeg.CompositeRequest) error {
	f.mu.Lock()
	f.composites = append(f.composites, req)
	f.mu.Unlock()
	return os.WriteFile(req.Output, []byte("mp4"), 0o644)
}

func (f *fakeMedia) Stitch(_ context.Context, req ffmpeg.StitchRequest) (ffmpeg.StitchMode, error) {
	f.mu.Lock()
	f.stitches = append(f.stitches, req)
	f.mu.Unlock()
	if f.stitchErr != nil {
		return "", f.stitchErr
	}
	return ffmpeg.StitchStreamCopy, os.WriteFile(req.Output, []byte("final"), 0o644)
}

func (f *fakeMedia) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transcodes) + len(f.composites) + len(f.stitches)
}

// fakeProber reports durations keyed by file base name. Files listed in
// withAudio also report a stereo audio stream.
type fakeProber struct {
	durations map[string]string
	fallback  string
	withAudio map[string]bool
}

func (f *fakeProber) Inspect(_ context.Context, path string) (ffprobe.Result, error) {
	duration, ok := f.durations[filepath.Base(path)]
	if !ok {
		duration = f.fallback
	}
	result := ffprobe.Result{Format: ffprobe.Format{Duration: duration}}
	if f.withAudio[filepath.Base(path)] {
		result.Streams = []ffprobe.Stream{{CodecType: "audio", Channels: 2}}
	}
	return result, nil
}

type publishedAsset struct {
	name    string
	kind    publisher.ContentKind
	content []byte
}

type fakePublisher struct {
	mu     sync.Mutex
	assets []publishedAsset
	err    error
}

func (f *fakePublisher) PublishAt(_ context.Context, jobID, localPath string, kind publisher.ContentKind, ts time.Time) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	content, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets = append(f.assets, publishedAsset{name: filepath.Base(localPath), kind: kind, content: content})
	return "https://cdn.test/" + publisher.ObjectKey(jobID, ts, localPath), nil
}

func (f *fakePublisher) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.assets))
	for i, asset := range f.assets {
		out[i] = asset.name
	}
	return out
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) Close() error { return nil }

func (r *recordingNotifier) snapshot() []notifications.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Event(nil), r.events...)
}

type harness struct {
	cfg         *config.Config
	store       *jobs.Store
	gen         *fakeGenerator
	media       *fakeMedia
	prober      *fakeProber
	publisher   *fakePublisher
	notifier    *recordingNotifier
	coordinator *workflow.Coordinator
}

type harnessOption func(*harness, *workflow.Dependencies)

func withBinaries(availability deps.Availability) harnessOption {
	return func(_ *harness, d *workflow.Dependencies) {
		d.Binaries = availability
	}
}

func newHarness(t *testing.T, manifest string, opts ...harnessOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	h := &harness{
		cfg:       cfg,
		store:     testsupport.MustOpenStore(t, cfg),
		gen:       &fakeGenerator{manifest: manifest},
		media:     &fakeMedia{},
		prober:    &fakeProber{durations: map[string]string{}, fallback: "12.5"},
		publisher: &fakePublisher{},
		notifier:  &recordingNotifier{},
	}
	d := workflow.Dependencies{
		Config:    cfg,
		Store:     h.store,
		Generator: h.gen,
		Media:     h.media,
		Prober:    h.prober,
		Stager:    staging.NewStager(cfg.Paths.StagingDir, false, logging.NewNop()),
		Publisher: h.publisher,
		Notifier:  h.notifier,
		Metrics:   metrics.New(),
		Logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h, &d)
	}
	coordinator, err := workflow.NewCoordinator(d)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	h.coordinator = coordinator
	return h
}

// runToCompletion starts a run, waits for it, and returns the persisted job.
func (h *harness) runToCompletion(t *testing.T, jobID string, kind jobs.Kind, payload string) *jobs.Job {
	t.Helper()
	if !h.coordinator.Run(context.Background(), jobID, string(kind), json.RawMessage(payload)) {
		t.Fatalf("Run(%s) was not accepted", jobID)
	}
	h.coordinator.Wait()
	job, err := h.store.Get(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Get(%s): %v", jobID, err)
	}
	if job == nil {
		t.Fatalf("job %s was not persisted", jobID)
	}
	return job
}

func requireReady(t *testing.T, job *jobs.Job) {
	t.Helper()
	if job.Status != jobs.StatusReady {
		t.Fatalf("expected ready, got %s (kind=%s stage=%s error=%s)", job.Status, job.ErrorKind, job.ProgressStage, job.ErrorMessage)
	}
	if job.ResultURL == "" {
		t.Fatal("ready job has no result URL")
	}
}

func decodeManifest(t *testing.T, job *jobs.Job) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(job.ManifestJSON), &out); err != nil {
		t.Fatalf("manifest is not JSON: %v (%s)", err, job.ManifestJSON)
	}
	return out
}

const lessonPayload = `{"title":"Photosynthesis","content":"How plants turn light into sugar.","audience":"grade 5"}`
