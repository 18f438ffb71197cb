package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"lessonmedia/internal/api"
	"lessonmedia/internal/config"
	"lessonmedia/internal/jobs"
	"lessonmedia/internal/logging"
	"lessonmedia/internal/metrics"
	"lessonmedia/internal/stage"
	"lessonmedia/internal/testsupport"
)

type stubRunner struct {
	mu      sync.Mutex
	accept  bool
	calls   []string
	waited  bool
	payload json.RawMessage
	ctxs    []context.Context
}

func (s *stubRunner) Run(ctx context.Context, jobID, kind string, payload json.RawMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, jobID+":"+kind)
	s.ctxs = append(s.ctxs, ctx)
	s.payload = payload
	return s.accept
}

func (s *stubRunner) Active() []string { return []string{"in-flight"} }

func (s *stubRunner) Health() []stage.Health {
	return []stage.Health{stage.Healthy("dialogue-audio"), stage.Unhealthy("slideshow-video", "ffprobe missing")}
}

func (s *stubRunner) Wait() {
	s.mu.Lock()
	s.waited = true
	s.mu.Unlock()
}

func newTestDaemon(t *testing.T, cfg *config.Config, runner *stubRunner) (*Daemon, *jobs.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, store, runner, metrics.New(), nil, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &stubRunner{accept: true}
	d, _ := newTestDaemon(t, cfg, runner)
	t.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Status(ctx).Running {
		t.Fatal("expected daemon to report running")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other, _ := newTestDaemon(t, cfg, &stubRunner{})
	if err := other.Start(ctx); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention, got %v", err)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if !runner.waited {
		t.Fatal("Stop should wait for in-flight runs")
	}
}

func TestSubmitRunsOutliveRequestUntilStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &stubRunner{accept: true}
	d, _ := newTestDaemon(t, cfg, runner)
	t.Cleanup(func() { _ = d.Close() })

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	reqCtx, cancelReq := context.WithCancel(context.Background())
	if _, err := d.Submit(reqCtx, api.SubmitRequest{JobID: "lesson-1", Kind: "dialogue-audio"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	cancelReq()
	runCtx := runner.ctxs[0]
	if runCtx.Err() != nil {
		t.Fatal("run context should not follow the request")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, _ = d.Submit(context.Background(), api.SubmitRequest{JobID: "lesson-2", Kind: "dialogue-audio"})
		}
	}()
	go func() {
		defer wg.Done()
		d.Stop()
	}()
	wg.Wait()

	if runCtx.Err() == nil {
		t.Fatal("Stop should cancel the daemon run context")
	}
}

func TestSubmitValidatesAndReportsDuplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &stubRunner{}
	d, store := newTestDaemon(t, cfg, runner)
	ctx := context.Background()

	if _, err := d.Submit(ctx, api.SubmitRequest{Kind: "dialogue-audio"}); err == nil {
		t.Fatal("missing job_id should be rejected")
	}
	if err := store.MarkProcessing(ctx, "lesson-1", jobs.KindDialogueAudio, "run-a"); err != nil {
		t.Fatal(err)
	}
	resp, err := d.Submit(ctx, api.SubmitRequest{JobID: "lesson-1", Kind: "dialogue-audio"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Accepted || resp.Status != "processing" {
		t.Fatalf("duplicate should report current status, got %#v", resp)
	}
}

func serve(t *testing.T, d *Daemon, token, method, path, body string, header http.Header) (*http.Response, string) {
	t.Helper()
	srv := httptest.NewServer(d.api.routes(token))
	t.Cleanup(srv.Close)
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	for key, values := range header {
		req.Header[key] = values
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, string(data)
}

func TestAPISubmitAcknowledgesImmediately(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &stubRunner{accept: true}
	d, _ := newTestDaemon(t, cfg, runner)

	resp, body := serve(t, d, "", http.MethodPost, "/api/jobs",
		`{"job_id":"lesson-9","kind":"slideshow-video","payload":{"content":"tides"}}`, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", resp.StatusCode, body)
	}
	var ack api.SubmitResponse
	if err := json.Unmarshal([]byte(body), &ack); err != nil {
		t.Fatal(err)
	}
	if !ack.Accepted || ack.JobID != "lesson-9" || ack.Status != "processing" {
		t.Fatalf("unexpected ack %#v", ack)
	}
	if len(runner.calls) != 1 || runner.calls[0] != "lesson-9:slideshow-video" {
		t.Fatalf("runner calls = %v", runner.calls)
	}
	if string(runner.payload) != `{"content":"tides"}` {
		t.Fatalf("payload = %s", runner.payload)
	}

	resp, body = serve(t, d, "", http.MethodPost, "/api/jobs", `{"kind":"slideshow-video"}`, nil)
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body, "job_id") {
		t.Fatalf("expected 400 for missing job id, got %d %s", resp.StatusCode, body)
	}
	resp, _ = serve(t, d, "", http.MethodPost, "/api/jobs", `not json`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad JSON, got %d", resp.StatusCode)
	}
}

func TestAPIJobLookup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store := newTestDaemon(t, cfg, &stubRunner{})
	ctx := context.Background()
	if err := store.MarkProcessing(ctx, "done", jobs.KindDialogueAudio, "run-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkReady(ctx, "done", "run-1", "https://cdn.test/a.mp3", `{"voices":{}}`); err != nil {
		t.Fatal(err)
	}

	_, body := serve(t, d, "", http.MethodGet, "/api/jobs/missing", "", nil)
	var idle api.Job
	if err := json.Unmarshal([]byte(body), &idle); err != nil || idle.Status != "idle" {
		t.Fatalf("absent job should be idle, got %s", body)
	}

	_, body = serve(t, d, "", http.MethodGet, "/api/jobs/done", "", nil)
	var ready api.Job
	if err := json.Unmarshal([]byte(body), &ready); err != nil {
		t.Fatal(err)
	}
	if ready.Status != "ready" || ready.ResultURL != "https://cdn.test/a.mp3" {
		t.Fatalf("unexpected job %#v", ready)
	}

	_, body = serve(t, d, "", http.MethodGet, "/api/jobs?status=ready", "", nil)
	var list api.JobListResponse
	if err := json.Unmarshal([]byte(body), &list); err != nil || len(list.Jobs) != 1 {
		t.Fatalf("unexpected list %s", body)
	}
	resp, _ := serve(t, d, "", http.MethodGet, "/api/jobs?status=bogus", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.StatusCode)
	}
}

func TestAPIStatusAndMetrics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg, &stubRunner{})
	d.metrics.JobStarted("dialogue-audio")

	_, body := serve(t, d, "", http.MethodGet, "/api/status", "", nil)
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(body), &status); err != nil {
		t.Fatal(err)
	}
	if len(status.Active) != 1 || len(status.Kinds) != 2 || status.Kinds[1].Ready {
		t.Fatalf("unexpected status %#v", status)
	}

	resp, body := serve(t, d, "", http.MethodGet, "/metrics", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "lessonmedia_jobs_started_total") {
		t.Fatalf("metrics missing job counter: %d", resp.StatusCode)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg, &stubRunner{})

	resp, _ := serve(t, d, "secret", http.MethodGet, "/api/status", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp, _ = serve(t, d, "secret", http.MethodGet, "/api/status", "", http.Header{"Authorization": {"Bearer secret"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
}
