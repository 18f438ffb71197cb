package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig(baseURL string) Config {
	return Config{
		APIKey:       "test-key",
		BaseURL:      baseURL,
		TextModel:    "text-model",
		ImageModel:   "image-model",
		SpeechModel:  "speech-model",
		VideoModel:   "video-model",
		PollInterval: 10 * time.Second,
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Errorf("decode request body: %v", err)
	}
	return body
}

func writeJSON(t *testing.T, w http.ResponseWriter, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestGenerateTextRequestsJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/text-model:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("unexpected api key header %q", got)
		}
		body := decodeBody(t, r)
		gc, _ := body["generationConfig"].(map[string]any)
		if gc["responseMimeType"] != "application/json" {
			t.Errorf("expected json mime type, got %#v", gc)
		}
		writeJSON(t, w, map[string]any{
			"candidates": []any{map[string]any{
				"content":      map[string]any{"parts": []any{map[string]any{"text": `{"title":"Water"}`}}},
				"finishReason": "STOP",
			}},
		})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	resp, err := client.Generate(context.Background(), Request{
		Mode:   ModeText,
		Prompt: "outline the water cycle",
		Config: GenerationConfig{ResponseMIMEType: "application/json"},
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.Text != `{"title":"Water"}` || resp.FinishReason != "STOP" {
		t.Fatalf("unexpected response %#v", resp)
	}
}

func TestGenerateImageDecodesInlineAndSendsReference(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/image-model:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body := decodeBody(t, r)
		contents := body["contents"].([]any)
		parts := contents[0].(map[string]any)["parts"].([]any)
		if len(parts) != 2 {
			t.Errorf("expected prompt and reference parts, got %d", len(parts))
		}
		gc := body["generationConfig"].(map[string]any)
		if modalities := gc["responseModalities"].([]any); modalities[0] != "IMAGE" {
			t.Errorf("unexpected modalities %#v", modalities)
		}
		writeJSON(t, w, map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{
					map[string]any{"inlineData": map[string]any{
						"mimeType": "image/png",
						"data":     base64.StdEncoding.EncodeToString(png),
					}},
				}},
			}},
		})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	resp, err := client.Generate(context.Background(), Request{
		Mode:   ModeImage,
		Prompt: "anchor frame",
		Config: GenerationConfig{ReferenceImages: []InlineData{{MIMEType: "image/png", Data: []byte("sheet")}}},
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.Inline == nil || resp.Inline.MIMEType != "image/png" || string(resp.Inline.Data) != string(png) {
		t.Fatalf("unexpected inline payload %#v", resp.Inline)
	}
}

func TestGenerateAudioMultiSpeaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		gc := body["generationConfig"].(map[string]any)
		speech := gc["speechConfig"].(map[string]any)
		multi, ok := speech["multiSpeakerVoiceConfig"].(map[string]any)
		if !ok {
			t.Errorf("expected multi speaker config, got %#v", speech)
		} else if configs := multi["speakerVoiceConfigs"].([]any); len(configs) != 2 {
			t.Errorf("expected 2 speaker configs, got %d", len(configs))
		}
		if speech["languageCode"] != "es" {
			t.Errorf("languageCode = %v, want es", speech["languageCode"])
		}
		writeJSON(t, w, map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{
					map[string]any{"inlineData": map[string]any{
						"mimeType": "audio/L16;codec=pcm;rate=24000",
						"data":     base64.StdEncoding.EncodeToString([]byte{0, 0, 1, 0}),
					}},
				}},
			}},
		})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	resp, err := client.Generate(context.Background(), Request{
		Mode:   ModeAudio,
		Prompt: "Ana: Hi\nBen: Hello",
		Config: GenerationConfig{
			Speakers:     []SpeakerVoice{{Speaker: "Ana", Voice: "Kore"}, {Speaker: "Ben", Voice: "Puck"}},
			LanguageCode: "es",
		},
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	format, err := ParsePCMFormat(resp.Inline.MIMEType)
	if err != nil {
		t.Fatalf("ParsePCMFormat returned error: %v", err)
	}
	if format.SampleRate != 24000 || format.Channels != 1 || format.SampleFormat != "s16le" {
		t.Fatalf("unexpected pcm format %#v", format)
	}
}

func TestGenerateHTTPErrorReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"code":429,"message":"quota"}}`)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	_, err := client.Generate(context.Background(), Request{Mode: ModeText, Prompt: "x"})
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || !strings.Contains(statusErr.Error(), "quota") {
		t.Fatalf("unexpected status error %v", statusErr)
	}
}

func TestGenerateRequiresAPIKey(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.APIKey = ""
	if _, err := NewClient(cfg).Generate(context.Background(), Request{Mode: ModeText, Prompt: "x"}); err == nil {
		t.Fatal("expected api key error")
	}
}

func TestSubmitAwaitAndDownloadVideo(t *testing.T) {
	var polls atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/models/video-model:predictLongRunning":
			body := decodeBody(t, r)
			instance := body["instances"].([]any)[0].(map[string]any)
			if _, ok := instance["image"]; !ok {
				t.Errorf("expected seed image in instance")
			}
			params := body["parameters"].(map[string]any)
			if params["aspectRatio"] != "16:9" || params["resolution"] != "720p" {
				t.Errorf("unexpected parameters %#v", params)
			}
			writeJSON(t, w, map[string]any{"name": "models/video-model/operations/op-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/models/video-model/operations/op-1":
			if polls.Add(1) < 3 {
				writeJSON(t, w, map[string]any{"name": "models/video-model/operations/op-1", "done": false})
				return
			}
			writeJSON(t, w, map[string]any{
				"name": "models/video-model/operations/op-1",
				"done": true,
				"response": map[string]any{"generateVideoResponse": map[string]any{
					"generatedSamples": []any{map[string]any{"video": map[string]any{"uri": server.URL + "/files/clip-1:download"}}},
				}},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/files/clip-1:download":
			if r.Header.Get("x-goog-api-key") != "test-key" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			_, _ = io.WriteString(w, "mp4-bytes")
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	var observed []bool
	client := NewClient(testConfig(server.URL), WithSleeper(noSleep), WithPollObserver(func(done bool) {
		observed = append(observed, done)
	}))
	ctx := context.Background()
	op, err := client.SubmitVideo(ctx, Request{
		Mode:   ModeVideo,
		Prompt: "scene one",
		Config: GenerationConfig{
			AspectRatio:     "16:9",
			Resolution:      "720p",
			DurationSeconds: 8,
			ReferenceImages: []InlineData{{MIMEType: "image/png", Data: []byte("frame")}},
		},
	})
	if err != nil {
		t.Fatalf("SubmitVideo returned error: %v", err)
	}
	done, err := client.AwaitOperation(ctx, op)
	if err != nil {
		t.Fatalf("AwaitOperation returned error: %v", err)
	}
	if !done.Done || !strings.HasSuffix(done.VideoURI, "/files/clip-1:download") {
		t.Fatalf("unexpected operation %#v", done)
	}
	if len(observed) != 3 || !observed[2] {
		t.Fatalf("unexpected poll observations %v", observed)
	}

	dest := filepath.Join(t.TempDir(), "scene-1.mp4")
	n, err := client.Download(ctx, done.VideoURI, dest)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if n != int64(len("mp4-bytes")) || string(data) != "mp4-bytes" {
		t.Fatalf("unexpected download %d %q", n, data)
	}
}

func TestAwaitOperationTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"name": "operations/slow", "done": false})
	}))
	defer server.Close()

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := testConfig(server.URL)
	cfg.PollTimeout = 35 * time.Second
	client := NewClient(cfg,
		WithClock(func() time.Time { return clock }),
		WithSleeper(func(_ context.Context, d time.Duration) error {
			clock = clock.Add(d)
			return nil
		}),
	)

	_, err := client.AwaitOperation(context.Background(), Operation{Name: "operations/slow"})
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
	if !strings.Contains(err.Error(), "4 polls") {
		t.Fatalf("expected four polls before timeout, got %v", err)
	}
}

func TestAwaitOperationReportsOperationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"name":  "operations/bad",
			"done":  true,
			"error": map[string]any{"code": 3, "message": "prompt rejected"},
		})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), WithSleeper(noSleep))
	_, err := client.AwaitOperation(context.Background(), Operation{Name: "operations/bad"})
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %v", err)
	}
	if opErr.Message != "prompt rejected" {
		t.Fatalf("unexpected message %q", opErr.Message)
	}
}

func TestAwaitOperationHonorsContext(t *testing.T) {
	client := NewClient(testConfig("http://127.0.0.1:1"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.AwaitOperation(ctx, Operation{Name: "operations/x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/text-model" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(t, w, map[string]any{"name": "models/text-model"})
	}))
	defer server.Close()

	if err := NewClient(testConfig(server.URL)).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestParsePCMFormatRejectsUnknownMime(t *testing.T) {
	if _, err := ParsePCMFormat("audio/mpeg"); err == nil {
		t.Fatal("expected error for non-pcm mime")
	}
	format, err := ParsePCMFormat("audio/L16;rate=16000;channels=2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format.SampleRate != 16000 || format.Channels != 2 {
		t.Fatalf("unexpected format %#v", format)
	}
}
