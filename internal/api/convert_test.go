package api

import (
	"encoding/json"
	"testing"
	"time"

	"lessonmedia/internal/jobs"
)

func TestFromJobNilIsIdle(t *testing.T) {
	got := FromJob("lesson-1", nil)
	if got.JobID != "lesson-1" || got.Status != "idle" {
		t.Fatalf("unexpected %#v", got)
	}
}

func TestFromJobPassesManifestThrough(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	job := &jobs.Job{
		ID:           "lesson-1",
		Kind:         jobs.KindSlideshowVideo,
		Status:       jobs.StatusReady,
		ResultURL:    "https://cdn.test/final.mp4",
		ManifestJSON: `{"segments":[1,2]}`,
		CreatedAt:    started,
		UpdatedAt:    started,
		StartedAt:    &started,
	}
	got := FromJob(job.ID, job)
	if got.StartedAt != "2026-03-01T10:00:00.000Z" || got.FinishedAt != "" {
		t.Fatalf("unexpected timestamps %q %q", got.StartedAt, got.FinishedAt)
	}
	encoded, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatal(err)
	}
	manifest, ok := decoded["manifest"].(map[string]any)
	if !ok || len(manifest["segments"].([]any)) != 2 {
		t.Fatalf("manifest not embedded as an object: %s", encoded)
	}
}

func TestFromJobDropsInvalidManifest(t *testing.T) {
	got := FromJob("x", &jobs.Job{ID: "x", Status: jobs.StatusReady, ManifestJSON: "{broken"})
	if got.Manifest != nil {
		t.Fatalf("invalid manifest should be omitted, got %s", got.Manifest)
	}
}

func TestFromCountsIncludesZeroes(t *testing.T) {
	got := FromCounts(map[jobs.Status]int{jobs.StatusReady: 3})
	if got["ready"] != 3 || got["failed"] != 0 || len(got) != 3 {
		t.Fatalf("unexpected counts %v", got)
	}
}
