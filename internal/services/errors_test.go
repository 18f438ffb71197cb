package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"lessonmedia/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrToolExecution, "composite-1", "ffmpeg", "exit status 1", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrToolExecution) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"composite-1", "ffmpeg", "exit status 1", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToRemoteMarker(t *testing.T) {
	err := services.Wrap(nil, "script", "generate", "", nil)
	if !errors.Is(err, services.ErrRemote) {
		t.Fatalf("expected remote marker, got %v", err)
	}
}

func TestDetailsSurvivesOuterWrapping(t *testing.T) {
	inner := services.Wrap(services.ErrShape, "outline", "extract", "expected 3 slides", nil)
	outer := fmt.Errorf("run slideshow: %w", inner)

	details := services.Details(outer)
	if details.Kind != "shape" {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
	if details.Stage != "outline" {
		t.Fatalf("unexpected stage %q", details.Stage)
	}
	if !strings.Contains(details.Message, "expected 3 slides") {
		t.Fatalf("unexpected message %q", details.Message)
	}
}

func TestKindLabels(t *testing.T) {
	cases := map[error]string{
		services.Wrap(services.ErrUpload, "publish", "", "", nil):        "upload",
		services.Wrap(services.ErrMissingAsset, "image", "", "", nil):    "missing_asset",
		services.Wrap(services.ErrInfrastructure, "deps", "", "", nil):   "infrastructure",
		services.Wrap(services.ErrTimeout, "scene-video-1", "", "", nil): "timeout",
		errors.New("plain"): "unknown",
	}
	for err, want := range cases {
		if got := services.Kind(err); got != want {
			t.Fatalf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
	if services.Kind(nil) != "" {
		t.Fatal("expected empty kind for nil error")
	}
}
