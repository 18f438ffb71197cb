package jobs

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a job record.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusIdle, StatusProcessing, StatusReady, StatusFailed}

// ParseStatus resolves a user supplied status name.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Terminal reports whether the status ends a run.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// Kind selects the media pipeline a job runs through.
type Kind string

const (
	KindCinematicVideo   Kind = "cinematic-video"
	KindSlideshowVideo   Kind = "slideshow-video"
	KindDialogueAudio    Kind = "dialogue-audio"
	KindIllustratedStory Kind = "illustrated-story"
)

// Kinds lists every supported job kind in display order.
func Kinds() []Kind {
	return []Kind{KindCinematicVideo, KindSlideshowVideo, KindDialogueAudio, KindIllustratedStory}
}

// ParseKind resolves a kind name, returning an error naming the valid choices.
func ParseKind(value string) (Kind, error) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	for _, kind := range Kinds() {
		if kind == normalized {
			return kind, nil
		}
	}
	names := make([]string, 0, len(Kinds()))
	for _, kind := range Kinds() {
		names = append(names, string(kind))
	}
	return "", fmt.Errorf("unknown job kind %q (expected one of %s)", value, strings.Join(names, ", "))
}

// Job is the persisted record for one job identity.
type Job struct {
	ID            string     `json:"job_id"`
	Kind          Kind       `json:"kind"`
	Status        Status     `json:"status"`
	ProgressStage string     `json:"progress_stage,omitempty"`
	ResultURL     string     `json:"result_url,omitempty"`
	ManifestJSON  string     `json:"manifest_json,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	ErrorKind     string     `json:"error_kind,omitempty"`
	RunID         string     `json:"run_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Elapsed returns how long the current or last run took.
func (j *Job) Elapsed(now time.Time) time.Duration {
	if j == nil || j.StartedAt == nil {
		return 0
	}
	end := now
	if j.FinishedAt != nil {
		end = *j.FinishedAt
	}
	if end.Before(*j.StartedAt) {
		return 0
	}
	return end.Sub(*j.StartedAt)
}
