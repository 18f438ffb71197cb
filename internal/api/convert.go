package api

import (
	"encoding/json"
	"strings"
	"time"

	"lessonmedia/internal/deps"
	"lessonmedia/internal/jobs"
	"lessonmedia/internal/stage"
)

// FromJob converts a store record. A nil record is reported as idle.
func FromJob(jobID string, job *jobs.Job) Job {
	if job == nil {
		return Job{JobID: jobID, Status: string(jobs.StatusIdle)}
	}
	out := Job{
		JobID:         job.ID,
		Kind:          string(job.Kind),
		Status:        string(job.Status),
		ProgressStage: job.ProgressStage,
		ResultURL:     job.ResultURL,
		ErrorMessage:  job.ErrorMessage,
		ErrorKind:     job.ErrorKind,
		RunID:         job.RunID,
		CreatedAt:     formatTime(job.CreatedAt),
		UpdatedAt:     formatTime(job.UpdatedAt),
	}
	if manifest := strings.TrimSpace(job.ManifestJSON); manifest != "" && json.Valid([]byte(manifest)) {
		out.Manifest = json.RawMessage(manifest)
	}
	if job.StartedAt != nil {
		out.StartedAt = formatTime(*job.StartedAt)
	}
	if job.FinishedAt != nil {
		out.FinishedAt = formatTime(*job.FinishedAt)
	}
	return out
}

// FromJobs converts a list of store records.
func FromJobs(records []*jobs.Job) []Job {
	out := make([]Job, 0, len(records))
	for _, job := range records {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job.ID, job))
	}
	return out
}

// FromDependencies converts binary checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Path:        dep.Path,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

// FromHealth converts per-kind readiness.
func FromHealth(health []stage.Health) []KindHealth {
	out := make([]KindHealth, len(health))
	for i, h := range health {
		out[i] = KindHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail}
	}
	return out
}

// FromCounts flattens store stats, including zero counts for every status.
func FromCounts(stats map[jobs.Status]int) map[string]int {
	out := map[string]int{
		string(jobs.StatusProcessing): 0,
		string(jobs.StatusReady):      0,
		string(jobs.StatusFailed):     0,
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
