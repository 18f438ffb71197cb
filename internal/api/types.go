package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SubmitRequest triggers a run.
type SubmitRequest struct {
	JobID   string          `json:"job_id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// SubmitResponse acknowledges a trigger. Accepted is false when a run for the
// same identity is already in flight.
type SubmitResponse struct {
	Accepted bool   `json:"accepted"`
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
}

// Job describes a job record in a transport-friendly format.
type Job struct {
	JobID         string          `json:"job_id"`
	Kind          string          `json:"kind,omitempty"`
	Status        string          `json:"status"`
	ProgressStage string          `json:"progress_stage,omitempty"`
	ResultURL     string          `json:"result_url,omitempty"`
	Manifest      json.RawMessage `json:"manifest,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	ErrorKind     string          `json:"error_kind,omitempty"`
	RunID         string          `json:"run_id,omitempty"`
	CreatedAt     string          `json:"created_at,omitempty"`
	UpdatedAt     string          `json:"updated_at,omitempty"`
	StartedAt     string          `json:"started_at,omitempty"`
	FinishedAt    string          `json:"finished_at,omitempty"`
}

// JobListResponse wraps GET /api/jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// KindHealth mirrors readiness reporting for one job kind.
type KindHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Path        string `json:"path,omitempty"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"database_path"`
	LockFilePath string             `json:"lock_file_path"`
	Active       []string           `json:"active"`
	JobCounts    map[string]int     `json:"job_counts"`
	Kinds        []KindHealth       `json:"kinds"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
