package jobs

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "job_id, kind, status, progress_stage, result_url, manifest_json, error_message, error_kind, run_id, created_at, updated_at, started_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id            string
		kind          string
		status        string
		progressStage sql.NullString
		resultURL     sql.NullString
		manifest      sql.NullString
		errorMessage  sql.NullString
		errorKind     sql.NullString
		runID         sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
		startedRaw    sql.NullString
		finishedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&kind,
		&status,
		&progressStage,
		&resultURL,
		&manifest,
		&errorMessage,
		&errorKind,
		&runID,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:            id,
		Kind:          Kind(kind),
		Status:        Status(status),
		ProgressStage: progressStage.String,
		ResultURL:     resultURL.String,
		ManifestJSON:  manifest.String,
		ErrorMessage:  errorMessage.String,
		ErrorKind:     errorKind.String,
		RunID:         runID.String,
		StartedAt:     parseNullableTime(startedRaw),
		FinishedAt:    parseNullableTime(finishedRaw),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	parsed, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
