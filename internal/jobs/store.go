package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrStaleRun is returned when a keyed update targets a run that no longer
// owns the record, or a record that already reached a terminal status.
var ErrStaleRun = errors.New("job run is not current")

// ResetReason is the error message written by ResetStuckProcessing.
const ResetReason = "Reset from stuck processing"

// MarkProcessing starts a new run for jobID. Any previous result, manifest,
// and error are cleared.
func (s *Store) MarkProcessing(ctx context.Context, jobID string, kind Kind, runID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return errors.New("job id is required")
	}
	now := s.timestamp()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO jobs (job_id, kind, status, progress_stage, result_url, manifest_json, error_message, error_kind, run_id, created_at, updated_at, started_at, finished_at)
         VALUES (?, ?, ?, NULL, NULL, NULL, NULL, NULL, ?, ?, ?, ?, NULL)
         ON CONFLICT(job_id) DO UPDATE SET
             kind = excluded.kind,
             status = excluded.status,
             progress_stage = NULL,
             result_url = NULL,
             manifest_json = NULL,
             error_message = NULL,
             error_kind = NULL,
             run_id = excluded.run_id,
             updated_at = excluded.updated_at,
             started_at = excluded.started_at,
             finished_at = NULL`,
		jobID, kind, StatusProcessing, runID, now, now, now,
	)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return nil
}

// UpdateStage records the stage currently executing for the run.
func (s *Store) UpdateStage(ctx context.Context, jobID, runID, stage string) error {
	return s.keyedUpdate(ctx, "update stage",
		`UPDATE jobs SET progress_stage = ?, updated_at = ? WHERE job_id = ? AND run_id = ? AND status = ?`,
		stage, s.timestamp(), jobID, runID, StatusProcessing,
	)
}

// MarkReady records a successful run with its published URL and manifest.
func (s *Store) MarkReady(ctx context.Context, jobID, runID, resultURL, manifestJSON string) error {
	now := s.timestamp()
	return s.keyedUpdate(ctx, "mark ready",
		`UPDATE jobs SET status = ?, result_url = ?, manifest_json = ?, progress_stage = NULL, updated_at = ?, finished_at = ?
         WHERE job_id = ? AND run_id = ? AND status = ?`,
		StatusReady, resultURL, nullableString(manifestJSON), now, now, jobID, runID, StatusProcessing,
	)
}

// MarkFailed records a failed run. The progress stage is kept so operators can
// see where it stopped.
func (s *Store) MarkFailed(ctx context.Context, jobID, runID, message, errorKind string) error {
	now := s.timestamp()
	return s.keyedUpdate(ctx, "mark failed",
		`UPDATE jobs SET status = ?, error_message = ?, error_kind = ?, updated_at = ?, finished_at = ?
         WHERE job_id = ? AND run_id = ? AND status = ?`,
		StatusFailed, nullableString(message), nullableString(errorKind), now, now, jobID, runID, StatusProcessing,
	)
}

func (s *Store) keyedUpdate(ctx context.Context, op, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrStaleRun)
	}
	return nil
}

// Get returns the record for jobID, or nil when the identity has never run.
func (s *Store) Get(ctx context.Context, jobID string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by status set (or all jobs when no status is provided),
// most recently updated first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY updated_at DESC, job_id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// ResetStuckProcessing fails every record left in processing. Runs live only
// in process memory, so a processing row with no running daemon can never
// finish on its own.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	now := s.timestamp()
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, error_kind = ?, updated_at = ?, finished_at = ?
         WHERE status = ?`,
		StatusFailed, ResetReason, "infrastructure", now, now, StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck processing: %w", err)
	}
	return res.RowsAffected()
}
