package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chatvault/chatvault/internal/types"
)

// CreateJob inserts job as a new row with the status it carries
// (types.JobPending when submitted by the Coordinator), rejecting the
// insert with ErrConflict if an active (pending or running) job already
// exists for the same target and pattern — spec.md §3: "at most one Job
// may be pending or running for a given (target, pattern) pair at a
// time." The check and insert run inside one BEGIN IMMEDIATE transaction,
// the same pattern ReplaceConversation uses, so two concurrent Submit
// calls for the same (target, pattern) can't both observe zero active
// jobs before either writes: BEGIN IMMEDIATE takes the write lock up
// front and serializes the second caller behind the first.
func (s *Store) CreateJob(ctx context.Context, job types.Job) error {
	return s.withRetryingConn(ctx, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		committed := false
		defer func() {
			if !committed {
				_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
			}
		}()

		var active int
		err := conn.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM jobs
			WHERE target_id = ? AND pattern = ? AND status IN ('pending', 'running')
		`, job.TargetID, string(job.Pattern)).Scan(&active)
		if err != nil {
			return fmt.Errorf("check active job: %w", err)
		}
		if active > 0 {
			return ErrConflict
		}

		if _, err := conn.ExecContext(ctx, `
			INSERT INTO jobs (id, type, target_id, target_name, pattern, status, result_path, error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, '', '', ?)
		`, job.ID, string(job.Type), job.TargetID, job.TargetName, string(job.Pattern), string(job.Status), job.CreatedAt.Unix()); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}

		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		committed = true
		return nil
	})
}

// GetJob loads a single job by ID.
func (s *Store) GetJob(ctx context.Context, id string) (types.Job, error) {
	row := s.ro.QueryRowContext(ctx, `
		SELECT id, type, target_id, target_name, pattern, status, progress, result_path, error,
		       created_at, started_at, finished_at, last_heartbeat_at
		FROM jobs WHERE id = ?
	`, id)
	job, err := scanJob(row)
	if err != nil {
		return types.Job{}, wrapDBError("get job", err)
	}
	return job, nil
}

// FindActiveJob returns the pending/running job for a (target, pattern)
// pair if one exists, used by `chatvault job submit` to short-circuit a
// duplicate submission rather than erroring (spec.md §4.7).
func (s *Store) FindActiveJob(ctx context.Context, targetID string, pattern types.Pattern) (types.Job, bool, error) {
	row := s.ro.QueryRowContext(ctx, `
		SELECT id, type, target_id, target_name, pattern, status, progress, result_path, error,
		       created_at, started_at, finished_at, last_heartbeat_at
		FROM jobs WHERE target_id = ? AND pattern = ? AND status IN ('pending', 'running')
		ORDER BY created_at DESC LIMIT 1
	`, targetID, string(pattern))
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return types.Job{}, false, nil
	}
	if err != nil {
		return types.Job{}, false, wrapDBError("find active job", err)
	}
	return job, true, nil
}

// ListJobs returns jobs ordered newest first, optionally filtered by
// target.
func (s *Store) ListJobs(ctx context.Context, targetID string) ([]types.Job, error) {
	query := `
		SELECT id, type, target_id, target_name, pattern, status, progress, result_path, error,
		       created_at, started_at, finished_at, last_heartbeat_at
		FROM jobs`
	var args []any
	if targetID != "" {
		query += ` WHERE target_id = ?`
		args = append(args, targetID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.ro.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list jobs", err)
	}
	defer rows.Close()

	var out []types.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, wrapDBError("scan job", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// ListAbandonedJobs returns running jobs whose last heartbeat is at
// least maxAge old (or missing), meaning the Worker subprocess died without reaching a
// terminal status (spec.md §9 Design Notes).
func (s *Store) ListAbandonedJobs(ctx context.Context, maxAge time.Duration) ([]types.Job, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	rows, err := s.ro.QueryContext(ctx, `
		SELECT id, type, target_id, target_name, pattern, status, progress, result_path, error,
		       created_at, started_at, finished_at, last_heartbeat_at
		FROM jobs
		WHERE status = 'running' AND (last_heartbeat_at IS NULL OR last_heartbeat_at <= ?)
	`, cutoff)
	if err != nil {
		return nil, wrapDBError("list abandoned jobs", err)
	}
	defer rows.Close()

	var out []types.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, wrapDBError("scan job", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// UpdateJobStatus transitions a job's status, stamping started_at or
// finished_at as appropriate and recording an error message for failed
// transitions.
func (s *Store) UpdateJobStatus(ctx context.Context, id string, status types.JobStatus, errMsg string, resultPath string) error {
	now := time.Now().Unix()
	switch status {
	case types.JobRunning:
		_, err := s.rw.ExecContext(ctx, `UPDATE jobs SET status = ?, started_at = ?, last_heartbeat_at = ? WHERE id = ?`, string(status), now, now, id)
		return wrapDBError("update job status", err)
	case types.JobDone:
		_, err := s.rw.ExecContext(ctx, `UPDATE jobs SET status = ?, finished_at = ?, result_path = ? WHERE id = ?`, string(status), now, resultPath, id)
		return wrapDBError("update job status", err)
	case types.JobFailed:
		_, err := s.rw.ExecContext(ctx, `UPDATE jobs SET status = ?, finished_at = ?, error = ? WHERE id = ?`, string(status), now, errMsg, id)
		return wrapDBError("update job status", err)
	default:
		_, err := s.rw.ExecContext(ctx, `UPDATE jobs SET status = ? WHERE id = ?`, string(status), id)
		return wrapDBError("update job status", err)
	}
}

// UpdateJobProgress records the current/total/message snapshot a running
// job reports, and refreshes its heartbeat in the same statement so
// progress reporting doubles as liveness (spec.md §4.7 "Progress
// reporting").
func (s *Store) UpdateJobProgress(ctx context.Context, id string, progress types.Progress) error {
	buf, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	_, err = s.rw.ExecContext(ctx, `UPDATE jobs SET progress = ?, last_heartbeat_at = ? WHERE id = ?`, string(buf), time.Now().Unix(), id)
	return wrapDBError("update job progress", err)
}

// TouchJobHeartbeat refreshes last_heartbeat_at without changing status
// or progress, used by a worker that is still running but has nothing
// new to report.
func (s *Store) TouchJobHeartbeat(ctx context.Context, id string) error {
	_, err := s.rw.ExecContext(ctx, `UPDATE jobs SET last_heartbeat_at = ? WHERE id = ?`, time.Now().Unix(), id)
	return wrapDBError("touch job heartbeat", err)
}

// CancelJob marks a pending or running job cancelled, returning
// ErrConflict if the job has already reached a terminal status.
func (s *Store) CancelJob(ctx context.Context, id string) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return ErrConflict
	}
	return s.UpdateJobStatus(ctx, id, types.JobFailed, "cancelled", "")
}

// DeleteJob removes a job row. The caller is responsible for removing
// any on-disk artifact at ResultPath first (spec.md §4.7 "Cancellation
// semantics": deletion removes the row and the artifact but never
// signals the Worker process).
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	res, err := s.rw.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return wrapDBError("delete job", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("delete job", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (types.Job, error) {
	var job types.Job
	var jobType, pattern, status string
	var progress sql.NullString
	var createdAt int64
	var startedAt, finishedAt, heartbeatAt sql.NullInt64

	err := row.Scan(
		&job.ID, &jobType, &job.TargetID, &job.TargetName, &pattern, &status,
		&progress, &job.ResultPath, &job.Error,
		&createdAt, &startedAt, &finishedAt, &heartbeatAt,
	)
	if err != nil {
		return types.Job{}, err
	}

	job.Type = types.JobType(jobType)
	job.Pattern = types.Pattern(pattern)
	job.Status = types.JobStatus(status)
	job.CreatedAt = time.Unix(createdAt, 0)

	if progress.Valid {
		var p types.Progress
		if err := json.Unmarshal([]byte(progress.String), &p); err == nil {
			job.Progress = &p
		}
	}
	if startedAt.Valid {
		t := time.Unix(startedAt.Int64, 0)
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0)
		job.FinishedAt = &t
	}
	if heartbeatAt.Valid {
		t := time.Unix(heartbeatAt.Int64, 0)
		job.LastHeartbeatAt = &t
	}
	return job, nil
}
