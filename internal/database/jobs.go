package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dashfin/internal/models"
)

const jobColumns = `id, job_type, payload, status, progress, result, attempts, max_attempts, created_at, started_at, completed_at`

func scanJob(row interface{ Scan(...any) error }) (*models.Job, error) {
	var job models.Job
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&job.ID, &job.JobType, &job.Payload, &job.Status, &job.Progress, &job.Result,
		&job.Attempts, &job.MaxAttempts, &job.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return &job, nil
}

// CreateJob creates a new job and returns its ID
func (db *DB) CreateJob(ctx context.Context, jobType string, payload any) (int64, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	var id int64
	err = db.queryRow(ctx, `
		INSERT INTO jobs (job_type, payload, created_at)
		VALUES (?, ?, ?)
		RETURNING id
	`, jobType, string(payloadJSON), time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}
	return id, nil
}

// ClaimNextJob atomically claims the next pending job for processing
func (db *DB) ClaimNextJob(ctx context.Context) (*models.Job, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	job, err := scanJob(tx.QueryRowContext(ctx, db.rebind(`
		SELECT `+jobColumns+`
		FROM jobs
		WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // No pending jobs
	}
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}

	// Only claim if nobody else did in between
	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, db.rebind(`
		UPDATE jobs
		SET status = 'running', started_at = ?, attempts = attempts + 1
		WHERE id = ? AND status = 'pending'
	`), now, job.ID)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	job.Status = "running"
	job.StartedAt = &now
	job.Attempts++

	return job, nil
}

// GetJob returns a job by ID
func (db *DB) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	job, err := scanJob(db.queryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}
	return job, nil
}

// UpdateJobProgress updates the progress percentage of a running job
func (db *DB) UpdateJobProgress(ctx context.Context, id int64, progress int) error {
	if _, err := db.exec(ctx, `UPDATE jobs SET progress = ? WHERE id = ?`, progress, id); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// CompleteJob marks a job as completed with an optional result
func (db *DB) CompleteJob(ctx context.Context, id int64, result string) error {
	_, err := db.exec(ctx, `
		UPDATE jobs
		SET status = 'completed', progress = 100, result = ?, completed_at = ?
		WHERE id = ?
	`, result, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob marks a job as failed with an error message
func (db *DB) FailJob(ctx context.Context, id int64, errMsg string) error {
	_, err := db.exec(ctx, `
		UPDATE jobs
		SET status = 'failed', result = ?, completed_at = ?
		WHERE id = ?
	`, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// RetryJob resets a job to pending status for retry
func (db *DB) RetryJob(ctx context.Context, id int64) error {
	_, err := db.exec(ctx, `
		UPDATE jobs
		SET status = 'pending', started_at = NULL
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	return nil
}
