package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/pe-report-extractor/pkg/database"
)

// ErrJobNotFound is returned when no job row has the requested id.
var ErrJobNotFound = errors.New("job not found")

// JobStatus is the lifecycle state of a job row.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is one extraction request and, once completed, where its workbook lives.
type Job struct {
	ID              string
	TemplateID      int
	Status          JobStatus
	OutputPath      string
	FileName        string
	FilesProcessed  int
	FilesSuccessful int
	FilesFailed     int
	ErrorCode       string
	CreatedAt       time.Time
	CompletedAt     time.Time
	ExpiresAt       time.Time
}

// Completion carries the fields recorded when a job finishes successfully.
type Completion struct {
	OutputPath      string
	FileName        string
	FilesProcessed  int
	FilesSuccessful int
	FilesFailed     int
	ExpiresAt       time.Time
}

// JobRepository handles job database operations
type JobRepository struct {
	db     *database.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *database.DB, logger *zap.Logger) *JobRepository {
	return &JobRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Create inserts a running job.
func (r *JobRepository) Create(ctx context.Context, id string, templateID int) (*Job, error) {
	job := &Job{
		ID:         id,
		TemplateID: templateID,
		Status:     JobRunning,
		CreatedAt:  r.now().UTC(),
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (id, template_id, status, created_at) VALUES (?, ?, ?, ?)`,
		job.ID, job.TemplateID, job.Status, job.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create job", zap.String("job_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// Complete marks a job completed and records its output.
func (r *JobRepository) Complete(ctx context.Context, id string, c Completion) error {
	var expiresAt sql.NullTime
	if !c.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: c.ExpiresAt.UTC(), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET
			status = ?, output_path = ?, file_name = ?,
			files_processed = ?, files_successful = ?, files_failed = ?,
			error_code = '', completed_at = ?, expires_at = ?
		WHERE id = ?
	`,
		JobCompleted, c.OutputPath, c.FileName,
		c.FilesProcessed, c.FilesSuccessful, c.FilesFailed,
		r.now().UTC(), expiresAt, id,
	)
	if err != nil {
		r.logger.Error("Failed to complete job", zap.String("job_id", id), zap.Error(err))
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return requireRow(res, id)
}

// Fail marks a job failed with a machine-readable error code. Failed rows
// expire after keep so the janitor can drop them.
func (r *JobRepository) Fail(ctx context.Context, id, errorCode string, keep time.Duration) error {
	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_code = ?, completed_at = ?, expires_at = ? WHERE id = ?`,
		JobFailed, errorCode, now, now.Add(keep), id,
	)
	if err != nil {
		r.logger.Error("Failed to mark job failed", zap.String("job_id", id), zap.Error(err))
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return requireRow(res, id)
}

const jobColumns = `id, template_id, status, output_path, file_name,
	files_processed, files_successful, files_failed, error_code,
	created_at, completed_at, expires_at`

// Get retrieves a job by ID
func (r *JobRepository) Get(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListExpired returns finished jobs whose expiry is at or before now.
func (r *JobRepository) ListExpired(ctx context.Context, now time.Time) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
		WHERE status != ? AND expires_at IS NOT NULL AND expires_at <= ?
		ORDER BY expires_at`,
		JobRunning, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Delete removes a job row. Deleting a missing job is not an error.
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*Job, error) {
	var job Job
	var completedAt, expiresAt sql.NullTime

	err := s.Scan(
		&job.ID,
		&job.TemplateID,
		&job.Status,
		&job.OutputPath,
		&job.FileName,
		&job.FilesProcessed,
		&job.FilesSuccessful,
		&job.FilesFailed,
		&job.ErrorCode,
		&job.CreatedAt,
		&completedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		job.CompletedAt = completedAt.Time
	}
	if expiresAt.Valid {
		job.ExpiresAt = expiresAt.Time
	}
	return &job, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}
