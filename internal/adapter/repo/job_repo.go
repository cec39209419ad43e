package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"productshot/internal/domain"
	"productshot/internal/infra"
	"productshot/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a new queued job.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertJob,
		job.ID,
		job.UserID,
		job.ProjectID,
		string(job.Mode),
		job.InputAssetID,
		nullableBytes(job.Inputs),
	)
	if err := row.Scan(&job.CreatedAt, &job.UpdatedAt); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	job.Status = domain.JobStatusQueued
	return nil
}

// GetByID fetches a job by its identifier. Ids that are not UUIDs cannot
// exist and report domain.ErrNotFound without a round trip.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	if !validID(jobID) {
		return nil, domain.ErrNotFound
	}
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJobByID, jobID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (r *JobRepositoryPG) MarkRunning(ctx context.Context, jobID string) error {
	return r.transition(ctx, sqlinline.QMarkJobRunning, jobID)
}

func (r *JobRepositoryPG) MarkSucceeded(ctx context.Context, jobID string, costUnits int, outputAssetID string) error {
	return r.transition(ctx, sqlinline.QMarkJobSucceeded, jobID, costUnits, outputAssetID)
}

func (r *JobRepositoryPG) MarkFailed(ctx context.Context, jobID string, message string) error {
	return r.transition(ctx, sqlinline.QMarkJobFailed, jobID, message)
}

func (r *JobRepositoryPG) transition(ctx context.Context, query, jobID string, args ...any) error {
	tag, err := r.sql.Exec(ctx, query, append([]any{jobID}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// ListStale returns non-terminal jobs that started (or were queued) before the cutoff.
func (r *JobRepositoryPG) ListStale(ctx context.Context, before time.Time, limit int) ([]domain.Job, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListStaleJobs, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.Job, error) {
	var job domain.Job
	var mode, status string
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.ProjectID,
		&mode,
		&job.InputAssetID,
		&status,
		&job.Error,
		&job.CostUnits,
		&job.OutputAssetID,
		&job.Inputs,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.StartedAt,
	); err != nil {
		return nil, err
	}
	job.Mode = domain.Mode(mode)
	job.Status = domain.JobStatus(status)
	return &job, nil
}

// validID reports whether id can be cast to the uuid columns.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
