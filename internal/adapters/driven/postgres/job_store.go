package postgres

import (
	"context"
	"database/sql"

	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.JobStore = (*JobStore)(nil)

// JobStore implements driven.JobStore using PostgreSQL
type JobStore struct {
	db *DB
}

// NewJobStore creates a new JobStore
func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

// Save creates or updates an ingestion job
func (s *JobStore) Save(ctx context.Context, job *domain.IngestionJob) error {
	query := `
		INSERT INTO ingestion_jobs (id, parent_id, document_key, state, error, segments, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			error = EXCLUDED.error,
			segments = EXCLUDED.segments,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at
	`
	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.ParentID,
		job.DocumentKey,
		string(job.State),
		job.Error,
		job.Segments,
		job.CreatedAt,
		job.UpdatedAt,
		NullTime(job.CompletedAt),
	)
	return err
}

// Get retrieves a job by ID
func (s *JobStore) Get(ctx context.Context, id string) (*domain.IngestionJob, error) {
	query := `
		SELECT id, parent_id, document_key, state, error, segments, created_at, updated_at, completed_at
		FROM ingestion_jobs
		WHERE id = $1
	`
	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return job, err
}

// ListByParent returns the jobs of one deal, newest first
func (s *JobStore) ListByParent(ctx context.Context, parentID string, limit int) ([]*domain.IngestionJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, parent_id, document_key, state, error, segments, created_at, updated_at, completed_at
		FROM ingestion_jobs
		WHERE parent_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, parentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.IngestionJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.IngestionJob, error) {
	var job domain.IngestionJob
	var state string
	var completedAt sql.NullTime
	err := row.Scan(
		&job.ID,
		&job.ParentID,
		&job.DocumentKey,
		&state,
		&job.Error,
		&job.Segments,
		&job.CreatedAt,
		&job.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	job.State = domain.JobState(state)
	job.CompletedAt = TimePtr(completedAt)
	return &job, nil
}
