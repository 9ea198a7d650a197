package driven

import (
	"context"

	"github.com/innovest/innovest-rag/internal/core/domain"
)

// JobStore records ingestion job state so uploads can be inspected after the fact.
type JobStore interface {
	// Save creates or updates a job
	Save(ctx context.Context, job *domain.IngestionJob) error

	// Get retrieves a job by ID, domain.ErrNotFound if unknown
	Get(ctx context.Context, id string) (*domain.IngestionJob, error)

	// ListByParent returns the jobs of one deal, newest first
	ListByParent(ctx context.Context, parentID string, limit int) ([]*domain.IngestionJob, error)
}
