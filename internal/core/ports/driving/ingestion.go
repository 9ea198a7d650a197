package driving

import (
	"context"

	"github.com/innovest/innovest-rag/internal/core/domain"
)

// IngestionService turns uploaded documents into searchable segments
type IngestionService interface {
	// Ingest schedules a document of a deal for background ingestion and returns
	// immediately. Only enqueue failures and invalid handles are reported.
	Ingest(ctx context.Context, parentID, documentKey string) (*domain.IngestionJob, error)

	// Process runs the full pipeline for one job. Called by workers.
	// The job is left in STORED or FAILED; the returned error mirrors FAILED.
	Process(ctx context.Context, job *domain.IngestionJob) error

	// GetJob returns the recorded state of an ingestion job
	GetJob(ctx context.Context, id string) (*domain.IngestionJob, error)

	// ListJobs returns the ingestion jobs of a deal, newest first
	ListJobs(ctx context.Context, parentID string, limit int) ([]*domain.IngestionJob, error)
}
