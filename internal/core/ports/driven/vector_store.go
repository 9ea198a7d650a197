package driven

import (
	"context"

	"github.com/innovest/innovest-rag/internal/core/domain"
)

// VectorStore persists segments with their embeddings and answers k-NN queries.
// A single long-lived handle is shared by ingestion and retrieval.
type VectorStore interface {
	// Upsert appends one segment and returns the store-assigned identifier.
	// Re-inserting identical content creates a new row.
	Upsert(ctx context.Context, segment *domain.Segment) (string, error)

	// UpsertBatch stores segments one by one. Each segment is committed on its own,
	// so on error the returned ids cover the segments written before the failure.
	UpsertBatch(ctx context.Context, segments []*domain.Segment) ([]string, error)

	// Search returns up to k rows ranked by cosine similarity to vector,
	// ties broken by insertion order. No metadata filtering is applied.
	Search(ctx context.Context, vector []float32, k int) ([]*domain.Match, error)

	// Count returns the number of stored rows
	Count(ctx context.Context) (int64, error)

	// Ping checks if the backend is healthy
	Ping(ctx context.Context) error

	// Close releases the handle
	Close() error
}
