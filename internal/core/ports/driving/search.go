package driving

import (
	"context"

	"github.com/innovest/innovest-rag/internal/core/domain"
)

// RetrievalService answers free-text queries against stored segments
type RetrievalService interface {
	// Search returns up to maxResults segment texts, most relevant first.
	// An empty parentID searches every deal; maxResults <= 0 means the default.
	// Filtered queries may return fewer results than requested.
	Search(ctx context.Context, query, parentID string, maxResults int) ([]string, error)

	// SearchDetailed is Search with timing and candidate counts
	SearchDetailed(ctx context.Context, q domain.SearchQuery) (*domain.SearchResult, error)
}
