package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/core/ports/driven"
	"github.com/innovest/innovest-rag/internal/core/ports/driving"
	"github.com/innovest/innovest-rag/internal/observability"
)

var _ driving.RetrievalService = (*retrievalService)(nil)

type retrievalService struct {
	embedder driven.EmbeddingService
	store    driven.VectorStore
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// RetrievalServiceConfig holds dependencies for the retrieval service.
type RetrievalServiceConfig struct {
	Embedder driven.EmbeddingService
	Store    driven.VectorStore
	Metrics  *observability.Metrics // Optional
	Logger   *slog.Logger
}

// NewRetrievalService creates a new RetrievalService
func NewRetrievalService(cfg RetrievalServiceConfig) driving.RetrievalService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &retrievalService{
		embedder: cfg.Embedder,
		store:    cfg.Store,
		metrics:  cfg.Metrics,
		logger:   logger,
	}
}

// Search returns the texts of the nearest segments, best first.
func (s *retrievalService) Search(ctx context.Context, query, parentID string, maxResults int) ([]string, error) {
	result, err := s.SearchDetailed(ctx, domain.SearchQuery{
		Query:      query,
		ParentID:   parentID,
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, err
	}
	return result.Texts, nil
}

// SearchDetailed fetches k = MaxResults neighbours without a server-side
// filter, then drops those of other deals. Filtered queries may therefore
// return fewer than MaxResults texts even when the deal has more segments.
func (s *retrievalService) SearchDetailed(ctx context.Context, q domain.SearchQuery) (result *domain.SearchResult, err error) {
	q.Normalize()
	start := time.Now()

	ctx, span := observability.StartRetrievalSpan(ctx, q.ParentID, q.MaxResults)
	defer func() { observability.EndSpan(span, err) }()

	vector, err := s.embedder.EmbedQuery(ctx, q.Query)
	if err != nil {
		return nil, ensureKind(domain.ErrEmbedding, err)
	}

	matches, err := s.store.Search(ctx, vector, q.MaxResults)
	if err != nil {
		return nil, ensureKind(domain.ErrStore, err)
	}

	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		if m == nil || m.Segment == nil {
			continue
		}
		if q.IsFiltered() && m.Segment.ParentID() != q.ParentID {
			continue
		}
		texts = append(texts, m.Segment.Text)
	}

	s.metrics.ObserveQuery(q.IsFiltered(), len(texts))
	s.logger.Debug("search completed",
		"parent_id", q.ParentID,
		"max_results", q.MaxResults,
		"candidates", len(matches),
		"results", len(texts),
	)

	return &domain.SearchResult{
		Query:      q.Query,
		ParentID:   q.ParentID,
		Texts:      texts,
		Candidates: len(matches),
		Took:       time.Since(start),
	}, nil
}

// ensureKind wraps err with kind unless it already carries it.
func ensureKind(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %v", kind, err)
}
