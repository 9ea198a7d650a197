// Package memory is an exact-scan vector store held in process memory.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStore = (*Store)(nil)

type row struct {
	segment *domain.Segment
	norm    float64
}

// Store compares every query against every row. Rows are kept in insertion
// order so equal scores resolve to the earlier row.
type Store struct {
	mu        sync.RWMutex
	dimension int
	rows      []row
	closed    bool
}

// NewStore creates an empty store for vectors of the given dimension.
func NewStore(dimension int) *Store {
	if dimension <= 0 {
		dimension = domain.Dimension
	}
	return &Store{dimension: dimension}
}

func (s *Store) Upsert(ctx context.Context, segment *domain.Segment) (string, error) {
	if segment == nil {
		return "", fmt.Errorf("%w: nil segment", domain.ErrStore)
	}
	if len(segment.Embedding) != s.dimension {
		return "", fmt.Errorf("%w: embedding has %d dimensions, want %d", domain.ErrStore, len(segment.Embedding), s.dimension)
	}

	stored := domain.NewSegment(segment.Text, append([]float32(nil), segment.Embedding...), segment.Metadata)
	stored.ID = uuid.NewString()
	if !segment.CreatedAt.IsZero() {
		stored.CreatedAt = segment.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("%w: store is closed", domain.ErrStore)
	}
	s.rows = append(s.rows, row{segment: stored, norm: norm(stored.Embedding)})
	segment.ID = stored.ID
	return stored.ID, nil
}

func (s *Store) UpsertBatch(ctx context.Context, segments []*domain.Segment) ([]string, error) {
	ids := make([]string, 0, len(segments))
	for _, seg := range segments {
		id, err := s.Upsert(ctx, seg)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]*domain.Match, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d", domain.ErrStore, len(vector), s.dimension)
	}
	if k <= 0 {
		return []*domain.Match{}, nil
	}

	qnorm := norm(vector)

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: store is closed", domain.ErrStore)
	}
	matches := make([]*domain.Match, len(s.rows))
	for i, r := range s.rows {
		matches[i] = &domain.Match{Segment: r.segment, Score: cosine(vector, r.segment.Embedding, qnorm, r.norm)}
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.rows)), nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("%w: store is closed", domain.ErrStore)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
