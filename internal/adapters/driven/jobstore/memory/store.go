// Package memory keeps ingestion job records in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/core/ports/driven"
)

var _ driven.JobStore = (*Store)(nil)

const defaultListLimit = 50

// Store is a JobStore for single-process deployments. Records are copies, so
// callers may keep mutating the job they saved.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]domain.IngestionJob
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]domain.IngestionJob)}
}

func (s *Store) Save(_ context.Context, job *domain.IngestionJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job id required", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*domain.IngestionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return &job, nil
}

func (s *Store) ListByParent(_ context.Context, parentID string, limit int) ([]*domain.IngestionJob, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	s.mu.RLock()
	var out []*domain.IngestionJob
	for _, j := range s.jobs {
		if j.ParentID == parentID {
			job := j
			out = append(out, &job)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
