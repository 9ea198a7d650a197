package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/innovest/innovest-rag/internal/core/domain"
)

// MockJobStore keeps ingestion jobs in memory and records every saved state
type MockJobStore struct {
	mu     sync.Mutex
	jobs   map[string]domain.IngestionJob
	states map[string][]domain.JobState

	SaveFn func(job *domain.IngestionJob) error
}

// NewMockJobStore creates a new MockJobStore
func NewMockJobStore() *MockJobStore {
	return &MockJobStore{
		jobs:   make(map[string]domain.IngestionJob),
		states: make(map[string][]domain.JobState),
	}
}

func (m *MockJobStore) Save(ctx context.Context, job *domain.IngestionJob) error {
	if m.SaveFn != nil {
		if err := m.SaveFn(job); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	m.states[job.ID] = append(m.states[job.ID], job.State)
	return nil
}

func (m *MockJobStore) Get(ctx context.Context, id string) (*domain.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

func (m *MockJobStore) ListByParent(ctx context.Context, parentID string, limit int) ([]*domain.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.IngestionJob
	for _, j := range m.jobs {
		if j.ParentID == parentID {
			job := j
			out = append(out, &job)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// States returns the sequence of states saved for a job
func (m *MockJobStore) States(id string) []domain.JobState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.JobState(nil), m.states[id]...)
}
