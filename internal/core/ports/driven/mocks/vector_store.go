package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/innovest/innovest-rag/internal/core/domain"
)

// MockVectorStore records upserts and returns canned search results.
type MockVectorStore struct {
	mu       sync.Mutex
	segments []*domain.Segment
	nextID   int

	// Custom behavior hooks (optional)
	UpsertFn func(segment *domain.Segment) (string, error)
	SearchFn func(vector []float32, k int) ([]*domain.Match, error)
	PingFn   func() error

	// LastK is the k passed to the most recent Search call
	LastK int
}

// NewMockVectorStore creates a new MockVectorStore
func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{}
}

func (m *MockVectorStore) Upsert(ctx context.Context, segment *domain.Segment) (string, error) {
	if m.UpsertFn != nil {
		id, err := m.UpsertFn(segment)
		if err != nil {
			return "", err
		}
		m.record(segment, id)
		return id, nil
	}

	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("row-%d", m.nextID)
	m.mu.Unlock()

	m.record(segment, id)
	return id, nil
}

func (m *MockVectorStore) UpsertBatch(ctx context.Context, segments []*domain.Segment) ([]string, error) {
	ids := make([]string, 0, len(segments))
	for _, s := range segments {
		id, err := m.Upsert(ctx, s)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MockVectorStore) record(segment *domain.Segment, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	segment.ID = id
	m.segments = append(m.segments, segment)
}

func (m *MockVectorStore) Search(ctx context.Context, vector []float32, k int) ([]*domain.Match, error) {
	m.mu.Lock()
	m.LastK = k
	m.mu.Unlock()

	if m.SearchFn != nil {
		return m.SearchFn(vector, k)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []*domain.Match
	for _, s := range m.segments {
		if len(matches) == k {
			break
		}
		matches = append(matches, &domain.Match{Segment: s, Score: 1})
	}
	return matches, nil
}

func (m *MockVectorStore) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.segments)), nil
}

func (m *MockVectorStore) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

func (m *MockVectorStore) Close() error {
	return nil
}

// Segments returns a copy of everything upserted so far.
func (m *MockVectorStore) Segments() []*domain.Segment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Segment, len(m.segments))
	copy(out, m.segments)
	return out
}
