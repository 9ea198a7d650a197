package mocks

import (
	"context"
	"sync"

	"github.com/innovest/innovest-rag/internal/core/domain"
)

// MockBlobStore serves documents from an in-memory map
type MockBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	FetchFn func(key string) ([]byte, error)
}

// NewMockBlobStore creates a new MockBlobStore
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{blobs: make(map[string][]byte)}
}

func (m *MockBlobStore) FetchBytes(ctx context.Context, key string) ([]byte, error) {
	if m.FetchFn != nil {
		return m.FetchFn(key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

// Put stores data under key
func (m *MockBlobStore) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
}
