package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
)

// MockBlobStore is an in-memory BlobStore for testing
type MockBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	// Custom behavior hooks (optional)
	GetFn func(handle string) ([]byte, error)
}

// NewMockBlobStore creates a new MockBlobStore
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{blobs: make(map[string][]byte)}
}

func (m *MockBlobStore) Put(ctx context.Context, key string, content []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	handle := "mem://" + key
	m.blobs[handle] = append([]byte(nil), content...)
	return handle, nil
}

func (m *MockBlobStore) Get(ctx context.Context, handle string) ([]byte, error) {
	if m.GetFn != nil {
		return m.GetFn(handle)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[handle]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func (m *MockBlobStore) Delete(ctx context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, handle)
	return nil
}

func (m *MockBlobStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
