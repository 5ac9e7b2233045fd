package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
)

// MockChunkStore is a mock implementation of ChunkStore for testing.
// It is backed by a MockDocumentStore so that replacing chunks keeps the
// document's chunk count in step and fails once the document is gone,
// as the database foreign key does.
type MockChunkStore struct {
	mu         sync.RWMutex
	docs       *MockDocumentStore
	byDocument map[string][]*domain.Chunk

	// ReplaceCalls counts ReplaceForDocument invocations
	ReplaceCalls int

	// Custom behavior hooks (optional)
	ReplaceFn func(documentID string, chunks []*domain.Chunk) error
}

// NewMockChunkStore creates a new MockChunkStore over docs
func NewMockChunkStore(docs *MockDocumentStore) *MockChunkStore {
	return &MockChunkStore{
		docs:       docs,
		byDocument: make(map[string][]*domain.Chunk),
	}
}

func (m *MockChunkStore) ReplaceForDocument(ctx context.Context, documentID string, chunks []*domain.Chunk) error {
	m.mu.Lock()
	m.ReplaceCalls++
	m.mu.Unlock()

	if m.ReplaceFn != nil {
		if err := m.ReplaceFn(documentID, chunks); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.docs.setChunkCount(documentID, len(chunks)) {
		return domain.ErrNotFound
	}
	m.byDocument[documentID] = append([]*domain.Chunk(nil), chunks...)
	return nil
}

func (m *MockChunkStore) GetByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.Chunk(nil), m.byDocument[documentID]...), nil
}

func (m *MockChunkStore) ListForClub(ctx context.Context, clubID string) ([]*domain.SearchCandidate, error) {
	docs := m.docs.snapshot()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.SearchCandidate
	for _, d := range docs {
		if d.ClubID != clubID || !d.Active {
			continue
		}
		for _, c := range m.byDocument[d.ID] {
			out = append(out, &domain.SearchCandidate{
				Chunk:              c,
				DocumentTitle:      d.Title,
				DocumentUploadedAt: d.UploadedAt,
			})
		}
	}
	return out, nil
}

func (m *MockChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byDocument, documentID)
	return nil
}

// Helper methods for testing

func (m *MockChunkStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, chunks := range m.byDocument {
		n += len(chunks)
	}
	return n
}
