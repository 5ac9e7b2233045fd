package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
)

// MockDocumentStore is a mock implementation of DocumentStore for testing.
// Stored documents are copied in and out so callers never share memory
// with the store.
type MockDocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*domain.Document

	// States records every ingestion state written, per document
	States map[string][]domain.IngestionState

	// Custom behavior hooks (optional)
	UpdateStateFn func(id string, state domain.IngestionState) error
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		documents: make(map[string]*domain.Document),
		States:    make(map[string][]domain.IngestionState),
	}
}

func (m *MockDocumentStore) Save(ctx context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.documents[doc.ID] = &cp
	return nil
}

func (m *MockDocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *MockDocumentStore) GetForClub(ctx context.Context, clubID, id string) (*domain.Document, error) {
	doc, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.ClubID != clubID {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (m *MockDocumentStore) ListByClub(ctx context.Context, clubID string, limit, offset int) ([]*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []*domain.Document
	for _, d := range m.documents {
		if d.ClubID == clubID {
			cp := *d
			docs = append(docs, &cp)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})

	if offset >= len(docs) {
		return []*domain.Document{}, nil
	}
	end := len(docs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return docs[offset:end], nil
}

func (m *MockDocumentStore) UpdateIngestionState(ctx context.Context, id string, state domain.IngestionState, errMsg string, failedPassages int) error {
	if m.UpdateStateFn != nil {
		if err := m.UpdateStateFn(id, state); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	doc.IngestionState = state
	doc.IngestionError = errMsg
	doc.FailedPassages = failedPassages
	doc.UpdatedAt = now
	if state == domain.IngestionStateCompleted || state == domain.IngestionStatePartiallyCompleted {
		doc.IngestedAt = &now
	}
	m.States[id] = append(m.States[id], state)
	return nil
}

func (m *MockDocumentStore) ListStalled(ctx context.Context, before time.Time, limit int) ([]*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []*domain.Document
	for _, d := range m.documents {
		if !d.IngestionState.IsTerminal() && d.UpdatedAt.Before(before) {
			cp := *d
			docs = append(docs, &cp)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UpdatedAt.Before(docs[j].UpdatedAt)
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (m *MockDocumentStore) SetActive(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Active = active
	return nil
}

func (m *MockDocumentStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.documents, id)
	return nil
}

// Helper methods for testing

// StatesFor returns the ingestion states recorded for a document, in order.
func (m *MockDocumentStore) StatesFor(id string) []domain.IngestionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.IngestionState(nil), m.States[id]...)
}

func (m *MockDocumentStore) setChunkCount(id string, n int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return false
	}
	doc.ChunkCount = n
	return true
}

func (m *MockDocumentStore) snapshot() []domain.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Document, 0, len(m.documents))
	for _, d := range m.documents {
		out = append(out, *d)
	}
	return out
}

func (m *MockDocumentStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.documents)
}
