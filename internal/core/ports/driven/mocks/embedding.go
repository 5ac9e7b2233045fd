package mocks

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing.
// Vectors are hashed bags of words, so texts sharing vocabulary score a
// high cosine similarity and an exact substring of a passage ranks that
// passage above unrelated ones.
type MockEmbeddingService struct {
	mu         sync.Mutex
	dimensions int
	model      string
	calls      int

	// Custom behavior hooks (optional). EmbedFn runs per text; returning
	// a nil vector with a nil error falls through to the default embedding.
	EmbedFn       func(text string) ([]float32, error)
	HealthCheckFn func() error
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions: 384,
		model:      "mock-embedding-model",
	}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		result[i] = vec
	}
	return result, nil
}

func (m *MockEmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return m.embedOne(ctx, query)
}

func (m *MockEmbeddingService) embedOne(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	fn := m.EmbedFn
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fn != nil {
		vec, err := fn(text)
		if err != nil || vec != nil {
			return vec, err
		}
	}
	return m.generateEmbedding(text), nil
}

func (m *MockEmbeddingService) Dimensions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dimensions
}

func (m *MockEmbeddingService) Model() string {
	return m.model
}

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	if m.HealthCheckFn != nil {
		return m.HealthCheckFn()
	}
	return nil
}

func (m *MockEmbeddingService) Close() error {
	return nil
}

// generateEmbedding hashes each lower-cased word into a bucket
func (m *MockEmbeddingService) generateEmbedding(text string) []float32 {
	m.mu.Lock()
	dims := m.dimensions
	m.mu.Unlock()

	embedding := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		embedding[h.Sum32()%uint32(dims)]++
	}
	return embedding
}

// Helper methods for testing

func (m *MockEmbeddingService) SetDimensions(dim int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimensions = dim
}

// Calls returns how many texts have been embedded
func (m *MockEmbeddingService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
