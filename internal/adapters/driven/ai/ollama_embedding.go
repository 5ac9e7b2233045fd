package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/custodia-labs/clubdocs/internal/core/ports/driven"
)

// Ensure OllamaEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*OllamaEmbedding)(nil)

// OllamaEmbedding implements EmbeddingService using a local Ollama server's
// /api/embed endpoint.
type OllamaEmbedding struct {
	model      string
	baseURL    string
	dimensions int
	client     *apiClient
}

var ollamaModelDimensions = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
}

// NewOllamaEmbedding creates a new Ollama embedding service
func NewOllamaEmbedding(cfg Config) (*OllamaEmbedding, error) {
	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		var ok bool
		if dimensions, ok = ollamaModelDimensions[strings.SplitN(model, ":", 2)[0]]; !ok {
			return nil, errors.New("embedding dimensions must be set for unknown Ollama models")
		}
	}

	return &OllamaEmbedding{
		model:      model,
		baseURL:    baseURL,
		dimensions: dimensions,
		client:     newAPIClient("ollama", cfg.Timeout, cfg.RateLimit),
	}, nil
}

type ollamaEmbedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates embeddings for multiple texts. Truncation is disabled so
// over-long input is rejected rather than silently shortened.
func (e *OllamaEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp ollamaEmbedResponse
	if err := e.client.postJSON(ctx, e.baseURL+"/api/embed", nil,
		ollamaEmbedRequest{Model: e.model, Input: texts, Truncate: false}, &resp); err != nil {
		return nil, err
	}

	if err := checkVectors("ollama", resp.Embeddings, len(texts), e.dimensions); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

// EmbedQuery generates an embedding for a search query
func (e *OllamaEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (e *OllamaEmbedding) Dimensions() int {
	return e.dimensions
}

func (e *OllamaEmbedding) Model() string {
	return e.model
}

// HealthCheck verifies the Ollama server answers and has the model
func (e *OllamaEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "health check")
	return err
}

func (e *OllamaEmbedding) Close() error {
	e.client.close()
	return nil
}
