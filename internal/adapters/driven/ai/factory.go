package ai

import (
	"fmt"
	"time"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driven"
)

// Supported embedding providers
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config selects and configures an embedding provider
type Config struct {
	Provider   string
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int // 0 uses the model's known dimension
	Timeout    time.Duration
	RateLimit  RateLimitConfig
}

// IsConfigured returns true when a provider has been chosen
func (c Config) IsConfigured() bool {
	return c.Provider != ""
}

// Factory creates embedding services based on configuration
type Factory struct{}

// NewFactory creates a new AI service factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateEmbeddingService creates an embedding service from config.
// Returns nil, nil if no provider is configured.
func (f *Factory) CreateEmbeddingService(cfg Config) (driven.EmbeddingService, error) {
	if !cfg.IsConfigured() {
		return nil, nil
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIEmbedding(cfg)
	case ProviderOllama:
		return NewOllamaEmbedding(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, cfg.Provider)
	}
}
