package driving

import (
	"context"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
)

// SearchService ranks a club's active documents against a free-text query
type SearchService interface {
	// Search returns documents ordered by their best chunk's cosine
	// similarity. No match is an empty result, never an error.
	Search(ctx context.Context, clubID, query string, opts domain.SearchOptions) (*domain.SearchResult, error)
}
