package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driven"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driving"
)

// Ensure searchService implements SearchService
var _ driving.SearchService = (*searchService)(nil)

const snippetLength = 240

// searchService ranks stored chunks by cosine similarity to the query
type searchService struct {
	chunkStore driven.ChunkStore
	embedder   driven.EmbeddingService
	config     domain.PipelineConfig
	logger     *slog.Logger
}

// NewSearchService creates a new SearchService
func NewSearchService(
	chunkStore driven.ChunkStore,
	embedder driven.EmbeddingService,
	config domain.PipelineConfig,
	logger *slog.Logger,
) driving.SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &searchService{
		chunkStore: chunkStore,
		embedder:   embedder,
		config:     config,
		logger:     logger.With("component", "search"),
	}
}

// Search embeds the query and returns the club's active documents ordered
// by their best chunk, one entry per document.
func (s *searchService) Search(ctx context.Context, clubID, query string, opts domain.SearchOptions) (*domain.SearchResult, error) {
	start := time.Now()

	if clubID == "" {
		return nil, domain.ValidationError("club id is required")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ValidationError("query is required")
	}
	limit := s.config.ClampSearchLimit(opts.Limit)

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := s.chunkStore.ListForClub(ctx, clubID)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	best := make(map[string]*domain.DocumentMatch)
	skipped := 0
	for _, c := range candidates {
		if len(c.Chunk.Embedding) != len(queryVec) {
			skipped++
			continue
		}
		score := CosineSimilarity(queryVec, c.Chunk.Embedding)
		if score < s.config.MinScore {
			continue
		}

		cur, ok := best[c.Chunk.DocumentID]
		if ok && (cur.Score > score || (cur.Score == score && cur.ChunkIndex < c.Chunk.Index)) {
			continue
		}
		best[c.Chunk.DocumentID] = &domain.DocumentMatch{
			DocumentID: c.Chunk.DocumentID,
			Title:      c.DocumentTitle,
			Score:      score,
			ChunkIndex: c.Chunk.Index,
			Snippet:    snippet(c.Chunk.Content),
			UploadedAt: c.DocumentUploadedAt,
		}
	}
	if skipped > 0 {
		s.logger.Warn("skipped chunks of a different embedding dimension",
			"club_id", clubID, "skipped", skipped, "dimensions", len(queryVec))
	}

	matches := make([]*domain.DocumentMatch, 0, len(best))
	for _, m := range best {
		matches = append(matches, m)
	}
	sortMatches(matches)

	total := len(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}

	return &domain.SearchResult{
		Query:      query,
		Results:    matches,
		TotalCount: total,
		Took:       time.Since(start),
	}, nil
}

// sortMatches orders by score descending, then earliest upload, then chunk
// index, then document ID so equal inputs always rank the same way.
func sortMatches(matches []*domain.DocumentMatch) {
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.UploadedAt.Equal(b.UploadedAt) {
			return a.UploadedAt.Before(b.UploadedAt)
		}
		if a.ChunkIndex != b.ChunkIndex {
			return a.ChunkIndex < b.ChunkIndex
		}
		return a.DocumentID < b.DocumentID
	})
}

// CosineSimilarity returns the cosine of the angle between a and b.
// A zero vector is similar to nothing and scores 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func snippet(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= snippetLength {
		return string(runes)
	}
	cut := snippetLength
	for i := snippetLength; i > snippetLength/2; i-- {
		if runes[i] == ' ' {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut])) + "…"
}
