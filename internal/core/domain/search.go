package domain

import "time"

// SearchOptions configures a search request
type SearchOptions struct {
	Limit int `json:"limit"`
}

// SearchCandidate is a stored chunk offered to the ranker together with
// the owning document fields the ranking needs.
type SearchCandidate struct {
	Chunk              *Chunk
	DocumentTitle      string
	DocumentUploadedAt time.Time
}

// DocumentMatch is one ranked document in a search result
type DocumentMatch struct {
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	Score      float64   `json:"score"`
	ChunkIndex int       `json:"chunk_index"` // Index of the best-scoring chunk
	Snippet    string    `json:"snippet,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// SearchResult represents the result of a search query
type SearchResult struct {
	Query      string           `json:"query"`
	Results    []*DocumentMatch `json:"results"`
	TotalCount int              `json:"total_count"`
	Took       time.Duration    `json:"took" swaggertype:"integer" example:"1500000"`
}
