package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
)

// DocumentStore persists document metadata and ingestion state (PostgreSQL)
type DocumentStore interface {
	// Save creates or updates a document
	Save(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by ID regardless of club.
	// Used by background workers; request paths use GetForClub.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// GetForClub retrieves a document only if it belongs to the club.
	// Returns domain.ErrNotFound for other clubs' documents.
	GetForClub(ctx context.Context, clubID, id string) (*domain.Document, error)

	// ListByClub retrieves a club's documents, newest first
	ListByClub(ctx context.Context, clubID string, limit, offset int) ([]*domain.Document, error)

	// UpdateIngestionState records the state of the current ingestion run.
	// Reaching a terminal success state also stamps ingested_at.
	UpdateIngestionState(ctx context.Context, id string, state domain.IngestionState, errMsg string, failedPassages int) error

	// ListStalled returns documents left in a non-terminal ingestion state
	// that have not been updated since before, oldest first
	ListStalled(ctx context.Context, before time.Time, limit int) ([]*domain.Document, error)

	// SetActive toggles whether the document takes part in search
	SetActive(ctx context.Context, id string, active bool) error

	// Delete removes a document; its chunks go with it
	Delete(ctx context.Context, id string) error
}

// ChunkStore persists embedded passages (PostgreSQL + pgvector)
type ChunkStore interface {
	// ReplaceForDocument swaps the full chunk set of a document and its
	// chunk count in one transaction. Either every new chunk is visible or
	// none are. Returns domain.ErrNotFound if the document no longer exists.
	ReplaceForDocument(ctx context.Context, documentID string, chunks []*domain.Chunk) error

	// GetByDocument retrieves a document's chunks in index order
	GetByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error)

	// ListForClub retrieves every chunk of the club's active documents
	ListForClub(ctx context.Context, clubID string) ([]*domain.SearchCandidate, error)

	// DeleteByDocument removes all chunks for a document
	DeleteByDocument(ctx context.Context, documentID string) error
}

// BlobStore holds the original uploaded bytes, addressed by an opaque handle
type BlobStore interface {
	// Put stores content and returns its handle
	Put(ctx context.Context, key string, content []byte) (string, error)

	// Get returns the content behind a handle
	Get(ctx context.Context, handle string) ([]byte, error)

	// Delete removes the content; deleting a missing handle is not an error
	Delete(ctx context.Context, handle string) error
}
