package driving

import (
	"context"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
)

// DocumentService manages a club's training documents. Every call is
// scoped to the caller's club; documents of other clubs are reported as
// domain.ErrNotFound.
type DocumentService interface {
	// Upload validates and stores a PDF, then schedules its ingestion.
	// The returned document has chunk count 0 and state queued.
	Upload(ctx context.Context, req *domain.UploadRequest) (*domain.Document, error)

	// Get returns a document with its current chunk count and ingestion state
	Get(ctx context.Context, clubID, id string) (*domain.Document, error)

	// GetWithChunks returns a document and its chunks in index order
	GetWithChunks(ctx context.Context, clubID, id string) (*domain.DocumentWithChunks, error)

	// List returns a club's documents, newest first
	List(ctx context.Context, clubID string, limit, offset int) ([]*domain.Document, error)

	// Reprocess schedules ingestion from the stored source bytes. Returns
	// domain.ErrIngestionInProgress while a run is queued or active.
	Reprocess(ctx context.Context, clubID, id string) (*domain.Document, error)

	// SetActive includes or excludes the document from search
	SetActive(ctx context.Context, clubID, id string, active bool) (*domain.Document, error)

	// Delete removes the document, its chunks and its source bytes, and
	// cancels any in-flight ingestion run
	Delete(ctx context.Context, clubID, id string) error
}
