package driving

import (
	"context"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
)

// IngestionService runs the extraction, chunking, embedding and
// persistence pipeline for one document at a time per document.
type IngestionService interface {
	// Ingest runs the pipeline to a terminal state. Pipeline failures are
	// reported in the result, not as an error. An error means no run took
	// place: domain.ErrIngestionInProgress when another run holds the
	// document, domain.ErrNotFound when it no longer exists.
	Ingest(ctx context.Context, documentID string) (*domain.IngestionResult, error)

	// Cancel stops an in-flight run of this process at its next checkpoint.
	// Returns false if no run was active here.
	Cancel(documentID string) bool

	// IsRunning reports whether this process is ingesting the document
	IsRunning(documentID string) bool
}
