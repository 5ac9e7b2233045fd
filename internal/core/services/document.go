package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driven"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driving"
)

// Ensure documentService implements DocumentService
var _ driving.DocumentService = (*documentService)(nil)

// documentService implements the DocumentService interface
type documentService struct {
	documentStore driven.DocumentStore
	chunkStore    driven.ChunkStore
	blobStore     driven.BlobStore
	taskQueue     driven.TaskQueue
	ingestion     driving.IngestionService
	config        domain.PipelineConfig
	logger        *slog.Logger
}

// DocumentServiceConfig holds dependencies for the document service.
type DocumentServiceConfig struct {
	DocumentStore driven.DocumentStore
	ChunkStore    driven.ChunkStore
	BlobStore     driven.BlobStore
	TaskQueue     driven.TaskQueue
	Ingestion     driving.IngestionService
	Config        domain.PipelineConfig
	Logger        *slog.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(cfg DocumentServiceConfig) driving.DocumentService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &documentService{
		documentStore: cfg.DocumentStore,
		chunkStore:    cfg.ChunkStore,
		blobStore:     cfg.BlobStore,
		taskQueue:     cfg.TaskQueue,
		ingestion:     cfg.Ingestion,
		config:        cfg.Config,
		logger:        logger.With("component", "documents"),
	}
}

// Upload stores the source bytes and the document record, then queues
// ingestion. It returns as soon as the record exists.
func (s *documentService) Upload(ctx context.Context, req *domain.UploadRequest) (*domain.Document, error) {
	if req == nil {
		return nil, domain.ValidationError("upload request is required")
	}
	if err := req.Validate(s.config.MaxUploadBytes); err != nil {
		return nil, err
	}

	doc := domain.NewDocument(req)

	handle, err := s.blobStore.Put(ctx, fmt.Sprintf("%s/%s.pdf", doc.ClubID, doc.ID), req.Content)
	if err != nil {
		return nil, fmt.Errorf("store source: %w", err)
	}
	doc.StoragePath = handle

	if err := s.documentStore.Save(ctx, doc); err != nil {
		_ = s.blobStore.Delete(context.WithoutCancel(ctx), handle)
		return nil, fmt.Errorf("save document: %w", err)
	}

	if err := s.schedule(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("document uploaded",
		"document_id", doc.ID,
		"club_id", doc.ClubID,
		"bytes", len(req.Content),
	)
	return doc, nil
}

// schedule queues an ingestion task. A document whose task could not be
// queued is marked failed rather than left queued forever.
func (s *documentService) schedule(ctx context.Context, doc *domain.Document) error {
	if err := s.taskQueue.Enqueue(ctx, domain.NewIngestDocumentTask(doc.ClubID, doc.ID)); err != nil {
		s.logger.Error("failed to queue ingestion", "document_id", doc.ID, "error", err)
		msg := fmt.Sprintf("could not queue ingestion: %v", err)
		if uerr := s.documentStore.UpdateIngestionState(context.WithoutCancel(ctx), doc.ID, domain.IngestionStateFailed, msg, 0); uerr != nil {
			s.logger.Error("failed to record queue failure", "document_id", doc.ID, "error", uerr)
		}
		return fmt.Errorf("%w: queue ingestion: %v", domain.ErrServiceUnavailable, err)
	}
	return nil
}

// Get retrieves a document of the club
func (s *documentService) Get(ctx context.Context, clubID, id string) (*domain.Document, error) {
	return s.documentStore.GetForClub(ctx, clubID, id)
}

// GetWithChunks retrieves a document with its chunks in index order
func (s *documentService) GetWithChunks(ctx context.Context, clubID, id string) (*domain.DocumentWithChunks, error) {
	doc, err := s.documentStore.GetForClub(ctx, clubID, id)
	if err != nil {
		return nil, err
	}

	chunks, err := s.chunkStore.GetByDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	return &domain.DocumentWithChunks{
		Document: doc,
		Chunks:   chunks,
	}, nil
}

// List retrieves a club's documents with pagination
func (s *documentService) List(ctx context.Context, clubID string, limit, offset int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return s.documentStore.ListByClub(ctx, clubID, limit, offset)
}

// Reprocess queues a fresh run over the stored source bytes.
func (s *documentService) Reprocess(ctx context.Context, clubID, id string) (*domain.Document, error) {
	doc, err := s.documentStore.GetForClub(ctx, clubID, id)
	if err != nil {
		return nil, err
	}
	if s.inFlight(doc) {
		return nil, domain.ErrIngestionInProgress
	}

	if err := s.documentStore.UpdateIngestionState(ctx, id, domain.IngestionStateQueued, "", 0); err != nil {
		return nil, fmt.Errorf("reset ingestion state: %w", err)
	}
	if err := s.schedule(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("document reprocess queued", "document_id", id, "club_id", clubID)
	return s.documentStore.GetForClub(ctx, clubID, id)
}

// inFlight reports whether a run is queued or active for the document.
// A non-terminal state older than the run lock TTL belongs to a run that
// died without recording its outcome and does not count.
func (s *documentService) inFlight(doc *domain.Document) bool {
	if s.ingestion != nil && s.ingestion.IsRunning(doc.ID) {
		return true
	}
	if doc.IngestionState == "" || doc.IngestionState.IsTerminal() {
		return false
	}
	ttl := s.config.LockTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return time.Since(doc.UpdatedAt) < ttl
}

// SetActive includes or excludes the document from search
func (s *documentService) SetActive(ctx context.Context, clubID, id string, active bool) (*domain.Document, error) {
	if _, err := s.documentStore.GetForClub(ctx, clubID, id); err != nil {
		return nil, err
	}
	if err := s.documentStore.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	s.logger.Info("document visibility changed", "document_id", id, "club_id", clubID, "active", active)
	return s.documentStore.GetForClub(ctx, clubID, id)
}

// Delete removes a document with its chunks and source bytes
func (s *documentService) Delete(ctx context.Context, clubID, id string) error {
	doc, err := s.documentStore.GetForClub(ctx, clubID, id)
	if err != nil {
		return err
	}

	if s.ingestion != nil && s.ingestion.Cancel(id) {
		s.logger.Info("cancelled in-flight ingestion", "document_id", id)
	}

	if err := s.chunkStore.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := s.documentStore.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete document: %w", err)
	}
	if doc.StoragePath != "" {
		if err := s.blobStore.Delete(ctx, doc.StoragePath); err != nil {
			// The record is gone; an orphaned blob is only wasted space
			s.logger.Warn("failed to delete source bytes", "document_id", id, "error", err)
		}
	}

	s.logger.Info("document deleted", "document_id", id, "club_id", clubID)
	return nil
}
