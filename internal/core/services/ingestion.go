package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driven"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.IngestionService = (*IngestionOrchestrator)(nil)

// IngestionOrchestrator runs the document pipeline:
//  1. Claim the document in the run registry
//  2. Extract page text from the stored source bytes
//  3. Normalise and chunk each page into passages
//  4. Embed passages concurrently, retrying transient failures per passage
//  5. Replace the document's chunk set in one transaction
//
// Every stage is recorded on the document as its ingestion state.
type IngestionOrchestrator struct {
	documentStore driven.DocumentStore
	chunkStore    driven.ChunkStore
	blobStore     driven.BlobStore
	extractor     driven.TextExtractor
	normaliserReg driven.NormaliserRegistry
	pipeline      driven.PostProcessorPipeline
	embedder      driven.EmbeddingService
	registry      *RunRegistry
	config        domain.PipelineConfig
	logger        *slog.Logger
}

// IngestionOrchestratorConfig holds dependencies for IngestionOrchestrator.
type IngestionOrchestratorConfig struct {
	DocumentStore driven.DocumentStore
	ChunkStore    driven.ChunkStore
	BlobStore     driven.BlobStore
	Extractor     driven.TextExtractor
	NormaliserReg driven.NormaliserRegistry
	Pipeline      driven.PostProcessorPipeline
	Embedder      driven.EmbeddingService
	Registry      *RunRegistry
	Config        domain.PipelineConfig
	Logger        *slog.Logger
}

// NewIngestionOrchestrator creates a new ingestion orchestrator.
func NewIngestionOrchestrator(cfg IngestionOrchestratorConfig) *IngestionOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRunRegistry(nil, cfg.Config.LockTTL, logger)
	}

	return &IngestionOrchestrator{
		documentStore: cfg.DocumentStore,
		chunkStore:    cfg.ChunkStore,
		blobStore:     cfg.BlobStore,
		extractor:     cfg.Extractor,
		normaliserReg: cfg.NormaliserReg,
		pipeline:      cfg.Pipeline,
		embedder:      cfg.Embedder,
		registry:      registry,
		config:        cfg.Config,
		logger:        logger.With("component", "ingestion"),
	}
}

// Cancel stops the document's run in this process at its next checkpoint.
func (o *IngestionOrchestrator) Cancel(documentID string) bool {
	return o.registry.Cancel(documentID)
}

// IsRunning reports whether this process is ingesting the document.
func (o *IngestionOrchestrator) IsRunning(documentID string) bool {
	return o.registry.IsRunning(documentID)
}

// run carries the state of one pass over a document.
type run struct {
	*domain.IngestionRun
	logger *slog.Logger
}

// embedded is a passage together with its vector; vector is nil when the
// passage was dropped.
type embedded struct {
	passage driven.Passage
	vector  []float32
}

// Ingest runs the pipeline for one document to a terminal state.
func (o *IngestionOrchestrator) Ingest(ctx context.Context, documentID string) (*domain.IngestionResult, error) {
	runCtx, done, err := o.registry.Begin(ctx, documentID)
	if err != nil {
		return nil, err
	}
	defer done()

	doc, err := o.documentStore.Get(runCtx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load document: %w", err)
	}

	r := &run{
		IngestionRun: domain.NewIngestionRun(doc),
		logger:       o.logger.With("document_id", doc.ID, "club_id", doc.ClubID),
	}
	o.record(runCtx, r, "")
	r.logger.Info("starting ingestion", "stage", r.State)

	// Extracting
	if err := o.advance(runCtx, r, domain.IngestionStateExtracting); err != nil {
		return o.abort(runCtx, r, err)
	}
	pages, err := o.extract(runCtx, doc)
	if err != nil {
		return o.abort(runCtx, r, err)
	}
	r.Pages = len(pages)

	// Chunking
	if err := o.advance(runCtx, r, domain.IngestionStateChunking); err != nil {
		return o.abort(runCtx, r, err)
	}
	var passages []driven.Passage
	for _, page := range pages {
		passages = append(passages, o.pipeline.Process(page)...)
	}
	r.Passages = len(passages)
	if len(passages) == 0 {
		return o.abort(runCtx, r, domain.NewPipelineError(domain.ErrorKindExtraction, "chunk", errors.New("no passages produced")))
	}
	r.logger.Debug("document chunked", "stage", r.State, "pages", r.Pages, "passages", r.Passages)

	// Embedding
	if err := o.advance(runCtx, r, domain.IngestionStateEmbedding); err != nil {
		return o.abort(runCtx, r, err)
	}
	results, passageErr, err := o.embedAll(runCtx, r, passages)
	if err != nil {
		return o.abort(runCtx, r, err)
	}

	chunks := o.buildChunks(doc.ID, results)
	r.FailedPassages = len(passages) - len(chunks)
	if len(chunks) == 0 {
		return o.abort(runCtx, r, fmt.Errorf("no passage could be embedded: %w", passageErr))
	}
	if err := domain.ValidateChunkSet(doc.ID, chunks, o.dimensions()); err != nil {
		return o.abort(runCtx, r, domain.NewPipelineError(domain.ErrorKindValidation, "validate chunks", err))
	}

	// Persisting
	if err := o.advance(runCtx, r, domain.IngestionStatePersisting); err != nil {
		return o.abort(runCtx, r, err)
	}
	if err := o.persist(runCtx, r, doc.ID, chunks); err != nil {
		return o.abort(runCtx, r, err)
	}

	final := domain.IngestionStateCompleted
	errMsg := ""
	if r.FailedPassages > 0 {
		final = domain.IngestionStatePartiallyCompleted
		r.Err = passageErr
		errMsg = fmt.Sprintf("%d of %d passages failed: %v", r.FailedPassages, r.Passages, passageErr)
	}
	_ = r.Advance(final)
	o.record(runCtx, r, errMsg)

	res := r.Result(len(chunks))
	r.logger.Info("ingestion finished",
		"stage", r.State,
		"chunks", res.ChunkCount,
		"failed_passages", res.FailedPassages,
		"duration", res.Duration,
	)
	return res, nil
}

// advance moves to the next stage after checking the run may continue.
func (o *IngestionOrchestrator) advance(ctx context.Context, r *run, next domain.IngestionState) error {
	if err := o.checkpoint(ctx, r.DocumentID); err != nil {
		return err
	}
	if err := r.Advance(next); err != nil {
		return err
	}
	o.record(ctx, r, "")
	return nil
}

// checkpoint stops the run when it was cancelled or its document deleted.
func (o *IngestionOrchestrator) checkpoint(ctx context.Context, documentID string) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	if _, err := o.documentStore.Get(ctx, documentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewPipelineError(domain.ErrorKindNotFound, "checkpoint", errors.New("document deleted"))
		}
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		// A transient read failure is not a reason to stop
		o.logger.Warn("checkpoint lookup failed", "document_id", documentID, "error", err)
	}
	return nil
}

// record writes the run's state to the document. Final states are written
// even when the run's context has been cancelled.
func (o *IngestionOrchestrator) record(ctx context.Context, r *run, errMsg string) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	err := o.documentStore.UpdateIngestionState(writeCtx, r.DocumentID, r.State, errMsg, r.FailedPassages)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		r.logger.Error("failed to record ingestion state", "stage", r.State, "error", err)
	}
}

// abort ends the run as Failed. A deleted document or a cancelled context
// leaves nothing worth recording beyond the failure itself.
func (o *IngestionOrchestrator) abort(ctx context.Context, r *run, cause error) (*domain.IngestionResult, error) {
	stage := r.State
	r.Fail(cause)
	o.record(ctx, r, cause.Error())

	res := r.Result(0)
	if domain.KindOf(cause) == domain.ErrorKindNotFound {
		r.logger.Info("document deleted during ingestion, run discarded", "stage", stage)
		return res, nil
	}
	if ctx.Err() != nil {
		r.logger.Warn("ingestion cancelled", "stage", stage, "error", cause)
		return res, cause
	}

	r.logger.Error("ingestion failed",
		"stage", stage,
		"error_kind", res.Kind,
		"retryable", res.Retryable,
		"error", cause,
	)
	return res, nil
}

// extract reads every page of the stored source. A document yielding no
// characters at all is an extraction failure.
func (o *IngestionOrchestrator) extract(ctx context.Context, doc *domain.Document) ([]driven.Page, error) {
	content, err := o.blobStore.Get(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewPipelineError(domain.ErrorKindExtraction, "load source", errors.New("source bytes missing"))
		}
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return nil, domain.NewPipelineError(domain.ErrorKindPersistence, "load source", err)
	}

	extractCtx := ctx
	if o.config.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, o.config.ExtractTimeout)
		defer cancel()
	}

	src, err := o.extractor.Open(extractCtx, content)
	if err != nil {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return nil, err
	}

	normaliser := o.normaliserReg.Get(domain.PDFContentType)

	pages := make([]driven.Page, 0, src.NumPages())
	chars := 0
	for page, err := range src.Pages(extractCtx) {
		if err != nil {
			if ctx.Err() != nil {
				return nil, context.Cause(ctx)
			}
			if domain.KindOf(err) == "" {
				err = domain.NewPipelineError(domain.ErrorKindExtraction, fmt.Sprintf("page %d", len(pages)+1), err)
			}
			return nil, err
		}
		if normaliser != nil {
			page.Text = normaliser.Normalise(page.Text, domain.PDFContentType)
		}
		chars += len(strings.TrimSpace(page.Text))
		pages = append(pages, page)
	}

	if chars == 0 {
		return nil, domain.NewPipelineError(domain.ErrorKindExtraction, "extract", errors.New("no extractable text"))
	}
	return pages, nil
}

// embedAll embeds passages with bounded concurrency. Per-passage failures
// drop the passage and are summarised in passageErr, preferring a
// retryable cause; err is set only when the run itself was stopped.
func (o *IngestionOrchestrator) embedAll(ctx context.Context, r *run, passages []driven.Passage) (results []embedded, passageErr error, err error) {
	results = make([]embedded, len(passages))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, o.config.PassageConcurrency))

	for i, p := range passages {
		results[i].passage = p
		g.Go(func() error {
			vec, err := o.embedWithRetry(gctx, p.Content)
			if err != nil {
				if gctx.Err() != nil {
					return context.Cause(gctx)
				}
				r.logger.Warn("dropping passage",
					"stage", domain.IngestionStateEmbedding,
					"passage", i,
					"page", p.Page,
					"error_kind", domain.KindOf(err),
					"error", err,
				)
				mu.Lock()
				if passageErr == nil || (!domain.IsRetryable(passageErr) && domain.IsRetryable(err)) {
					passageErr = err
				}
				mu.Unlock()
				return nil
			}
			results[i].vector = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, nil, context.Cause(ctx)
		}
		return nil, nil, err
	}
	return results, passageErr, nil
}

// embedWithRetry embeds one passage, retrying transient failures with
// exponential backoff. Rejected input fails at once.
func (o *IngestionOrchestrator) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	attempts := max(1, o.config.EmbedMaxAttempts)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(o.config.EmbedBackoff(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, context.Cause(ctx)
			case <-timer.C:
			}
		}

		vec, err := o.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		lastErr = err
		if !domain.IsRetryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func (o *IngestionOrchestrator) embedOnce(ctx context.Context, text string) ([]float32, error) {
	callCtx := ctx
	if o.config.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.config.EmbedTimeout)
		defer cancel()
	}

	vecs, err := o.embedder.Embed(callCtx, []string{text})
	if err != nil {
		if domain.KindOf(err) == "" {
			switch {
			case ctx.Err() != nil:
				return nil, err
			case errors.Is(err, context.DeadlineExceeded):
				return nil, domain.NewPipelineError(domain.ErrorKindEmbeddingTimeout, "embed", err)
			default:
				return nil, domain.NewPipelineError(domain.ErrorKindEmbeddingService, "embed", err)
			}
		}
		return nil, err
	}

	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, domain.NewPipelineError(domain.ErrorKindEmbeddingService, "embed", errors.New("no vector returned"))
	}
	if dims := o.dimensions(); dims > 0 && len(vecs[0]) != dims {
		return nil, domain.NewPipelineError(domain.ErrorKindEmbeddingService, "embed",
			fmt.Errorf("got %d dimensions, want %d", len(vecs[0]), dims))
	}
	return vecs[0], nil
}

// buildChunks keeps successful passages in their original order and
// numbers them contiguously from zero.
func (o *IngestionOrchestrator) buildChunks(documentID string, results []embedded) []*domain.Chunk {
	now := time.Now()
	chunks := make([]*domain.Chunk, 0, len(results))
	for _, res := range results {
		if res.vector == nil {
			continue
		}
		chunks = append(chunks, &domain.Chunk{
			ID:         domain.GenerateID(),
			DocumentID: documentID,
			Content:    res.passage.Content,
			Index:      len(chunks),
			Embedding:  res.vector,
			Metadata: domain.ChunkMetadata{
				PageNumber: res.passage.Page,
				CharLength: len([]rune(res.passage.Content)),
				CreatedAt:  now,
			},
		})
	}
	return chunks
}

// persist replaces the chunk set, retrying the whole replace on failure.
func (o *IngestionOrchestrator) persist(ctx context.Context, r *run, documentID string, chunks []*domain.Chunk) error {
	attempts := max(1, o.config.PersistMaxAttempts)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(o.config.EmbedBackoff(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return context.Cause(ctx)
			case <-timer.C:
			}
			if err := o.checkpoint(ctx, documentID); err != nil {
				return err
			}
		}

		err := o.chunkStore.ReplaceForDocument(ctx, documentID, chunks)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewPipelineError(domain.ErrorKindNotFound, "persist", errors.New("document deleted"))
		}
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		lastErr = err
		r.logger.Warn("chunk replace failed", "stage", r.State, "attempt", attempt+1, "error", err)
	}
	return domain.NewPipelineError(domain.ErrorKindPersistence, "persist",
		fmt.Errorf("after %d attempts: %w", attempts, lastErr))
}

// dimensions is the configured vector length, falling back to the embedder's
func (o *IngestionOrchestrator) dimensions() int {
	if o.config.EmbeddingDimensions > 0 {
		return o.config.EmbeddingDimensions
	}
	return o.embedder.Dimensions()
}
