package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driven"
)

// dequeueErrorBackoff is the pause after the queue itself fails.
const dequeueErrorBackoff = time.Second

// Orchestrator runs ingestion for one document.
type Orchestrator interface {
	Ingest(ctx context.Context, documentID string) (*domain.IngestionResult, error)
}

// taskHandler runs one task. A returned error nacks the task for retry.
type taskHandler func(ctx context.Context, task *domain.Task, logger *slog.Logger) error

// Worker pulls ingestion tasks off the queue. Its goroutine count is the
// number of documents this process ingests at once.
type Worker struct {
	taskQueue    driven.TaskQueue
	orchestrator Orchestrator
	logger       *slog.Logger
	handlers     map[domain.TaskType]taskHandler

	concurrency    int
	dequeueTimeout int // seconds

	active    atomic.Int64
	processed atomic.Int64
	retried   atomic.Int64

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Orchestrator   Orchestrator
	Logger         *slog.Logger
	Concurrency    int // Documents ingested concurrently (default: 1)
	DequeueTimeout int // Seconds to block on an empty queue (default: 5)
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Worker{
		taskQueue:      cfg.TaskQueue,
		orchestrator:   cfg.Orchestrator,
		logger:         logger.With("component", "worker"),
		concurrency:    max(cfg.Concurrency, 1),
		dequeueTimeout: cfg.DequeueTimeout,
	}
	if w.dequeueTimeout <= 0 {
		w.dequeueTimeout = 5
	}
	w.handlers = map[domain.TaskType]taskHandler{
		domain.TaskTypeIngestDocument: w.handleIngestDocument,
	}
	return w
}

// Start launches the processing goroutines and returns immediately.
// They run until Stop is called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	var wg sync.WaitGroup
	for i := range w.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processLoop(ctx, i)
		}()
	}
	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop signals the goroutines and waits for in-flight tasks to settle.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped", "processed", w.processed.Load(), "retried", w.retried.Load())
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

func (w *Worker) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")
	defer logger.Debug("worker goroutine exited")

	for !w.stopping(ctx) {
		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			select {
			case <-ctx.Done():
			case <-w.stopCh:
			case <-time.After(dequeueErrorBackoff):
			}
			continue
		}
		if task == nil {
			continue
		}

		w.processTask(ctx, task, logger)
	}
}

// processTask runs one task and settles it on the queue. Settlement uses a
// context detached from ctx so a task interrupted by shutdown is still
// handed back for another worker.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "club_id", task.ClubID)
	logger.Info("processing task", "attempt", task.Attempts)

	w.active.Add(1)
	defer w.active.Add(-1)

	start := time.Now()
	var err error
	if handle, ok := w.handlers[task.Type]; ok {
		err = handle(ctx, task, logger)
	} else {
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}
	duration := time.Since(start)

	settleCtx := context.WithoutCancel(ctx)
	w.processed.Add(1)

	if err != nil {
		w.retried.Add(1)
		logger.Error("task failed", "duration", duration, "error", err)
		if nackErr := w.taskQueue.Nack(settleCtx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", duration)
	if ackErr := w.taskQueue.Ack(settleCtx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// handleIngestDocument handles an ingest_document task. Only outcomes that
// a later attempt may improve are returned as errors.
func (w *Worker) handleIngestDocument(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	documentID := task.DocumentID()
	if documentID == "" {
		return errors.New("document_id not found in task payload")
	}
	logger = logger.With("document_id", documentID)

	result, err := w.orchestrator.Ingest(ctx, documentID)
	switch {
	case errors.Is(err, domain.ErrIngestionInProgress):
		logger.Info("ingestion already running, task coalesced")
		return nil
	case errors.Is(err, domain.ErrNotFound):
		logger.Info("document no longer exists, task dropped")
		return nil
	case err != nil:
		return err
	}

	if result.Retryable && result.State != domain.IngestionStateCompleted {
		return fmt.Errorf("ingestion %s: %s", result.State, result.Error)
	}

	logger.Info("document ingested",
		"state", result.State,
		"chunks", result.ChunkCount,
		"failed_passages", result.FailedPassages,
	)
	return nil
}

// Health reports the worker's state and the queue it depends on.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Concurrency int    `json:"concurrency"`
	Active      int64  `json:"active"`
	Processed   int64  `json:"processed"`
	Retried     int64  `json:"retried"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running:     running,
		QueueHealth: true,
		Concurrency: w.concurrency,
		Active:      w.active.Load(),
		Processed:   w.processed.Load(),
		Retried:     w.retried.Load(),
	}
	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	}
	return health
}
