package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driven"
)

const sweeperLockName = "ingest-sweeper"

// Sweeper re-enqueues ingestion runs that stopped reporting progress,
// such as those of a worker that died mid-run. It runs on worker nodes.
//
// For multi-worker deployments, configure a DistributedLock so only one
// instance sweeps per cycle.
type Sweeper struct {
	documents driven.DocumentStore
	taskQueue driven.TaskQueue
	lock      driven.DistributedLock
	logger    *slog.Logger

	// Internal state
	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration

	staleAfter time.Duration
	batchSize  int
	lockTTL    time.Duration
}

// SweeperConfig holds configuration for the sweeper.
type SweeperConfig struct {
	DocumentStore driven.DocumentStore
	TaskQueue     driven.TaskQueue
	Lock          driven.DistributedLock // Optional
	Logger        *slog.Logger
	PollInterval  time.Duration // How often to look for stalled runs (default: 5m)
	StaleAfter    time.Duration // Age without progress before a run counts as stalled (default: 30m)
	BatchSize     int           // Documents re-enqueued per cycle (default: 100)
	LockTTL       time.Duration // TTL for the sweeper lock (default: 1m)
}

// NewSweeper creates a new sweeper.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}

	return &Sweeper{
		documents:  cfg.DocumentStore,
		taskQueue:  cfg.TaskQueue,
		lock:       cfg.Lock,
		logger:     logger.With("component", "sweeper"),
		interval:   interval,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		lockTTL:    lockTTL,
	}
}

// Start begins the sweeper loop.
// It runs until Stop is called or context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("sweeper starting", "poll_interval", s.interval, "stale_after", s.staleAfter)

	go s.run(ctx)

	return nil
}

// Stop gracefully stops the sweeper.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("sweeper stopped")
}

// IsRunning reports whether the loop is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep re-enqueues one batch of stalled documents and returns how many
// were scheduled. A cycle is skipped while another instance holds the lock.
func (s *Sweeper) Sweep(ctx context.Context) int {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, sweeperLockName, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire sweeper lock", "error", err)
			return 0
		}
		if !acquired {
			s.logger.Debug("sweeper lock held by another instance, skipping cycle")
			return 0
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), sweeperLockName); err != nil {
				s.logger.Warn("failed to release sweeper lock", "error", err)
			}
		}()
	}

	stalled, err := s.documents.ListStalled(ctx, time.Now().Add(-s.staleAfter), s.batchSize)
	if err != nil {
		s.logger.Error("failed to list stalled documents", "error", err)
		return 0
	}

	scheduled := 0
	for _, doc := range stalled {
		logger := s.logger.With("document_id", doc.ID, "club_id", doc.ClubID, "stage", doc.IngestionState)

		// Marking queued refreshes updated_at, so the next cycle leaves the
		// document alone while this task waits.
		if err := s.documents.UpdateIngestionState(ctx, doc.ID, domain.IngestionStateQueued, "", 0); err != nil {
			logger.Warn("failed to reset stalled document", "error", err)
			continue
		}

		task := domain.NewIngestDocumentTask(doc.ClubID, doc.ID)
		if err := s.taskQueue.Enqueue(ctx, task); err != nil {
			logger.Error("failed to enqueue stalled document", "error", err)
			continue
		}

		logger.Info("re-enqueued stalled ingestion", "task_id", task.ID, "last_update", doc.UpdatedAt)
		scheduled++
	}
	return scheduled
}
