package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driven"
)

// errRunCancelled is the cancellation cause of a run stopped by Cancel.
var errRunCancelled = errors.New("ingestion run cancelled")

// errLockLost is the cancellation cause of a run whose lock could not be extended.
var errLockLost = errors.New("ingestion lock lost")

// RunRegistry admits at most one ingestion run per document. Runs in this
// process are tracked in memory; when a distributed lock is configured the
// same exclusion holds across every worker sharing it.
type RunRegistry struct {
	lock    driven.DistributedLock
	lockTTL time.Duration
	logger  *slog.Logger

	mu   sync.Mutex
	runs map[string]context.CancelCauseFunc
}

// NewRunRegistry creates a registry. lock may be nil for a single process.
func NewRunRegistry(lock driven.DistributedLock, lockTTL time.Duration, logger *slog.Logger) *RunRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	if lockTTL <= 0 {
		lockTTL = 15 * time.Minute
	}
	return &RunRegistry{
		lock:    lock,
		lockTTL: lockTTL,
		logger:  logger.With("component", "run_registry"),
		runs:    make(map[string]context.CancelCauseFunc),
	}
}

func lockName(documentID string) string {
	return "ingest:" + documentID
}

// Begin claims a document for one run. The returned context is cancelled
// when the run is cancelled or its lock is lost; done must be called when
// the run ends. Returns domain.ErrIngestionInProgress if another run holds
// the document.
func (r *RunRegistry) Begin(parent context.Context, documentID string) (context.Context, func(), error) {
	ctx, cancel := context.WithCancelCause(parent)

	r.mu.Lock()
	if _, busy := r.runs[documentID]; busy {
		r.mu.Unlock()
		cancel(nil)
		return nil, nil, domain.ErrIngestionInProgress
	}
	r.runs[documentID] = cancel
	r.mu.Unlock()

	forget := func() {
		r.mu.Lock()
		delete(r.runs, documentID)
		r.mu.Unlock()
		cancel(nil)
	}

	if r.lock == nil {
		return ctx, forget, nil
	}

	name := lockName(documentID)
	acquired, err := r.lock.Acquire(ctx, name, r.lockTTL)
	if err != nil {
		forget()
		return nil, nil, fmt.Errorf("%w: acquire ingestion lock: %v", domain.ErrServiceUnavailable, err)
	}
	if !acquired {
		forget()
		return nil, nil, domain.ErrIngestionInProgress
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.heartbeat(ctx, stop, name, cancel)
	}()

	done := func() {
		close(stop)
		wg.Wait()

		releaseCtx, cancelRelease := context.WithTimeout(context.WithoutCancel(parent), 5*time.Second)
		defer cancelRelease()
		if err := r.lock.Release(releaseCtx, name); err != nil {
			r.logger.Warn("failed to release ingestion lock", "document_id", documentID, "error", err)
		}
		forget()
	}
	return ctx, done, nil
}

// heartbeat keeps the lock alive for long runs and stops the run if it is lost.
func (r *RunRegistry) heartbeat(ctx context.Context, stop <-chan struct{}, name string, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(r.lockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.lock.Extend(ctx, name, r.lockTTL); err != nil {
				r.logger.Error("ingestion lock lost", "lock", name, "error", err)
				cancel(fmt.Errorf("%w: %v", errLockLost, err))
				return
			}
		}
	}
}

// Cancel stops the document's run in this process, if any.
func (r *RunRegistry) Cancel(documentID string) bool {
	r.mu.Lock()
	cancel, ok := r.runs[documentID]
	r.mu.Unlock()
	if ok {
		cancel(errRunCancelled)
	}
	return ok
}

// IsRunning reports whether this process holds a run for the document.
func (r *RunRegistry) IsRunning(documentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.runs[documentID]
	return ok
}

// Active returns the number of runs in this process.
func (r *RunRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}
