package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates work across instances. Ingestion uses one
// lock per document so two workers never run the same document at once.
type DistributedLock interface {
	// Acquire attempts to take a named lock with the given TTL without blocking.
	// Returns false if another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock.
	// Safe to call even if the lock is not held or has expired.
	Release(ctx context.Context, name string) error

	// Extend extends the TTL of a currently held lock.
	// Returns error if the lock is not held by this instance.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
