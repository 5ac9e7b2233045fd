package domain

import (
	"errors"
	"time"
)

// PipelineConfig holds the tunables of ingestion and search.
type PipelineConfig struct {
	// MaxChunkSize is the maximum passage length in characters
	MaxChunkSize int

	// EmbeddingDimensions is the system-wide vector length, normally taken
	// from the embedding adapter
	EmbeddingDimensions int

	// PassageConcurrency caps concurrent embedding calls within one run
	PassageConcurrency int

	// EmbedMaxAttempts bounds per-passage embedding attempts
	EmbedMaxAttempts int
	EmbedBaseBackoff time.Duration
	EmbedMaxBackoff  time.Duration

	// EmbedTimeout bounds a single embedding call
	EmbedTimeout time.Duration

	// PersistMaxAttempts bounds whole-document replace attempts
	PersistMaxAttempts int

	// ExtractTimeout bounds text extraction for one document
	ExtractTimeout time.Duration

	// MinScore is the cosine similarity below which chunks are ignored
	MinScore float64

	// MaxUploadBytes rejects larger uploads
	MaxUploadBytes int64

	// LockTTL is how long a per-document run lock is held before expiring
	LockTTL time.Duration

	DefaultSearchLimit int
	MaxSearchLimit     int
}

// DefaultPipelineConfig returns sensible defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxChunkSize:       800,
		PassageConcurrency: 4,
		EmbedMaxAttempts:   4,
		EmbedBaseBackoff:   500 * time.Millisecond,
		EmbedMaxBackoff:    10 * time.Second,
		EmbedTimeout:       30 * time.Second,
		PersistMaxAttempts: 3,
		ExtractTimeout:     2 * time.Minute,
		MinScore:           0.2,
		MaxUploadBytes:     25 << 20,
		LockTTL:            15 * time.Minute,
		DefaultSearchLimit: 10,
		MaxSearchLimit:     100,
	}
}

// Validate rejects nonsensical values.
func (c PipelineConfig) Validate() error {
	var errs []error
	if c.MaxChunkSize <= 0 {
		errs = append(errs, errors.New("max chunk size must be positive"))
	}
	if c.EmbeddingDimensions < 0 {
		errs = append(errs, errors.New("embedding dimensions must not be negative"))
	}
	if c.PassageConcurrency <= 0 {
		errs = append(errs, errors.New("passage concurrency must be positive"))
	}
	if c.EmbedMaxAttempts <= 0 || c.PersistMaxAttempts <= 0 {
		errs = append(errs, errors.New("attempt limits must be positive"))
	}
	if c.EmbedBaseBackoff < 0 || c.EmbedMaxBackoff < c.EmbedBaseBackoff {
		errs = append(errs, errors.New("embedding backoff must satisfy 0 <= base <= max"))
	}
	if c.MinScore < -1 || c.MinScore > 1 {
		errs = append(errs, errors.New("min score must be within [-1, 1]"))
	}
	if c.DefaultSearchLimit <= 0 || c.MaxSearchLimit < c.DefaultSearchLimit {
		errs = append(errs, errors.New("search limits must satisfy 0 < default <= max"))
	}
	return errors.Join(errs...)
}

// ClampSearchLimit applies the default and maximum to a requested limit.
func (c PipelineConfig) ClampSearchLimit(limit int) int {
	if limit <= 0 {
		return c.DefaultSearchLimit
	}
	if limit > c.MaxSearchLimit {
		return c.MaxSearchLimit
	}
	return limit
}

// EmbedBackoff returns the wait before retry number attempt (0-based):
// base*2^attempt, capped at EmbedMaxBackoff.
func (c PipelineConfig) EmbedBackoff(attempt int) time.Duration {
	d := c.EmbedBaseBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= c.EmbedMaxBackoff {
			return c.EmbedMaxBackoff
		}
	}
	return d
}
