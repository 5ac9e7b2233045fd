package domain

import (
	"fmt"
	"time"
)

// IngestionState is the pipeline stage a document's current run is in
type IngestionState string

const (
	IngestionStateQueued             IngestionState = "queued"
	IngestionStateExtracting         IngestionState = "extracting"
	IngestionStateChunking           IngestionState = "chunking"
	IngestionStateEmbedding          IngestionState = "embedding"
	IngestionStatePersisting         IngestionState = "persisting"
	IngestionStateCompleted          IngestionState = "completed"
	IngestionStatePartiallyCompleted IngestionState = "partially_completed"
	IngestionStateFailed             IngestionState = "failed"
)

// forward lists the single non-failure successor(s) of each state.
var forward = map[IngestionState][]IngestionState{
	IngestionStateQueued:     {IngestionStateExtracting},
	IngestionStateExtracting: {IngestionStateChunking},
	IngestionStateChunking:   {IngestionStateEmbedding},
	IngestionStateEmbedding:  {IngestionStatePersisting},
	IngestionStatePersisting: {IngestionStateCompleted, IngestionStatePartiallyCompleted},
}

// IsTerminal returns true once a run can make no further progress.
func (s IngestionState) IsTerminal() bool {
	switch s {
	case IngestionStateCompleted, IngestionStatePartiallyCompleted, IngestionStateFailed:
		return true
	}
	return false
}

// IsValid returns true for known states.
func (s IngestionState) IsValid() bool {
	switch s {
	case IngestionStateQueued, IngestionStateExtracting, IngestionStateChunking,
		IngestionStateEmbedding, IngestionStatePersisting, IngestionStateCompleted,
		IngestionStatePartiallyCompleted, IngestionStateFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
// Failed is reachable from every non-terminal state.
func (s IngestionState) CanTransitionTo(next IngestionState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == IngestionStateFailed {
		return true
	}
	for _, allowed := range forward[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IngestionRun tracks a single pass of the pipeline over one document.
// A fresh run always starts Queued, whatever state a previous run left the
// document in.
type IngestionRun struct {
	DocumentID     string         `json:"document_id"`
	ClubID         string         `json:"club_id"`
	State          IngestionState `json:"state"`
	Pages          int            `json:"pages"`
	Passages       int            `json:"passages"`
	FailedPassages int            `json:"failed_passages"`
	Err            error          `json:"-"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
}

// NewIngestionRun creates a queued run for a document.
func NewIngestionRun(doc *Document) *IngestionRun {
	return &IngestionRun{
		DocumentID: doc.ID,
		ClubID:     doc.ClubID,
		State:      IngestionStateQueued,
		StartedAt:  time.Now(),
	}
}

// Advance moves the run to next, rejecting illegal transitions.
func (r *IngestionRun) Advance(next IngestionState) error {
	if !r.State.CanTransitionTo(next) {
		return fmt.Errorf("illegal ingestion transition %s -> %s", r.State, next)
	}
	r.State = next
	if next.IsTerminal() {
		now := time.Now()
		r.FinishedAt = &now
	}
	return nil
}

// Fail moves a non-terminal run to Failed and records the cause.
func (r *IngestionRun) Fail(err error) {
	if r.State.IsTerminal() {
		return
	}
	r.Err = err
	_ = r.Advance(IngestionStateFailed)
}

// Result summarises the run once it is terminal.
func (r *IngestionRun) Result(chunkCount int) *IngestionResult {
	res := &IngestionResult{
		DocumentID:     r.DocumentID,
		State:          r.State,
		ChunkCount:     chunkCount,
		FailedPassages: r.FailedPassages,
	}
	if r.FinishedAt != nil {
		res.Duration = r.FinishedAt.Sub(r.StartedAt)
	}
	if r.Err != nil {
		res.Error = r.Err.Error()
		res.Kind = KindOf(r.Err)
		res.Retryable = res.Kind.Retryable()
	}
	return res
}

// IngestionResult is the outcome of one ingestion run
type IngestionResult struct {
	DocumentID     string         `json:"document_id"`
	State          IngestionState `json:"state"`
	ChunkCount     int            `json:"chunk_count"`
	FailedPassages int            `json:"failed_passages"`
	Kind           ErrorKind      `json:"error_kind,omitempty"`
	Error          string         `json:"error,omitempty"`
	Retryable      bool           `json:"retryable"`
	Duration       time.Duration  `json:"duration" swaggertype:"integer"`
}
