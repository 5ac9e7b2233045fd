package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrIngestionInProgress indicates an ingestion run is already active for the document
	ErrIngestionInProgress = errors.New("ingestion already running")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidProvider indicates an unknown embedding provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates a backing service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ErrorKind classifies failures raised by the ingestion and search pipeline.
type ErrorKind string

const (
	ErrorKindValidation        ErrorKind = "validation"
	ErrorKindExtraction        ErrorKind = "extraction"
	ErrorKindEmbeddingTimeout  ErrorKind = "embedding_timeout"
	ErrorKindEmbeddingRejected ErrorKind = "embedding_rejected"
	ErrorKindEmbeddingService  ErrorKind = "embedding_service"
	ErrorKindPersistence       ErrorKind = "persistence"
	ErrorKindNotFound          ErrorKind = "not_found"
)

// Retryable reports whether a failure of this kind may succeed on a later attempt.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindEmbeddingTimeout, ErrorKindEmbeddingService, ErrorKindPersistence:
		return true
	default:
		return false
	}
}

// PipelineError is a typed failure carrying its kind through the pipeline.
type PipelineError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Kind sentinels, usable as errors.Is targets.
var (
	ErrValidation        = &PipelineError{Kind: ErrorKindValidation}
	ErrExtraction        = &PipelineError{Kind: ErrorKindExtraction}
	ErrEmbeddingTimeout  = &PipelineError{Kind: ErrorKindEmbeddingTimeout}
	ErrEmbeddingRejected = &PipelineError{Kind: ErrorKindEmbeddingRejected}
	ErrEmbeddingService  = &PipelineError{Kind: ErrorKindEmbeddingService}
	ErrPersistence       = &PipelineError{Kind: ErrorKindPersistence}
)

// NewPipelineError wraps err with a kind and the operation that failed.
func NewPipelineError(kind ErrorKind, op string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

// ValidationError builds a validation failure from a message.
func ValidationError(format string, args ...any) *PipelineError {
	return &PipelineError{Kind: ErrorKindValidation, Err: fmt.Errorf(format, args...)}
}

func (e *PipelineError) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return string(e.Kind)
	}
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches another PipelineError of the same kind, and maps the
// validation and not-found kinds onto their generic sentinels.
func (e *PipelineError) Is(target error) bool {
	if t, ok := target.(*PipelineError); ok {
		return t.Kind == e.Kind
	}
	switch e.Kind {
	case ErrorKindValidation:
		return target == ErrInvalidInput
	case ErrorKindNotFound:
		return target == ErrNotFound
	}
	return false
}

// KindOf returns the kind of the first PipelineError in err's chain.
// Bare ErrNotFound and ErrInvalidInput are reported as their kinds; any
// other error yields the empty kind.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrorKindNotFound
	case errors.Is(err, ErrInvalidInput):
		return ErrorKindValidation
	}
	return ""
}

// IsRetryable reports whether err carries a retryable kind.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}
