package domain

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
	"time"
)

// PDFContentType is the only content type accepted for upload.
const PDFContentType = "application/pdf"

// pdfMagic prefixes every PDF byte stream.
var pdfMagic = []byte("%PDF-")

// Document is a training document uploaded to a club
type Document struct {
	ID             string         `json:"id"`
	ClubID         string         `json:"club_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	StoragePath    string         `json:"storage_path"` // Handle of the source bytes in the blob store
	UploadedBy     string         `json:"uploaded_by"`
	UploadedAt     time.Time      `json:"uploaded_at"`
	DocType        string         `json:"type"`
	Active         bool           `json:"active"`
	ChunkCount     int            `json:"chunk_count"`
	IngestionState IngestionState `json:"ingestion_state"`
	IngestionError string         `json:"ingestion_error,omitempty"`
	FailedPassages int            `json:"failed_passages"`
	IngestedAt     *time.Time     `json:"ingested_at,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsSearchable reports whether the document's chunks take part in search.
func (d *Document) IsSearchable() bool {
	return d.Active && d.ChunkCount > 0
}

// ChunkMetadata records where a passage came from
type ChunkMetadata struct {
	PageNumber int       `json:"page_number"` // 1-based source page
	CharLength int       `json:"char_length"`
	CreatedAt  time.Time `json:"created_at"`
}

// Chunk is an embedded passage of a document. Chunks are immutable once
// written; reprocessing replaces the whole set.
type Chunk struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"document_id"`
	Content    string        `json:"content"`
	Index      int           `json:"index"` // Zero-based, contiguous per document
	Embedding  []float32     `json:"embedding,omitempty"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// DocumentWithChunks combines a document with its chunks
type DocumentWithChunks struct {
	Document *Document `json:"document"`
	Chunks   []*Chunk  `json:"chunks"`
}

// UploadRequest carries a PDF and its descriptive metadata
type UploadRequest struct {
	ClubID      string
	UploadedBy  string
	Title       string
	Description string
	DocType     string
	ContentType string
	Content     []byte
}

// Validate rejects uploads that must never enter the pipeline.
func (r *UploadRequest) Validate(maxBytes int64) error {
	if r.ClubID == "" {
		return ValidationError("club id is required")
	}
	if r.UploadedBy == "" {
		return ValidationError("uploader is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		return ValidationError("title is required")
	}
	if r.ContentType != "" {
		mediaType, _, err := mime.ParseMediaType(r.ContentType)
		if err != nil || mediaType != PDFContentType {
			return ValidationError("unsupported content type %q", r.ContentType)
		}
	}
	if len(r.Content) == 0 {
		return ValidationError("file is empty")
	}
	if maxBytes > 0 && int64(len(r.Content)) > maxBytes {
		return ValidationError("file exceeds %d bytes", maxBytes)
	}
	if !bytes.HasPrefix(r.Content, pdfMagic) {
		return ValidationError("file is not a PDF")
	}
	return nil
}

// NewDocument creates a queued, active document with no chunks yet.
func NewDocument(req *UploadRequest) *Document {
	now := time.Now()
	return &Document{
		ID:             GenerateID(),
		ClubID:         req.ClubID,
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		UploadedBy:     req.UploadedBy,
		UploadedAt:     now,
		DocType:        req.DocType,
		Active:         true,
		IngestionState: IngestionStateQueued,
		UpdatedAt:      now,
	}
}

// ValidateChunkSet checks a chunk set before it is persisted: indices are
// exactly 0..N-1 in order, every passage is non-blank and every vector has
// the system dimension.
func ValidateChunkSet(documentID string, chunks []*Chunk, dimensions int) error {
	for i, c := range chunks {
		if c.DocumentID != documentID {
			return fmt.Errorf("chunk %d belongs to document %q", i, c.DocumentID)
		}
		if c.Index != i {
			return fmt.Errorf("chunk at position %d has index %d", i, c.Index)
		}
		if strings.TrimSpace(c.Content) == "" {
			return fmt.Errorf("chunk %d is blank", i)
		}
		if dimensions > 0 && len(c.Embedding) != dimensions {
			return fmt.Errorf("chunk %d has %d dimensions, want %d", i, len(c.Embedding), dimensions)
		}
	}
	return nil
}
