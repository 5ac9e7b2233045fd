package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const documentColumns = `
	id, club_id, title, description, storage_path, uploaded_by, uploaded_at,
	doc_type, active, chunk_count, ingestion_state, ingestion_error,
	failed_passages, ingested_at, updated_at`

// Save creates or updates a document. chunk_count is owned by the chunk
// store and is never overwritten here.
func (s *DocumentStore) Save(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			storage_path = EXCLUDED.storage_path,
			doc_type = EXCLUDED.doc_type,
			active = EXCLUDED.active,
			ingestion_state = EXCLUDED.ingestion_state,
			ingestion_error = EXCLUDED.ingestion_error,
			failed_passages = EXCLUDED.failed_passages,
			ingested_at = EXCLUDED.ingested_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		doc.ID,
		doc.ClubID,
		doc.Title,
		doc.Description,
		doc.StoragePath,
		doc.UploadedBy,
		doc.UploadedAt,
		doc.DocType,
		doc.Active,
		doc.ChunkCount,
		string(doc.IngestionState),
		doc.IngestionError,
		doc.FailedPassages,
		NullTime(doc.IngestedAt),
		doc.UpdatedAt,
	)
	return err
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanDocument(s.db.QueryRowContext(ctx, query, id))
}

// GetForClub retrieves a document scoped to a club
func (s *DocumentStore) GetForClub(ctx context.Context, clubID, id string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND club_id = $2`
	return scanDocument(s.db.QueryRowContext(ctx, query, id, clubID))
}

// ListByClub retrieves a club's documents with pagination
func (s *DocumentStore) ListByClub(ctx context.Context, clubID string, limit, offset int) ([]*domain.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE club_id = $1
		ORDER BY uploaded_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, clubID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ListStalled finds runs that stopped reporting progress
func (s *DocumentStore) ListStalled(ctx context.Context, before time.Time, limit int) ([]*domain.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE ingestion_state NOT IN ($1, $2, $3)
		  AND updated_at < $4
		ORDER BY updated_at
		LIMIT $5
	`

	rows, err := s.db.QueryContext(ctx, query,
		string(domain.IngestionStateCompleted),
		string(domain.IngestionStatePartiallyCompleted),
		string(domain.IngestionStateFailed),
		before,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateIngestionState records progress of the current ingestion run
func (s *DocumentStore) UpdateIngestionState(ctx context.Context, id string, state domain.IngestionState, errMsg string, failedPassages int) error {
	now := time.Now()
	var ingestedAt *time.Time
	if state == domain.IngestionStateCompleted || state == domain.IngestionStatePartiallyCompleted {
		ingestedAt = &now
	}

	query := `
		UPDATE documents
		SET ingestion_state = $2,
			ingestion_error = $3,
			failed_passages = $4,
			ingested_at = COALESCE($5, ingested_at),
			updated_at = $6
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, string(state), errMsg, failedPassages, NullTime(ingestedAt), now)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// SetActive toggles search participation
func (s *DocumentStore) SetActive(ctx context.Context, id string, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET active = $2, updated_at = $3 WHERE id = $1`,
		id, active, time.Now())
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Delete removes a document. Chunks are removed by ON DELETE CASCADE.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var state string
	var ingestedAt sql.NullTime

	err := row.Scan(
		&doc.ID,
		&doc.ClubID,
		&doc.Title,
		&doc.Description,
		&doc.StoragePath,
		&doc.UploadedBy,
		&doc.UploadedAt,
		&doc.DocType,
		&doc.Active,
		&doc.ChunkCount,
		&state,
		&doc.IngestionError,
		&doc.FailedPassages,
		&ingestedAt,
		&doc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	doc.IngestionState = domain.IngestionState(state)
	doc.IngestedAt = TimePtr(ingestedAt)
	return &doc, nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
