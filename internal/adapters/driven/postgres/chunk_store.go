package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore implements driven.ChunkStore using PostgreSQL with embeddings
// in a pgvector column.
type ChunkStore struct {
	db *DB
}

// NewChunkStore creates a new ChunkStore
func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// ReplaceForDocument swaps the chunk set and chunk_count in one transaction.
// The document row is locked first so a concurrent delete either waits for
// the commit or makes this call return ErrNotFound.
func (s *ChunkStore) ReplaceForDocument(ctx context.Context, documentID string, chunks []*domain.Chunk) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE id = $1 FOR UPDATE`, documentID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
			return err
		}

		if len(chunks) > 0 {
			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO chunks (id, document_id, chunk_index, content, embedding, page_number, char_length, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`)
			if err != nil {
				return err
			}
			defer stmt.Close()

			for _, c := range chunks {
				_, err := stmt.ExecContext(ctx,
					c.ID,
					documentID,
					c.Index,
					c.Content,
					pgvector.NewVector(c.Embedding),
					c.Metadata.PageNumber,
					c.Metadata.CharLength,
					c.Metadata.CreatedAt,
				)
				if err != nil {
					return err
				}
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET chunk_count = $2, updated_at = NOW() WHERE id = $1`,
			documentID, len(chunks))
		return err
	})
}

// GetByDocument retrieves a document's chunks in index order
func (s *ChunkStore) GetByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, embedding, page_number, char_length, created_at
		FROM chunks
		WHERE document_id = $1
		ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ListForClub returns every chunk of the club's active documents together
// with the document fields search needs for ranking.
func (s *ChunkStore) ListForClub(ctx context.Context, clubID string) ([]*domain.SearchCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.embedding,
		       c.page_number, c.char_length, c.created_at,
		       d.title, d.uploaded_at
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.club_id = $1 AND d.active
		ORDER BY d.uploaded_at, c.document_id, c.chunk_index
	`, clubID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []*domain.SearchCandidate
	for rows.Next() {
		var c domain.Chunk
		var embedding pgvector.Vector
		cand := &domain.SearchCandidate{Chunk: &c}
		err := rows.Scan(
			&c.ID, &c.DocumentID, &c.Index, &c.Content, &embedding,
			&c.Metadata.PageNumber, &c.Metadata.CharLength, &c.Metadata.CreatedAt,
			&cand.DocumentTitle, &cand.DocumentUploadedAt,
		)
		if err != nil {
			return nil, err
		}
		c.Embedding = embedding.Slice()
		candidates = append(candidates, cand)
	}
	return candidates, rows.Err()
}

// DeleteByDocument removes all chunks for a document
func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE documents SET chunk_count = 0 WHERE id = $1`, documentID)
		return err
	})
}

func scanChunk(row rowScanner) (*domain.Chunk, error) {
	var c domain.Chunk
	var embedding pgvector.Vector
	err := row.Scan(
		&c.ID, &c.DocumentID, &c.Index, &c.Content, &embedding,
		&c.Metadata.PageNumber, &c.Metadata.CharLength, &c.Metadata.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Embedding = embedding.Slice()
	return &c, nil
}
