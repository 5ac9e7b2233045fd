package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BlobStore = (*BlobStore)(nil)

// blobHandlePrefix marks handles issued by this store
const blobHandlePrefix = "pg://blobs/"

// BlobStore keeps uploaded PDFs in a bytea table. Uploads are capped in
// size by the upload validator, so rows stay small enough for this.
type BlobStore struct {
	db *DB
}

// NewBlobStore creates a new BlobStore
func NewBlobStore(db *DB) *BlobStore {
	return &BlobStore{db: db}
}

// Put stores content under key, replacing any existing content
func (s *BlobStore) Put(ctx context.Context, key string, content []byte) (string, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (key, content, size) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET content = EXCLUDED.content, size = EXCLUDED.size, created_at = NOW()
	`, key, content, len(content))
	if err != nil {
		return "", err
	}
	return blobHandlePrefix + key, nil
}

// Get returns the content behind a handle
func (s *BlobStore) Get(ctx context.Context, handle string) ([]byte, error) {
	key, err := blobKey(handle)
	if err != nil {
		return nil, err
	}

	var content []byte
	err = s.db.QueryRowContext(ctx, `SELECT content FROM blobs WHERE key = $1`, key).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return content, err
}

// Delete removes content; missing handles are ignored
func (s *BlobStore) Delete(ctx context.Context, handle string) error {
	key, err := blobKey(handle)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM blobs WHERE key = $1`, key)
	return err
}

func blobKey(handle string) (string, error) {
	if len(handle) <= len(blobHandlePrefix) || handle[:len(blobHandlePrefix)] != blobHandlePrefix {
		return "", domain.ErrNotFound
	}
	return handle[len(blobHandlePrefix):], nil
}
