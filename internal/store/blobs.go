package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"verso/internal/models"
)

const blobColumns = "id, digest, storage_key, original_size_bytes, compressed_size_bytes, reference_count, pending_delete, last_accessed, created_at"

// FindBlobByDigest returns one blob by digest, or nil when absent. Lookup
// only, no mutation.
func (s *Store) FindBlobByDigest(ctx context.Context, digest string) (*models.Blob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+blobColumns+` FROM blobs WHERE digest = ?`, strings.ToLower(strings.TrimSpace(digest)))
	return scanBlob(row)
}

// GetBlob returns one blob by id, or nil when absent.
func (s *Store) GetBlob(ctx context.Context, id string) (*models.Blob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+blobColumns+` FROM blobs WHERE id = ?`, id)
	return scanBlob(row)
}

// UpsertBlobReference is the catalog half of get-or-create. In one
// transaction it inserts a new blob row with reference_count 1, or — when a
// row for the digest already exists — atomically increments its reference
// count and clears pending_delete. It returns the canonical row and whether
// this call created it.
func (s *Store) UpsertBlobReference(ctx context.Context, blob *models.Blob) (_ *models.Blob, created bool, err error) {
	if blob == nil {
		return nil, false, fmt.Errorf("blob is required")
	}
	blob.Digest = strings.ToLower(strings.TrimSpace(blob.Digest))
	blob.StorageKey = strings.TrimSpace(blob.StorageKey)
	if blob.Digest == "" {
		return nil, false, fmt.Errorf("digest is required")
	}
	if blob.StorageKey == "" {
		return nil, false, fmt.Errorf("storage_key is required")
	}
	if blob.CompressedSizeBytes < 0 || blob.OriginalSizeBytes < 0 {
		return nil, false, fmt.Errorf("sizes must be >= 0")
	}
	if blob.CreatedAt.IsZero() {
		blob.CreatedAt = time.Now().UTC()
	}
	if blob.LastAccessed.IsZero() {
		blob.LastAccessed = blob.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if strings.TrimSpace(blob.ID) == "" {
		generated, genErr := GenerateBlobID(func(id string) (bool, error) {
			return blobIDExistsTx(ctx, tx, id)
		})
		if genErr != nil {
			err = genErr
			return nil, false, err
		}
		blob.ID = generated
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO blobs (id, digest, storage_key, original_size_bytes, compressed_size_bytes, reference_count, pending_delete, last_accessed, created_at)
		VALUES (?, ?, ?, ?, ?, 1, 0, ?, ?)
		ON CONFLICT(digest) DO UPDATE SET
			reference_count = reference_count + 1,
			pending_delete = 0,
			last_accessed = excluded.last_accessed
	`, blob.ID, blob.Digest, blob.StorageKey, blob.OriginalSizeBytes, blob.CompressedSizeBytes,
		formatTime(blob.LastAccessed), formatTime(blob.CreatedAt)); err != nil {
		return nil, false, err
	}

	canonical, err := scanBlob(tx.QueryRowContext(ctx, `SELECT `+blobColumns+` FROM blobs WHERE digest = ?`, blob.Digest))
	if err != nil {
		return nil, false, err
	}
	if canonical == nil {
		err = fmt.Errorf("blob not found after upsert")
		return nil, false, err
	}

	if err = tx.Commit(); err != nil {
		return nil, false, err
	}

	return canonical, canonical.ID == blob.ID, nil
}

// IncrementBlobReference adds one reference to an existing blob.
func (s *Store) IncrementBlobReference(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE blobs SET reference_count = reference_count + 1, pending_delete = 0, last_accessed = ?
		WHERE id = ?
	`, formatTime(time.Now().UTC()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DecrementBlobReference drops one reference and returns the remaining
// count. When the count reaches zero the row is marked pending_delete; the
// bytes stay on disk until an explicit delete so sweeps can be dry-run.
func (s *Store) DecrementBlobReference(ctx context.Context, id string) (remaining int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		UPDATE blobs SET reference_count = MAX(reference_count - 1, 0) WHERE id = ?
	`, id); err != nil {
		return 0, err
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE blobs SET pending_delete = 1 WHERE id = ? AND reference_count = 0
	`, id); err != nil {
		return 0, err
	}

	err = tx.QueryRowContext(ctx, `SELECT reference_count FROM blobs WHERE id = ?`, id).Scan(&remaining)
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return remaining, nil
}

// DeleteBlob deletes one blob row by id.
func (s *Store) DeleteBlob(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM blobs WHERE id = ?", id)
	return err
}

// ListOrphanBlobs returns blobs whose reference count reached zero or that
// are explicitly marked pending_delete, oldest first.
func (s *Store) ListOrphanBlobs(ctx context.Context, limit int) ([]models.Blob, error) {
	query := `SELECT ` + blobColumns + ` FROM blobs WHERE reference_count = 0 OR pending_delete = 1 ORDER BY created_at ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blobs := []models.Blob{}
	for rows.Next() {
		blob, err := scanBlob(rows)
		if err != nil {
			return nil, err
		}
		if blob != nil {
			blobs = append(blobs, *blob)
		}
	}
	return blobs, rows.Err()
}

// TouchBlobAccess records a read of the blob content.
func (s *Store) TouchBlobAccess(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE blobs SET last_accessed = ? WHERE id = ?", formatTime(time.Now().UTC()), id)
	return err
}

func blobIDExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var exists int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM blobs WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanBlob(scanner interface {
	Scan(dest ...any) error
}) (*models.Blob, error) {
	blob := models.Blob{}
	var pendingDelete int64
	var lastAccessed sql.NullString
	var createdAt string

	err := scanner.Scan(
		&blob.ID,
		&blob.Digest,
		&blob.StorageKey,
		&blob.OriginalSizeBytes,
		&blob.CompressedSizeBytes,
		&blob.ReferenceCount,
		&pendingDelete,
		&lastAccessed,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	blob.PendingDelete = pendingDelete != 0
	if lastAccessed.Valid {
		parsed, err := parseTime(lastAccessed.String)
		if err != nil {
			return nil, err
		}
		blob.LastAccessed = parsed
	}
	parsedCreated, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	blob.CreatedAt = parsedCreated

	return &blob, nil
}
