package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"verso/internal/models"
)

const versionColumns = "id, file_id, scope_id, version_number, raw_size_bytes, digest, blob_id, storage_kind, is_priority, change_kind, created_at"

// FileVersionCount pairs a file id with its retained version count.
type FileVersionCount struct {
	FileID string
	Count  int64
}

// InsertVersion persists a new version row and allocates the next version
// number for the file inside the same transaction, so concurrent writers for
// one file cannot produce duplicate or gapped numbers.
func (s *Store) InsertVersion(ctx context.Context, version *models.Version) (err error) {
	if version == nil {
		return fmt.Errorf("version is required")
	}
	version.FileID = strings.TrimSpace(version.FileID)
	if version.FileID == "" {
		return fmt.Errorf("file_id is required")
	}
	if version.BlobID == "" {
		return fmt.Errorf("blob_id is required")
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if strings.TrimSpace(version.ID) == "" {
		generated, genErr := GenerateVersionID(func(id string) (bool, error) {
			return versionIDExistsTx(ctx, tx, id)
		})
		if genErr != nil {
			err = genErr
			return err
		}
		version.ID = generated
	}

	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version_number), 0) + 1 FROM versions WHERE file_id = ?",
		version.FileID).Scan(&version.VersionNumber)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO versions (id, file_id, scope_id, version_number, raw_size_bytes, digest, blob_id, storage_kind, is_priority, change_kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		version.ID,
		version.FileID,
		version.ScopeID,
		version.VersionNumber,
		version.RawSizeBytes,
		version.Digest,
		version.BlobID,
		string(version.StorageKind),
		boolToInt(version.IsPriority),
		string(version.ChangeKind),
		formatTime(version.CreatedAt),
	); err != nil {
		return err
	}

	return tx.Commit()
}

// GetVersion returns one version by id, or nil when absent.
func (s *Store) GetVersion(ctx context.Context, id string) (*models.Version, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM versions WHERE id = ?`, id)
	return scanVersion(row)
}

// LatestVersion returns the newest version of a file, or nil when the file
// has none.
func (s *Store) LatestVersion(ctx context.Context, fileID string) (*models.Version, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+` FROM versions
		WHERE file_id = ?
		ORDER BY version_number DESC LIMIT 1
	`, fileID)
	return scanVersion(row)
}

// ListVersionsByFile lists all versions of a file, newest first.
func (s *Store) ListVersionsByFile(ctx context.Context, fileID string) ([]models.Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+versionColumns+` FROM versions
		WHERE file_id = ?
		ORDER BY version_number DESC
	`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVersions(rows)
}

// DeleteVersion deletes one version row.
func (s *Store) DeleteVersion(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM versions WHERE id = ?", id)
	return err
}

// CountVersionsByBlob returns how many live versions reference a blob.
func (s *Store) CountVersionsByBlob(ctx context.Context, blobID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM versions WHERE blob_id = ?", blobID).Scan(&count)
	return count, err
}

// ListFilesOverDepth returns, for one scope, every file holding more
// versions than maxDepth together with its version count.
func (s *Store) ListFilesOverDepth(ctx context.Context, scopeID string, maxDepth int64) ([]FileVersionCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_id, COUNT(*) AS n FROM versions
		WHERE scope_id = ?
		GROUP BY file_id
		HAVING n > ?
		ORDER BY file_id ASC
	`, scopeID, maxDepth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []FileVersionCount{}
	for rows.Next() {
		var fc FileVersionCount
		if err := rows.Scan(&fc.FileID, &fc.Count); err != nil {
			return nil, err
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

// ListOldestNonPriorityVersions returns up to limit of a file's oldest
// versions that are not priority-protected, oldest first. The file's newest
// version is never a candidate.
func (s *Store) ListOldestNonPriorityVersions(ctx context.Context, fileID string, limit int64) ([]models.Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+versionColumns+` FROM versions
		WHERE file_id = ? AND is_priority = 0
		  AND version_number < (SELECT MAX(version_number) FROM versions WHERE file_id = ?)
		ORDER BY version_number ASC
		LIMIT ?
	`, fileID, fileID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVersions(rows)
}

// ListEvictionCandidates returns every version in the scope except each
// file's newest, ordered low-priority-and-oldest first. Priority versions
// are excluded unless includePriority is set.
func (s *Store) ListEvictionCandidates(ctx context.Context, scopeID string, includePriority bool) ([]models.Version, error) {
	query := `
		SELECT ` + versionColumns + ` FROM versions v
		WHERE v.scope_id = ?
		  AND v.version_number < (SELECT MAX(v2.version_number) FROM versions v2 WHERE v2.file_id = v.file_id)`
	if !includePriority {
		query += `
		  AND v.is_priority = 0`
	}
	query += `
		ORDER BY v.is_priority ASC, v.created_at ASC, v.version_number ASC`

	rows, err := s.db.QueryContext(ctx, query, scopeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVersions(rows)
}

func versionIDExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var exists int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM versions WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func collectVersions(rows *sql.Rows) ([]models.Version, error) {
	versions := []models.Version{}
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		if version != nil {
			versions = append(versions, *version)
		}
	}
	return versions, rows.Err()
}

func scanVersion(scanner interface {
	Scan(dest ...any) error
}) (*models.Version, error) {
	version := models.Version{}
	var storageKind, changeKind, createdAt string
	var isPriority int64

	err := scanner.Scan(
		&version.ID,
		&version.FileID,
		&version.ScopeID,
		&version.VersionNumber,
		&version.RawSizeBytes,
		&version.Digest,
		&version.BlobID,
		&storageKind,
		&isPriority,
		&changeKind,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	version.StorageKind = models.StorageKind(storageKind)
	version.ChangeKind = models.ChangeKind(changeKind)
	version.IsPriority = isPriority != 0

	parsedCreated, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	version.CreatedAt = parsedCreated

	return &version, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
