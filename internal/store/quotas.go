package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"verso/internal/models"
)

const quotaColumns = "scope_id, max_size_bytes, headroom_bytes, max_depth, current_usage_bytes, enabled, created_at, updated_at"

// GetQuotaScope returns one quota scope row, or nil when absent. The empty
// scope id addresses the platform-wide default row.
func (s *Store) GetQuotaScope(ctx context.Context, scopeID string) (*models.QuotaScope, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+quotaColumns+` FROM quota_scopes WHERE scope_id = ?`, scopeID)
	return scanQuotaScope(row)
}

// PutQuotaScope inserts or fully replaces a quota scope's configuration.
// The live usage counter is preserved for existing rows.
func (s *Store) PutQuotaScope(ctx context.Context, scope *models.QuotaScope) error {
	if scope == nil {
		return fmt.Errorf("scope is required")
	}
	now := time.Now().UTC()
	if scope.CreatedAt.IsZero() {
		scope.CreatedAt = now
	}
	scope.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quota_scopes (scope_id, max_size_bytes, headroom_bytes, max_depth, current_usage_bytes, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope_id) DO UPDATE SET
			max_size_bytes = excluded.max_size_bytes,
			headroom_bytes = excluded.headroom_bytes,
			max_depth = excluded.max_depth,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`, scope.ScopeID, scope.MaxSizeBytes, scope.HeadroomBytes, scope.MaxDepth,
		scope.CurrentUsageBytes, boolToInt(scope.Enabled), formatTime(scope.CreatedAt), formatTime(scope.UpdatedAt))
	return err
}

// SeedQuotaScope creates a scope row copying the default row's limits if the
// scope does not exist yet. Safe to call concurrently; the first insert wins.
func (s *Store) SeedQuotaScope(ctx context.Context, scopeID string) error {
	if scopeID == models.DefaultScopeID {
		return nil
	}
	now := formatTime(time.Now().UTC())
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO quota_scopes (scope_id, max_size_bytes, headroom_bytes, max_depth, current_usage_bytes, enabled, created_at, updated_at)
		SELECT ?, max_size_bytes, headroom_bytes, max_depth, 0, enabled, ?, ?
		FROM quota_scopes WHERE scope_id = ?
	`, scopeID, now, now, models.DefaultScopeID)
	return err
}

// AdjustScopeUsage applies a usage delta as a single atomic update, clamped
// at zero so the counter can never go negative.
func (s *Store) AdjustScopeUsage(ctx context.Context, scopeID string, delta int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE quota_scopes
		SET current_usage_bytes = MAX(current_usage_bytes + ?, 0), updated_at = ?
		WHERE scope_id = ?
	`, delta, formatTime(time.Now().UTC()), scopeID)
	return err
}

// RecomputeScopeUsage re-derives a scope's usage from the compressed bytes
// of its primary versions. Used by the stats repair path only.
func (s *Store) RecomputeScopeUsage(ctx context.Context, scopeID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE quota_scopes
		SET current_usage_bytes = (
			SELECT COALESCE(SUM(b.compressed_size_bytes), 0)
			FROM versions v JOIN blobs b ON b.id = v.blob_id
			WHERE v.scope_id = ? AND v.storage_kind = ?
		), updated_at = ?
		WHERE scope_id = ?
	`, scopeID, string(models.StorageKindPrimary), formatTime(time.Now().UTC()), scopeID)
	return err
}

// ListQuotaScopes lists all configured scopes, the default row first.
func (s *Store) ListQuotaScopes(ctx context.Context) ([]models.QuotaScope, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+quotaColumns+` FROM quota_scopes ORDER BY scope_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scopes := []models.QuotaScope{}
	for rows.Next() {
		scope, err := scanQuotaScope(rows)
		if err != nil {
			return nil, err
		}
		if scope != nil {
			scopes = append(scopes, *scope)
		}
	}
	return scopes, rows.Err()
}

func scanQuotaScope(scanner interface {
	Scan(dest ...any) error
}) (*models.QuotaScope, error) {
	scope := models.QuotaScope{}
	var enabled int64
	var createdAt, updatedAt string

	err := scanner.Scan(
		&scope.ScopeID,
		&scope.MaxSizeBytes,
		&scope.HeadroomBytes,
		&scope.MaxDepth,
		&scope.CurrentUsageBytes,
		&enabled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	scope.Enabled = enabled != 0
	if scope.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if scope.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &scope, nil
}
