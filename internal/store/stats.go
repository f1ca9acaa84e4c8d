package store

import (
	"context"
	"database/sql"
	"time"

	"verso/internal/models"
)

// GetGlobalStats returns the singleton counters row.
func (s *Store) GetGlobalStats(ctx context.Context) (models.GlobalStats, error) {
	stats := models.GlobalStats{}
	var lastRun sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT total_versions, total_raw_bytes, total_compressed_bytes, last_priority_run_at
		FROM global_stats WHERE id = 1
	`).Scan(&stats.TotalVersions, &stats.TotalRawBytes, &stats.TotalCompressedBytes, &lastRun)
	if err != nil {
		return stats, err
	}

	if lastRun.Valid {
		parsed, err := parseTime(lastRun.String)
		if err != nil {
			return stats, err
		}
		stats.LastPriorityRunAt = parsed
	}
	return stats, nil
}

// AdjustGlobalStats applies counter deltas as one atomic update. Totals are
// clamped at zero.
func (s *Store) AdjustGlobalStats(ctx context.Context, deltaVersions, deltaRaw, deltaCompressed int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE global_stats SET
			total_versions = MAX(total_versions + ?, 0),
			total_raw_bytes = MAX(total_raw_bytes + ?, 0),
			total_compressed_bytes = MAX(total_compressed_bytes + ?, 0)
		WHERE id = 1
	`, deltaVersions, deltaRaw, deltaCompressed)
	return err
}

// SetLastPriorityRun records when a priority reclaim pass finished.
func (s *Store) SetLastPriorityRun(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE global_stats SET last_priority_run_at = ? WHERE id = 1`, nullTime(at))
	return err
}

// RecomputeGlobalStats re-derives all counters from the catalog tables in a
// single transaction and stores the corrected values. Idempotent.
func (s *Store) RecomputeGlobalStats(ctx context.Context) (_ models.GlobalStats, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.GlobalStats{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stats := models.GlobalStats{}
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(raw_size_bytes), 0) FROM versions
	`).Scan(&stats.TotalVersions, &stats.TotalRawBytes)
	if err != nil {
		return models.GlobalStats{}, err
	}

	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(compressed_size_bytes), 0) FROM blobs WHERE reference_count > 0
	`).Scan(&stats.TotalCompressedBytes)
	if err != nil {
		return models.GlobalStats{}, err
	}

	var lastRun sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT last_priority_run_at FROM global_stats WHERE id = 1`).Scan(&lastRun)
	if err != nil {
		return models.GlobalStats{}, err
	}
	if lastRun.Valid {
		if stats.LastPriorityRunAt, err = parseTime(lastRun.String); err != nil {
			return models.GlobalStats{}, err
		}
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE global_stats SET total_versions = ?, total_raw_bytes = ?, total_compressed_bytes = ? WHERE id = 1
	`, stats.TotalVersions, stats.TotalRawBytes, stats.TotalCompressedBytes); err != nil {
		return models.GlobalStats{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.GlobalStats{}, err
	}
	return stats, nil
}
