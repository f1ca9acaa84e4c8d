package engine

import (
	"context"
	"log/slog"
	"time"

	"verso/internal/models"
	"verso/internal/store"
)

// StatsService maintains the global diagnostic counters incrementally and
// can recompute them from the catalog for drift repair.
type StatsService struct {
	store *store.Store
	log   *slog.Logger
}

// NewStatsService constructs a StatsService.
func NewStatsService(st *store.Store, logger *slog.Logger) *StatsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsService{store: st, log: logger.With("component", "stats")}
}

// Stats returns the current counters.
func (s *StatsService) Stats(ctx context.Context) (models.GlobalStats, error) {
	return s.store.GetGlobalStats(ctx)
}

// RecordVersionCreated bumps the version counters.
func (s *StatsService) RecordVersionCreated(ctx context.Context, rawBytes int64) {
	if err := s.store.AdjustGlobalStats(ctx, 1, rawBytes, 0); err != nil {
		s.log.Warn("failed to record version creation", "error", err)
	}
}

// RecordVersionDeleted reverses RecordVersionCreated.
func (s *StatsService) RecordVersionDeleted(ctx context.Context, rawBytes int64) {
	if err := s.store.AdjustGlobalStats(ctx, -1, -rawBytes, 0); err != nil {
		s.log.Warn("failed to record version deletion", "error", err)
	}
}

// RecordBlobCreated bumps the compressed byte counter.
func (s *StatsService) RecordBlobCreated(ctx context.Context, compressedBytes int64) {
	if err := s.store.AdjustGlobalStats(ctx, 0, 0, compressedBytes); err != nil {
		s.log.Warn("failed to record blob creation", "error", err)
	}
}

// RecordBlobDeleted reverses RecordBlobCreated.
func (s *StatsService) RecordBlobDeleted(ctx context.Context, compressedBytes int64) {
	if err := s.store.AdjustGlobalStats(ctx, 0, 0, -compressedBytes); err != nil {
		s.log.Warn("failed to record blob deletion", "error", err)
	}
}

// RecordPriorityRun stamps the time of the latest priority reclaim pass.
func (s *StatsService) RecordPriorityRun(ctx context.Context, at time.Time) {
	if err := s.store.SetLastPriorityRun(ctx, at); err != nil {
		s.log.Warn("failed to record priority run", "error", err)
	}
}

// Recompute re-derives every counter from the version and blob tables,
// repairing any drift the incremental path accumulated. Safe at any time.
func (s *StatsService) Recompute(ctx context.Context) (models.GlobalStats, error) {
	return s.store.RecomputeGlobalStats(ctx)
}
