package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"verso/internal/models"
	"verso/internal/store"
)

// orphanBatchSize bounds how many orphaned blobs one sweep pass loads.
const orphanBatchSize = 500

// ReclaimOptions tunes one reclaim pass.
type ReclaimOptions struct {
	// DryRun reports what would be reclaimed without deleting anything.
	DryRun bool
	// IncludeHighPriority lets the eviction stage consume versions marked
	// priority once the non-priority pool is exhausted.
	IncludeHighPriority bool
}

// StageReport summarizes one reclaim stage.
type StageReport struct {
	FilesProcessed  int64 `json:"files_processed,omitempty"`
	DeletedVersions int64 `json:"deleted_versions"`
	FreedBytes      int64 `json:"freed_bytes"`
}

// BlobStageReport summarizes the orphan sweep stage.
type BlobStageReport struct {
	DeletedBlobs int64 `json:"deleted_blobs"`
	FreedBytes   int64 `json:"freed_bytes"`
}

// ReclaimReport is the outcome of a full reclaim pass over one scope.
type ReclaimReport struct {
	ScopeID              string          `json:"scope_id"`
	NeedsCleanup         bool            `json:"needs_cleanup"`
	Reason               string          `json:"reason,omitempty"`
	DryRun               bool            `json:"dry_run,omitempty"`
	DepthEnforcement     StageReport     `json:"depth_enforcement"`
	PriorityCleanup      StageReport     `json:"priority_cleanup"`
	BlobCleanup          BlobStageReport `json:"blob_cleanup"`
	TotalFreedBytes      int64           `json:"total_freed_bytes"`
	TotalDeletedVersions int64           `json:"total_deleted_versions"`
	TotalDeletedBlobs    int64           `json:"total_deleted_blobs"`
}

// ReclaimEngine frees space in three ordered stages: trim files over their
// depth limit, evict old versions by priority until the target reduction is
// met, then sweep blobs no version references anymore. Depth enforcement and
// the orphan sweep always run; eviction only runs for scopes over headroom.
type ReclaimEngine struct {
	store    *store.Store
	versions *VersionService
	blobs    *BlobService
	quotas   *QuotaLedger
	stats    *StatsService
	log      *slog.Logger
}

// NewReclaimEngine constructs a ReclaimEngine.
func NewReclaimEngine(st *store.Store, versions *VersionService, blobs *BlobService, quotas *QuotaLedger, stats *StatsService) *ReclaimEngine {
	return &ReclaimEngine{
		store:    st,
		versions: versions,
		blobs:    blobs,
		quotas:   quotas,
		stats:    stats,
		log:      slog.Default().With("component", "reclaim"),
	}
}

// Reclaim runs one full pass over a scope and returns the report.
func (e *ReclaimEngine) Reclaim(ctx context.Context, scopeID string, opts ReclaimOptions) (ReclaimReport, error) {
	report := ReclaimReport{ScopeID: scopeID, DryRun: opts.DryRun}

	scope, err := e.quotas.GetScope(ctx, scopeID)
	if err != nil {
		return report, err
	}
	needs, reason, err := e.quotas.NeedsCleanup(ctx, scopeID)
	if err != nil {
		return report, err
	}
	report.NeedsCleanup = needs
	report.Reason = reason

	report.DepthEnforcement, err = e.enforceDepth(ctx, scope, opts)
	if err != nil {
		return report, err
	}

	if needs {
		// Re-check the target after depth trimming already freed bytes.
		target, err := e.quotas.TargetReductionBytes(ctx, scopeID)
		if err != nil {
			return report, err
		}
		if opts.DryRun {
			target -= report.DepthEnforcement.FreedBytes
		}
		if target > 0 {
			report.PriorityCleanup, err = e.evictByPriority(ctx, scopeID, target, opts)
			if err != nil {
				return report, err
			}
		}
		if !opts.DryRun {
			e.stats.RecordPriorityRun(ctx, time.Now().UTC())
		}
	}

	report.BlobCleanup, err = e.sweepOrphans(ctx, opts)
	if err != nil {
		return report, err
	}

	report.TotalDeletedVersions = report.DepthEnforcement.DeletedVersions + report.PriorityCleanup.DeletedVersions
	report.TotalDeletedBlobs = report.BlobCleanup.DeletedBlobs
	report.TotalFreedBytes = report.DepthEnforcement.FreedBytes + report.PriorityCleanup.FreedBytes + report.BlobCleanup.FreedBytes

	e.log.Info("reclaim pass finished",
		"scope", scopeID,
		"dry_run", opts.DryRun,
		"deleted_versions", report.TotalDeletedVersions,
		"deleted_blobs", report.TotalDeletedBlobs,
		"freed_bytes", report.TotalFreedBytes)
	return report, nil
}

// AutoCleanup runs a reclaim pass after a write lands. Depth enforcement and
// the orphan sweep always run; only the eviction stage waits for the scope to
// cross its headroom line, since depth is a retention policy rather than a
// space policy.
func (e *ReclaimEngine) AutoCleanup(ctx context.Context, scopeID string) (ReclaimReport, error) {
	return e.Reclaim(ctx, scopeID, ReclaimOptions{})
}

// GlobalCleanup runs a reclaim pass over every configured scope and returns
// the per-scope reports. A failing scope is logged and skipped.
func (e *ReclaimEngine) GlobalCleanup(ctx context.Context, opts ReclaimOptions) ([]ReclaimReport, error) {
	scopes, err := e.quotas.ListScopes(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]ReclaimReport, 0, len(scopes))
	for _, scope := range scopes {
		report, err := e.Reclaim(ctx, scope.ScopeID, opts)
		if err != nil {
			e.log.Warn("reclaim failed for scope", "scope", scope.ScopeID, "error", err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// enforceDepth trims every file in the scope with more versions than the
// configured depth, deleting the oldest non-priority versions first. The
// newest version of a file is never deleted.
func (e *ReclaimEngine) enforceDepth(ctx context.Context, scope models.QuotaScope, opts ReclaimOptions) (StageReport, error) {
	report := StageReport{}
	if scope.MaxDepth < 1 {
		return report, nil
	}

	files, err := e.store.ListFilesOverDepth(ctx, scope.ScopeID, scope.MaxDepth)
	if err != nil {
		return report, err
	}

	for _, file := range files {
		excess := file.Count - scope.MaxDepth
		if excess <= 0 {
			continue
		}
		victims, err := e.store.ListOldestNonPriorityVersions(ctx, file.FileID, excess)
		if err != nil {
			e.log.Warn("depth enforcement skipped file", "file", file.FileID, "error", err)
			continue
		}
		report.FilesProcessed++
		for _, victim := range victims {
			freed, ok := e.deleteCandidate(ctx, victim, opts)
			if !ok {
				continue
			}
			report.DeletedVersions++
			report.FreedBytes += freed
		}
	}
	return report, nil
}

// evictByPriority deletes eviction candidates oldest and lowest priority
// first until targetBytes of compressed storage have been freed.
func (e *ReclaimEngine) evictByPriority(ctx context.Context, scopeID string, targetBytes int64, opts ReclaimOptions) (StageReport, error) {
	report := StageReport{}

	candidates, err := e.store.ListEvictionCandidates(ctx, scopeID, opts.IncludeHighPriority)
	if err != nil {
		return report, err
	}

	for _, candidate := range candidates {
		if report.FreedBytes >= targetBytes {
			break
		}
		freed, ok := e.deleteCandidate(ctx, candidate, opts)
		if !ok {
			continue
		}
		report.DeletedVersions++
		report.FreedBytes += freed
	}

	if report.FreedBytes < targetBytes {
		e.log.Warn("eviction fell short of target",
			"scope", scopeID, "target_bytes", targetBytes, "freed_bytes", report.FreedBytes)
	}
	return report, nil
}

// sweepOrphans removes blobs whose reference count reached zero or that were
// flagged for deletion, verifying no version still points at them.
func (e *ReclaimEngine) sweepOrphans(ctx context.Context, opts ReclaimOptions) (BlobStageReport, error) {
	report := BlobStageReport{}

	orphans, err := e.store.ListOrphanBlobs(ctx, orphanBatchSize)
	if err != nil {
		return report, err
	}

	for _, orphan := range orphans {
		refs, err := e.store.CountVersionsByBlob(ctx, orphan.ID)
		if err != nil {
			e.log.Warn("orphan sweep skipped blob", "digest", orphan.Digest, "error", err)
			continue
		}
		if refs > 0 {
			// A concurrent write revived the blob; leave it alone.
			continue
		}
		if opts.DryRun {
			report.DeletedBlobs++
			report.FreedBytes += orphan.CompressedSizeBytes
			continue
		}
		freed, err := e.blobs.Delete(ctx, &orphan)
		if err != nil {
			var refErr *ReferencedError
			if !errors.As(err, &refErr) {
				e.log.Warn("orphan sweep failed to delete blob", "digest", orphan.Digest, "error", err)
			}
			continue
		}
		report.DeletedBlobs++
		report.FreedBytes += freed
	}
	return report, nil
}

// deleteCandidate deletes one version during a reclaim stage. Candidate
// failures are tolerated so a single bad row cannot stall the whole pass.
// Returns the compressed bytes freed and whether the candidate was counted.
func (e *ReclaimEngine) deleteCandidate(ctx context.Context, version models.Version, opts ReclaimOptions) (int64, bool) {
	if opts.DryRun {
		blob, err := e.store.GetBlob(ctx, version.BlobID)
		if err != nil || blob == nil {
			return 0, err == nil
		}
		// Only a sole reference would actually free bytes on disk.
		if blob.ReferenceCount <= 1 {
			return blob.CompressedSizeBytes, true
		}
		return 0, true
	}

	freed, err := e.versions.deleteVersion(ctx, &version)
	if err != nil {
		e.log.Warn("reclaim skipped version",
			"file", version.FileID, "version", version.VersionNumber, "error", err)
		return 0, false
	}
	return freed, true
}
