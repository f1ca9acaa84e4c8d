package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"verso/internal/checksum"
	"verso/internal/models"
	"verso/internal/store"
)

// Skip reasons returned by ShouldCreateVersion.
const (
	SkipReasonTooLarge      = "content exceeds max version size"
	SkipReasonUnchanged     = "content identical to latest version"
	SkipReasonQuotaExceeded = "scope over quota headroom"
)

// Decision is the outcome of a pre-write versioning check.
type Decision struct {
	Create bool   `json:"create"`
	Reason string `json:"reason,omitempty"`
}

// CreateVersionRequest carries everything needed to capture one version of a
// file. Digest is optional; it is computed from Content when empty.
type CreateVersionRequest struct {
	FileID     string
	ScopeID    string
	Content    []byte
	Digest     string
	IsPriority bool
	ChangeKind models.ChangeKind
	Force      bool
}

// VersionService implements the version lifecycle: gating writes, capturing
// versions with deduplicated blob storage, reading content back, and deleting
// versions with usage and reference bookkeeping.
type VersionService struct {
	store           *store.Store
	blobs           *BlobService
	quotas          *QuotaLedger
	stats           *StatsService
	maxVersionBytes int64
	log             *slog.Logger
}

// NewVersionService constructs a VersionService. maxVersionBytes of zero or
// less disables the size ceiling.
func NewVersionService(st *store.Store, blobs *BlobService, quotas *QuotaLedger, stats *StatsService, maxVersionBytes int64) *VersionService {
	return &VersionService{
		store:           st,
		blobs:           blobs,
		quotas:          quotas,
		stats:           stats,
		maxVersionBytes: maxVersionBytes,
		log:             slog.Default().With("component", "versions"),
	}
}

// ShouldCreateVersion decides whether a write event should produce a version.
// Skips are advisory: CreateVersion does not re-check, so callers that want
// gating call this first.
func (s *VersionService) ShouldCreateVersion(ctx context.Context, req CreateVersionRequest) (Decision, error) {
	if s.maxVersionBytes > 0 && int64(len(req.Content)) > s.maxVersionBytes {
		return Decision{Reason: SkipReasonTooLarge}, nil
	}

	digest := req.Digest
	if digest == "" {
		digest = checksum.Sum(req.Content)
	}
	latest, err := s.store.LatestVersion(ctx, req.FileID)
	if err != nil {
		return Decision{}, err
	}
	if latest != nil && latest.Digest == digest {
		return Decision{Reason: SkipReasonUnchanged}, nil
	}

	if !req.Force {
		needs, _, err := s.quotas.NeedsCleanup(ctx, req.ScopeID)
		if err != nil {
			return Decision{}, err
		}
		if needs {
			return Decision{Reason: SkipReasonQuotaExceeded}, nil
		}
	}

	return Decision{Create: true}, nil
}

// CreateVersion captures one version: deduplicates the content into the blob
// store, inserts the version row with the next version number, attributes
// compressed bytes to the scope for primary storage, and updates the global
// counters.
func (s *VersionService) CreateVersion(ctx context.Context, req CreateVersionRequest) (*models.Version, error) {
	if req.FileID == "" {
		return nil, fmt.Errorf("file id is required")
	}
	changeKind := req.ChangeKind
	if changeKind == "" {
		changeKind = models.ChangeKindUpdate
	}
	if _, err := models.ParseChangeKind(string(changeKind)); err != nil {
		return nil, err
	}

	blob, created, err := s.blobs.GetOrCreate(ctx, req.Content, req.Digest)
	if err != nil {
		return nil, err
	}

	storageKind := models.StorageKindShared
	if created {
		storageKind = models.StorageKindPrimary
	}

	version := &models.Version{
		FileID:       req.FileID,
		ScopeID:      req.ScopeID,
		RawSizeBytes: int64(len(req.Content)),
		Digest:       blob.Digest,
		BlobID:       blob.ID,
		StorageKind:  storageKind,
		IsPriority:   req.IsPriority,
		ChangeKind:   changeKind,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.InsertVersion(ctx, version); err != nil {
		// The blob reference was already taken; give it back.
		if _, derr := s.blobs.DecrementReference(ctx, blob); derr != nil {
			s.log.Warn("failed to release blob reference after insert failure", "digest", blob.Digest, "error", derr)
		}
		return nil, fmt.Errorf("insert version: %w", err)
	}

	if storageKind == models.StorageKindPrimary {
		if err := s.quotas.AdjustUsage(ctx, req.ScopeID, blob.CompressedSizeBytes); err != nil {
			s.log.Warn("failed to attribute usage", "scope", req.ScopeID, "error", err)
		}
	}
	s.stats.RecordVersionCreated(ctx, version.RawSizeBytes)

	s.log.Debug("version created",
		"file", req.FileID, "version", version.VersionNumber,
		"digest", blob.Digest, "storage_kind", storageKind)
	return version, nil
}

// GetVersion returns one version row by id.
func (s *VersionService) GetVersion(ctx context.Context, id string) (*models.Version, error) {
	version, err := s.store.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, ErrNotFound
	}
	return version, nil
}

// GetVersionContent reads back a version's original content, decompressing
// and verifying the stored blob.
func (s *VersionService) GetVersionContent(ctx context.Context, id string) (*models.Version, []byte, error) {
	version, err := s.GetVersion(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	blob, err := s.store.GetBlob(ctx, version.BlobID)
	if err != nil {
		return nil, nil, err
	}
	if blob == nil {
		return nil, nil, fmt.Errorf("blob %s for version %s: %w", version.BlobID, id, ErrNotFound)
	}
	content, err := s.blobs.ReadContent(ctx, blob)
	if err != nil {
		return nil, nil, err
	}
	return version, content, nil
}

// ListVersions lists a file's versions, newest first.
func (s *VersionService) ListVersions(ctx context.Context, fileID string) ([]models.Version, error) {
	return s.store.ListVersionsByFile(ctx, fileID)
}

// DeleteVersion removes one version, releases its blob reference, deletes the
// blob outright when the reference count reaches zero, and reverses the
// scope's usage attribution for primary versions. Returns the compressed
// bytes actually freed from disk.
func (s *VersionService) DeleteVersion(ctx context.Context, id string) (int64, error) {
	version, err := s.GetVersion(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.deleteVersion(ctx, version)
}

func (s *VersionService) deleteVersion(ctx context.Context, version *models.Version) (int64, error) {
	blob, err := s.store.GetBlob(ctx, version.BlobID)
	if err != nil {
		return 0, err
	}

	if err := s.store.DeleteVersion(ctx, version.ID); err != nil {
		return 0, fmt.Errorf("delete version %s: %w", version.ID, err)
	}
	s.stats.RecordVersionDeleted(ctx, version.RawSizeBytes)

	var freed int64
	if blob != nil {
		remaining, err := s.blobs.DecrementReference(ctx, blob)
		if err != nil {
			return 0, err
		}
		if remaining == 0 {
			blob.ReferenceCount = 0
			freed, err = s.blobs.Delete(ctx, blob)
			if err != nil {
				return 0, err
			}
		}
		if version.StorageKind == models.StorageKindPrimary {
			if err := s.quotas.AdjustUsage(ctx, version.ScopeID, -blob.CompressedSizeBytes); err != nil {
				s.log.Warn("failed to reverse usage", "scope", version.ScopeID, "error", err)
			}
		}
	}

	s.log.Debug("version deleted",
		"file", version.FileID, "version", version.VersionNumber,
		"freed_bytes", freed)
	return freed, nil
}
