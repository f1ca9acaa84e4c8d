package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"verso/internal/models"
)

// testVersion inserts a version for fileID referencing blob, with the given
// priority flag, and returns it.
func testVersion(t *testing.T, st *Store, fileID, scopeID string, blob *models.Blob, priority bool) *models.Version {
	t.Helper()
	version := &models.Version{
		FileID:       fileID,
		ScopeID:      scopeID,
		RawSizeBytes: blob.OriginalSizeBytes,
		Digest:       blob.Digest,
		BlobID:       blob.ID,
		StorageKind:  models.StorageKindPrimary,
		IsPriority:   priority,
		ChangeKind:   models.ChangeKindUpdate,
	}
	if err := st.InsertVersion(context.Background(), version); err != nil {
		t.Fatalf("insert version: %v", err)
	}
	return version
}

func TestInsertVersionAllocatesSequentialNumbers(t *testing.T) {
	st := testStore(t)
	blob := testBlob(t, st, 10)

	for want := int64(1); want <= 3; want++ {
		version := testVersion(t, st, "file-a", "u", blob, false)
		if version.VersionNumber != want {
			t.Fatalf("expected version_number %d, got %d", want, version.VersionNumber)
		}
		if !strings.HasPrefix(version.ID, "vr-") {
			t.Fatalf("expected vr- prefixed id, got %q", version.ID)
		}
	}

	// Numbering is per file.
	other := testVersion(t, st, "file-b", "u", blob, false)
	if other.VersionNumber != 1 {
		t.Fatalf("expected independent numbering, got %d", other.VersionNumber)
	}
}

func TestInsertVersionValidation(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.InsertVersion(ctx, &models.Version{BlobID: "bl-x"}); err == nil {
		t.Fatal("expected error for missing file_id")
	}
	if err := st.InsertVersion(ctx, &models.Version{FileID: "f"}); err == nil {
		t.Fatal("expected error for missing blob_id")
	}
}

func TestLatestVersion(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	blob := testBlob(t, st, 11)

	latest, err := st.LatestVersion(ctx, "file-a")
	if err != nil {
		t.Fatalf("latest on empty: %v", err)
	}
	if latest != nil {
		t.Fatal("expected nil for file without versions")
	}

	testVersion(t, st, "file-a", "u", blob, false)
	v2 := testVersion(t, st, "file-a", "u", blob, false)

	latest, err = st.LatestVersion(ctx, "file-a")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.ID != v2.ID {
		t.Fatalf("expected latest %s, got %+v", v2.ID, latest)
	}
}

func TestListVersionsByFileNewestFirst(t *testing.T) {
	st := testStore(t)
	blob := testBlob(t, st, 12)

	for i := 0; i < 3; i++ {
		testVersion(t, st, "file-a", "u", blob, false)
	}

	versions, err := st.ListVersionsByFile(context.Background(), "file-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(versions))
	}
	for i, version := range versions {
		if want := int64(3 - i); version.VersionNumber != want {
			t.Fatalf("expected version %d at index %d, got %d", want, i, version.VersionNumber)
		}
	}
}

func TestListFilesOverDepth(t *testing.T) {
	st := testStore(t)
	blob := testBlob(t, st, 13)

	for i := 0; i < 4; i++ {
		testVersion(t, st, "deep", "u", blob, false)
	}
	testVersion(t, st, "shallow", "u", blob, false)
	testVersion(t, st, "other-scope", "v", blob, false)

	over, err := st.ListFilesOverDepth(context.Background(), "u", 2)
	if err != nil {
		t.Fatalf("list over depth: %v", err)
	}
	if len(over) != 1 {
		t.Fatalf("expected 1 file over depth, got %d", len(over))
	}
	if over[0].FileID != "deep" || over[0].Count != 4 {
		t.Fatalf("expected deep with 4 versions, got %+v", over[0])
	}
}

func TestListOldestNonPriorityVersions(t *testing.T) {
	st := testStore(t)
	blob := testBlob(t, st, 14)

	v1 := testVersion(t, st, "f", "u", blob, true) // protected
	v2 := testVersion(t, st, "f", "u", blob, false)
	testVersion(t, st, "f", "u", blob, false)

	victims, err := st.ListOldestNonPriorityVersions(context.Background(), "f", 1)
	if err != nil {
		t.Fatalf("list victims: %v", err)
	}
	if len(victims) != 1 {
		t.Fatalf("expected 1 victim, got %d", len(victims))
	}
	if victims[0].ID == v1.ID {
		t.Fatal("priority version offered as trim victim")
	}
	if victims[0].ID != v2.ID {
		t.Fatalf("expected oldest non-priority %s, got %s", v2.ID, victims[0].ID)
	}

	// When every older version is protected, the newest must not become a
	// victim by default.
	testVersion(t, st, "g", "u", blob, true)
	testVersion(t, st, "g", "u", blob, true)
	testVersion(t, st, "g", "u", blob, false) // newest

	victims, err = st.ListOldestNonPriorityVersions(context.Background(), "g", 3)
	if err != nil {
		t.Fatalf("list victims: %v", err)
	}
	if len(victims) != 0 {
		t.Fatalf("expected no victims for priority-shielded file, got %d", len(victims))
	}
}

func TestListEvictionCandidates(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	blob := testBlob(t, st, 15)

	old := testVersion(t, st, "f", "u", blob, false)
	protected := testVersion(t, st, "f", "u", blob, true)
	testVersion(t, st, "f", "u", blob, false) // newest, never a candidate
	testVersion(t, st, "solo", "u", blob, false)

	candidates, err := st.ListEvictionCandidates(ctx, "u", false)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].ID != old.ID {
		t.Fatalf("expected oldest non-priority %s, got %s", old.ID, candidates[0].ID)
	}

	all, err := st.ListEvictionCandidates(ctx, "u", true)
	if err != nil {
		t.Fatalf("candidates with priority: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(all))
	}
	// Non-priority sorts ahead of priority.
	if all[0].ID != old.ID || all[1].ID != protected.ID {
		t.Fatalf("unexpected candidate order: %s, %s", all[0].ID, all[1].ID)
	}
}

func TestCountVersionsByBlob(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	blob := testBlob(t, st, 16)

	version := testVersion(t, st, "f", "u", blob, false)
	count, err := st.CountVersionsByBlob(ctx, blob.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}

	if err := st.DeleteVersion(ctx, version.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	count, err = st.CountVersionsByBlob(ctx, blob.ID)
	if err != nil {
		t.Fatalf("count after delete: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}
}

func TestVersionRoundTripFields(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	blob := testBlob(t, st, 17)

	in := &models.Version{
		FileID:       "f",
		ScopeID:      "u",
		RawSizeBytes: 4242,
		Digest:       blob.Digest,
		BlobID:       blob.ID,
		StorageKind:  models.StorageKindShared,
		IsPriority:   true,
		ChangeKind:   models.ChangeKindDeleteMarker,
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := st.InsertVersion(ctx, in); err != nil {
		t.Fatalf("insert: %v", err)
	}

	out, err := st.GetVersion(ctx, in.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.StorageKind != models.StorageKindShared {
		t.Fatalf("storage_kind mismatch: %s", out.StorageKind)
	}
	if out.ChangeKind != models.ChangeKindDeleteMarker {
		t.Fatalf("change_kind mismatch: %s", out.ChangeKind)
	}
	if !out.IsPriority {
		t.Fatal("is_priority lost")
	}
	if out.RawSizeBytes != 4242 {
		t.Fatalf("raw_size_bytes mismatch: %d", out.RawSizeBytes)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("created_at mismatch: %v", out.CreatedAt)
	}
}
