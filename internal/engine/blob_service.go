package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"verso/internal/blobstore"
	"verso/internal/checksum"
	"verso/internal/compress"
	"verso/internal/models"
	"verso/internal/store"
)

// BlobService owns unique compressed content. It composes the catalog rows
// (reference counting) with the physical object tree and the compression
// codec, and is the dedup primitive of the write path.
type BlobService struct {
	store   *store.Store
	objects blobstore.ObjectStore
	codec   *compress.Codec
	stats   *StatsService

	locks digestLocks
}

// NewBlobService constructs a BlobService.
func NewBlobService(st *store.Store, objects blobstore.ObjectStore, codec *compress.Codec, stats *StatsService) *BlobService {
	return &BlobService{store: st, objects: objects, codec: codec, stats: stats}
}

// Find returns the blob for a digest, or nil when the content is unknown.
// Lookup only, no mutation.
func (s *BlobService) Find(ctx context.Context, digest string) (*models.Blob, error) {
	if !checksum.Valid(digest) {
		return nil, fmt.Errorf("invalid digest %q", digest)
	}
	return s.store.FindBlobByDigest(ctx, digest)
}

// GetOrCreate stores content under its digest, or — when a blob for the
// digest already exists — increments its reference count. The returned flag
// reports whether this call created the blob. Concurrent first writes of the
// same digest are serialized by a per-digest lock; the catalog upsert is
// atomic on top of that as a second line of defense.
func (s *BlobService) GetOrCreate(ctx context.Context, content []byte, digest string) (*models.Blob, bool, error) {
	if digest == "" {
		digest = checksum.Sum(content)
	}
	if !checksum.Valid(digest) {
		return nil, false, fmt.Errorf("invalid digest %q", digest)
	}

	mu := s.locks.lock(digest)
	defer mu.Unlock()

	existing, err := s.store.FindBlobByDigest(ctx, digest)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if err := s.store.IncrementBlobReference(ctx, existing.ID); err != nil {
			return nil, false, err
		}
		blob, err := s.store.GetBlob(ctx, existing.ID)
		if err != nil {
			return nil, false, err
		}
		if blob == nil {
			return nil, false, fmt.Errorf("blob %s vanished during increment: %w", existing.ID, ErrNotFound)
		}
		return blob, false, nil
	}

	compressed, compressedSize := s.codec.Compress(content)
	key := s.objects.KeyFromDigest(digest)
	if err := s.objects.Write(ctx, key, compressed); err != nil {
		return nil, false, &StorageError{Op: "write", Key: key, Err: err}
	}

	blob, created, err := s.store.UpsertBlobReference(ctx, &models.Blob{
		Digest:              digest,
		StorageKey:          key,
		OriginalSizeBytes:   int64(len(content)),
		CompressedSizeBytes: compressedSize,
	})
	if err != nil {
		return nil, false, err
	}
	if created && s.stats != nil {
		s.stats.RecordBlobCreated(ctx, blob.CompressedSizeBytes)
	}
	return blob, created, nil
}

// IncrementReference adds one reference to an existing blob, used when a
// later version independently resolves to a known digest.
func (s *BlobService) IncrementReference(ctx context.Context, blob *models.Blob) error {
	if blob == nil {
		return fmt.Errorf("blob is required")
	}
	mu := s.locks.lock(blob.Digest)
	defer mu.Unlock()
	if err := s.store.IncrementBlobReference(ctx, blob.ID); err != nil {
		return fmt.Errorf("increment reference %s: %w", blob.ID, err)
	}
	return nil
}

// DecrementReference drops one reference and returns the remaining count.
// At zero the blob is marked pending_delete; the bytes are removed by a
// later explicit Delete so sweeps can be reported before committing.
func (s *BlobService) DecrementReference(ctx context.Context, blob *models.Blob) (int64, error) {
	if blob == nil {
		return 0, fmt.Errorf("blob is required")
	}
	mu := s.locks.lock(blob.Digest)
	defer mu.Unlock()
	remaining, err := s.store.DecrementBlobReference(ctx, blob.ID)
	if err != nil {
		return 0, fmt.Errorf("decrement reference %s: %w", blob.ID, err)
	}
	return remaining, nil
}

// Delete removes the blob's storage object and catalog row and returns the
// compressed bytes freed. It fails with a ReferencedError when the blob
// still has live references at call time.
func (s *BlobService) Delete(ctx context.Context, blob *models.Blob) (int64, error) {
	if blob == nil {
		return 0, fmt.Errorf("blob is required")
	}

	mu := s.locks.lock(blob.Digest)
	defer mu.Unlock()

	current, err := s.store.GetBlob(ctx, blob.ID)
	if err != nil {
		return 0, err
	}
	if current == nil {
		return 0, fmt.Errorf("blob %s: %w", blob.ID, ErrNotFound)
	}
	if current.ReferenceCount > 0 {
		return 0, &ReferencedError{Digest: current.Digest, ReferenceCount: current.ReferenceCount}
	}

	if err := s.objects.Delete(ctx, current.StorageKey); err != nil {
		return 0, &StorageError{Op: "delete", Key: current.StorageKey, Err: err}
	}
	if err := s.store.DeleteBlob(ctx, current.ID); err != nil {
		return 0, err
	}
	if s.stats != nil {
		s.stats.RecordBlobDeleted(ctx, current.CompressedSizeBytes)
	}
	return current.CompressedSizeBytes, nil
}

// ReadContent decompresses and returns the original content of a blob. The
// content is re-hashed and a digest mismatch surfaces as a DecodeError; a
// missing storage object (dangling catalog row) surfaces as ErrNotFound.
func (s *BlobService) ReadContent(ctx context.Context, blob *models.Blob) ([]byte, error) {
	if blob == nil {
		return nil, fmt.Errorf("blob is required")
	}

	compressed, err := s.objects.Read(ctx, blob.StorageKey)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("blob object %s: %w", blob.StorageKey, ErrNotFound)
		}
		return nil, &StorageError{Op: "read", Key: blob.StorageKey, Err: err}
	}

	content, err := s.codec.Decompress(compressed)
	if err != nil {
		return nil, &DecodeError{Digest: blob.Digest, Err: err}
	}
	if actual := checksum.Sum(content); actual != blob.Digest {
		return nil, &DecodeError{Digest: blob.Digest, Err: fmt.Errorf("content digest mismatch: got %s", actual)}
	}

	_ = s.store.TouchBlobAccess(ctx, blob.ID)
	return content, nil
}
