package blobstore

import (
	"context"
	"io"
)

// ObjectStore is the physical byte-storage abstraction used by the blob
// service. Objects are opaque compressed payloads addressed by a key derived
// from the content digest.
type ObjectStore interface {
	// KeyFromDigest maps a content digest to the store's object key.
	KeyFromDigest(digest string) string
	// Write persists data under key. Writing an existing key is a no-op.
	Write(ctx context.Context, key string, data []byte) error
	// Open returns a reader for the stored object bytes.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Read returns the stored object bytes.
	Read(ctx context.Context, key string) ([]byte, error)
	// Delete removes an object. Missing objects are ignored.
	Delete(ctx context.Context, key string) error
}
