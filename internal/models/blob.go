package models

import "time"

// Blob is one unique piece of stored content, keyed by digest. Its bytes live
// compressed in the blob store; this row carries the catalog state.
type Blob struct {
	ID                  string    `json:"id"`
	Digest              string    `json:"digest"`
	StorageKey          string    `json:"storage_key"`
	OriginalSizeBytes   int64     `json:"original_size_bytes"`
	CompressedSizeBytes int64     `json:"compressed_size_bytes"`
	ReferenceCount      int64     `json:"reference_count"`
	PendingDelete       bool      `json:"pending_delete"`
	LastAccessed        time.Time `json:"last_accessed"`
	CreatedAt           time.Time `json:"created_at"`
}
