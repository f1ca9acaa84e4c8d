package models

import (
	"fmt"
	"strings"
	"time"
)

// StorageKind records whether a version created its blob or merely references
// a pre-existing one.
type StorageKind string

const (
	// StorageKindPrimary means this version's write created the blob; its
	// compressed bytes are attributed to the owning scope's usage.
	StorageKindPrimary StorageKind = "primary"
	// StorageKindShared means this version deduplicated against an existing
	// blob and contributes zero incremental bytes.
	StorageKindShared StorageKind = "shared"
)

// ChangeKind describes the write event that produced a version.
type ChangeKind string

const (
	ChangeKindCreate       ChangeKind = "create"
	ChangeKindUpdate       ChangeKind = "update"
	ChangeKindDeleteMarker ChangeKind = "delete_marker"
)

var validChangeKinds = map[ChangeKind]struct{}{
	ChangeKindCreate:       {},
	ChangeKindUpdate:       {},
	ChangeKindDeleteMarker: {},
}

// ParseChangeKind validates and normalizes a raw change kind.
func ParseChangeKind(raw string) (ChangeKind, error) {
	value := ChangeKind(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("change kind is required")
	}
	if _, ok := validChangeKinds[value]; !ok {
		return "", fmt.Errorf("invalid change kind: %s", value)
	}
	return value, nil
}

// Version is one historical snapshot of one file. Version numbers are 1-based
// and strictly increasing per file.
type Version struct {
	ID            string      `json:"id"`
	FileID        string      `json:"file_id"`
	ScopeID       string      `json:"scope_id"`
	VersionNumber int64       `json:"version_number"`
	RawSizeBytes  int64       `json:"raw_size_bytes"`
	Digest        string      `json:"digest"`
	BlobID        string      `json:"blob_id"`
	StorageKind   StorageKind `json:"storage_kind"`
	IsPriority    bool        `json:"is_priority"`
	ChangeKind    ChangeKind  `json:"change_kind"`
	CreatedAt     time.Time   `json:"created_at"`
}
