// Package engine is the service layer of the versioning/deduplication
// subsystem: blob get-or-create with reference counting, version lifecycle,
// quota accounting, and the priority reclaim passes.
package engine

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a missing blob, version, or scope. Callers match it with
// errors.Is; it is always recoverable on their side.
var ErrNotFound = errors.New("not found")

// ReferencedError is returned when a hard delete is attempted on a blob that
// still has live references. This indicates a caller-side bug and is never
// silently ignored.
type ReferencedError struct {
	Digest         string
	ReferenceCount int64
}

func (e *ReferencedError) Error() string {
	return fmt.Sprintf("blob %s still referenced (reference_count=%d)", e.Digest, e.ReferenceCount)
}

// DecodeError marks corrupt or truncated compressed content. The affected
// blob should be flagged for repair rather than silently dropped.
type DecodeError struct {
	Digest string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode blob %s: %v", e.Digest, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StorageError marks an I/O failure reading or writing blob bytes. This
// layer does not retry; that is the caller's call.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
