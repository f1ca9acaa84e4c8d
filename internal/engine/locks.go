package engine

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// digestLocks provides per-digest mutual exclusion for the
// check-existence/insert-or-increment window of get-or-create. Locks are
// striped by a hash of the digest so the set stays bounded.
type digestLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *digestLocks) lock(digest string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(digest))
	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu
}
