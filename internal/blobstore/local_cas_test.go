package blobstore

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestLocalCASWriteOpenDelete(t *testing.T) {
	cas, err := NewLocalCAS(t.TempDir())
	if err != nil {
		t.Fatalf("new local cas: %v", err)
	}
	ctx := context.Background()

	digest := strings.Repeat("ab", 32)
	key := cas.KeyFromDigest(digest)
	if !strings.HasPrefix(key, "sha256/ab/ab/") {
		t.Fatalf("unexpected key layout: %s", key)
	}

	if err := cas.Write(ctx, key, []byte("compressed-bytes")); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Writing the same key again is a no-op.
	if err := cas.Write(ctx, key, []byte("compressed-bytes")); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	rc, err := cas.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "compressed-bytes" {
		t.Fatalf("unexpected content %q", string(data))
	}

	if err := cas.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := cas.Delete(ctx, key); err != nil {
		t.Fatalf("delete missing should be noop: %v", err)
	}
	if _, err := cas.Open(ctx, key); err == nil {
		t.Fatal("expected open of deleted object to fail")
	}
}

func TestLocalCASRejectsBadKeys(t *testing.T) {
	cas, err := NewLocalCAS(t.TempDir())
	if err != nil {
		t.Fatalf("new local cas: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"", "/abs/path", "../escape", "sha256/../../etc/passwd"} {
		if err := cas.Write(ctx, key, []byte("x")); err == nil {
			t.Errorf("expected write with key %q to fail", key)
		}
	}
}
