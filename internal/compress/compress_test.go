package compress

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	codec := NewCodec()
	inputs := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte(strings.Repeat("repetitive text block ", 200)),
		bytes.Repeat([]byte{0x00, 0xff, 0x10}, 4096),
	}

	for _, in := range inputs {
		compressed, size := codec.Compress(in)
		if size != int64(len(compressed)) {
			t.Fatalf("reported size %d does not match %d", size, len(compressed))
		}
		out, err := codec.Decompress(compressed)
		if err != nil {
			t.Fatalf("decompress: %v", err)
		}
		if !bytes.Equal(in, out) {
			t.Fatalf("round trip mismatch for input of %d bytes", len(in))
		}
	}
}

func TestCompressShrinksRepetitiveText(t *testing.T) {
	codec := NewCodec()
	in := []byte(strings.Repeat("the same line of text over and over\n", 100))
	compressed, size := codec.Compress(in)
	if size >= int64(len(in)) {
		t.Fatalf("compressed %d bytes to %d, expected reduction", len(in), len(compressed))
	}
}

func TestDecompressCorruptInput(t *testing.T) {
	codec := NewCodec()
	if _, err := codec.Decompress([]byte("definitely not a zstd frame")); err == nil {
		t.Fatal("expected error for corrupt input")
	}

	compressed, _ := codec.Compress([]byte(strings.Repeat("payload", 100)))
	truncated := compressed[:len(compressed)/2]
	if _, err := codec.Decompress(truncated); err == nil {
		t.Fatal("expected error for truncated input")
	}
}

func TestCompressFileRoundTrip(t *testing.T) {
	codec := NewCodec()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.zst")
	content := []byte(strings.Repeat("streamed content\n", 500))

	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	size, err := codec.CompressFile(src, dst)
	if err != nil {
		t.Fatalf("compress file: %v", err)
	}
	if size <= 0 || size >= int64(len(content)) {
		t.Fatalf("compressed size %d out of expected range (0, %d)", size, len(content))
	}

	out, err := codec.DecompressFile(dst)
	if err != nil {
		t.Fatalf("decompress file: %v", err)
	}
	if !bytes.Equal(content, out) {
		t.Fatal("file round trip mismatch")
	}
}

func TestSizeHint(t *testing.T) {
	codec := NewCodec()
	in := []byte(strings.Repeat("sized", 100))
	compressed, _ := codec.Compress(in)
	if hint := codec.SizeHint(compressed); hint != int64(len(in)) {
		t.Fatalf("size hint = %d, want %d", hint, len(in))
	}
	if hint := codec.SizeHint([]byte("garbage")); hint != -1 {
		t.Fatalf("size hint for garbage = %d, want -1", hint)
	}
}
