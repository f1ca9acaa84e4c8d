// Package compress provides the lossless codec applied to blob content
// before it reaches the object store.
package compress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Codec compresses and decompresses blob content with zstd. Encoders and
// decoders are pooled for reuse across concurrent writers.
type Codec struct {
	encoderPool sync.Pool
	decoderPool sync.Pool
}

// NewCodec returns a ready-to-use codec.
func NewCodec() *Codec {
	c := &Codec{}
	c.encoderPool = sync.Pool{
		New: func() any {
			enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
			return enc
		},
	}
	c.decoderPool = sync.Pool{
		New: func() any {
			dec, _ := zstd.NewReader(nil)
			return dec
		},
	}
	return c
}

// Compress returns the compressed form of data and its size.
func (c *Codec) Compress(data []byte) ([]byte, int64) {
	enc := c.encoderPool.Get().(*zstd.Encoder)
	defer c.encoderPool.Put(enc)

	out := enc.EncodeAll(data, nil)
	return out, int64(len(out))
}

// Decompress round-trips compressed bytes back to the original content.
// Corrupt or truncated input returns an error.
func (c *Codec) Decompress(data []byte) ([]byte, error) {
	dec := c.decoderPool.Get().(*zstd.Decoder)
	defer c.decoderPool.Put(dec)

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return out, nil
}

// CompressFile streams src through the codec into dst and returns the
// compressed size written.
func (c *Codec) CompressFile(srcPath, dstPath string) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return 0, fmt.Errorf("create destination: %w", err)
	}

	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = dst.Close()
		return 0, err
	}
	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		_ = dst.Close()
		return 0, fmt.Errorf("compress stream: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = dst.Close()
		return 0, fmt.Errorf("flush stream: %w", err)
	}
	if err := dst.Close(); err != nil {
		return 0, fmt.Errorf("close destination: %w", err)
	}

	info, err := os.Stat(dstPath)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// DecompressFile reads a compressed object from disk and returns the
// original content.
func (c *Codec) DecompressFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	defer dec.Close()

	out, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	return out, nil
}

// SizeHint returns the decompressed size recorded in the zstd frame header,
// or -1 when the frame does not carry one.
func (c *Codec) SizeHint(data []byte) int64 {
	var header zstd.Header
	if err := header.Decode(data); err != nil {
		return -1
	}
	if !header.HasFCS {
		return -1
	}
	return int64(header.FrameContentSize)
}
