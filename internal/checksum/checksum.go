// Package checksum computes the 256-bit content digests used as blob keys.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
)

// HexLength is the length of a hex-encoded digest.
const HexLength = sha256.Size * 2

var digestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Sum returns the lowercase hex SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumReader streams r through SHA-256 and returns the digest and the number
// of bytes read. Identical content yields the same digest as Sum.
func SumReader(r io.Reader) (string, int64, error) {
	if r == nil {
		return "", 0, fmt.Errorf("reader is required")
	}
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Valid reports whether raw looks like a lowercase hex digest.
func Valid(raw string) bool {
	return digestPattern.MatchString(raw)
}
