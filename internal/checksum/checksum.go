// Package checksum computes a running xxh3 digest of bytes passing through a
// writer. Two runs that produce the same digest produced the same output.
package checksum

import (
	"io"

	"github.com/zeebo/xxh3"
)

// Writer forwards writes to an underlying writer and hashes what was
// accepted.
type Writer struct {
	w io.Writer
	h *xxh3.Hasher
	n int64
}

// NewWriter returns a Writer that tees into w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, h: xxh3.New()}
}

// Write writes p to the underlying writer and hashes the bytes it accepted.
func (c *Writer) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if n > 0 {
		_, _ = c.h.Write(p[:n])
		c.n += int64(n)
	}
	return n, err
}

// Sum64 returns the digest of everything written so far.
func (c *Writer) Sum64() uint64 { return c.h.Sum64() }

// Size returns the number of bytes written so far.
func (c *Writer) Size() int64 { return c.n }

// Bytes returns the digest of b in one call.
func Bytes(b []byte) uint64 { return xxh3.Hash(b) }
