// Package hash provides the content fingerprints used to key downstream
// caches.
//
// [Hash64] accumulates typed values into a 64-bit xxhash digest. Knobs append
// their state to a shared accumulator so a holder can produce one hash for
// all of its parameters. [Fingerprint] is a SHA-256 digest for whole
// documents such as saved projects.
package hash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Hash64 accumulates values into a 64-bit digest.
// The zero value is not usable - use New.
// Hash64 is not safe for concurrent use.
type Hash64 struct {
	d   *xxhash.Digest
	buf [8]byte
	n   int
}

// New returns an empty accumulator.
func New() *Hash64 {
	return &Hash64{d: xxhash.New()}
}

// AppendUint64 appends a raw 64-bit word.
func (h *Hash64) AppendUint64(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	_, _ = h.d.Write(h.buf[:])
	h.n++
}

// AppendInt appends an integer.
func (h *Hash64) AppendInt(v int64) { h.AppendUint64(uint64(v)) }

// AppendFloat appends the IEEE-754 bits of v. Negative zero is folded into
// positive zero so equal values hash equally.
func (h *Hash64) AppendFloat(v float64) {
	if v == 0 {
		v = 0
	}
	h.AppendUint64(math.Float64bits(v))
}

// AppendBool appends 1 or 0.
func (h *Hash64) AppendBool(v bool) {
	if v {
		h.AppendUint64(1)
		return
	}
	h.AppendUint64(0)
}

// AppendString appends the length of s followed by its bytes, so that
// adjacent strings cannot collide by concatenation.
func (h *Hash64) AppendString(s string) {
	h.AppendUint64(uint64(len(s)))
	_, _ = h.d.WriteString(s)
}

// Len returns the number of values appended so far.
func (h *Hash64) Len() int { return h.n }

// Sum64 returns the digest of everything appended so far.
func (h *Hash64) Sum64() uint64 { return h.d.Sum64() }

// Hex formats a 64-bit hash as 16 lowercase hex characters.
func Hex(v uint64) string { return fmt.Sprintf("%016x", v) }

// Fingerprint computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
