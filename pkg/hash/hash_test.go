package hash

import (
	"math"
	"testing"
)

func TestHash64Deterministic(t *testing.T) {
	build := func() uint64 {
		h := New()
		h.AppendInt(3)
		h.AppendFloat(1.5)
		h.AppendBool(true)
		h.AppendString("blur")
		return h.Sum64()
	}
	if build() != build() {
		t.Error("Hash64 should be deterministic")
	}
}

func TestHash64Distinguishes(t *testing.T) {
	a := New()
	a.AppendString("ab")
	a.AppendString("c")

	b := New()
	b.AppendString("a")
	b.AppendString("bc")

	if a.Sum64() == b.Sum64() {
		t.Error("adjacent strings should not collide")
	}

	c := New()
	c.AppendFloat(1)
	d := New()
	d.AppendFloat(2)
	if c.Sum64() == d.Sum64() {
		t.Error("different floats should produce different hashes")
	}
}

func TestHash64NegativeZero(t *testing.T) {
	a := New()
	a.AppendFloat(0)
	b := New()
	b.AppendFloat(math.Copysign(0, -1))
	if a.Sum64() != b.Sum64() {
		t.Error("0 and -0 should hash equally")
	}
	if a.Len() != 1 {
		t.Errorf("Len() = %d, want 1", a.Len())
	}
}

func TestHex(t *testing.T) {
	if got := Hex(0xab); got != "00000000000000ab" {
		t.Errorf("Hex() = %s", got)
	}
}

func TestFingerprint(t *testing.T) {
	h1 := Fingerprint([]byte("hello"))
	h2 := Fingerprint([]byte("hello"))
	if h1 != h2 {
		t.Error("Fingerprint should be deterministic")
	}
	if h1 == Fingerprint([]byte("world")) {
		t.Error("Different inputs should produce different fingerprints")
	}
	if len(h1) != 64 {
		t.Errorf("Fingerprint length should be 64, got %d", len(h1))
	}
}
