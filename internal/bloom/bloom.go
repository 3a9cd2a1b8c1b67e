// Package bloom implements a fixed-size Bloom filter used to gate index
// lookups. It offers no false negatives between resets and a tunable
// false-positive probability. There is no per-key removal; stale positives
// accumulate after deletions until the owner rebuilds the filter from the
// live key set via Reset.
package bloom

import "math"

// Filter is a classic Bloom filter over a byte bitmap. It is not safe for
// concurrent use; the owning shard serializes access under its lock.
type Filter struct {
	bitmap []byte
	k      uint8 // number of probe positions per key
}

// New sizes a filter for expectedItems entries at the target false-positive
// probability fp. Bit count m and probe count k follow the standard
// derivations m = -n*ln(p)/(ln 2)^2 and k = (m/n)*ln 2, with k clamped to
// [1, 30]. fp must lie in (0, 1); expectedItems must be positive.
func New(expectedItems int, fp float64) *Filter {
	bits := -float64(expectedItems) * math.Log(fp) / (math.Ln2 * math.Ln2)
	bitsPerKey := int(math.Ceil(bits / float64(expectedItems)))
	if bitsPerKey < 0 {
		bitsPerKey = 0
	}

	k := uint8(float64(bitsPerKey) * math.Ln2)
	if k < 1 {
		k = 1
	}
	if k > 30 {
		k = 30
	}

	nBits := expectedItems * bitsPerKey
	if nBits < 64 {
		nBits = 64
	}
	nBytes := (nBits + 7) / 8

	return &Filter{
		bitmap: make([]byte, nBytes),
		k:      k,
	}
}

// Add marks key as possibly present.
func (f *Filter) Add(key []byte) {
	h := hash(key)
	nBits := uint32(8 * len(f.bitmap))
	delta := h>>17 | h<<15
	for i := uint8(0); i < f.k; i++ {
		pos := h % nBits
		f.bitmap[pos/8] |= 1 << (pos % 8)
		h += delta
	}
}

// MightContain returns false only if key was never added since the last
// Reset. A true result may be a false positive.
func (f *Filter) MightContain(key []byte) bool {
	h := hash(key)
	nBits := uint32(8 * len(f.bitmap))
	delta := h>>17 | h<<15
	for i := uint8(0); i < f.k; i++ {
		pos := h % nBits
		if f.bitmap[pos/8]&(1<<(pos%8)) == 0 {
			return false
		}
		h += delta
	}
	return true
}

// Reset clears every bit. The owner is expected to re-add all live keys
// afterwards; until it does, MightContain answers false for everything.
func (f *Filter) Reset() {
	for i := range f.bitmap {
		f.bitmap[i] = 0
	}
}

// Bits returns the bitmap size in bits.
func (f *Filter) Bits() int { return 8 * len(f.bitmap) }

// hash is the Murmur-style mix used for probe derivation. The k probes are
// produced from one hash by repeated rotation-addition (double hashing)
// instead of k independent hash functions.
func hash(b []byte) uint32 {
	const (
		seed = 0xbc9f1d34
		m    = 0xc6a4a793
	)
	h := uint32(seed) ^ uint32(len(b))*m
	for ; len(b) >= 4; b = b[4:] {
		h += uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		h *= m
		h ^= h >> 16
	}
	switch len(b) {
	case 3:
		h += uint32(b[2]) << 16
		fallthrough
	case 2:
		h += uint32(b[1]) << 8
		fallthrough
	case 1:
		h += uint32(b[0])
		h *= m
		h ^= h >> 24
	}
	return h
}
