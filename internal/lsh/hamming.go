package lsh

import (
	"math/rand/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/errors"
)

// HammingHasher samples bandWidth byte positions, with replacement, from
// [0, inputLen). The key folds in the string length followed by the byte at
// each sampled position that lies inside the string.
type HammingHasher struct {
	indexes []int
}

func NewHammingHasher(inputLen, bandWidth int, rng *rand.Rand) (*HammingHasher, error) {
	if err := validateBandWidth(bandWidth); err != nil {
		return nil, err
	}
	if inputLen <= 0 {
		return nil, apperrors.Invalid("input length bound must be positive, got %d", inputLen)
	}
	indexes := make([]int, bandWidth)
	for i := range indexes {
		indexes[i] = rng.IntN(inputLen)
	}
	return &HammingHasher{indexes: indexes}, nil
}

// HammingFactory adapts NewHammingHasher for the joins.
func HammingFactory(inputLen, bandWidth int) Factory[string] {
	return func(rng *rand.Rand) (Hasher[string], error) {
		h, err := NewHammingHasher(inputLen, bandWidth, rng)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
}

// Indexes returns a copy of the sampled positions.
func (h *HammingHasher) Indexes() []int {
	return append([]int(nil), h.indexes...)
}

// Hash folds len(s) and the sampled bytes of s into a band key. Strings of
// equal length that agree on the sampled positions collide; in particular
// all empty strings share one key in every band.
func (h *HammingHasher) Hash(s string) uint64 {
	c := newCombiner(8 + len(h.indexes))
	c.addUint64(uint64(len(s)))
	for _, idx := range h.indexes {
		if idx < len(s) {
			c.addByte(s[idx])
		}
	}
	return c.sum()
}

// Distance is the Hamming distance between a and b, with every position past
// the end of the shorter string counted as a mismatch.
func Distance(a, b string) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	d := len(b) - len(a)
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}
