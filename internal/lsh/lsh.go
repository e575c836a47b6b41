// Package lsh holds the locality-sensitive hash families used for blocking.
//
// Every hasher draws its random parameters once, from an explicit
// *rand.Rand, and is afterwards a pure function of the record. The joins
// construct one fresh hasher per band so bands are independent trials.
//
// Three families are provided:
//
//   - MinHasher: AND-of-minhashes over fingerprint sets (Jaccard).
//   - EuclideanHasher: p-stable random projections (Euclidean distance).
//   - HammingHasher: bit sampling over fixed-length strings (Hamming).
package lsh

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/zeebo/xxh3"

	apperrors "github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/errors"
)

// Hasher maps a record to the bucket key of one band.
type Hasher[T any] interface {
	Hash(record T) uint64
}

// Factory draws a fresh Hasher for a band.
type Factory[T any] func(rng *rand.Rand) (Hasher[T], error)

// combiner folds fixed-width values into one xxh3 digest.
type combiner struct {
	buf []byte
}

func newCombiner(capacity int) *combiner {
	return &combiner{buf: make([]byte, 0, capacity)}
}

func (c *combiner) addUint64(v uint64) {
	c.buf = binary.LittleEndian.AppendUint64(c.buf, v)
}

func (c *combiner) addByte(v byte) {
	c.buf = append(c.buf, v)
}

func (c *combiner) sum() uint64 {
	return xxh3.Hash(c.buf)
}

func validateBandWidth(bandWidth int) error {
	if bandWidth <= 0 {
		return apperrors.Invalid("band width must be positive, got %d", bandWidth)
	}
	return nil
}
