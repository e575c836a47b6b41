package lsh

import (
	"encoding/binary"
	"math"
	"math/rand/v2"

	"github.com/zeebo/xxh3"

	"github.com/Adithya-Monish-Kumar-K/record-linkage/internal/shingle"
)

// maxMinhashSeed bounds the per-component seeds.
const maxMinhashSeed = 20_000_000

// MinHasher computes one band key from bandWidth independent minhashes.
//
// Two sets share a key only when all bandWidth minima agree, which happens
// with probability J^bandWidth for Jaccard similarity J. Across b bands a
// pair is found with probability 1-(1-J^bandWidth)^b: a wider band raises
// precision (fewer false candidates) and more bands raise recall.
type MinHasher struct {
	seeds []uint64
}

func NewMinHasher(bandWidth int, rng *rand.Rand) (*MinHasher, error) {
	if err := validateBandWidth(bandWidth); err != nil {
		return nil, err
	}
	seeds := make([]uint64, bandWidth)
	for i := range seeds {
		seeds[i] = rng.Uint64N(maxMinhashSeed)
	}
	return &MinHasher{seeds: seeds}, nil
}

// MinHashFactory adapts NewMinHasher for the joins.
func MinHashFactory(bandWidth int) Factory[shingle.Set] {
	return func(rng *rand.Rand) (Hasher[shingle.Set], error) {
		h, err := NewMinHasher(bandWidth, rng)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
}

// Seeds returns a copy of the drawn seeds.
func (m *MinHasher) Seeds() []uint64 {
	return append([]uint64(nil), m.seeds...)
}

// Hash returns the band key of s. An empty set hashes every component to
// math.MaxUint64 and still gets a well-defined key, which is the same for
// every empty set under every hasher. Records shorter than the n-gram width
// therefore share a bucket in every band, and a join re-verifies the full
// cross product of them band after band since none of those pairs is ever
// confirmed. Filter such records out beforehand when there are many.
func (m *MinHasher) Hash(s shingle.Set) uint64 {
	c := newCombiner(8 * len(m.seeds))
	var buf [4]byte
	for _, seed := range m.seeds {
		minSeen := uint64(math.MaxUint64)
		for _, fp := range s.Fingerprints {
			binary.LittleEndian.PutUint32(buf[:], fp)
			if h := xxh3.HashSeed(buf[:], seed); h < minSeen {
				minSeen = h
			}
		}
		c.addUint64(minSeen)
	}
	return c.sum()
}
