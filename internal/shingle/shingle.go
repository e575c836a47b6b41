// Package shingle turns strings into sets of character n-gram fingerprints
// and computes exact Jaccard similarity between such sets. The fingerprint
// sets are the record representation used by the minhash joins, and Jaccard
// is the oracle every candidate pair is verified with.
package shingle

import (
	"slices"

	"github.com/zeebo/xxh3"
)

// Set is the deduplicated, sorted fingerprint set of one record.
type Set struct {
	Fingerprints []uint32
	Index        int
}

// Len returns the number of distinct fingerprints.
func (s Set) Len() int {
	return len(s.Fingerprints)
}

// Empty reports whether the record produced no shingles.
func (s Set) Empty() bool {
	return len(s.Fingerprints) == 0
}

// Build fingerprints every window of shingleLen characters in record. A
// shingleLen that is not positive or longer than the record yields an empty
// set.
func Build(record string, shingleLen int, index int) Set {
	return build(record, shingleLen, index, 0)
}

// BuildSalted is Build with every window hashed under a seed derived from
// salt, so the same text under two salts gives unrelated fingerprints.
func BuildSalted(record string, shingleLen int, index int, salt string) Set {
	return build(record, shingleLen, index, saltSeed(salt))
}

func saltSeed(salt string) uint64 {
	// Distinct from the unsalted seed 0 even for the empty salt.
	return xxh3.HashString(salt) | 1
}

func build(record string, shingleLen int, index int, seed uint64) Set {
	set := Set{Index: index}
	if shingleLen <= 0 {
		return set
	}

	offsets := runeOffsets(record)
	runes := len(offsets) - 1
	if shingleLen > runes {
		return set
	}

	fps := make([]uint32, 0, runes-shingleLen+1)
	for i := 0; i+shingleLen <= runes; i++ {
		window := record[offsets[i]:offsets[i+shingleLen]]
		var h uint64
		if seed == 0 {
			h = xxh3.HashString(window)
		} else {
			h = xxh3.HashStringSeed(window, seed)
		}
		fps = append(fps, uint32(h))
	}

	slices.Sort(fps)
	set.Fingerprints = slices.Compact(fps)
	return set
}

// runeOffsets returns the byte offset of every rune in s plus len(s), so
// window i..j spans s[offsets[i]:offsets[j]].
func runeOffsets(s string) []int {
	offsets := make([]int, 0, len(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	return append(offsets, len(s))
}

// Jaccard returns |a∩b| / |a∪b|. It is 0 when either set is empty.
func Jaccard(a, b Set) float64 {
	if a.Empty() || b.Empty() {
		return 0
	}
	inter := intersectionSize(a.Fingerprints, b.Fingerprints)
	union := len(a.Fingerprints) + len(b.Fingerprints) - inter
	return float64(inter) / float64(union)
}

// intersectionSize merges two sorted, deduplicated slices.
func intersectionSize(a, b []uint32) int {
	n := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}
