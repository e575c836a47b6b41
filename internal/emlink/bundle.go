package emlink

import (
	"encoding/binary"
	"slices"

	"github.com/zeebo/xxh3"
)

// Bundle is one distinct agreement pattern together with the rows that share
// it. ProbMatch is the only field EM mutates.
type Bundle struct {
	Pattern   []int
	Rows      []int
	ProbMatch float64
}

// Count is the number of rows in the bundle.
func (b *Bundle) Count() int {
	return len(b.Rows)
}

// patternHash digests the little-endian encoding of a pattern.
var patternHash = xxh3.Hash

// bundler groups rows by pattern. The xxh3 hash of a pattern only narrows
// the search; rows join a bundle on full pattern equality.
type bundler struct {
	byHash  map[uint64][]int
	bundles []*Bundle
	buf     []byte
}

func newBundler(width int) *bundler {
	return &bundler{
		byHash: make(map[uint64][]int),
		buf:    make([]byte, 0, 8*width),
	}
}

func (g *bundler) add(row int, pattern []int) {
	h := g.hash(pattern)
	for _, idx := range g.byHash[h] {
		b := g.bundles[idx]
		if slices.Equal(b.Pattern, pattern) {
			b.Rows = append(b.Rows, row)
			return
		}
	}
	g.byHash[h] = append(g.byHash[h], len(g.bundles))
	g.bundles = append(g.bundles, &Bundle{
		Pattern: slices.Clone(pattern),
		Rows:    []int{row},
	})
}

func (g *bundler) hash(pattern []int) uint64 {
	g.buf = g.buf[:0]
	for _, v := range pattern {
		g.buf = binary.LittleEndian.AppendUint64(g.buf, uint64(v))
	}
	return patternHash(g.buf)
}

// groupRows partitions the rows of agreement into bundles in order of first
// appearance.
func groupRows(agreement [][]int) []*Bundle {
	var width int
	if len(agreement) > 0 {
		width = len(agreement[0])
	}
	g := newBundler(width)
	for row, pattern := range agreement {
		g.add(row, pattern)
	}
	return g.bundles
}
