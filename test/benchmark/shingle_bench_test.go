package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/record-linkage/internal/lsh"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/internal/shingle"
)

var sampleRecords = map[string]string{
	"short":  "Jonathan Smith, 12 Baker Street",
	"medium": "Jonathan Q. Smith, Flat 4, 12 Baker Street, Marylebone, London NW1 6XE, United Kingdom",
	"long":   strings.Repeat("Jonathan Q. Smith, 12 Baker Street, London; ", 25),
}

func BenchmarkShingleBuild(b *testing.B) {
	for name, text := range sampleRecords {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				set := shingle.Build(text, 3, 0)
				_ = set
			}
		})
	}
}

func BenchmarkShingleBuildSalted(b *testing.B) {
	text := sampleRecords["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			set := shingle.BuildSalted(text, 3, 0, "NW1")
			_ = set
		}
	})
}

func BenchmarkJaccard(b *testing.B) {
	x := shingle.Build(sampleRecords["long"], 3, 0)
	y := shingle.Build(strings.ToUpper(sampleRecords["long"][:400])+sampleRecords["long"][400:], 3, 1)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		sim := shingle.Jaccard(x, y)
		_ = sim
	}
}

func BenchmarkMinHashBandWidth(b *testing.B) {
	set := shingle.Build(sampleRecords["medium"], 3, 0)
	for _, width := range []int{1, 4, 8, 16} {
		h, err := lsh.NewMinHasher(width, newRNG(1))
		if err != nil {
			b.Fatal(err)
		}
		b.Run(fmt.Sprintf("width_%d", width), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				key := h.Hash(set)
				_ = key
			}
		})
	}
}
