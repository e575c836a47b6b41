package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/linkage"
)

func TestGenerate(t *testing.T) {
	c := Generate(50, 1, 3)
	require.Len(t, c.Left, 50)
	require.Len(t, c.Right, 50)
	assert.Equal(t, c, Generate(50, 1, 3), "generation is seeded")

	for i := range c.Left {
		require.Len(t, c.Right[i], len(c.Left[i]))
		diff := 0
		for k := range c.Left[i] {
			if c.Left[i][k] != c.Right[i][k] {
				diff++
			}
		}
		assert.LessOrEqual(t, diff, 1)
	}
}

func TestPlantedPairsAreFound(t *testing.T) {
	c := Generate(200, 1, 8)
	seed := uint64(4)
	pairs, err := linkage.SimilarityJoin(context.Background(), c.Left, c.Right, linkage.JoinOptions{
		NGramWidth: 3,
		Bands:      40,
		BandWidth:  3,
		Threshold:  0.5,
		Seed:       &seed,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, plantedFound(pairs), 190)
}

func TestReport(t *testing.T) {
	s := &Stats{}
	s.Record(10*time.Millisecond, []linkage.Pair{{Left: 0, Right: 0}, {Left: 0, Right: 1}}, nil)
	s.Record(30*time.Millisecond, []linkage.Pair{{Left: 1, Right: 1}}, nil)
	s.Record(0, nil, errors.New("boom"))

	var buf bytes.Buffer
	printReport(&buf, s, Config{Records: 2, Duration: time.Second})
	out := buf.String()
	assert.Contains(t, out, "Joins:           3")
	assert.Contains(t, out, "Errors:          1")
	assert.Contains(t, out, "Planted recall:  0.5000")
	assert.Contains(t, out, "Avg:    20ms")
	assert.Contains(t, out, "Max:    30ms")
}
