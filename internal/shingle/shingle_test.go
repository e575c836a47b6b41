package shingle

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWindows(t *testing.T) {
	s := Build("hello", 2, 7)
	assert.Equal(t, 7, s.Index)
	// he el ll lo
	assert.Equal(t, 4, s.Len())

	repeated := Build("aaaa", 2, 0)
	assert.Equal(t, 1, repeated.Len(), "fingerprints must be deduplicated")
}

func TestBuildCountsCharactersNotBytes(t *testing.T) {
	s := Build("héé", 3, 0)
	assert.Equal(t, 1, s.Len())
	assert.True(t, Build("héé", 4, 0).Empty())
}

func TestBuildDegenerate(t *testing.T) {
	assert.True(t, Build("", 2, 0).Empty())
	assert.True(t, Build("ab", 3, 0).Empty())
	assert.True(t, Build("abc", 0, 0).Empty())
}

func TestJaccardBasics(t *testing.T) {
	a := Build("hello world", 3, 0)
	b := Build("hello word", 3, 1)
	empty := Build("", 3, 2)

	assert.InDelta(t, 1.0, Jaccard(a, a), 1e-12)
	assert.Equal(t, Jaccard(a, b), Jaccard(b, a))
	assert.Greater(t, Jaccard(a, b), 0.5)
	assert.Equal(t, 0.0, Jaccard(empty, a))
	assert.Equal(t, 0.0, Jaccard(a, empty))
	assert.Equal(t, 0.0, Jaccard(empty, empty))
}

func TestJaccardExact(t *testing.T) {
	// ab bc cd vs bc cd de: 2 shared of 4 total
	a := Build("abcd", 2, 0)
	b := Build("bcde", 2, 0)
	assert.InDelta(t, 0.5, Jaccard(a, b), 1e-12)
}

func TestJaccardSymmetricRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		a := Build(randomString(rng, 3+rng.IntN(20)), 2, 0)
		b := Build(randomString(rng, 3+rng.IntN(20)), 2, 1)
		sim := Jaccard(a, b)
		assert.Equal(t, sim, Jaccard(b, a))
		assert.GreaterOrEqual(t, sim, 0.0)
		assert.LessOrEqual(t, sim, 1.0)
	}
}

func TestSaltedSetsAreDisjoint(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 100; i++ {
		record := randomString(rng, 10+rng.IntN(30))
		a := BuildSalted(record, 3, 0, "salt-a")
		b := BuildSalted(record, 3, 0, "salt-b")
		require.False(t, a.Empty())
		assert.Equal(t, 0.0, Jaccard(a, b), "record %q", record)
	}
}

func TestSaltedSameSaltMatches(t *testing.T) {
	a := BuildSalted("jane doe", 2, 0, "1970-01-01")
	b := BuildSalted("jane doe", 2, 1, "1970-01-01")
	assert.InDelta(t, 1.0, Jaccard(a, b), 1e-12)
	assert.Equal(t, 0.0, Jaccard(a, Build("jane doe", 2, 2)))
}

func TestBuildAll(t *testing.T) {
	records := []string{"alpha", "beta", "gamma", "delta"}
	sets, err := BuildAll(context.Background(), records, 2, nil, 2)
	require.NoError(t, err)
	require.Len(t, sets, 4)
	for i, s := range sets {
		assert.Equal(t, i, s.Index)
		assert.Equal(t, Build(records[i], 2, i).Fingerprints, s.Fingerprints)
	}

	_, err = BuildAll(context.Background(), records, 2, []string{"x"}, 2)
	assert.Error(t, err)
}

func randomString(rng *rand.Rand, n int) string {
	const alphabet = "abcdefghij"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rng.IntN(len(alphabet))]
	}
	return string(b)
}
