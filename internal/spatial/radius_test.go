package spatial

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/record-linkage/internal/bucket"
	apperrors "github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/errors"
)

func bruteForce(a, b [][]float64, radius float64) []bucket.Pair {
	var out []bucket.Pair
	for i := range a {
		for j := range b {
			var sum float64
			for k := range a[i] {
				d := a[i][k] - b[j][k]
				sum += d * d
			}
			if math.Sqrt(sum) <= radius {
				out = append(out, bucket.Pair{Left: i, Right: j})
			}
		}
	}
	return out
}

func randomPoints(rng *rand.Rand, n, dim int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, dim)
		for k := range out[i] {
			out[i][k] = rng.Float64() * 10
		}
	}
	return out
}

func TestRadiusJoinMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	a := randomPoints(rng, 200, 3)
	b := randomPoints(rng, 150, 3)

	for _, radius := range []float64{0.5, 1.5, 3} {
		got, err := RadiusJoin(a, b, radius)
		require.NoError(t, err)
		assert.Equal(t, bruteForce(a, b, radius), got, "radius %v", radius)
	}
}

func TestRadiusJoinDuplicatesAndOrder(t *testing.T) {
	a := [][]float64{{1, 1}, {0, 0}, {1, 1}}
	b := [][]float64{{1, 1}}

	got, err := RadiusJoin(a, b, 0)
	require.NoError(t, err)
	assert.Equal(t, []bucket.Pair{{Left: 0, Right: 0}, {Left: 2, Right: 0}}, got)
	assert.Equal(t, []float64{0, 0}, a[1], "input must not be reordered")
}

func TestRadiusJoinScenario(t *testing.T) {
	a := [][]float64{{0, 0}}
	b := [][]float64{{0.1, 0.1}, {10, 10}}

	got, err := RadiusJoin(a, b, 1)
	require.NoError(t, err)
	assert.Equal(t, []bucket.Pair{{Left: 0, Right: 0}}, got)
}

func TestRadiusJoinErrors(t *testing.T) {
	_, err := RadiusJoin([][]float64{{0}}, [][]float64{{0}}, -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	_, err = RadiusJoin(nil, [][]float64{{0}}, 1)
	assert.ErrorIs(t, err, apperrors.ErrEmptyInput)

	_, err = RadiusJoin([][]float64{{0, 0}}, [][]float64{{0}}, 1)
	assert.ErrorIs(t, err, apperrors.ErrDimensionMismatch)

	_, err = RadiusJoin([][]float64{{0, 0}, {1}}, [][]float64{{0, 0}}, 1)
	assert.ErrorIs(t, err, apperrors.ErrDimensionMismatch)

	_, err = RadiusJoin([][]float64{{}}, [][]float64{{}}, 1)
	assert.ErrorIs(t, err, apperrors.ErrDimensionMismatch)
}
