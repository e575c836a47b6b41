package emlink

import (
	"math/rand/v2"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/metrics"
)

var (
	trueLambda = 0.3
	trueMatch  = [][]float64{
		{0.05, 0.15, 0.80},
		{0.10, 0.20, 0.70},
		{0.05, 0.25, 0.70},
		{0.10, 0.10, 0.80},
	}
	trueNonMatch = [][]float64{
		{0.75, 0.20, 0.05},
		{0.60, 0.30, 0.10},
		{0.80, 0.15, 0.05},
		{0.70, 0.20, 0.10},
	}
)

func draw(rng *rand.Rand, dist []float64) int {
	u := rng.Float64()
	var acc float64
	for i, p := range dist {
		acc += p
		if u < acc {
			return i
		}
	}
	return len(dist) - 1
}

// synthetic draws n agreement rows from the two-class model above.
func synthetic(n int, seed uint64) [][]int {
	rng := rand.New(rand.NewPCG(seed, seed))
	rows := make([][]int, n)
	for i := range rows {
		tables := trueNonMatch
		if rng.Float64() < trueLambda {
			tables = trueMatch
		}
		row := make([]int, len(tables))
		for f, dist := range tables {
			row[f] = draw(rng, dist)
		}
		rows[i] = row
	}
	return rows
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name      string
		agreement [][]int
		initial   []float64
		want      error
	}{
		{"empty", nil, nil, apperrors.ErrEmptyInput},
		{"no fields", [][]int{{}}, nil, apperrors.ErrDimensionMismatch},
		{"ragged", [][]int{{0, 1}, {1}}, nil, apperrors.ErrDimensionMismatch},
		{"negative level", [][]int{{0, -1}}, nil, apperrors.ErrInvalidConfig},
		{"initial length", [][]int{{0}, {1}}, []float64{0.5}, apperrors.ErrDimensionMismatch},
		{"initial range", [][]int{{0}}, []float64{1.5}, apperrors.ErrInvalidConfig},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.agreement, tc.initial)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLinkRejectsBadArguments(t *testing.T) {
	e, err := New([][]int{{0, 1}}, nil)
	require.NoError(t, err)

	_, err = e.Link(0, 10)
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
	_, err = e.Link(1e-3, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestBundlingPartitionsRows(t *testing.T) {
	agreement := [][]int{{1, 0}, {0, 0}, {1, 0}, {2, 1}, {0, 0}}
	e, err := New(agreement, nil)
	require.NoError(t, err)

	bundles := e.Bundles()
	require.Len(t, bundles, 3)
	assert.Equal(t, []int{1, 0}, bundles[0].Pattern)
	assert.Equal(t, []int{0, 2}, bundles[0].Rows)
	assert.Equal(t, []int{1, 4}, bundles[1].Rows)
	assert.Equal(t, []int{3}, bundles[2].Rows)

	seen := 0
	for _, b := range bundles {
		seen += b.Count()
	}
	assert.Equal(t, len(agreement), seen)

	// Table size follows the largest level observed per field.
	assert.Len(t, e.MatchTable()[0], 3)
	assert.Len(t, e.MatchTable()[1], 2)
}

func TestBundlingSurvivesHashCollisions(t *testing.T) {
	prev := patternHash
	patternHash = func([]byte) uint64 { return 42 }
	t.Cleanup(func() { patternHash = prev })

	g := newBundler(2)

	g.add(0, []int{0, 1})
	g.add(1, []int{1, 0})
	g.add(2, []int{0, 1})

	require.Len(t, g.bundles, 2)
	assert.Equal(t, []int{0, 2}, g.bundles[0].Rows)
	assert.Equal(t, []int{1}, g.bundles[1].Rows)
}

func TestTablesSpanUnobservedLevels(t *testing.T) {
	// Level 1 never occurs; its cells exist and stay zero.
	agreement := [][]int{{0}, {2}, {0}, {2}, {2}}
	e, err := New(agreement, nil)
	require.NoError(t, err)
	_, err = e.Link(1e-6, 500)
	require.NoError(t, err)

	for _, table := range [][][]float64{e.MatchTable(), e.NonMatchTable()} {
		require.Len(t, table[0], 3)
		assert.Zero(t, table[0][1])
		assert.InDelta(t, 1.0, table[0][0]+table[0][2], 1e-9)
	}
}

func TestIdenticalPatternsConvergeToOneBundle(t *testing.T) {
	agreement := make([][]int, 50)
	for i := range agreement {
		agreement[i] = []int{1, 2, 0}
	}

	e, err := New(agreement, nil)
	require.NoError(t, err)
	require.Len(t, e.Bundles(), 1)

	probs, err := e.Link(1e-6, 100)
	require.NoError(t, err)
	require.Len(t, probs, 50)
	for _, p := range probs {
		assert.Equal(t, probs[0], p)
	}
}

func TestExplicitInitialProbabilities(t *testing.T) {
	agreement := [][]int{{1}, {1}, {0}, {0}}
	e, err := New(agreement, []float64{0.8, 0.6, 0.2, 0.0})
	require.NoError(t, err)

	bundles := e.Bundles()
	require.Len(t, bundles, 2)
	assert.InDelta(t, 0.7, bundles[0].ProbMatch, 1e-12)
	assert.InDelta(t, 0.1, bundles[1].ProbMatch, 1e-12)
}

func TestDefaultInitialProbabilitiesAreClamped(t *testing.T) {
	agreement := [][]int{{0, 0}, {2, 1}, {1, 0}}
	e, err := New(agreement, nil)
	require.NoError(t, err)

	bundles := e.Bundles()
	assert.InDelta(t, 0.01, bundles[0].ProbMatch, 1e-12)
	assert.InDelta(t, 0.99, bundles[1].ProbMatch, 1e-12)
	assert.InDelta(t, 0.25, bundles[2].ProbMatch, 1e-12)
}

func TestRecoversGeneratingParameters(t *testing.T) {
	agreement := synthetic(20000, 17)
	reg := prometheus.NewRegistry()
	e, err := New(agreement, nil, WithMetrics(metrics.New(reg)))
	require.NoError(t, err)

	const tolerance = 1e-6
	probs, err := e.Link(tolerance, 2000)
	require.NoError(t, err)
	require.Len(t, probs, len(agreement))

	assert.InDelta(t, trueLambda, e.Lambda(), 0.03)
	match, nonMatch := e.MatchTable(), e.NonMatchTable()
	for f := range trueMatch {
		for l := range trueMatch[f] {
			assert.InDelta(t, trueMatch[f][l], match[f][l], 0.05, "match[%d][%d]", f, l)
			assert.InDelta(t, trueNonMatch[f][l], nonMatch[f][l], 0.05, "nonMatch[%d][%d]", f, l)
		}
	}
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}

	// One more cycle after convergence barely moves anything.
	assert.Less(t, e.Step(), tolerance)
}

func TestTablesAreDistributions(t *testing.T) {
	e, err := New(synthetic(2000, 5), nil)
	require.NoError(t, err)
	_, err = e.Link(1e-5, 1000)
	require.NoError(t, err)

	for _, table := range [][][]float64{e.MatchTable(), e.NonMatchTable()} {
		for _, row := range table {
			var sum float64
			for _, v := range row {
				assert.GreaterOrEqual(t, v, 0.0)
				sum += v
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
		}
	}
}

func TestNotConvergedReportsIterations(t *testing.T) {
	e, err := New(synthetic(500, 9), nil)
	require.NoError(t, err)

	_, err = e.Link(1e-12, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotConverged)

	var convErr *apperrors.ConvergenceError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, 1, convErr.Iterations)
	assert.Positive(t, convErr.Delta)
	assert.Equal(t, apperrors.ExitNotConverged, apperrors.ExitCode(err))
}

func TestZeroDenominatorYieldsZero(t *testing.T) {
	e, err := New([][]int{{0}, {1}}, []float64{1, 1})
	require.NoError(t, err)

	// lambda is 1 and the non-match table stays empty; force a pattern the
	// match table never saw.
	e.mStep()
	e.match[0][0] = 0
	e.eStep()
	assert.Equal(t, 0.0, e.Bundles()[0].ProbMatch)
	assert.Equal(t, 1.0, e.Bundles()[1].ProbMatch)
}
