package lsh

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	apperrors "github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/errors"
)

// EuclideanHasher is the p-stable LSH family for Euclidean distance: each
// component is round((x·a + b) / r) with a ~ N(0, I) and b ~ U[0, r).
// Larger r widens buckets so more distant points still collide.
type EuclideanHasher struct {
	a   *mat.Dense
	b   []float64
	r   float64
	dim int
}

func NewEuclideanHasher(dim, bandWidth int, r float64, rng *rand.Rand) (*EuclideanHasher, error) {
	if err := validateBandWidth(bandWidth); err != nil {
		return nil, err
	}
	if dim <= 0 {
		return nil, apperrors.Invalid("dimension must be positive, got %d", dim)
	}
	if !(r > 0) || math.IsInf(r, 0) {
		return nil, apperrors.Invalid("bucket width r must be positive and finite, got %g", r)
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	data := make([]float64, dim*bandWidth)
	for i := range data {
		data[i] = normal.Rand()
	}

	uniform := distuv.Uniform{Min: 0, Max: r, Src: rng}
	offsets := make([]float64, bandWidth)
	for i := range offsets {
		offsets[i] = uniform.Rand()
	}

	return &EuclideanHasher{
		a:   mat.NewDense(dim, bandWidth, data),
		b:   offsets,
		r:   r,
		dim: dim,
	}, nil
}

// EuclideanFactory adapts NewEuclideanHasher for the joins.
func EuclideanFactory(dim, bandWidth int, r float64) Factory[[]float64] {
	return func(rng *rand.Rand) (Hasher[[]float64], error) {
		h, err := NewEuclideanHasher(dim, bandWidth, r, rng)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
}

// Dim returns the input dimensionality the projection expects.
func (e *EuclideanHasher) Dim() int {
	return e.dim
}

// Project returns the integer bucket coordinates of x. x must have Dim
// entries.
func (e *EuclideanHasher) Project(x []float64) []int64 {
	var proj mat.VecDense
	proj.MulVec(e.a.T(), mat.NewVecDense(len(x), x))

	out := make([]int64, len(e.b))
	for i := range out {
		out[i] = int64(math.Round((proj.AtVec(i) + e.b[i]) / e.r))
	}
	return out
}

func (e *EuclideanHasher) Hash(x []float64) uint64 {
	c := newCombiner(8 * len(e.b))
	for _, v := range e.Project(x) {
		c.addUint64(uint64(v))
	}
	return c.sum()
}
