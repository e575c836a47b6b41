// Package spatial answers exact radius joins over numeric vectors with a
// static k-d tree. It is the exhaustive counterpart to the Euclidean LSH
// join and is practical for low-dimensional data.
package spatial

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/Adithya-Monish-Kumar-K/record-linkage/internal/bucket"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/errors"
)

// Dim returns the shared row length of points, or an ErrDimensionMismatch
// error for ragged or zero-width input.
func Dim(points [][]float64) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	dim := len(points[0])
	if dim == 0 {
		return 0, errors.New(errors.ErrDimensionMismatch, errors.ExitInvalidInput, "vectors have no components")
	}
	for i, p := range points {
		if len(p) != dim {
			return 0, errors.Newf(errors.ErrDimensionMismatch, errors.ExitInvalidInput,
				"vector %d has %d components, expected %d", i, len(p), dim)
		}
	}
	return dim, nil
}

// RadiusJoin returns every (i, j) with ‖a[i] − b[j]‖ ≤ radius, sorted by i
// then j.
func RadiusJoin(a, b [][]float64, radius float64) ([]bucket.Pair, error) {
	if radius < 0 || math.IsNaN(radius) {
		return nil, errors.Invalid("radius must be non-negative, got %v", radius)
	}
	if len(a) == 0 || len(b) == 0 {
		return nil, errors.New(errors.ErrEmptyInput, errors.ExitInvalidInput, "radius join needs two non-empty collections")
	}
	dimA, err := Dim(a)
	if err != nil {
		return nil, err
	}
	dimB, err := Dim(b)
	if err != nil {
		return nil, err
	}
	if dimA != dimB {
		return nil, errors.Newf(errors.ErrDimensionMismatch, errors.ExitInvalidInput,
			"left vectors have %d components, right vectors %d", dimA, dimB)
	}

	// The tree reorders its points, so each row is cloned and located again
	// by the address of its first component.
	pts := make(kdtree.Points, len(a))
	index := make(map[*float64]int, len(a))
	for i, row := range a {
		p := kdtree.Point(slices.Clone(row))
		pts[i] = p
		index[&p[0]] = i
	}
	tree := kdtree.New(pts, false)

	var pairs []bucket.Pair
	for j, row := range b {
		keeper := kdtree.NewDistKeeper(radius * radius)
		tree.NearestSet(keeper, kdtree.Point(row))
		for _, c := range keeper.Heap {
			if c.Comparable == nil {
				continue
			}
			p := c.Comparable.(kdtree.Point)
			if floats.Distance(p, row, 2) > radius {
				continue
			}
			pairs = append(pairs, bucket.Pair{Left: index[&p[0]], Right: j})
		}
	}

	slices.SortFunc(pairs, func(x, y bucket.Pair) int {
		if x.Left != y.Left {
			return x.Left - y.Left
		}
		return x.Right - y.Right
	})
	return pairs, nil
}
