// Package linkage is the public entry point for record linkage. It exposes
// LSH similarity joins over strings and vectors, an exact k-d tree radius
// join, and a Fellegi-Sunter EM estimator.
//
// Every index in a result is 0-based. A Pair's Left indexes the first
// collection passed in and Right the second; join results are sorted by
// Left, then Right, and hold no duplicates.
package linkage

import (
	"context"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/Adithya-Monish-Kumar-K/record-linkage/internal/blocking"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/internal/bucket"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/internal/emlink"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/internal/lsh"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/internal/normalize"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/internal/shingle"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/internal/spatial"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/metrics"
)

// Pair links record Left of the first collection to record Right of the
// second.
type Pair = bucket.Pair

// JoinOptions configures the minhash similarity joins.
type JoinOptions struct {
	NGramWidth int
	Bands      int
	BandWidth  int
	// Threshold is the minimum Jaccard similarity of a reported pair.
	Threshold float64
	// Seed fixes every random draw of the join. Nil draws a fresh seed.
	Seed    *uint64
	Workers int
	// Strategy is "build-probe" (default) or "single-pass".
	Strategy string
	// Normalize lower-cases records, strips punctuation and drops
	// normalize.DefaultStopWords before shingling.
	Normalize bool
	Metrics   *metrics.Metrics
}

// EuclideanOptions configures EuclideanRadiusJoin.
type EuclideanOptions struct {
	Radius    float64
	Bands     int
	BandWidth int
	// R is the projection bucket width.
	R        float64
	Seed     *uint64
	Workers  int
	Strategy string
	Metrics  *metrics.Metrics
}

// HammingOptions configures HammingJoin.
type HammingOptions struct {
	MaxDistance int
	Bands       int
	BandWidth   int
	Seed        *uint64
	Workers     int
	Strategy    string
	Metrics     *metrics.Metrics
}

// SimilarityJoin returns every pair whose character n-gram sets have a
// Jaccard similarity of at least opts.Threshold and that share a bucket in
// at least one band.
func SimilarityJoin(ctx context.Context, left, right []string, opts JoinOptions) ([]Pair, error) {
	return similarityJoin(ctx, left, right, nil, nil, opts)
}

// SaltedSimilarityJoin is SimilarityJoin with every record's n-grams hashed
// under its own salt. Records only match records with an equal salt, which
// restricts comparisons to a block such as a shared postcode.
func SaltedSimilarityJoin(ctx context.Context, left, right, leftSalt, rightSalt []string, opts JoinOptions) ([]Pair, error) {
	if len(leftSalt) != len(left) || len(rightSalt) != len(right) {
		return nil, errors.Newf(errors.ErrDimensionMismatch, errors.ExitInvalidInput,
			"salts (%d, %d) must match records (%d, %d)", len(leftSalt), len(rightSalt), len(left), len(right))
	}
	return similarityJoin(ctx, left, right, leftSalt, rightSalt, opts)
}

func similarityJoin(ctx context.Context, left, right, leftSalt, rightSalt []string, opts JoinOptions) ([]Pair, error) {
	if err := checkNonEmpty(len(left), len(right)); err != nil {
		return nil, err
	}
	if opts.NGramWidth <= 0 {
		return nil, errors.Invalid("n-gram width must be positive, got %d", opts.NGramWidth)
	}
	if math.IsNaN(opts.Threshold) || opts.Threshold < 0 || opts.Threshold > 1 {
		return nil, errors.Invalid("threshold must lie in [0,1], got %v", opts.Threshold)
	}
	cfg, err := blockingConfig(opts.Bands, opts.BandWidth, opts.Seed, opts.Workers, opts.Strategy, "minhash", opts.Metrics)
	if err != nil {
		return nil, err
	}

	if opts.Normalize {
		n := normalize.Default()
		left, right = n.All(left), n.All(right)
	}

	leftSets, err := shingle.BuildAll(ctx, left, opts.NGramWidth, leftSalt, opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting left records: %w", err)
	}
	rightSets, err := shingle.BuildAll(ctx, right, opts.NGramWidth, rightSalt, opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting right records: %w", err)
	}

	verify := func(l, r int) bool {
		return shingle.Jaccard(leftSets[l], rightSets[r]) >= opts.Threshold
	}
	res, err := blocking.Join(ctx, leftSets, rightSets, cfg, lsh.MinHashFactory(opts.BandWidth), verify)
	if err != nil {
		return nil, err
	}
	return res.Pairs, nil
}

// PairwiseSimilarity returns the Jaccard similarity of left[i] and right[i]
// for every i.
func PairwiseSimilarity(left, right []string, ngramWidth int) ([]float64, error) {
	if len(left) != len(right) {
		return nil, errors.Newf(errors.ErrDimensionMismatch, errors.ExitInvalidInput,
			"pairwise similarity needs equal lengths, got %d and %d", len(left), len(right))
	}
	if ngramWidth <= 0 {
		return nil, errors.Invalid("n-gram width must be positive, got %d", ngramWidth)
	}
	out := make([]float64, len(left))
	for i := range left {
		out[i] = shingle.Jaccard(shingle.Build(left[i], ngramWidth, i), shingle.Build(right[i], ngramWidth, i))
	}
	return out, nil
}

// EuclideanRadiusJoin returns pairs of vectors within opts.Radius of each
// other that share a p-stable LSH bucket in at least one band.
func EuclideanRadiusJoin(ctx context.Context, a, b [][]float64, opts EuclideanOptions) ([]Pair, error) {
	if err := checkNonEmpty(len(a), len(b)); err != nil {
		return nil, err
	}
	dim, err := sharedDim(a, b)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(opts.Radius) || opts.Radius < 0 {
		return nil, errors.Invalid("radius must be non-negative, got %v", opts.Radius)
	}
	if !(opts.R > 0) || math.IsInf(opts.R, 0) {
		return nil, errors.Invalid("bucket width r must be positive and finite, got %v", opts.R)
	}
	cfg, err := blockingConfig(opts.Bands, opts.BandWidth, opts.Seed, opts.Workers, opts.Strategy, "euclidean", opts.Metrics)
	if err != nil {
		return nil, err
	}

	verify := func(i, j int) bool {
		return floats.Distance(a[i], b[j], 2) <= opts.Radius
	}
	res, err := blocking.Join(ctx, a, b, cfg, lsh.EuclideanFactory(dim, opts.BandWidth, opts.R), verify)
	if err != nil {
		return nil, err
	}
	return res.Pairs, nil
}

// HammingJoin returns pairs of strings at most opts.MaxDistance apart by
// byte-wise Hamming distance. The bucket key includes the string length, so
// only equal-length strings become candidates.
func HammingJoin(ctx context.Context, left, right []string, opts HammingOptions) ([]Pair, error) {
	if err := checkNonEmpty(len(left), len(right)); err != nil {
		return nil, err
	}
	if opts.MaxDistance < 0 {
		return nil, errors.Invalid("max distance must not be negative, got %d", opts.MaxDistance)
	}
	cfg, err := blockingConfig(opts.Bands, opts.BandWidth, opts.Seed, opts.Workers, opts.Strategy, "hamming", opts.Metrics)
	if err != nil {
		return nil, err
	}

	inputLen := 1
	for _, s := range left {
		inputLen = max(inputLen, len(s))
	}
	for _, s := range right {
		inputLen = max(inputLen, len(s))
	}

	verify := func(l, r int) bool {
		return lsh.Distance(left[l], right[r]) <= opts.MaxDistance
	}
	res, err := blocking.Join(ctx, left, right, cfg, lsh.HammingFactory(inputLen, opts.BandWidth), verify)
	if err != nil {
		return nil, err
	}
	return res.Pairs, nil
}

// ExactRadiusJoin returns every pair within radius, found with a k-d tree
// instead of LSH.
func ExactRadiusJoin(a, b [][]float64, radius float64) ([]Pair, error) {
	return spatial.RadiusJoin(a, b, radius)
}

// Agreement scores every pair field by field and returns one row of
// discrete agreement levels per pair, ready for EMLink. A field's level is
// the number of cutoffs its n-gram Jaccard similarity reaches, so cutoffs
// {0.5, 0.9} give levels 0 (disagree), 1 (partial) and 2 (agree). cutoffs
// must be ascending.
func Agreement(left, right [][]string, pairs []Pair, ngramWidth int, cutoffs []float64) ([][]int, error) {
	if ngramWidth <= 0 {
		return nil, errors.Invalid("n-gram width must be positive, got %d", ngramWidth)
	}
	if len(cutoffs) == 0 || !slices.IsSorted(cutoffs) {
		return nil, errors.Invalid("cutoffs must be a non-empty ascending list, got %v", cutoffs)
	}

	out := make([][]int, len(pairs))
	fields := -1
	ls, rs := newFieldSets(left, ngramWidth), newFieldSets(right, ngramWidth)
	for i, p := range pairs {
		if p.Left < 0 || p.Left >= len(left) || p.Right < 0 || p.Right >= len(right) {
			return nil, errors.Invalid("pair %d (%d, %d) is out of range", i, p.Left, p.Right)
		}
		l, r := left[p.Left], right[p.Right]
		if fields < 0 {
			fields = len(l)
		}
		if len(l) != fields || len(r) != fields {
			return nil, errors.Newf(errors.ErrDimensionMismatch, errors.ExitInvalidInput,
				"pair %d compares %d and %d fields, expected %d", i, len(l), len(r), fields)
		}
		lsets, rsets := ls.get(p.Left), rs.get(p.Right)
		row := make([]int, fields)
		for f := range row {
			row[f] = levelFor(shingle.Jaccard(lsets[f], rsets[f]), cutoffs)
		}
		out[i] = row
	}
	return out, nil
}

// fieldSets fingerprints the fields of a record the first time a pair
// refers to it.
type fieldSets struct {
	rows   [][]string
	width  int
	sets   [][]shingle.Set
	builds int
}

func newFieldSets(rows [][]string, width int) *fieldSets {
	return &fieldSets{rows: rows, width: width, sets: make([][]shingle.Set, len(rows))}
}

func (c *fieldSets) get(idx int) []shingle.Set {
	if c.sets[idx] == nil {
		row := c.rows[idx]
		sets := make([]shingle.Set, len(row))
		for f, v := range row {
			sets[f] = shingle.Build(v, c.width, idx)
		}
		c.sets[idx] = sets
		c.builds++
	}
	return c.sets[idx]
}

func levelFor(sim float64, cutoffs []float64) int {
	level := 0
	for _, c := range cutoffs {
		if sim >= c {
			level++
		}
	}
	return level
}

// EMOption configures EMLink.
type EMOption = emlink.Option

// WithEMMetrics records EM outcomes on m.
func WithEMMetrics(m *metrics.Metrics) EMOption {
	return emlink.WithMetrics(m)
}

// EMLink estimates a match probability for every row of agreement. Each row
// holds one discrete agreement level per compared field. initial may be nil,
// in which case priors are derived from the agreement levels.
func EMLink(agreement [][]int, initial []float64, tolerance float64, maxIterations int, opts ...EMOption) ([]float64, error) {
	est, err := emlink.New(agreement, initial, opts...)
	if err != nil {
		return nil, err
	}
	return est.Link(tolerance, maxIterations)
}

func checkNonEmpty(left, right int) error {
	if left == 0 || right == 0 {
		return errors.Newf(errors.ErrEmptyInput, errors.ExitInvalidInput,
			"join needs two non-empty collections, got %d and %d records", left, right)
	}
	return nil
}

func sharedDim(a, b [][]float64) (int, error) {
	dimA, err := spatial.Dim(a)
	if err != nil {
		return 0, err
	}
	dimB, err := spatial.Dim(b)
	if err != nil {
		return 0, err
	}
	if dimA != dimB {
		return 0, errors.Newf(errors.ErrDimensionMismatch, errors.ExitInvalidInput,
			"left vectors have %d components, right vectors %d", dimA, dimB)
	}
	return dimA, nil
}

func blockingConfig(bands, bandWidth int, seed *uint64, workers int, strategy, kind string, m *metrics.Metrics) (blocking.Config, error) {
	if bandWidth <= 0 {
		return blocking.Config{}, errors.Invalid("band width must be positive, got %d", bandWidth)
	}
	s, err := blocking.ParseStrategy(strategy)
	if err != nil {
		return blocking.Config{}, err
	}
	cfg := blocking.Config{
		Bands:    bands,
		Seed:     seed,
		Workers:  workers,
		Strategy: s,
		Kind:     kind,
		Metrics:  m,
	}
	return cfg, cfg.Validate()
}
