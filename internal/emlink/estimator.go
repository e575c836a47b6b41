// Package emlink estimates Fellegi-Sunter match probabilities with
// expectation maximisation. Rows of an agreement matrix hold one discrete
// agreement level per compared field; rows with the same pattern are
// bundled so each EM step costs one pass over distinct patterns.
package emlink

import (
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/metrics"
)

const (
	minInitialProb = 0.01
	maxInitialProb = 0.99
)

// Option configures an Estimator.
type Option func(*Estimator)

// WithMetrics records run outcomes and iteration counts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Estimator) { e.metrics = m }
}

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Estimator) { e.logger = l }
}

// Estimator holds the bundles and the current parameters of one EM run.
type Estimator struct {
	rows    int
	fields  int
	levels  []int
	bundles []*Bundle

	lambda   float64
	match    [][]float64
	nonMatch [][]float64

	iterations int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New validates agreement, groups its rows into bundles, seeds every
// bundle's match probability and derives the first parameters from those
// seeds. A nil initial derives each row's prior from its mean normalised
// agreement level.
//
// Field f gets tables with one cell per level in [0, max observed level of
// f]. Levels inside that range that never occur keep zero mass and are
// never looked up.
func New(agreement [][]int, initial []float64, opts ...Option) (*Estimator, error) {
	levels, err := validate(agreement, initial)
	if err != nil {
		return nil, err
	}

	e := &Estimator{
		rows:    len(agreement),
		fields:  len(levels),
		levels:  levels,
		bundles: groupRows(agreement),
		logger:  logger.WithComponent("emlink"),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.match = newTables(levels)
	e.nonMatch = newTables(levels)
	for _, b := range e.bundles {
		b.ProbMatch = e.initialProb(b, initial)
	}
	e.mStep()
	return e, nil
}

func validate(agreement [][]int, initial []float64) ([]int, error) {
	if len(agreement) == 0 {
		return nil, errors.New(errors.ErrEmptyInput, errors.ExitInvalidInput, "agreement matrix has no rows")
	}
	width := len(agreement[0])
	if width == 0 {
		return nil, errors.New(errors.ErrDimensionMismatch, errors.ExitInvalidInput, "agreement rows have no fields")
	}

	levels := make([]int, width)
	for i, row := range agreement {
		if len(row) != width {
			return nil, errors.Newf(errors.ErrDimensionMismatch, errors.ExitInvalidInput,
				"row %d has %d fields, expected %d", i, len(row), width)
		}
		for f, v := range row {
			if v < 0 {
				return nil, errors.Invalid("row %d field %d has negative agreement level %d", i, f, v)
			}
			levels[f] = max(levels[f], v+1)
		}
	}

	if initial != nil {
		if len(initial) != len(agreement) {
			return nil, errors.Newf(errors.ErrDimensionMismatch, errors.ExitInvalidInput,
				"%d initial probabilities for %d rows", len(initial), len(agreement))
		}
		for i, p := range initial {
			if math.IsNaN(p) || p < 0 || p > 1 {
				return nil, errors.Invalid("initial probability %d is %v, must lie in [0,1]", i, p)
			}
		}
	}
	return levels, nil
}

func newTables(levels []int) [][]float64 {
	t := make([][]float64, len(levels))
	for f, n := range levels {
		t[f] = make([]float64, n)
	}
	return t
}

// initialProb averages the supplied priors of a bundle's rows, or falls back
// to the pattern's mean normalised level.
func (e *Estimator) initialProb(b *Bundle, initial []float64) float64 {
	if initial != nil {
		var sum float64
		for _, r := range b.Rows {
			sum += initial[r]
		}
		return sum / float64(b.Count())
	}

	var sum float64
	for f, v := range b.Pattern {
		if top := e.levels[f] - 1; top > 0 {
			sum += float64(v) / float64(top)
		}
	}
	p := sum / float64(e.fields)
	return min(max(p, minInitialProb), maxInitialProb)
}

// Link runs EM until the largest parameter change drops below tolerance and
// returns one match probability per input row in row order. Running out of
// iterations yields a *errors.ConvergenceError.
func (e *Estimator) Link(tolerance float64, maxIterations int) ([]float64, error) {
	if tolerance <= 0 || math.IsNaN(tolerance) {
		return nil, errors.Invalid("tolerance must be positive, got %v", tolerance)
	}
	if maxIterations <= 0 {
		return nil, errors.Invalid("max iterations must be positive, got %d", maxIterations)
	}

	start := time.Now()
	e.logger.Info("em started",
		"rows", e.rows,
		"fields", e.fields,
		"bundles", len(e.bundles),
		"tolerance", tolerance,
		"max_iterations", maxIterations,
	)
	if e.metrics != nil {
		e.metrics.EMBundles.Observe(float64(len(e.bundles)))
	}

	var delta float64
	for it := 0; it < maxIterations; it++ {
		delta = e.Step()
		e.logger.Debug("em iteration", "iteration", e.iterations, "delta", delta, "lambda", e.lambda)
		if delta < tolerance {
			e.eStep()
			e.logger.Info("em converged",
				"iterations", e.iterations,
				"lambda", e.lambda,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			if e.metrics != nil {
				e.metrics.EMRunsTotal.WithLabelValues("converged").Inc()
				e.metrics.EMIterations.Observe(float64(e.iterations))
			}
			return e.Probabilities(), nil
		}
	}

	if e.metrics != nil {
		e.metrics.EMRunsTotal.WithLabelValues("not_converged").Inc()
	}
	e.logger.Warn("em did not converge", "iterations", e.iterations, "delta", delta)
	return nil, &errors.ConvergenceError{
		Iterations: e.iterations,
		Delta:      delta,
		Tolerance:  tolerance,
	}
}

// Step runs one E-step followed by one M-step and returns the largest
// absolute change across lambda and every table cell.
func (e *Estimator) Step() float64 {
	prevLambda := e.lambda
	prevMatch := cloneTables(e.match)
	prevNonMatch := cloneTables(e.nonMatch)

	e.eStep()
	e.mStep()
	e.iterations++

	delta := math.Abs(e.lambda - prevLambda)
	delta = max(delta, maxAbsDiff(e.match, prevMatch), maxAbsDiff(e.nonMatch, prevNonMatch))
	return delta
}

// mStep re-derives lambda and both tables from the bundle probabilities.
// Cells are normalised by n·lambda and n·(1-lambda), so each field's tables
// are the conditional level distributions given match and non-match.
func (e *Estimator) mStep() {
	n := float64(e.rows)
	var weighted float64
	for _, b := range e.bundles {
		weighted += float64(b.Count()) * b.ProbMatch
	}
	e.lambda = weighted / n

	zero(e.match)
	zero(e.nonMatch)
	matchNorm := n * e.lambda
	nonMatchNorm := n * (1 - e.lambda)
	for _, b := range e.bundles {
		count := float64(b.Count())
		for f, level := range b.Pattern {
			if matchNorm > 0 {
				e.match[f][level] += count * b.ProbMatch / matchNorm
			}
			if nonMatchNorm > 0 {
				e.nonMatch[f][level] += count * (1 - b.ProbMatch) / nonMatchNorm
			}
		}
	}
}

func (e *Estimator) eStep() {
	for _, b := range e.bundles {
		m, u := 1.0, 1.0
		for f, level := range b.Pattern {
			m *= e.match[f][level]
			u *= e.nonMatch[f][level]
		}
		num := e.lambda * m
		den := num + (1-e.lambda)*u
		if den == 0 {
			b.ProbMatch = 0
			continue
		}
		b.ProbMatch = num / den
	}
}

// Probabilities expands the bundle probabilities back to one value per row.
func (e *Estimator) Probabilities() []float64 {
	out := make([]float64, e.rows)
	for _, b := range e.bundles {
		for _, r := range b.Rows {
			out[r] = b.ProbMatch
		}
	}
	return out
}

// Lambda returns the current match prior.
func (e *Estimator) Lambda() float64 { return e.lambda }

// MatchTable returns a copy of the per-field level probabilities given a
// match.
func (e *Estimator) MatchTable() [][]float64 { return cloneTables(e.match) }

// NonMatchTable returns a copy of the per-field level probabilities given a
// non-match.
func (e *Estimator) NonMatchTable() [][]float64 { return cloneTables(e.nonMatch) }

// Bundles returns the distinct agreement patterns in order of first
// appearance.
func (e *Estimator) Bundles() []*Bundle { return e.bundles }

// Iterations returns the number of E/M cycles run so far.
func (e *Estimator) Iterations() int { return e.iterations }

func zero(t [][]float64) {
	for _, row := range t {
		clear(row)
	}
}

func cloneTables(t [][]float64) [][]float64 {
	out := make([][]float64, len(t))
	for i, row := range t {
		out[i] = slices.Clone(row)
	}
	return out
}

func maxAbsDiff(a, b [][]float64) float64 {
	var d float64
	for i := range a {
		for j := range a[i] {
			d = max(d, math.Abs(a[i][j]-b[i][j]))
		}
	}
	return d
}
