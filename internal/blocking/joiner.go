// Package blocking runs LSH banding joins. For each band it draws a fresh
// hasher, buckets both collections by hash key on a worker pool, and
// verifies every co-bucketed pair with an exact oracle before accepting it.
// Bucketing only decides which pairs get verified; it never accepts a pair
// on its own.
package blocking

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/record-linkage/internal/bucket"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/internal/lsh"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/internal/workers"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/tracing"
)

// Verifier is the exact similarity or distance check for one candidate.
type Verifier func(buildIdx, probeIdx int) bool

// Result is the outcome of a join.
type Result struct {
	// Pairs holds (build index, probe index) ordered by Left then Right.
	Pairs      []bucket.Pair
	Seed       uint64
	Bands      int
	Candidates int64
}

// BandStats describes one band.
type BandStats struct {
	Buckets    int
	Candidates int64
	Confirmed  int64
}

type joiner[T any] struct {
	build   []T
	probe   []T
	verify  Verifier
	workers int
	pairs   *bucket.PairSet
	buckets *bucket.Map
	sides   *bucket.SideMap
}

// Join links build against probe over cfg.Bands independent bands, drawing
// one hasher per band from factory. Invalid configuration fails before any
// worker starts.
func Join[T any](ctx context.Context, build, probe []T, cfg Config, factory lsh.Factory[T], verify Verifier) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if factory == nil || verify == nil {
		return nil, errors.Invalid("join needs both a hasher factory and a verifier")
	}

	seed := resolveSeed(cfg.Seed)
	rng := NewRNG(seed)
	kind := cfg.kind()
	log := logger.FromContext(ctx).With("component", "blocking", "kind", kind)

	// The first hasher is drawn up front so bad hasher parameters surface
	// before anything is spawned.
	first, err := factory(rng)
	if err != nil {
		return nil, fmt.Errorf("creating %s hasher: %w", kind, err)
	}

	j := &joiner[T]{
		build:   build,
		probe:   probe,
		verify:  verify,
		workers: workers.Count(cfg.Workers),
		pairs:   bucket.NewPairSet(),
	}
	switch cfg.Strategy {
	case StrategySinglePass:
		j.sides = bucket.NewSideMap()
	default:
		j.buckets = bucket.NewMap()
	}

	ctx, span := tracing.StartSpan(ctx, "join."+kind, fmt.Sprintf("%016x", seed))
	defer func() {
		span.End()
		span.Log(log)
	}()

	log.Info("join started",
		"build_records", len(build),
		"probe_records", len(probe),
		"bands", cfg.Bands,
		"strategy", cfg.Strategy.String(),
		"workers", j.workers,
		"seed", seed,
	)
	start := time.Now()

	var candidates int64
	hasher := first
	for band := 0; band < cfg.Bands; band++ {
		if band > 0 {
			if hasher, err = factory(rng); err != nil {
				return nil, j.fail(cfg, fmt.Errorf("band %d: creating hasher: %w", band, err))
			}
		}
		stats, err := j.runBand(ctx, band, hasher, cfg.Strategy)
		if err != nil {
			return nil, j.fail(cfg, fmt.Errorf("band %d: %w", band, err))
		}
		candidates += stats.Candidates
		j.observeBand(cfg, stats)
		log.Debug("band complete",
			"band", band,
			"buckets", stats.Buckets,
			"candidates", stats.Candidates,
			"confirmed", stats.Confirmed,
			"total_pairs", j.pairs.Len(),
		)
	}

	pairs := j.pairs.Pairs()
	elapsed := time.Since(start)
	span.Add("pairs", len(pairs))
	if m := cfg.Metrics; m != nil {
		m.JoinsTotal.WithLabelValues(kind, "ok").Inc()
		m.JoinDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	}
	log.Info("join complete",
		"pairs", len(pairs),
		"candidates", candidates,
		"duration_ms", elapsed.Milliseconds(),
	)

	return &Result{
		Pairs:      pairs,
		Seed:       seed,
		Bands:      cfg.Bands,
		Candidates: candidates,
	}, nil
}

func (j *joiner[T]) fail(cfg Config, err error) error {
	if m := cfg.Metrics; m != nil {
		m.JoinsTotal.WithLabelValues(cfg.kind(), "error").Inc()
	}
	return err
}

func (j *joiner[T]) observeBand(cfg Config, stats BandStats) {
	m := cfg.Metrics
	if m == nil {
		return
	}
	kind := cfg.kind()
	m.BandsTotal.WithLabelValues(kind).Inc()
	m.CandidatesTotal.WithLabelValues(kind).Add(float64(stats.Candidates))
	m.PairsConfirmedTotal.WithLabelValues(kind).Add(float64(stats.Confirmed))
	m.BucketsPerBand.WithLabelValues(kind).Observe(float64(stats.Buckets))
}

func (j *joiner[T]) runBand(ctx context.Context, band int, hasher lsh.Hasher[T], strategy Strategy) (BandStats, error) {
	ctx, span := tracing.StartChildSpan(ctx, fmt.Sprintf("band-%d", band))
	defer span.End()

	var (
		stats BandStats
		err   error
	)
	switch strategy {
	case StrategySinglePass:
		stats, err = j.singlePass(ctx, hasher)
	default:
		stats, err = j.buildProbe(ctx, hasher)
	}
	span.Add("buckets", stats.Buckets)
	span.Add("candidates", int(stats.Candidates))
	span.Add("confirmed", int(stats.Confirmed))
	return stats, err
}

// buildProbe fills the bucket map from the build side, then probes it. The
// map is cleared before returning so the next band starts empty.
func (j *joiner[T]) buildProbe(ctx context.Context, hasher lsh.Hasher[T]) (BandStats, error) {
	defer j.buckets.Clear()

	err := workers.ForEachChunk(ctx, len(j.build), j.workers, func(_ context.Context, start, end int) error {
		for i := start; i < end; i++ {
			j.buckets.Add(hasher.Hash(j.build[i]), i)
		}
		return nil
	})
	if err != nil {
		return BandStats{}, fmt.Errorf("build phase: %w", err)
	}

	stats := BandStats{Buckets: j.buckets.Len()}
	var candidates, confirmed atomic.Int64
	err = workers.ForEachChunk(ctx, len(j.probe), j.workers, func(_ context.Context, start, end int) error {
		for p := start; p < end; p++ {
			for _, b := range j.buckets.Get(hasher.Hash(j.probe[p])) {
				j.check(bucket.Pair{Left: b, Right: p}, &candidates, &confirmed)
			}
		}
		return nil
	})
	stats.Candidates = candidates.Load()
	stats.Confirmed = confirmed.Load()
	if err != nil {
		return stats, fmt.Errorf("probe phase: %w", err)
	}
	return stats, nil
}

// singlePass hashes both sides into side-tagged buckets, then expands every
// bucket that received ids from both sides.
func (j *joiner[T]) singlePass(ctx context.Context, hasher lsh.Hasher[T]) (BandStats, error) {
	defer j.sides.Clear()

	err := workers.ForEachChunk(ctx, len(j.build), j.workers, func(_ context.Context, start, end int) error {
		for i := start; i < end; i++ {
			j.sides.AddA(hasher.Hash(j.build[i]), i)
		}
		return nil
	})
	if err != nil {
		return BandStats{}, fmt.Errorf("build side: %w", err)
	}
	err = workers.ForEachChunk(ctx, len(j.probe), j.workers, func(_ context.Context, start, end int) error {
		for p := start; p < end; p++ {
			j.sides.AddB(hasher.Hash(j.probe[p]), p)
		}
		return nil
	})
	if err != nil {
		return BandStats{}, fmt.Errorf("probe side: %w", err)
	}

	matches := j.sides.Matches()
	stats := BandStats{Buckets: j.sides.Len()}
	var candidates, confirmed atomic.Int64
	err = workers.ForEachChunk(ctx, len(matches), j.workers, func(_ context.Context, start, end int) error {
		for _, mb := range matches[start:end] {
			for _, pair := range mb.Pairs() {
				j.check(pair, &candidates, &confirmed)
			}
		}
		return nil
	})
	stats.Candidates = candidates.Load()
	stats.Confirmed = confirmed.Load()
	if err != nil {
		return stats, fmt.Errorf("expand phase: %w", err)
	}
	return stats, nil
}

// check verifies a candidate unless an earlier band already confirmed it.
func (j *joiner[T]) check(pair bucket.Pair, candidates, confirmed *atomic.Int64) {
	if j.pairs.Contains(pair) {
		return
	}
	candidates.Add(1)
	if j.verify(pair.Left, pair.Right) && j.pairs.Add(pair) {
		confirmed.Add(1)
	}
}

// NewRNG returns the generator every hasher of a join draws from.
func NewRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// resolveSeed returns the configured seed, or draws one so the run can still
// be replayed from the logged value.
func resolveSeed(seed *uint64) uint64 {
	if seed != nil {
		return *seed
	}
	s := rand.Uint64()
	slog.Default().Debug("no seed configured, drew one", "component", "blocking", "seed", s)
	return s
}
