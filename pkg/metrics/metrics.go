// Package metrics defines the Prometheus collectors used by the blocking joins
// and the EM estimator, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the linker.
type Metrics struct {
	JoinsTotal          *prometheus.CounterVec
	JoinDuration        *prometheus.HistogramVec
	BandsTotal          *prometheus.CounterVec
	CandidatesTotal     *prometheus.CounterVec
	PairsConfirmedTotal *prometheus.CounterVec
	BucketsPerBand      *prometheus.HistogramVec
	EMRunsTotal         *prometheus.CounterVec
	EMIterations        prometheus.Histogram
	EMBundles           prometheus.Histogram
}

// New creates all collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests and library callers that do not
// scrape want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JoinsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkage_joins_total",
				Help: "Total blocking joins by kind and outcome.",
			},
			[]string{"kind", "status"},
		),
		JoinDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linkage_join_duration_seconds",
				Help:    "Blocking join latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		BandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkage_bands_total",
				Help: "Total LSH bands processed.",
			},
			[]string{"kind"},
		),
		CandidatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkage_candidates_total",
				Help: "Candidate pairs sent to exact verification.",
			},
			[]string{"kind"},
		),
		PairsConfirmedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkage_pairs_confirmed_total",
				Help: "Pairs that passed exact verification and were newly inserted.",
			},
			[]string{"kind"},
		),
		BucketsPerBand: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linkage_buckets_per_band",
				Help:    "Distinct bucket keys produced by the build side per band.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 12),
			},
			[]string{"kind"},
		),
		EMRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkage_em_runs_total",
				Help: "Total EM estimator runs by outcome (converged, not_converged).",
			},
			[]string{"status"},
		),
		EMIterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linkage_em_iterations",
				Help:    "EM iterations until convergence.",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
		EMBundles: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linkage_em_bundles",
				Help:    "Distinct agreement patterns per EM run.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 14),
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.JoinsTotal,
			m.JoinDuration,
			m.BandsTotal,
			m.CandidatesTotal,
			m.PairsConfirmedTotal,
			m.BucketsPerBand,
			m.EMRunsTotal,
			m.EMIterations,
			m.EMBundles,
		)
	}

	return m
}

// Handler serves the metrics gathered from g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
