package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.BandsTotal.WithLabelValues("minhash").Add(3)
	m.EMRunsTotal.WithLabelValues("converged").Inc()
	m.EMIterations.Observe(12)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	var bands float64
	for _, f := range families {
		names[f.GetName()] = true
		if f.GetName() == "linkage_bands_total" {
			bands = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.True(t, names["linkage_bands_total"])
	assert.True(t, names["linkage_em_runs_total"])
	assert.True(t, names["linkage_em_iterations"])
	assert.InDelta(t, 3, bands, 1e-12)
}

func TestNewWithoutRegistry(t *testing.T) {
	m := New(nil)
	assert.NotPanics(t, func() {
		m.CandidatesTotal.WithLabelValues("hamming").Inc()
	})
	// A second unregistered set must not collide with the first.
	assert.NotPanics(t, func() { New(nil) })
}
