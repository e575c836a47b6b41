package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Join.NGramWidth)
	assert.Equal(t, 50, cfg.Join.Bands)
	assert.Equal(t, 8, cfg.Join.BandWidth)
	assert.Equal(t, "build-probe", cfg.Join.Strategy)
	assert.Nil(t, cfg.Join.Seed)
	assert.Equal(t, 1000, cfg.EM.MaxIterations)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linker.yaml")
	body := `
join:
  ngramWidth: 3
  bands: 120
  bandWidth: 4
  threshold: 0.5
  seed: 42
  strategy: single-pass
  normalize: true
em:
  tolerance: 0.001
  maxIterations: 50
logging:
  level: debug
  format: json
run:
  timeout: 90s
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Join.NGramWidth)
	assert.Equal(t, 120, cfg.Join.Bands)
	assert.Equal(t, 4, cfg.Join.BandWidth)
	assert.InDelta(t, 0.5, cfg.Join.Threshold, 1e-12)
	require.NotNil(t, cfg.Join.Seed)
	assert.Equal(t, uint64(42), *cfg.Join.Seed)
	assert.Equal(t, "single-pass", cfg.Join.Strategy)
	assert.Equal(t, 50, cfg.EM.MaxIterations)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Join.Normalize)
	assert.Equal(t, 90*time.Second, cfg.Run.Timeout)
	// untouched sections keep their defaults
	assert.InDelta(t, 4.0, cfg.Euclidean.R, 1e-12)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RL_JOIN_BANDS", "7")
	t.Setenv("RL_JOIN_SEED", "99")
	t.Setenv("RL_EM_TOLERANCE", "0.01")
	t.Setenv("RL_METRICS_ENABLED", "true")
	t.Setenv("RL_RUN_TIMEOUT", "2m")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Join.Bands)
	require.NotNil(t, cfg.Join.Seed)
	assert.Equal(t, uint64(99), *cfg.Join.Seed)
	assert.InDelta(t, 0.01, cfg.EM.Tolerance, 1e-12)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Run.Timeout)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"zero bands":    "join:\n  bands: 0\n",
		"bad threshold": "join:\n  threshold: 1.5\n",
		"bad strategy":  "join:\n  strategy: magic\n",
		"zero r":        "euclidean:\n  r: 0\n",
		"zero em iters": "em:\n  maxIterations: 0\n",
		"neg timeout":   "run:\n  timeout: -1s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
