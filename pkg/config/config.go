// Package config loads and validates linker configuration from YAML files
// with environment-variable overrides. It provides typed structs for the
// blocking joins, the EM estimator, logging and metrics.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Join      JoinConfig      `yaml:"join"`
	Euclidean EuclideanConfig `yaml:"euclidean"`
	Hamming   HammingConfig   `yaml:"hamming"`
	EM        EMConfig        `yaml:"em"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Run       RunConfig       `yaml:"run"`
}

// JoinConfig holds the banding parameters shared by every LSH join.
// Seed is a pointer so that "unset" (fresh randomness per run) can be told
// apart from an explicit zero seed.
type JoinConfig struct {
	NGramWidth int     `yaml:"ngramWidth"`
	Bands      int     `yaml:"bands"`
	BandWidth  int     `yaml:"bandWidth"`
	Threshold  float64 `yaml:"threshold"`
	Seed       *uint64 `yaml:"seed"`
	Workers    int     `yaml:"workers"`
	Strategy   string  `yaml:"strategy"`
	Normalize  bool    `yaml:"normalize"`
}

// EuclideanConfig controls the random-projection join.
type EuclideanConfig struct {
	Radius float64 `yaml:"radius"`
	R      float64 `yaml:"r"`
}

// HammingConfig controls the bit-sampling join.
type HammingConfig struct {
	MaxDistance int `yaml:"maxDistance"`
}

// EMConfig controls the Fellegi-Sunter estimator.
type EMConfig struct {
	Tolerance     float64 `yaml:"tolerance"`
	MaxIterations int     `yaml:"maxIterations"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RunConfig bounds a single linker command. A zero Timeout means no limit.
type RunConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no join or estimator could run with.
func (c *Config) Validate() error {
	switch {
	case c.Join.NGramWidth <= 0:
		return fmt.Errorf("join.ngramWidth must be positive, got %d", c.Join.NGramWidth)
	case c.Join.Bands <= 0:
		return fmt.Errorf("join.bands must be positive, got %d", c.Join.Bands)
	case c.Join.BandWidth <= 0:
		return fmt.Errorf("join.bandWidth must be positive, got %d", c.Join.BandWidth)
	case c.Join.Threshold < 0 || c.Join.Threshold > 1:
		return fmt.Errorf("join.threshold must be within [0,1], got %g", c.Join.Threshold)
	case c.Join.Workers < 0:
		return fmt.Errorf("join.workers must not be negative, got %d", c.Join.Workers)
	case c.Join.Strategy != "build-probe" && c.Join.Strategy != "single-pass":
		return fmt.Errorf("join.strategy must be build-probe or single-pass, got %q", c.Join.Strategy)
	case c.Euclidean.Radius < 0:
		return fmt.Errorf("euclidean.radius must not be negative, got %g", c.Euclidean.Radius)
	case c.Euclidean.R <= 0:
		return fmt.Errorf("euclidean.r must be positive, got %g", c.Euclidean.R)
	case c.Hamming.MaxDistance < 0:
		return fmt.Errorf("hamming.maxDistance must not be negative, got %d", c.Hamming.MaxDistance)
	case c.EM.Tolerance <= 0:
		return fmt.Errorf("em.tolerance must be positive, got %g", c.EM.Tolerance)
	case c.EM.MaxIterations <= 0:
		return fmt.Errorf("em.maxIterations must be positive, got %d", c.EM.MaxIterations)
	case c.Run.Timeout < 0:
		return fmt.Errorf("run.timeout must not be negative, got %v", c.Run.Timeout)
	}
	return nil
}

// defaultConfig returns a Config tuned for a Jaccard threshold around 0.7.
func defaultConfig() *Config {
	return &Config{
		Join: JoinConfig{
			NGramWidth: 2,
			Bands:      50,
			BandWidth:  8,
			Threshold:  0.7,
			Workers:    0,
			Strategy:   "build-probe",
		},
		Euclidean: EuclideanConfig{
			Radius: 1.0,
			R:      4.0,
		},
		Hamming: HammingConfig{
			MaxDistance: 1,
		},
		EM: EMConfig{
			Tolerance:     1e-4,
			MaxIterations: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads RL_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RL_JOIN_NGRAM_WIDTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Join.NGramWidth = n
		}
	}
	if v := os.Getenv("RL_JOIN_BANDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Join.Bands = n
		}
	}
	if v := os.Getenv("RL_JOIN_BAND_WIDTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Join.BandWidth = n
		}
	}
	if v := os.Getenv("RL_JOIN_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Join.Threshold = f
		}
	}
	if v := os.Getenv("RL_JOIN_SEED"); v != "" {
		if s, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Join.Seed = &s
		}
	}
	if v := os.Getenv("RL_JOIN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Join.Workers = n
		}
	}
	if v := os.Getenv("RL_JOIN_STRATEGY"); v != "" {
		cfg.Join.Strategy = v
	}
	if v := os.Getenv("RL_JOIN_NORMALIZE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Join.Normalize = b
		}
	}
	if v := os.Getenv("RL_EUCLIDEAN_RADIUS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Euclidean.Radius = f
		}
	}
	if v := os.Getenv("RL_EUCLIDEAN_R"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Euclidean.R = f
		}
	}
	if v := os.Getenv("RL_HAMMING_MAX_DISTANCE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Hamming.MaxDistance = n
		}
	}
	if v := os.Getenv("RL_EM_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.EM.Tolerance = f
		}
	}
	if v := os.Getenv("RL_EM_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EM.MaxIterations = n
		}
	}
	if v := os.Getenv("RL_RUN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Run.Timeout = d
		}
	}
	if v := os.Getenv("RL_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RL_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("RL_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("RL_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
