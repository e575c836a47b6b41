package blocking

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/metrics"
)

// Strategy selects how a band turns bucket keys into candidate pairs.
type Strategy int

const (
	// StrategyBuildProbe fills the bucket map from the build side, waits,
	// then looks every probe record up in it.
	StrategyBuildProbe Strategy = iota
	// StrategySinglePass hashes both sides into side-tagged buckets and
	// expands every bucket that holds ids from both.
	StrategySinglePass
)

func (s Strategy) String() string {
	switch s {
	case StrategyBuildProbe:
		return "build-probe"
	case StrategySinglePass:
		return "single-pass"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy maps a configuration string to a Strategy. The empty string
// selects build-probe.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "build-probe":
		return StrategyBuildProbe, nil
	case "single-pass":
		return StrategySinglePass, nil
	default:
		return 0, errors.Invalid("unknown join strategy %q", s)
	}
}

// Config drives one join call.
type Config struct {
	Bands    int
	Seed     *uint64
	Workers  int
	Strategy Strategy
	// Kind labels logs and metrics, e.g. "minhash".
	Kind    string
	Metrics *metrics.Metrics
}

func (c Config) Validate() error {
	if c.Bands <= 0 {
		return errors.Invalid("number of bands must be positive, got %d", c.Bands)
	}
	if c.Workers < 0 {
		return errors.Invalid("workers must not be negative, got %d", c.Workers)
	}
	if c.Strategy != StrategyBuildProbe && c.Strategy != StrategySinglePass {
		return errors.Invalid("unknown join strategy %d", int(c.Strategy))
	}
	return nil
}

func (c Config) kind() string {
	if c.Kind == "" {
		return "lsh"
	}
	return c.Kind
}
