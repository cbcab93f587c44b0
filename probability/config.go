package probability

import (
	"runtime"

	"github.com/bcdannyboy/optpricer/models"
)

const (
	defaultPaths     = 100000
	defaultSteps     = 252 // trading days in a year
	defaultBlockSize = 4096
)

// SimConfig controls a Monte Carlo run.
type SimConfig struct {
	Paths      int    // simulated paths; rounded up to even with Antithetic
	Steps      int    // monitoring steps for path-dependent payoffs
	Seed       uint64 // root seed, every block stream derives from it
	Antithetic bool
	// ControlVariate regresses the payoff on the terminal spot, whose
	// risk-neutral mean S·e^{(r-q)T} is known.
	ControlVariate bool
	Workers        int // parallel blocks; 0 means GOMAXPROCS
	BlockSize      int // samples per block
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		Paths:          defaultPaths,
		Steps:          defaultSteps,
		Seed:           1,
		Antithetic:     true,
		ControlVariate: true,
		Workers:        runtime.GOMAXPROCS(0),
		BlockSize:      defaultBlockSize,
	}
}

// Validate checks the parts of the config that do not depend on the contract.
func (c SimConfig) Validate() error {
	if c.Paths < 1 {
		return invalid("paths", c.Paths, "need at least one path")
	}
	if c.Workers < 0 {
		return invalid("workers", c.Workers, "must be non-negative")
	}
	if c.BlockSize < 1 {
		return invalid("block_size", c.BlockSize, "need at least one sample per block")
	}
	return nil
}

// ValidateFor additionally checks the step count when the contract needs a
// full path.
func (c SimConfig) ValidateFor(contract models.ContractSpec) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if contract.Kind.IsPathDependent() && c.Steps < 1 {
		return invalid("steps", c.Steps, "path-dependent payoffs need at least one step")
	}
	return nil
}

func (c SimConfig) workers() int {
	if c.Workers == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Workers
}

// samples is the number of independent estimates the run averages. An
// antithetic pair counts once.
func (c SimConfig) samples() int {
	if c.Antithetic {
		return (c.Paths + 1) / 2
	}
	return c.Paths
}

func invalid(field string, value interface{}, msg string) error {
	return models.NewValidationError(models.ErrInvalidSimConfig, field, value, msg)
}
