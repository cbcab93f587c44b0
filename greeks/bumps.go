package greeks

import (
	"math"

	"github.com/bcdannyboy/optpricer/models"
)

// Bumps are the finite-difference step sizes.
type Bumps struct {
	SpotRelative float64 // spot step as a fraction of spot
	Volatility   float64 // absolute volatility step
	Rate         float64 // absolute rate step
	Time         float64 // years
}

func DefaultBumps() Bumps {
	return Bumps{
		SpotRelative: 0.01,
		Volatility:   0.01,
		Rate:         1e-4,
		Time:         1.0 / 365,
	}
}

func (b Bumps) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"spot_relative", b.SpotRelative},
		{"volatility", b.Volatility},
		{"rate", b.Rate},
		{"time", b.Time},
	}
	for _, f := range fields {
		if !(f.value > 0) || math.IsInf(f.value, 0) {
			return models.NewValidationError(models.ErrInvalidBumps, f.name, f.value, "must be positive and finite")
		}
	}
	if b.SpotRelative >= 1 {
		return models.NewValidationError(models.ErrInvalidBumps, "spot_relative", b.SpotRelative, "must be below 1 to keep the bumped spot positive")
	}
	return nil
}
