package calibration

import (
	"math"

	"github.com/bcdannyboy/optpricer/models"
)

// Tolerances bound the implied volatility search.
type Tolerances struct {
	PriceTolerance float64 // stop once |model - market| is below this
	VolTolerance   float64 // or once the bracket is narrower than this
	MaxIterations  int
	LowerVol       float64
	UpperVol       float64
}

func DefaultTolerances() Tolerances {
	return Tolerances{
		PriceTolerance: 1e-8,
		VolTolerance:   1e-8,
		MaxIterations:  100,
		LowerVol:       1e-6,
		UpperVol:       5.0,
	}
}

func (t Tolerances) Validate() error {
	invalid := func(field string, value interface{}, msg string) error {
		return models.NewValidationError(models.ErrInvalidTolerances, field, value, msg)
	}

	if !(t.PriceTolerance > 0) || math.IsInf(t.PriceTolerance, 0) {
		return invalid("price_tolerance", t.PriceTolerance, "must be positive and finite")
	}
	if !(t.VolTolerance > 0) || math.IsInf(t.VolTolerance, 0) {
		return invalid("vol_tolerance", t.VolTolerance, "must be positive and finite")
	}
	if t.MaxIterations < 1 {
		return invalid("max_iterations", t.MaxIterations, "need at least one iteration")
	}
	if !(t.LowerVol > 0) {
		return invalid("lower_vol", t.LowerVol, "must be positive")
	}
	if !(t.UpperVol > t.LowerVol) || math.IsInf(t.UpperVol, 0) {
		return invalid("upper_vol", t.UpperVol, "must be finite and above lower_vol")
	}
	return nil
}
