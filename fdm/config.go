package fdm

import (
	"math"

	"github.com/bcdannyboy/optpricer/models"
)

// GridConfig controls the space-time discretisation.
type GridConfig struct {
	SpaceSteps     int     // intervals on the spot axis
	TimeSteps      int     // intervals on the time axis
	DomainMultiple float64 // upper spot bound as a multiple of max(strike, spot)
	Theta          float64 // 0.5 = Crank-Nicolson, 1 = fully implicit
	SmoothingSteps int     // fully implicit start-up steps before switching to Theta
	ComputeGreeks  bool
}

// DefaultGridConfig returns a grid fine enough for cent-level accuracy on
// typical equity options.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		SpaceSteps:     400,
		TimeSteps:      400,
		DomainMultiple: 4,
		Theta:          0.5,
		SmoothingSteps: 2,
		ComputeGreeks:  true,
	}
}

// Validate rejects grids the solver cannot step.
func (g GridConfig) Validate() error {
	invalid := func(field string, value interface{}, msg string) error {
		return models.NewValidationError(models.ErrInvalidGridConfig, field, value, msg)
	}

	if g.SpaceSteps < 3 {
		return invalid("space_steps", g.SpaceSteps, "need at least 3 space steps")
	}
	if g.TimeSteps < 1 {
		return invalid("time_steps", g.TimeSteps, "need at least 1 time step")
	}
	if math.IsNaN(g.DomainMultiple) || math.IsInf(g.DomainMultiple, 0) || g.DomainMultiple <= 1 {
		return invalid("domain_multiple", g.DomainMultiple, "must be finite and greater than 1")
	}
	if math.IsNaN(g.Theta) || g.Theta < 0.5 || g.Theta > 1 {
		return invalid("theta", g.Theta, "must lie in [0.5, 1] for unconditional stability")
	}
	if g.SmoothingSteps < 0 {
		return invalid("smoothing_steps", g.SmoothingSteps, "must be non-negative")
	}
	return nil
}
