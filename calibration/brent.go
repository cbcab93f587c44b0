package calibration

import (
	"math"

	"github.com/bcdannyboy/optpricer/models"
)

// epsilon is the float64 machine epsilon.
const epsilon = 2.220446049250313e-16

// Brent finds a root of f in [lo, hi] by Brent's method: inverse quadratic
// interpolation or secant steps, falling back to bisection whenever they
// would leave the bracket or converge too slowly.
//
// It stops when |f| < tol.PriceTolerance or the bracket is narrower than
// tol.VolTolerance. f(lo) and f(hi) must differ in sign, otherwise a
// *models.BracketError is returned. Running out of iterations returns a
// *models.ConvergenceError carrying the best estimate.
func Brent(f func(float64) (float64, error), lo, hi float64, tol Tolerances) (float64, error) {
	a, b := lo, hi
	fa, err := f(a)
	if err != nil {
		return 0, err
	}
	fb, err := f(b)
	if err != nil {
		return 0, err
	}

	if math.IsNaN(fa) || math.IsNaN(fb) {
		return 0, &models.NumericalError{Stage: "root bracket", Value: math.NaN()}
	}
	if math.Abs(fa) < tol.PriceTolerance {
		return a, nil
	}
	if math.Abs(fb) < tol.PriceTolerance {
		return b, nil
	}
	if math.Signbit(fa) == math.Signbit(fb) {
		return 0, &models.BracketError{Low: lo, High: hi, FLow: fa, FHigh: fb}
	}

	c, fc := b, fb
	var d, e float64

	for iter := 1; iter <= tol.MaxIterations; iter++ {
		if math.Signbit(fb) == math.Signbit(fc) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}

		tol1 := 2*epsilon*math.Abs(b) + 0.5*tol.VolTolerance
		xm := 0.5 * (c - b)
		if math.Abs(fb) < tol.PriceTolerance || math.Abs(xm) <= tol1 {
			return b, nil
		}

		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			var p, q float64
			s := fb / fa
			if a == c {
				p = 2 * xm * s
				q = 1 - s
			} else {
				q = fa / fc
				r := fb / fc
				p = s * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)

			if 2*p < math.Min(3*xm*q-math.Abs(tol1*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}

		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, xm)
		}

		if fb, err = f(b); err != nil {
			return 0, err
		}
		if math.IsNaN(fb) {
			return 0, &models.NumericalError{Stage: "root search", Step: iter, Value: fb}
		}
	}

	if math.Abs(fb) < tol.PriceTolerance {
		return b, nil
	}
	return 0, &models.ConvergenceError{
		Iterations: tol.MaxIterations,
		Estimate:   b,
		Residual:   fb,
		Width:      math.Abs(c - b),
	}
}
