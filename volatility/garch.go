package volatility

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// minGARCHReturns is the shortest return series FitGARCH11 accepts.
const minGARCHReturns = 30

// GARCH11 holds daily GARCH(1,1) parameters:
// sigma²(t) = Omega + Alpha·r²(t-1) + Beta·sigma²(t-1).
type GARCH11 struct {
	Omega float64
	Alpha float64
	Beta  float64
}

// GARCHForecast is a fitted model and its one-day-ahead volatility.
type GARCHForecast struct {
	Params     GARCH11
	Volatility float64 // annualised
	LongRun    float64 // annualised unconditional volatility
	LogLik     float64
	Iterations int
}

func (g GARCH11) stationary() bool {
	return g.Omega > 0 && g.Alpha >= 0 && g.Beta >= 0 && g.Alpha+g.Beta < 1
}

// LogLikelihood is the Gaussian log-likelihood of demeaned returns, with the
// variance recursion started at the sample variance.
func (g GARCH11) LogLikelihood(returns []float64) float64 {
	variance := stat.Variance(returns, nil)
	logLik := 0.0
	for i, r := range returns {
		if i > 0 {
			variance = g.Omega + g.Alpha*returns[i-1]*returns[i-1] + g.Beta*variance
		}
		logLik += -0.5 * (math.Log(2*math.Pi) + math.Log(variance) + r*r/variance)
	}
	return logLik
}

// nextVariance runs the recursion through every return and one step past
// the last.
func (g GARCH11) nextVariance(returns []float64) float64 {
	variance := stat.Variance(returns, nil)
	for _, r := range returns {
		variance = g.Omega + g.Alpha*r*r + g.Beta*variance
	}
	return variance
}

// FitGARCH11 fits GARCH(1,1) to the close-to-close log returns of h by
// maximum likelihood and forecasts the next day's volatility.
func FitGARCH11(h History) (GARCHForecast, error) {
	if len(h) < minGARCHReturns+1 {
		return GARCHForecast{}, fmt.Errorf("%w: garch needs %d bars, have %d", ErrInsufficientData, minGARCHReturns+1, len(h))
	}

	returns := make([]float64, len(h)-1)
	for i := 1; i < len(h); i++ {
		returns[i-1] = math.Log(h[i].Close / h[i-1].Close)
	}
	mean := stat.Mean(returns, nil)
	for i := range returns {
		returns[i] -= mean
	}
	sampleVar := stat.Variance(returns, nil)
	if !(sampleVar > 0) {
		return GARCHForecast{}, fmt.Errorf("volatility: garch needs non-constant closes")
	}

	// x = [log Omega, Alpha, Beta]; start from variance targeting.
	params := func(x []float64) GARCH11 {
		return GARCH11{Omega: math.Exp(x[0]), Alpha: x[1], Beta: x[2]}
	}
	objective := func(x []float64) float64 {
		g := params(x)
		if !g.stationary() {
			return math.Inf(1)
		}
		return -g.LogLikelihood(returns)
	}
	start := []float64{math.Log(0.1 * sampleVar), 0.1, 0.8}

	result, err := optimize.Minimize(optimize.Problem{Func: objective}, start, &optimize.Settings{
		MajorIterations: 5000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-9,
			Iterations: 100,
		},
	}, &optimize.NelderMead{})
	if err != nil {
		return GARCHForecast{}, fmt.Errorf("volatility: garch fit: %w", err)
	}

	g := params(result.X)
	if !g.stationary() {
		return GARCHForecast{}, fmt.Errorf("volatility: garch fit left the stationary region: %+v", g)
	}
	return GARCHForecast{
		Params:     g,
		Volatility: math.Sqrt(g.nextVariance(returns) * tradingDays),
		LongRun:    math.Sqrt(g.Omega / (1 - g.Alpha - g.Beta) * tradingDays),
		LogLik:     -result.F,
		Iterations: result.Stats.MajorIterations,
	}, nil
}
