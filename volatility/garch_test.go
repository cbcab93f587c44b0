package volatility

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// simulateGARCH draws closes whose daily log returns follow g.
func simulateGARCH(g GARCH11, days int, seed uint64) History {
	rng := rand.New(rand.NewSource(seed))
	variance := g.Omega / (1 - g.Alpha - g.Beta)
	bars := make(History, days+1)
	price := 100.0
	bars[0] = Bar{Open: price, High: price, Low: price, Close: price}
	for d := 1; d <= days; d++ {
		r := math.Sqrt(variance) * rng.NormFloat64()
		next := price * math.Exp(r)
		bars[d] = Bar{
			Open:  price,
			High:  math.Max(price, next),
			Low:   math.Min(price, next),
			Close: next,
		}
		variance = g.Omega + g.Alpha*r*r + g.Beta*variance
		price = next
	}
	return bars
}

func TestFitGARCH11(t *testing.T) {
	truth := GARCH11{Omega: 2e-6, Alpha: 0.08, Beta: 0.9}
	bars := simulateGARCH(truth, 3000, 11)

	fit, err := FitGARCH11(bars)
	require.NoError(t, err)

	assert.InDelta(t, truth.Alpha, fit.Params.Alpha, 0.04)
	assert.InDelta(t, truth.Beta, fit.Params.Beta, 0.06)
	assert.Less(t, fit.Params.Alpha+fit.Params.Beta, 1.0)
	assert.Greater(t, fit.Volatility, 0.0)
	assert.Greater(t, fit.LongRun, 0.0)

	returns := make([]float64, len(bars)-1)
	mean := 0.0
	for i := 1; i < len(bars); i++ {
		returns[i-1] = math.Log(bars[i].Close / bars[i-1].Close)
		mean += returns[i-1]
	}
	mean /= float64(len(returns))
	for i := range returns {
		returns[i] -= mean
	}
	// the maximiser should do at least as well as the generating parameters
	assert.GreaterOrEqual(t, fit.LogLik, truth.LogLikelihood(returns)-0.5)
}

func TestFitGARCH11Errors(t *testing.T) {
	_, err := FitGARCH11(simulateGARCH(GARCH11{Omega: 2e-6, Alpha: 0.08, Beta: 0.9}, 10, 1))
	assert.ErrorIs(t, err, ErrInsufficientData)

	flat := make(History, 40)
	for i := range flat {
		flat[i] = Bar{Open: 100, High: 100, Low: 100, Close: 100}
	}
	_, err = FitGARCH11(flat)
	assert.Error(t, err)
}

func TestGARCHStationarity(t *testing.T) {
	assert.True(t, GARCH11{Omega: 1e-6, Alpha: 0.1, Beta: 0.85}.stationary())
	assert.False(t, GARCH11{Omega: 1e-6, Alpha: 0.2, Beta: 0.8}.stationary())
	assert.False(t, GARCH11{Omega: 0, Alpha: 0.1, Beta: 0.8}.stationary())
	assert.False(t, GARCH11{Omega: 1e-6, Alpha: -0.1, Beta: 0.8}.stationary())
}
