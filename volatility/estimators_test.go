package volatility

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// simulateBars draws daily bars from a driftless GBM sampled intraday, with
// no overnight gap.
func simulateBars(days int, sigma float64, seed uint64) History {
	rng := rand.New(rand.NewSource(seed))
	const ticks = 200
	dt := 1.0 / tradingDays / ticks
	vol := sigma * math.Sqrt(dt)

	bars := make(History, days)
	price := 100.0
	for d := range bars {
		b := Bar{Open: price, High: price, Low: price}
		for i := 0; i < ticks; i++ {
			price *= math.Exp(-0.5*vol*vol + vol*rng.NormFloat64())
			b.High = math.Max(b.High, price)
			b.Low = math.Min(b.Low, price)
		}
		b.Close = price
		bars[d] = b
	}
	return bars
}

func TestEstimatorsRecoverVolatility(t *testing.T) {
	bars := simulateBars(2000, 0.3, 42)
	require.NoError(t, bars.Validate())

	for _, est := range Estimators() {
		got, err := Estimate(bars, est)
		require.NoError(t, err)
		// Range estimators see a discretely sampled high/low and read low.
		assert.InDelta(t, 0.3, got, 0.03, "%s", est)
	}
}

func TestTerm(t *testing.T) {
	bars := simulateBars(70, 0.2, 7)
	term, err := Term(bars, YangZhang)
	require.NoError(t, err)

	assert.Contains(t, term, "1w")
	assert.Contains(t, term, "1m")
	assert.Contains(t, term, "3m")
	assert.NotContains(t, term, "6m")
	for _, v := range term {
		assert.Greater(t, v, 0.0)
	}
}

func TestEstimateInsufficientData(t *testing.T) {
	one := simulateBars(1, 0.2, 1)

	_, err := Estimate(one, YangZhang)
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = Estimate(nil, Parkinson)
	assert.ErrorIs(t, err, ErrInsufficientData)

	v, err := Estimate(one, Parkinson)
	require.NoError(t, err)
	assert.Greater(t, v, 0.0)

	_, err = Estimate(one, Estimator("garch"))
	assert.Error(t, err)
}

func TestParseEstimator(t *testing.T) {
	e, err := ParseEstimator("rogers_satchell")
	require.NoError(t, err)
	assert.Equal(t, RogersSatchell, e)

	_, err = ParseEstimator("vix")
	assert.Error(t, err)
}

func TestLoadBars(t *testing.T) {
	csv := `date,open,high,low,close,volume
2024-01-02,100,102,99,101,1000
2024-01-03,101,103,100.5,102.5,1200
2024-01-04,102.5,102.8,98,99,900
`
	bars, err := LoadBars(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, "2024-01-03", bars[1].Date)
	assert.Equal(t, 102.5, bars[1].Close)
	assert.Equal(t, int64(900), bars[2].Volume)

	assert.Equal(t, bars[1:], bars.Last(2))
	assert.Equal(t, bars, bars.Last(10))

	t.Run("rejects inconsistent bars", func(t *testing.T) {
		bad := "date,open,high,low,close\n2024-01-02,100,99,98,101\n"
		_, err := LoadBars(strings.NewReader(bad))
		assert.Error(t, err)

		zero := "date,open,high,low,close\n2024-01-02,0,1,0,1\n"
		_, err = LoadBars(strings.NewReader(zero))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadBarsFile("does-not-exist.csv")
		assert.Error(t, err)
	})
}
