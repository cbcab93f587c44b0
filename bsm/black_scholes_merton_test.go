package bsm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/optpricer/models"
)

func contract(t *testing.T, kind models.PayoffKind, strike, maturity float64) models.ContractSpec {
	t.Helper()
	c, err := models.NewContractSpec(kind, strike, maturity, models.European)
	require.NoError(t, err)
	return c
}

func TestPriceReferenceCase(t *testing.T) {
	// S=100, K=100, r=0.05, sigma=0.2, T=1
	m := models.MarketParameters{Spot: 100, Rate: 0.05, Volatility: 0.2}

	call, err := Price(contract(t, models.Call, 100, 1), m)
	require.NoError(t, err)
	put, err := Price(contract(t, models.Put, 100, 1), m)
	require.NoError(t, err)

	assert.InDelta(t, 10.450583572185565, call, 1e-9)
	assert.InDelta(t, 5.573526022256971, put, 1e-9)
}

func TestPutCallParityWithDividends(t *testing.T) {
	m := models.MarketParameters{Spot: 95, Rate: 0.03, DividendYield: 0.02, Volatility: 0.35}
	for _, k := range []float64{60, 95, 140} {
		call, err := Price(contract(t, models.Call, k, 0.75), m)
		require.NoError(t, err)
		put, err := Price(contract(t, models.Put, k, 0.75), m)
		require.NoError(t, err)

		want := m.Spot*math.Exp(-m.DividendYield*0.75) - k*math.Exp(-m.Rate*0.75)
		assert.InDelta(t, want, call-put, 1e-10)
	}
}

func TestGreeksMatchFiniteDifferences(t *testing.T) {
	m := models.MarketParameters{Spot: 100, Rate: 0.04, DividendYield: 0.01, Volatility: 0.25}
	for _, kind := range []models.PayoffKind{models.Call, models.Put} {
		c := contract(t, kind, 105, 0.5)
		res, err := Calculate(c, m)
		require.NoError(t, err)

		price := func(c models.ContractSpec, m models.MarketParameters) float64 {
			p, err := Price(c, m)
			require.NoError(t, err)
			return p
		}

		h := 0.01
		delta := (price(c, m.WithSpot(m.Spot+h)) - price(c, m.WithSpot(m.Spot-h))) / (2 * h)
		gamma := (price(c, m.WithSpot(m.Spot+h)) - 2*res.Price + price(c, m.WithSpot(m.Spot-h))) / (h * h)
		vega := (price(c, m.WithVolatility(m.Volatility+1e-4)) - price(c, m.WithVolatility(m.Volatility-1e-4))) / 2e-4
		rho := (price(c, m.WithRate(m.Rate+1e-4)) - price(c, m.WithRate(m.Rate-1e-4))) / 2e-4
		shorter := c
		shorter.Maturity -= 1e-4
		theta := (price(shorter, m) - res.Price) / 1e-4

		assert.InDelta(t, delta, res.Delta, 1e-6, kind.String())
		assert.InDelta(t, gamma, res.Gamma, 1e-4, kind.String())
		assert.InDelta(t, vega, res.Vega, 1e-4, kind.String())
		assert.InDelta(t, rho, res.Rho, 1e-4, kind.String())
		assert.InDelta(t, theta, res.Theta, 1e-2, kind.String())
	}
}

func TestZeroStrikeCallIsPrepaidForward(t *testing.T) {
	m := models.MarketParameters{Spot: 100, Rate: 0.05, DividendYield: 0.03, Volatility: 0.2}
	p, err := Price(contract(t, models.Call, 0, 2), m)
	require.NoError(t, err)
	assert.InDelta(t, 100*math.Exp(-0.06), p, 1e-12)
}

func TestUnsupportedContracts(t *testing.T) {
	m := models.MarketParameters{Spot: 100, Rate: 0.05, Volatility: 0.2}

	american, err := models.NewContractSpec(models.Put, 100, 1, models.American)
	require.NoError(t, err)
	_, err = Price(american, m)
	assert.ErrorIs(t, err, models.ErrUnsupportedContract)

	_, err = Price(contract(t, models.AsianCall, 100, 1), m)
	assert.ErrorIs(t, err, models.ErrUnsupportedContract)

	_, err = Price(contract(t, models.Call, 100, 1), m.WithVolatility(0))
	assert.ErrorIs(t, err, models.ErrInvalidMarketParameters)
}

func TestPricerAdapter(t *testing.T) {
	m := models.MarketParameters{Spot: 100, Rate: 0.05, Volatility: 0.2}
	res, err := Pricer{}.Price(contract(t, models.Call, 100, 1), m)
	require.NoError(t, err)
	assert.Equal(t, models.MethodAnalytical, res.Method)
	assert.False(t, res.HasStandardError())
	assert.Contains(t, res.Greeks, models.Delta)
}
