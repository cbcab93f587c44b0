package fdm

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/bcdannyboy/optpricer/bsm"
	"github.com/bcdannyboy/optpricer/models"
)

var market = models.MarketParameters{Spot: 100, Rate: 0.05, Volatility: 0.2}

func mustContract(t *testing.T, kind models.PayoffKind, strike, maturity float64, ex models.ExerciseStyle, opts ...models.ContractOption) models.ContractSpec {
	t.Helper()
	c, err := models.NewContractSpec(kind, strike, maturity, ex, opts...)
	require.NoError(t, err)
	return c
}

func TestSolveMatchesClosedForm(t *testing.T) {
	markets := []models.MarketParameters{
		market,
		{Spot: 90, Rate: 0.03, DividendYield: 0.02, Volatility: 0.35},
	}
	for _, m := range markets {
		for _, kind := range []models.PayoffKind{models.Call, models.Put} {
			for _, k := range []float64{80, 100, 120} {
				c := mustContract(t, kind, k, 1, models.European)

				got, err := Solve(c, m, DefaultGridConfig())
				require.NoError(t, err)
				want, err := bsm.Calculate(c, m)
				require.NoError(t, err)

				assert.InDelta(t, want.Price, got.Price, 0.02, "%s under %s", c, m)
				assert.InDelta(t, want.Delta, got.Greeks[models.Delta], 0.005, "delta %s", c)
				assert.InDelta(t, want.Gamma, got.Greeks[models.Gamma], 0.001, "gamma %s", c)
				assert.InDelta(t, want.Theta, got.Greeks[models.Theta], 0.05, "theta %s", c)
				assert.Equal(t, models.MethodFiniteDifference, got.Method)
				assert.False(t, got.HasStandardError())
			}
		}
	}
}

func TestSolveConvergesWithResolution(t *testing.T) {
	c := mustContract(t, models.Call, 100, 1, models.European)
	want, err := bsm.Price(c, market)
	require.NoError(t, err)

	coarse := DefaultGridConfig()
	coarse.SpaceSteps, coarse.TimeSteps = 50, 50
	fine := DefaultGridConfig()

	lo, err := Solve(c, market, coarse)
	require.NoError(t, err)
	hi, err := Solve(c, market, fine)
	require.NoError(t, err)

	assert.Less(t, math.Abs(hi.Price-want), math.Abs(lo.Price-want))
	assert.InDelta(t, want, hi.Price, 0.01)
}

func TestAmericanPut(t *testing.T) {
	am := mustContract(t, models.Put, 100, 1, models.American)
	eu := mustContract(t, models.Put, 100, 1, models.European)

	amRes, err := Solve(am, market, DefaultGridConfig())
	require.NoError(t, err)
	euRes, err := Solve(eu, market, DefaultGridConfig())
	require.NoError(t, err)

	// Binomial benchmark for S=K=100, r=5%, sigma=20%, T=1.
	assert.InDelta(t, 6.09, amRes.Price, 0.03)
	assert.Greater(t, amRes.Price, euRes.Price)

	// Deep in the money the holder exercises immediately.
	deep, err := Solve(am, market.WithSpot(60), DefaultGridConfig())
	require.NoError(t, err)
	assert.InDelta(t, 40, deep.Price, 1e-6)
}

func TestAmericanCallWithoutDividendsIsEuropean(t *testing.T) {
	am := mustContract(t, models.Call, 100, 1, models.American)
	eu := mustContract(t, models.Call, 100, 1, models.European)

	amRes, err := Solve(am, market, DefaultGridConfig())
	require.NoError(t, err)
	euRes, err := Solve(eu, market, DefaultGridConfig())
	require.NoError(t, err)
	assert.InDelta(t, euRes.Price, amRes.Price, 1e-3)
}

func TestEarlyExercisePremiumProperty(t *testing.T) {
	cfg := DefaultGridConfig()
	cfg.SpaceSteps, cfg.TimeSteps = 120, 60
	cfg.Theta = 1
	cfg.ComputeGreeks = false

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("american put is worth at least the european put", prop.ForAll(
		func(strike, vol, rate float64) bool {
			m := models.MarketParameters{Spot: 100, Rate: rate, Volatility: vol}
			am, _ := models.NewContractSpec(models.Put, strike, 0.5, models.American)
			eu, _ := models.NewContractSpec(models.Put, strike, 0.5, models.European)

			a, err := Solve(am, m, cfg)
			if err != nil {
				return false
			}
			e, err := Solve(eu, m, cfg)
			if err != nil {
				return false
			}
			return a.Price >= e.Price-1e-9
		},
		gen.Float64Range(60, 140),
		gen.Float64Range(0.05, 0.8),
		gen.Float64Range(0, 0.1),
	))

	properties.TestingRun(t)
}

func TestPutCallParity(t *testing.T) {
	m := models.MarketParameters{Spot: 100, Rate: 0.04, DividendYield: 0.015, Volatility: 0.3}
	for _, k := range []float64{70, 100, 130} {
		call, err := Solve(mustContract(t, models.Call, k, 2, models.European), m, DefaultGridConfig())
		require.NoError(t, err)
		put, err := Solve(mustContract(t, models.Put, k, 2, models.European), m, DefaultGridConfig())
		require.NoError(t, err)

		want := m.Spot*math.Exp(-m.DividendYield*2) - k*math.Exp(-m.Rate*2)
		assert.InDelta(t, want, call.Price-put.Price, 0.01, "strike %v", k)
	}
}

func TestStrikeLimits(t *testing.T) {
	m := models.MarketParameters{Spot: 100, Rate: 0.05, DividendYield: 0.02, Volatility: 0.25}

	t.Run("zero strike is a prepaid forward", func(t *testing.T) {
		res, err := Solve(mustContract(t, models.Call, 0, 1, models.European), m, DefaultGridConfig())
		require.NoError(t, err)
		assert.InDelta(t, m.Spot*math.Exp(-m.DividendYield), res.Price, 1e-4)
	})

	t.Run("huge strike is worthless", func(t *testing.T) {
		res, err := Solve(mustContract(t, models.Call, 1e4, 1, models.European), m, DefaultGridConfig())
		require.NoError(t, err)
		assert.InDelta(t, 0, res.Price, 1e-4)
	})
}

// downAndInCall is the continuously monitored closed form for B <= K.
func downAndInCall(s, k, b, r, q, sigma, T float64) float64 {
	n := distuv.UnitNormal
	sqrtT := math.Sqrt(T)
	lambda := (r - q + 0.5*sigma*sigma) / (sigma * sigma)
	y := math.Log(b*b/(s*k))/(sigma*sqrtT) + lambda*sigma*sqrtT
	return s*math.Exp(-q*T)*math.Pow(b/s, 2*lambda)*n.CDF(y) -
		k*math.Exp(-r*T)*math.Pow(b/s, 2*lambda-2)*n.CDF(y-sigma*sqrtT)
}

func TestBarrierDownIn(t *testing.T) {
	c := mustContract(t, models.BarrierDownIn, 100, 1, models.European, models.WithBarrier(90))

	res, err := Solve(c, market, DefaultGridConfig())
	require.NoError(t, err)
	want := downAndInCall(market.Spot, 100, 90, market.Rate, 0, market.Volatility, 1)
	assert.InDelta(t, want, res.Price, 0.05)

	vanilla, err := Solve(mustContract(t, models.Call, 100, 1, models.European), market, DefaultGridConfig())
	require.NoError(t, err)
	assert.Less(t, res.Price, vanilla.Price)

	t.Run("already knocked in", func(t *testing.T) {
		in, err := Solve(c, market.WithSpot(85), DefaultGridConfig())
		require.NoError(t, err)
		call, err := Solve(mustContract(t, models.Call, 100, 1, models.European), market.WithSpot(85), DefaultGridConfig())
		require.NoError(t, err)
		assert.Equal(t, call.Price, in.Price)
	})
}

func TestBarrierUpOut(t *testing.T) {
	vanilla, err := Solve(mustContract(t, models.Call, 100, 1, models.European), market, DefaultGridConfig())
	require.NoError(t, err)

	plain := mustContract(t, models.BarrierUpOut, 100, 1, models.European, models.WithBarrier(130))
	out, err := Solve(plain, market, DefaultGridConfig())
	require.NoError(t, err)
	assert.Greater(t, out.Price, 0.0)
	assert.Less(t, out.Price, vanilla.Price)

	rebated := mustContract(t, models.BarrierUpOut, 100, 1, models.European, models.WithBarrier(130), models.WithRebate(5))
	withRebate, err := Solve(rebated, market, DefaultGridConfig())
	require.NoError(t, err)
	assert.Greater(t, withRebate.Price, out.Price)
	assert.Less(t, withRebate.Price-out.Price, 5*math.Exp(-market.Rate))

	t.Run("knocked out at spot", func(t *testing.T) {
		res, err := Solve(rebated, market.WithSpot(140), DefaultGridConfig())
		require.NoError(t, err)
		assert.InDelta(t, 5*math.Exp(-market.Rate), res.Price, 1e-12)
		assert.Equal(t, 0.0, res.Greeks[models.Delta])
	})
}

func TestSolveErrors(t *testing.T) {
	call := mustContract(t, models.Call, 100, 1, models.European)

	t.Run("invalid grid", func(t *testing.T) {
		for _, mutate := range []func(*GridConfig){
			func(g *GridConfig) { g.SpaceSteps = 2 },
			func(g *GridConfig) { g.TimeSteps = 0 },
			func(g *GridConfig) { g.DomainMultiple = 1 },
			func(g *GridConfig) { g.Theta = 0.2 },
			func(g *GridConfig) { g.SmoothingSteps = -1 },
		} {
			cfg := DefaultGridConfig()
			mutate(&cfg)
			_, err := Solve(call, market, cfg)
			assert.ErrorIs(t, err, models.ErrInvalidGridConfig)
		}
	})

	t.Run("path dependent payoffs", func(t *testing.T) {
		asian := mustContract(t, models.AsianCall, 100, 1, models.European)
		_, err := Solve(asian, market, DefaultGridConfig())
		assert.ErrorIs(t, err, models.ErrUnsupportedContract)
	})

	t.Run("invalid market", func(t *testing.T) {
		_, err := Solve(call, market.WithVolatility(0), DefaultGridConfig())
		assert.ErrorIs(t, err, models.ErrInvalidMarketParameters)
	})

	t.Run("non-finite values are reported", func(t *testing.T) {
		huge := models.MarketParameters{Spot: 100, Rate: 0.05, Volatility: 1e300}
		_, err := Solve(call, huge, DefaultGridConfig())
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrNumericalInstability)
	})
}

func TestSolverWithoutGreeks(t *testing.T) {
	cfg := DefaultGridConfig()
	cfg.ComputeGreeks = false
	s, err := NewSolver(cfg)
	require.NoError(t, err)

	res, err := s.Price(mustContract(t, models.Put, 100, 1, models.European), market)
	require.NoError(t, err)
	assert.Nil(t, res.Greeks)
	assert.Greater(t, res.Price, 0.0)
}
