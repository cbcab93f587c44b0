package calibration

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/bcdannyboy/optpricer/models"
)

// Quote is an observed price for a contract.
type Quote struct {
	Contract models.ContractSpec
	Price    float64
}

// FitResult is a flat volatility fitted to a set of quotes.
type FitResult struct {
	Volatility  float64
	RMSE        float64   // root mean squared pricing error at Volatility
	ImpliedVols []float64 // per-quote implied vols, NaN where none exists
	Iterations  int
}

// FitVolatility finds the single volatility that minimises the squared
// pricing error across quotes. The search starts from the mean of the
// per-quote implied vols and runs Nelder-Mead on log volatility.
func FitVolatility(quotes []Quote, market models.MarketParameters, pricer models.Pricer, tol Tolerances) (FitResult, error) {
	if len(quotes) == 0 {
		return FitResult{}, errors.New("calibration: no quotes to fit")
	}
	if err := tol.Validate(); err != nil {
		return FitResult{}, err
	}

	res := FitResult{ImpliedVols: make([]float64, len(quotes))}
	var seeds []float64
	for i, q := range quotes {
		vol, err := SolveImpliedVol(q.Price, q.Contract, market, pricer, tol)
		switch {
		case err == nil:
			res.ImpliedVols[i] = vol
			seeds = append(seeds, vol)
		case errors.Is(err, models.ErrNoBracketFound), errors.Is(err, models.ErrConvergenceFailure):
			res.ImpliedVols[i] = math.NaN()
		default:
			return FitResult{}, err
		}
	}
	if len(seeds) == 0 {
		return FitResult{}, fmt.Errorf("calibration: %w: no quote has an implied vol in [%g, %g]",
			models.ErrNoBracketFound, tol.LowerVol, tol.UpperVol)
	}

	var pricingErr error
	objective := func(x []float64) float64 {
		vol := math.Exp(x[0])
		if vol < tol.LowerVol || vol > tol.UpperVol {
			return math.Inf(1)
		}
		mse, err := meanSquaredError(quotes, market.WithVolatility(vol), pricer)
		if err != nil {
			pricingErr = err
			return math.Inf(1)
		}
		return mse
	}

	start := []float64{math.Log(stat.Mean(seeds, nil))}
	result, err := optimize.Minimize(optimize.Problem{Func: objective}, start, &optimize.Settings{
		MajorIterations: 10 * tol.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   tol.PriceTolerance * tol.PriceTolerance,
			Iterations: 20,
		},
	}, &optimize.NelderMead{})
	if pricingErr != nil {
		return FitResult{}, pricingErr
	}
	if err != nil {
		return FitResult{}, models.Wrap(err, "calibration: volatility fit")
	}

	res.Volatility = math.Exp(result.X[0])
	res.RMSE = math.Sqrt(result.F)
	res.Iterations = result.Stats.MajorIterations
	return res, nil
}

func meanSquaredError(quotes []Quote, market models.MarketParameters, pricer models.Pricer) (float64, error) {
	mse := 0.0
	for _, q := range quotes {
		r, err := pricer.Price(q.Contract, market)
		if err != nil {
			return 0, err
		}
		mse += math.Pow(r.Price-q.Price, 2)
	}
	return mse / float64(len(quotes)), nil
}
