// Package calibration inverts pricing engines for volatility: a single implied
// volatility by bracketed root finding, or one flat volatility fitted to a
// strip of quotes.
package calibration

import (
	"errors"
	"fmt"
	"math"

	"github.com/bcdannyboy/optpricer/models"
)

// bracketScanPoints is the number of geometric steps between LowerVol and
// UpperVol tried when the endpoints alone do not bracket the price.
const bracketScanPoints = 24

// SolveImpliedVol returns the volatility at which pricer reproduces
// marketPrice for contract. market.Volatility is ignored.
//
// The pricer is treated as a black box in volatility, so any engine works.
// Monte Carlo pricers must be seeded so that repeated calls see the same
// draws.
func SolveImpliedVol(marketPrice float64, contract models.ContractSpec, market models.MarketParameters, pricer models.Pricer, tol Tolerances) (float64, error) {
	if err := contract.Validate(); err != nil {
		return 0, err
	}
	if err := market.ValidateWithoutVolatility(); err != nil {
		return 0, err
	}

	price := func(vol float64) (float64, error) {
		res, err := pricer.Price(contract, market.WithVolatility(vol))
		if err != nil {
			return 0, err
		}
		return res.Price, nil
	}

	vol, err := SolveImpliedVolFunc(marketPrice, price, tol)
	if err != nil {
		return 0, models.Wrapf(err, "implied vol for %s at %g", contract, marketPrice)
	}
	return vol, nil
}

// SolveImpliedVolFunc solves pricingFn(vol) = marketPrice over
// [tol.LowerVol, tol.UpperVol]. When the endpoints do not bracket a root the
// interval is scanned for the first sign change, so a pricing function that
// is not monotone near UpperVol still inverts below it.
func SolveImpliedVolFunc(marketPrice float64, pricingFn func(vol float64) (float64, error), tol Tolerances) (float64, error) {
	if err := tol.Validate(); err != nil {
		return 0, err
	}
	if math.IsNaN(marketPrice) || math.IsInf(marketPrice, 0) {
		return 0, fmt.Errorf("market price must be finite, got %v", marketPrice)
	}

	objective := func(vol float64) (float64, error) {
		p, err := pricingFn(vol)
		if err != nil {
			return 0, err
		}
		return p - marketPrice, nil
	}
	vol, err := Brent(objective, tol.LowerVol, tol.UpperVol, tol)
	var berr *models.BracketError
	if !errors.As(err, &berr) {
		return vol, err
	}

	lo, hi, found, scanErr := scanBracket(objective, tol.LowerVol, tol.UpperVol, berr.FLow)
	if scanErr != nil {
		return 0, scanErr
	}
	if !found {
		return 0, err
	}
	return Brent(objective, lo, hi, tol)
}

// scanBracket walks a geometric grid over (lo, hi) and returns the first
// interval on which f changes sign from fLo.
func scanBracket(f func(float64) (float64, error), lo, hi, fLo float64) (float64, float64, bool, error) {
	ratio := math.Pow(hi/lo, 1/float64(bracketScanPoints))
	prev := lo
	for i := 1; i < bracketScanPoints; i++ {
		x := lo * math.Pow(ratio, float64(i))
		fx, err := f(x)
		if err != nil {
			return 0, 0, false, err
		}
		if math.IsNaN(fx) {
			return 0, 0, false, &models.NumericalError{Stage: "bracket scan", Step: i, Value: fx}
		}
		if math.Signbit(fx) != math.Signbit(fLo) {
			return prev, x, true, nil
		}
		prev = x
	}
	return 0, 0, false, nil
}
