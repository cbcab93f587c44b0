// Package bsm holds the closed-form Black-Scholes-Merton prices and Greeks for
// European vanilla contracts. The numerical engines are cross-checked against
// it.
package bsm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/bcdannyboy/optpricer/models"
)

// Result holds the closed-form price and Greeks of a European vanilla option.
// Theta is per year, Vega per unit of volatility, Rho per unit of rate.
type Result struct {
	Price float64
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// Greeks converts r into the engine-wide Greeks map.
func (r Result) Greeks() models.Greeks {
	return models.Greeks{
		models.Delta: r.Delta,
		models.Gamma: r.Gamma,
		models.Theta: r.Theta,
		models.Vega:  r.Vega,
		models.Rho:   r.Rho,
	}
}

// Price returns the closed-form price of a European call or put.
func Price(c models.ContractSpec, m models.MarketParameters) (float64, error) {
	res, err := Calculate(c, m)
	if err != nil {
		return 0, err
	}
	return res.Price, nil
}

// Calculate returns the closed-form price and Greeks of a European call or put.
func Calculate(c models.ContractSpec, m models.MarketParameters) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}
	if err := m.Validate(); err != nil {
		return Result{}, err
	}
	if c.Exercise != models.European || (c.Kind != models.Call && c.Kind != models.Put) {
		return Result{}, fmt.Errorf("%w: closed form covers european calls and puts, got %s", models.ErrUnsupportedContract, c)
	}

	return calculateBSM(m.Spot, c.Strike, c.Maturity, m.Rate, m.DividendYield, m.Volatility, c.Kind == models.Call), nil
}

func calculateBSM(S, K, T, r, q, sigma float64, isCall bool) Result {
	dfR := math.Exp(-r * T)
	dfQ := math.Exp(-q * T)
	sqrtT := math.Sqrt(T)

	// A zero strike call is a prepaid forward.
	if K == 0 {
		if isCall {
			return Result{
				Price: S * dfQ,
				Delta: dfQ,
				Theta: q * S * dfQ,
			}
		}
		return Result{}
	}

	d1 := (math.Log(S/K) + (r-q+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	pdf := normPDF(d1)

	res := Result{
		Gamma: dfQ * pdf / (S * sigma * sqrtT),
		Vega:  S * dfQ * pdf * sqrtT,
	}

	if isCall {
		res.Price = S*dfQ*normCDF(d1) - K*dfR*normCDF(d2)
		res.Delta = dfQ * normCDF(d1)
		res.Theta = -S*dfQ*pdf*sigma/(2*sqrtT) - r*K*dfR*normCDF(d2) + q*S*dfQ*normCDF(d1)
		res.Rho = K * T * dfR * normCDF(d2)
	} else {
		res.Price = K*dfR*normCDF(-d2) - S*dfQ*normCDF(-d1)
		res.Delta = -dfQ * normCDF(-d1)
		res.Theta = -S*dfQ*pdf*sigma/(2*sqrtT) + r*K*dfR*normCDF(-d2) - q*S*dfQ*normCDF(-d1)
		res.Rho = -K * T * dfR * normCDF(-d2)
	}

	return res
}

// Pricer adapts the closed form to models.Pricer.
type Pricer struct{}

func (Pricer) Price(c models.ContractSpec, m models.MarketParameters) (models.PricingResult, error) {
	res, err := Calculate(c, m)
	if err != nil {
		return models.PricingResult{}, err
	}
	return models.PricingResult{
		Price:  res.Price,
		Method: models.MethodAnalytical,
		Greeks: res.Greeks(),
	}, nil
}

func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

func normPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
