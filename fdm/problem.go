package fdm

import (
	"math"

	"github.com/bcdannyboy/optpricer/models"
)

// problem is a PDE on [sMin, sMax] with Dirichlet boundaries given as
// functions of time to maturity tau.
type problem struct {
	sMin, sMax float64
	terminal   func(s float64) float64
	lower      func(tau float64) float64
	upper      func(tau float64) float64
	exercise   func(s float64) float64 // nil for European exercise
}

// vanillaProblem is a call or put on [0, sMax].
func vanillaProblem(c models.ContractSpec, m models.MarketParameters, sMax float64) problem {
	american := c.Exercise == models.American
	k := c.Strike

	p := problem{
		sMin:     0,
		sMax:     sMax,
		terminal: func(s float64) float64 { return models.TerminalPayoff(c, s) },
	}

	if c.Kind == models.Call {
		p.lower = func(float64) float64 { return 0 }
		p.upper = func(tau float64) float64 {
			v := sMax*math.Exp(-m.DividendYield*tau) - k*math.Exp(-m.Rate*tau)
			if american {
				v = math.Max(v, sMax-k)
			}
			return v
		}
	} else {
		p.lower = func(tau float64) float64 {
			if american {
				return k
			}
			return k * math.Exp(-m.Rate*tau)
		}
		p.upper = func(float64) float64 { return 0 }
	}

	if american {
		p.exercise = func(s float64) float64 { return models.Intrinsic(c, s) }
	}
	return p
}

// upAndOutProblem truncates the grid at the barrier; the rebate is paid at
// expiry, so its value on the barrier is discounted from maturity.
func upAndOutProblem(c models.ContractSpec, m models.MarketParameters) problem {
	return problem{
		sMin:     0,
		sMax:     c.Barrier,
		terminal: func(s float64) float64 { return models.TerminalPayoff(c, s) },
		lower:    func(float64) float64 { return 0 },
		upper:    func(tau float64) float64 { return c.Rebate * math.Exp(-m.Rate*tau) },
	}
}

// downAndOutProblem is the knock-out leg of the down-and-in parity: a call
// that dies on the barrier.
func downAndOutProblem(c models.ContractSpec, m models.MarketParameters, sMax float64) problem {
	k := c.Strike
	return problem{
		sMin:     c.Barrier,
		sMax:     sMax,
		terminal: func(s float64) float64 { return math.Max(s-k, 0) },
		lower:    func(float64) float64 { return 0 },
		upper: func(tau float64) float64 {
			return sMax*math.Exp(-m.DividendYield*tau) - k*math.Exp(-m.Rate*tau)
		},
	}
}
