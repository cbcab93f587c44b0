package models

// Greek names a price sensitivity.
type Greek string

const (
	Delta Greek = "delta"
	Gamma Greek = "gamma"
	Theta Greek = "theta"
	Vega  Greek = "vega"
	Rho   Greek = "rho"
)

// AllGreeks lists the supported sensitivities.
func AllGreeks() []Greek {
	return []Greek{Delta, Gamma, Theta, Vega, Rho}
}

// Greeks maps a Greek to its value. A missing key means "not computed".
type Greeks map[Greek]float64

// Method identifies the engine that produced a price.
const (
	MethodFiniteDifference = "finite_difference"
	MethodMonteCarlo       = "monte_carlo"
	MethodAnalytical       = "analytical"
)

// PricingResult is the output of one pricing call.
type PricingResult struct {
	Price         float64
	StandardError float64 // Monte Carlo only
	Paths         int     // simulated paths, 0 for grid and closed-form prices
	Method        string
	Greeks        Greeks
}

// HasStandardError reports whether StandardError carries a statistical error
// estimate.
func (r PricingResult) HasStandardError() bool {
	return r.Paths > 0
}

// Pricer prices a contract. Implementations must not retain their inputs and
// must return identical results for identical inputs.
type Pricer interface {
	Price(contract ContractSpec, market MarketParameters) (PricingResult, error)
}

// PricerFunc adapts a function to Pricer.
type PricerFunc func(ContractSpec, MarketParameters) (PricingResult, error)

func (f PricerFunc) Price(c ContractSpec, m MarketParameters) (PricingResult, error) {
	return f(c, m)
}
