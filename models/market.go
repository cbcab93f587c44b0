package models

import "fmt"

// MarketParameters is a snapshot of the market inputs for one pricing call.
type MarketParameters struct {
	Spot          float64
	Rate          float64
	DividendYield float64
	Volatility    float64
}

// NewMarketParameters builds and validates a market snapshot.
func NewMarketParameters(spot, rate, dividendYield, volatility float64) (MarketParameters, error) {
	m := MarketParameters{
		Spot:          spot,
		Rate:          rate,
		DividendYield: dividendYield,
		Volatility:    volatility,
	}
	if err := m.Validate(); err != nil {
		return MarketParameters{}, err
	}
	return m, nil
}

// Validate checks every field.
func (m MarketParameters) Validate() error {
	if err := m.ValidateWithoutVolatility(); err != nil {
		return err
	}
	if !isFinite(m.Volatility) || m.Volatility <= 0 {
		return NewValidationError(ErrInvalidMarketParameters, "volatility", m.Volatility, "must be finite and positive")
	}
	return nil
}

// ValidateWithoutVolatility checks every field except volatility, for callers
// that supply the volatility themselves.
func (m MarketParameters) ValidateWithoutVolatility() error {
	if !isFinite(m.Spot) || m.Spot <= 0 {
		return NewValidationError(ErrInvalidMarketParameters, "spot", m.Spot, "must be finite and positive")
	}
	if !isFinite(m.Rate) {
		return NewValidationError(ErrInvalidMarketParameters, "rate", m.Rate, "must be finite")
	}
	if !isFinite(m.DividendYield) || m.DividendYield < 0 {
		return NewValidationError(ErrInvalidMarketParameters, "dividend_yield", m.DividendYield, "must be finite and non-negative")
	}
	return nil
}

// WithVolatility returns a copy with the volatility replaced.
func (m MarketParameters) WithVolatility(vol float64) MarketParameters {
	m.Volatility = vol
	return m
}

// WithSpot returns a copy with the spot replaced.
func (m MarketParameters) WithSpot(spot float64) MarketParameters {
	m.Spot = spot
	return m
}

// WithRate returns a copy with the rate replaced.
func (m MarketParameters) WithRate(rate float64) MarketParameters {
	m.Rate = rate
	return m
}

func (m MarketParameters) String() string {
	return fmt.Sprintf("S=%g r=%g q=%g vol=%g", m.Spot, m.Rate, m.DividendYield, m.Volatility)
}
