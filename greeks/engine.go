// Package greeks computes sensitivities by bump-and-reprice on any pricer.
//
// Every bumped price goes through the same models.Pricer as the base price.
// For a seeded Monte Carlo pricer this reuses the random numbers of the base
// run, so differences measure the sensitivity rather than simulation noise.
package greeks

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/bcdannyboy/optpricer/models"
)

// gridPricer is a pricer that discretises the spot axis. Its reported Greeks
// are read off the grid, and spot bumps are taken in whole cells of a grid
// held fixed at the base spot.
type gridPricer interface {
	models.Pricer
	Anchored(c models.ContractSpec, m models.MarketParameters) (models.Pricer, float64)
}

// Engine bumps and reprices through a fixed pricer.
type Engine struct {
	pricer models.Pricer
	bumps  Bumps
	log    zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func NewEngine(pricer models.Pricer, bumps Bumps, opts ...Option) (*Engine, error) {
	if pricer == nil {
		return nil, fmt.Errorf("greeks: nil pricer")
	}
	if err := bumps.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{pricer: pricer, bumps: bumps, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Compute returns the requested Greeks, or all of them when names is empty.
func (e *Engine) Compute(c models.ContractSpec, m models.MarketParameters, names ...models.Greek) (models.Greeks, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names = models.AllGreeks()
	}

	return e.computeFrom(e.newRepricer(c, m), names)
}

func (e *Engine) newRepricer(c models.ContractSpec, m models.MarketParameters) *repricer {
	r := &repricer{
		pricer:     e.pricer,
		spotPricer: e.pricer,
		contract:   c,
		market:     m,
		spotStep:   e.bumps.SpotRelative * m.Spot,
	}
	if g, ok := e.pricer.(gridPricer); ok {
		anchored, ds := g.Anchored(c, m)
		r.spotPricer = anchored
		r.onGrid = true
		if ds > 0 {
			if h := math.Ceil(r.spotStep/ds) * ds; h < m.Spot {
				r.spotStep = h
			}
		}
	}
	return r
}

func (e *Engine) computeFrom(r *repricer, names []models.Greek) (models.Greeks, error) {
	out := make(models.Greeks, len(names))
	for _, name := range names {
		v, err := e.compute(r, name)
		if err != nil {
			return nil, models.Wrapf(err, "greeks: %s", name)
		}
		out[name] = v
	}

	e.log.Debug().
		Str("contract", r.contract.String()).
		Bool("grid", r.onGrid).
		Float64("spot_step", r.spotStep).
		Int("reprices", r.calls).
		Msg("bumped greeks")
	return out, nil
}

// PriceWithGreeks prices through the engine's pricer and fills in every Greek
// the pricer did not report itself.
func (e *Engine) PriceWithGreeks(c models.ContractSpec, m models.MarketParameters) (models.PricingResult, error) {
	res, err := e.pricer.Price(c, m)
	if err != nil {
		return models.PricingResult{}, err
	}

	var missing []models.Greek
	for _, name := range models.AllGreeks() {
		if _, ok := res.Greeks[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return res, nil
	}

	r := e.newRepricer(c, m)
	r.baseResult = &res
	bumped, err := e.computeFrom(r, missing)
	if err != nil {
		return models.PricingResult{}, err
	}
	greeks := make(models.Greeks, len(models.AllGreeks()))
	for k, v := range res.Greeks {
		greeks[k] = v
	}
	for k, v := range bumped {
		greeks[k] = v
	}
	res.Greeks = greeks
	return res, nil
}

func (e *Engine) compute(r *repricer, name models.Greek) (float64, error) {
	if r.onGrid {
		base, err := r.result()
		if err != nil {
			return 0, err
		}
		if v, ok := base.Greeks[name]; ok {
			return v, nil
		}
	}

	m := r.market
	switch name {
	case models.Delta:
		h := r.spotStep
		up, down, err := r.spotPair()
		if err != nil {
			return 0, err
		}
		return (up - down) / (2 * h), nil

	case models.Gamma:
		h := r.spotStep
		up, down, err := r.spotPair()
		if err != nil {
			return 0, err
		}
		base, err := r.base()
		if err != nil {
			return 0, err
		}
		return (up - 2*base + down) / (h * h), nil

	case models.Vega:
		h := e.bumps.Volatility
		up, err := r.price(m.WithVolatility(m.Volatility+h), r.contract)
		if err != nil {
			return 0, err
		}
		// Forward difference when a down bump would not leave a positive vol.
		if m.Volatility <= h {
			base, err := r.base()
			if err != nil {
				return 0, err
			}
			return (up - base) / h, nil
		}
		down, err := r.price(m.WithVolatility(m.Volatility-h), r.contract)
		if err != nil {
			return 0, err
		}
		return (up - down) / (2 * h), nil

	case models.Rho:
		h := e.bumps.Rate
		up, err := r.price(m.WithRate(m.Rate+h), r.contract)
		if err != nil {
			return 0, err
		}
		down, err := r.price(m.WithRate(m.Rate-h), r.contract)
		if err != nil {
			return 0, err
		}
		return (up - down) / (2 * h), nil

	case models.Theta:
		dt := math.Min(e.bumps.Time, 0.5*r.contract.Maturity)
		later := r.contract
		later.Maturity -= dt
		next, err := r.price(m, later)
		if err != nil {
			return 0, err
		}
		base, err := r.base()
		if err != nil {
			return 0, err
		}
		return (next - base) / dt, nil
	}
	return 0, fmt.Errorf("unknown greek %q", name)
}

// repricer memoises the base and spot-bumped prices shared between Greeks.
// Spot bumps go through spotPricer, which shares the base price's grid.
type repricer struct {
	pricer, spotPricer models.Pricer
	contract           models.ContractSpec
	market             models.MarketParameters
	spotStep           float64
	onGrid             bool
	calls              int

	baseResult       *models.PricingResult
	spotUp, spotDown *float64
}

func (r *repricer) priceWith(p models.Pricer, m models.MarketParameters, c models.ContractSpec) (float64, error) {
	r.calls++
	res, err := p.Price(c, m)
	if err != nil {
		return 0, err
	}
	return res.Price, nil
}

func (r *repricer) price(m models.MarketParameters, c models.ContractSpec) (float64, error) {
	return r.priceWith(r.pricer, m, c)
}

func (r *repricer) result() (models.PricingResult, error) {
	if r.baseResult == nil {
		r.calls++
		res, err := r.pricer.Price(r.contract, r.market)
		if err != nil {
			return models.PricingResult{}, err
		}
		r.baseResult = &res
	}
	return *r.baseResult, nil
}

func (r *repricer) base() (float64, error) {
	res, err := r.result()
	if err != nil {
		return 0, err
	}
	return res.Price, nil
}

func (r *repricer) spotPair() (float64, float64, error) {
	if r.spotUp == nil {
		h := r.spotStep
		up, err := r.priceWith(r.spotPricer, r.market.WithSpot(r.market.Spot+h), r.contract)
		if err != nil {
			return 0, 0, err
		}
		down, err := r.priceWith(r.spotPricer, r.market.WithSpot(r.market.Spot-h), r.contract)
		if err != nil {
			return 0, 0, err
		}
		r.spotUp, r.spotDown = &up, &down
	}
	return *r.spotUp, *r.spotDown, nil
}
