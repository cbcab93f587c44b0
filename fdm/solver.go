// Package fdm prices contracts by solving the Black-Scholes PDE on a
// space-time grid with a theta scheme. American contracts are handled by
// projecting onto the exercise value after every implicit step.
package fdm

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/bcdannyboy/optpricer/models"
)

// Solver is a finite-difference pricer with a fixed grid configuration.
type Solver struct {
	cfg    GridConfig
	log    zerolog.Logger
	anchor float64 // spot the domain is laid out for; 0 follows the priced spot
}

// Option configures a Solver.
type Option func(*Solver)

// WithLogger attaches a logger; solves are logged at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Solver) { s.log = l }
}

// NewSolver validates cfg and returns a solver using it.
func NewSolver(cfg GridConfig, opts ...Option) (*Solver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Solver{cfg: cfg, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Solve prices contract under market on a grid described by cfg.
func Solve(contract models.ContractSpec, market models.MarketParameters, cfg GridConfig) (models.PricingResult, error) {
	s, err := NewSolver(cfg)
	if err != nil {
		return models.PricingResult{}, err
	}
	return s.Solve(contract, market)
}

// Price implements models.Pricer.
func (s *Solver) Price(contract models.ContractSpec, market models.MarketParameters) (models.PricingResult, error) {
	return s.Solve(contract, market)
}

// Solve prices contract under market.
func (s *Solver) Solve(contract models.ContractSpec, market models.MarketParameters) (models.PricingResult, error) {
	if err := contract.Validate(); err != nil {
		return models.PricingResult{}, err
	}
	if err := market.Validate(); err != nil {
		return models.PricingResult{}, err
	}

	start := time.Now()
	var (
		price  float64
		greeks models.Greeks
		err    error
	)

	switch contract.Kind {
	case models.Call, models.Put:
		price, greeks, err = s.solveAt(vanillaProblem(contract, market, s.upperBound(contract, market)), contract, market)
	case models.BarrierUpOut:
		price, greeks, err = s.solveUpAndOut(contract, market)
	case models.BarrierDownIn:
		price, greeks, err = s.solveDownAndIn(contract, market)
	case models.AsianCall, models.AsianPut, models.LookbackFloat:
		err = fmt.Errorf("%w: finite differences cannot price path-dependent %s payoffs", models.ErrUnsupportedContract, contract.Kind)
	default:
		err = fmt.Errorf("%w: %s", models.ErrUnsupportedContract, contract.Kind)
	}
	if err != nil {
		s.log.Debug().Err(err).Str("contract", contract.String()).Msg("finite difference solve failed")
		return models.PricingResult{}, err
	}

	s.log.Debug().
		Str("contract", contract.String()).
		Int("space_steps", s.cfg.SpaceSteps).
		Int("time_steps", s.cfg.TimeSteps).
		Float64("price", price).
		Dur("elapsed", time.Since(start)).
		Msg("finite difference solve")

	return models.PricingResult{
		Price:  price,
		Method: models.MethodFiniteDifference,
		Greeks: greeks,
	}, nil
}

// Anchored returns a copy of the solver whose grid stays where it is laid out
// for m.Spot, whatever spot it later prices at, together with that grid's
// spot spacing for c. Spot bumps taken in whole cells on the anchored grid
// difference the same nodes the base price is read from.
func (s *Solver) Anchored(c models.ContractSpec, m models.MarketParameters) (models.Pricer, float64) {
	a := *s
	a.anchor = m.Spot
	return &a, a.spacing(c, m)
}

// upperBound is the top of the spot axis for contracts not truncated by a
// barrier.
func (s *Solver) upperBound(c models.ContractSpec, m models.MarketParameters) float64 {
	spot := m.Spot
	if s.anchor > 0 {
		spot = s.anchor
	}
	return s.cfg.DomainMultiple * math.Max(c.Strike, spot)
}

// spacing is the node spacing of the grid c is solved on. A down-and-in is
// solved on two grids; the coarser vanilla grid is reported.
func (s *Solver) spacing(c models.ContractSpec, m models.MarketParameters) float64 {
	top := s.upperBound(c, m)
	if c.Kind == models.BarrierUpOut {
		top = c.Barrier
	}
	return top / float64(s.cfg.SpaceSteps)
}

func (s *Solver) solveAt(p problem, contract models.ContractSpec, market models.MarketParameters) (float64, models.Greeks, error) {
	g, err := s.step(p, contract.Maturity, market)
	if err != nil {
		return 0, nil, err
	}
	return g.priceAt(market.Spot), g.greeksAt(market.Spot), nil
}

func (s *Solver) solveUpAndOut(c models.ContractSpec, m models.MarketParameters) (float64, models.Greeks, error) {
	if m.Spot >= c.Barrier {
		return c.Rebate * math.Exp(-m.Rate*c.Maturity), s.flatGreeks(c.Rebate * m.Rate * math.Exp(-m.Rate*c.Maturity)), nil
	}
	return s.solveAt(upAndOutProblem(c, m), c, m)
}

// solveDownAndIn uses in-out parity: down-and-in = vanilla - down-and-out.
func (s *Solver) solveDownAndIn(c models.ContractSpec, m models.MarketParameters) (float64, models.Greeks, error) {
	vanilla := c
	vanilla.Kind = models.Call
	vanilla.Barrier = 0

	vPrice, vGreeks, err := s.solveAt(vanillaProblem(vanilla, m, s.upperBound(vanilla, m)), vanilla, m)
	if err != nil {
		return 0, nil, err
	}
	if m.Spot <= c.Barrier {
		return vPrice, vGreeks, nil
	}

	oPrice, oGreeks, err := s.solveAt(downAndOutProblem(c, m, s.upperBound(c, m)), c, m)
	if err != nil {
		return 0, nil, err
	}

	var greeks models.Greeks
	if vGreeks != nil {
		greeks = make(models.Greeks, len(vGreeks))
		for name, v := range vGreeks {
			greeks[name] = v - oGreeks[name]
		}
	}
	return vPrice - oPrice, greeks, nil
}

func (s *Solver) flatGreeks(theta float64) models.Greeks {
	if !s.cfg.ComputeGreeks {
		return nil
	}
	return models.Greeks{models.Delta: 0, models.Gamma: 0, models.Theta: theta}
}

// step marches the PDE from maturity back to today.
func (s *Solver) step(p problem, maturity float64, m models.MarketParameters) (*priceGrid, error) {
	n := s.cfg.SpaceSteps
	nt := s.cfg.TimeSteps

	spots := make([]float64, n+1)
	floats.Span(spots, p.sMin, p.sMax)
	ds := (p.sMax - p.sMin) / float64(n)
	dt := maturity / float64(nt)

	a, b, c := operator(spots, ds, m)

	v := make([]float64, n+1)
	v[0] = p.lower(0)
	v[n] = p.upper(0)
	for i := 1; i < n; i++ {
		v[i] = p.terminal(spots[i])
	}

	sys := newTridiagonal(n - 1)
	rhs := make([]float64, n-1)
	var next []float64

	for step := 1; step <= nt; step++ {
		if step == nt && s.cfg.ComputeGreeks {
			next = make([]float64, n+1)
			copy(next, v)
		}

		theta := s.cfg.Theta
		if step <= s.cfg.SmoothingSteps {
			theta = 1
		}
		tau := float64(step) * dt
		lo, hi := p.lower(tau), p.upper(tau)

		for i := 1; i < n; i++ {
			k := i - 1
			explicit := a[i]*v[i-1] + b[i]*v[i] + c[i]*v[i+1]
			rhs[k] = v[i] + (1-theta)*dt*explicit
			sys.set(k, -theta*dt*a[i], 1-theta*dt*b[i], -theta*dt*c[i])
		}
		rhs[0] += theta * dt * a[1] * lo
		rhs[n-2] += theta * dt * c[n-1] * hi

		if err := sys.solve(rhs); err != nil {
			return nil, stepError(err, step)
		}
		copy(v[1:n], rhs)
		v[0], v[n] = lo, hi

		if p.exercise != nil {
			for i := range v {
				v[i] = math.Max(v[i], p.exercise(spots[i]))
			}
		}

		for i, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, &models.NumericalError{Stage: "time step", Step: step, Node: i, Value: x}
			}
		}
	}

	return &priceGrid{spots: spots, values: v, next: next, ds: ds, dt: dt}, nil
}

func stepError(err error, step int) error {
	var nerr *models.NumericalError
	if errors.As(err, &nerr) {
		nerr.Step = step
	}
	return err
}

// operator discretises 0.5σ²S²V'' + (r-q)SV' - rV as a·V[i-1] + b·V[i] + c·V[i+1].
// Central differences are used unless they would make an off-diagonal
// negative, in which case the drift term is upwinded.
func operator(spots []float64, ds float64, m models.MarketParameters) (a, b, c []float64) {
	n := len(spots)
	a = make([]float64, n)
	b = make([]float64, n)
	c = make([]float64, n)

	sigma2 := m.Volatility * m.Volatility
	carry := m.Rate - m.DividendYield

	for i, s := range spots {
		diffusion := 0.5 * sigma2 * s * s / (ds * ds)
		drift := carry * s / ds

		a[i] = diffusion - 0.5*drift
		c[i] = diffusion + 0.5*drift
		if a[i] < 0 || c[i] < 0 {
			if drift >= 0 {
				a[i], c[i] = diffusion, diffusion+drift
			} else {
				a[i], c[i] = diffusion-drift, diffusion
			}
		}
		b[i] = -(a[i] + c[i]) - m.Rate
	}
	return a, b, c
}
