// Package probability prices contracts by Monte Carlo simulation of
// risk-neutral geometric Brownian motion, and derives P&L risk measures from
// the same simulated scenarios.
package probability

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/bcdannyboy/optpricer/logging"
	"github.com/bcdannyboy/optpricer/models"
)

// Simulator is a Monte Carlo pricer with a fixed configuration. It holds no
// mutable state and is safe for concurrent use.
type Simulator struct {
	cfg SimConfig
	log zerolog.Logger
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger attaches a logger; runs are logged at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Simulator) { s.log = l }
}

func NewSimulator(cfg SimConfig, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulator{cfg: cfg, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Simulate prices contract under market with cfg.
func Simulate(contract models.ContractSpec, market models.MarketParameters, cfg SimConfig) (models.PricingResult, error) {
	s, err := NewSimulator(cfg)
	if err != nil {
		return models.PricingResult{}, err
	}
	return s.Simulate(context.Background(), contract, market)
}

// Config returns the simulator's configuration.
func (s *Simulator) Config() SimConfig {
	return s.cfg
}

// Price implements models.Pricer. Identical inputs give identical draws, so
// bumped reprices share random numbers with the base price.
func (s *Simulator) Price(contract models.ContractSpec, market models.MarketParameters) (models.PricingResult, error) {
	return s.Simulate(context.Background(), contract, market)
}

// Simulate estimates the discounted expected payoff and its standard error.
func (s *Simulator) Simulate(ctx context.Context, contract models.ContractSpec, market models.MarketParameters) (models.PricingResult, error) {
	start := time.Now()
	log := s.logger(ctx)

	blocks, err := s.run(ctx, contract, market, false)
	if err != nil {
		log.Debug().Err(err).Str("contract", contract.String()).Msg("monte carlo run failed")
		return models.PricingResult{}, err
	}

	total := combine(blocks)
	df := math.Exp(-market.Rate * contract.Maturity)
	mean, stdErr := total.mean, total.standardError()
	if s.cfg.ControlVariate {
		forward := market.Spot * math.Exp((market.Rate-market.DividendYield)*contract.Maturity)
		mean, stdErr = total.controlled(forward)
	}

	res := models.PricingResult{
		Price:         df * mean,
		StandardError: df * stdErr,
		Paths:         s.pathCount(),
		Method:        models.MethodMonteCarlo,
	}

	if math.IsNaN(res.Price) || math.IsInf(res.Price, 0) {
		return models.PricingResult{}, &models.NumericalError{Stage: "monte carlo mean", Value: res.Price}
	}

	log.Debug().
		Str("contract", contract.String()).
		Int("paths", res.Paths).
		Int("blocks", len(blocks)).
		Float64("price", res.Price).
		Float64("std_err", res.StandardError).
		Dur("elapsed", time.Since(start)).
		Msg("monte carlo run")

	return res, nil
}

// logger prefers a logger carried by ctx over the one set with WithLogger.
func (s *Simulator) logger(ctx context.Context) zerolog.Logger {
	return logging.FromContextOr(ctx, s.log)
}

func (s *Simulator) pathCount() int {
	if s.cfg.Antithetic {
		return 2 * s.cfg.samples()
	}
	return s.cfg.Paths
}

// run validates the inputs and simulates every block. With keep set, each
// block also returns its per-path undiscounted payoffs.
func (s *Simulator) run(ctx context.Context, contract models.ContractSpec, market models.MarketParameters, keep bool) ([]blockResult, error) {
	if err := contract.Validate(); err != nil {
		return nil, err
	}
	if err := market.Validate(); err != nil {
		return nil, err
	}
	if contract.Exercise == models.American {
		return nil, fmt.Errorf("%w: monte carlo does not price early exercise", models.ErrUnsupportedContract)
	}
	if err := s.cfg.ValidateFor(contract); err != nil {
		return nil, err
	}

	samples := s.cfg.samples()
	size := s.cfg.BlockSize
	nBlocks := (samples + size - 1) / size
	results := make([]blockResult, nBlocks)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.workers())

	for b := 0; b < nBlocks; b++ {
		b := b
		lo := b * size
		hi := lo + size
		if hi > samples {
			hi = samples
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			batch := newPathBatch(contract, market, s.cfg, hi-lo, keep)
			batch.fill(blockStream(s.cfg.Seed, b))
			results[b] = batch.summarize()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// blockStream derives an independent PCG stream for block b.
func blockStream(seed uint64, b int) *rand.Rand {
	return rand.New(rand.NewSource(splitmix64(seed + uint64(b))))
}

// splitmix64 scrambles consecutive seeds so that neighbouring blocks start
// from unrelated generator states.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// pathBatch owns the buffers of one block of simulated paths.
type pathBatch struct {
	contract   models.ContractSpec
	pathwise   bool
	antithetic bool
	steps      int
	spot       float64
	drift      float64
	diffusion  float64

	path, mirror []float64
	samples      []float64 // one estimate per sample (pair average when antithetic)
	controls     []float64 // terminal spot per sample, nil without a control variate
	scenarios    []float64 // every path's payoff, kept for risk measures
	keep         bool
}

func newPathBatch(c models.ContractSpec, m models.MarketParameters, cfg SimConfig, n int, keep bool) *pathBatch {
	steps := 1
	if c.Kind.IsPathDependent() {
		steps = cfg.Steps
	}
	dt := c.Maturity / float64(steps)

	b := &pathBatch{
		contract:   c,
		pathwise:   c.Kind.IsPathDependent(),
		antithetic: cfg.Antithetic,
		steps:      steps,
		spot:       m.Spot,
		drift:      (m.Rate - m.DividendYield - 0.5*m.Volatility*m.Volatility) * dt,
		diffusion:  m.Volatility * math.Sqrt(dt),
		path:       make([]float64, steps+1),
		mirror:     make([]float64, steps+1),
		samples:    make([]float64, n),
		keep:       keep,
	}
	if cfg.ControlVariate {
		b.controls = make([]float64, n)
	}
	if keep {
		perSample := 1
		if cfg.Antithetic {
			perSample = 2
		}
		b.scenarios = make([]float64, 0, n*perSample)
	}
	return b
}

func (b *pathBatch) fill(rng *rand.Rand) {
	for i := range b.samples {
		b.path[0], b.mirror[0] = b.spot, b.spot
		for t := 1; t <= b.steps; t++ {
			z := rng.NormFloat64()
			b.path[t] = b.path[t-1] * math.Exp(b.drift+b.diffusion*z)
			if b.antithetic {
				b.mirror[t] = b.mirror[t-1] * math.Exp(b.drift-b.diffusion*z)
			}
		}

		v, x := b.payoff(b.path), b.path[b.steps]
		if b.keep {
			b.scenarios = append(b.scenarios, v)
		}
		if b.antithetic {
			w := b.payoff(b.mirror)
			if b.keep {
				b.scenarios = append(b.scenarios, w)
			}
			v = 0.5 * (v + w)
			x = 0.5 * (x + b.mirror[b.steps])
		}
		b.samples[i] = v
		if b.controls != nil {
			b.controls[i] = x
		}
	}
}

func (b *pathBatch) payoff(path []float64) float64 {
	if b.pathwise {
		return models.Payoff(b.contract, path)
	}
	return models.TerminalPayoff(b.contract, path[b.steps])
}

func (b *pathBatch) summarize() blockResult {
	r := blockResult{n: len(b.samples), scenarios: b.scenarios}
	switch r.n {
	case 0:
	case 1:
		r.mean = b.samples[0]
		if b.controls != nil {
			r.meanX = b.controls[0]
		}
	default:
		n1 := float64(r.n - 1)
		mean, variance := stat.MeanVariance(b.samples, nil)
		r.mean, r.m2 = mean, variance*n1
		if b.controls != nil {
			meanX, varX := stat.MeanVariance(b.controls, nil)
			r.meanX, r.m2x = meanX, varX*n1
			r.cxy = stat.Covariance(b.samples, b.controls, nil) * n1
		}
	}
	return r
}

// blockResult is the running moments of one block: the payoff samples and,
// with a control variate, the terminal spots X and their co-moment.
type blockResult struct {
	n         int
	mean      float64
	m2        float64 // sum of squared deviations from mean
	meanX     float64
	m2x       float64
	cxy       float64 // sum of cross deviations of payoff and X
	scenarios []float64
}

// combine merges block moments in block order, which keeps the result
// independent of how blocks were scheduled.
func combine(blocks []blockResult) blockResult {
	var acc blockResult
	for _, b := range blocks {
		if b.n == 0 {
			continue
		}
		if acc.n == 0 {
			acc = b
			acc.scenarios = nil
			continue
		}
		n := acc.n + b.n
		w := float64(acc.n) * float64(b.n) / float64(n)
		delta := b.mean - acc.mean
		deltaX := b.meanX - acc.meanX

		acc.mean += delta * float64(b.n) / float64(n)
		acc.meanX += deltaX * float64(b.n) / float64(n)
		acc.m2 += b.m2 + delta*delta*w
		acc.m2x += b.m2x + deltaX*deltaX*w
		acc.cxy += b.cxy + delta*deltaX*w
		acc.n = n
	}
	return acc
}

func (r blockResult) standardError() float64 {
	if r.n < 2 {
		return 0
	}
	variance := r.m2 / float64(r.n-1)
	return math.Sqrt(variance / float64(r.n))
}

// controlled returns the control-variate estimate of the mean payoff given
// the known mean of X, and its standard error from the regression residual.
func (r blockResult) controlled(meanX float64) (float64, float64) {
	if r.n < 3 || !(r.m2x > 0) {
		return r.mean, r.standardError()
	}
	beta := r.cxy / r.m2x
	residual := math.Max(r.m2-beta*r.cxy, 0)
	return r.mean - beta*(r.meanX-meanX), math.Sqrt(residual / float64(r.n-2) / float64(r.n))
}
