// Package store journals pricing runs so results can be listed and compared
// later. It sits outside the pricing engines, which never touch it.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bcdannyboy/optpricer/models"
)

// RunStore persists pricing runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
	Close() error
}

// Run is one recorded pricing call.
type Run struct {
	ID        string
	Timestamp time.Time
	Command   string // price, implied, greeks, risk, batch
	Method    string

	Kind     string
	Strike   float64
	Maturity float64
	Exercise string
	Barrier  float64
	Rebate   float64

	Spot          float64
	Rate          float64
	DividendYield float64
	Volatility    float64

	Price         float64
	StandardError float64
	Paths         int
	Greeks        models.Greeks
	Elapsed       time.Duration
}

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	Command string
	Method  string
	Kind    string
	Since   time.Time
	Limit   int
}

// NewRun records a pricing result with a fresh ID.
func NewRun(command string, c models.ContractSpec, m models.MarketParameters, res models.PricingResult, elapsed time.Duration) *Run {
	return &Run{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Command:       command,
		Method:        res.Method,
		Kind:          c.Kind.String(),
		Strike:        c.Strike,
		Maturity:      c.Maturity,
		Exercise:      c.Exercise.String(),
		Barrier:       c.Barrier,
		Rebate:        c.Rebate,
		Spot:          m.Spot,
		Rate:          m.Rate,
		DividendYield: m.DividendYield,
		Volatility:    m.Volatility,
		Price:         res.Price,
		StandardError: res.StandardError,
		Paths:         res.Paths,
		Greeks:        res.Greeks,
		Elapsed:       elapsed,
	}
}
