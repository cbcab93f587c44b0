package cli

import (
	"github.com/spf13/cobra"

	"github.com/bcdannyboy/optpricer/models"
)

// contractFlags are the contract and market terms shared by the single
// contract commands.
type contractFlags struct {
	kind     string
	exercise string
	strike   float64
	maturity float64
	barrier  float64
	rebate   float64

	spot     float64
	rate     float64
	dividend float64
	vol      float64
}

func (f *contractFlags) register(cmd *cobra.Command, withVol bool) {
	flags := cmd.Flags()
	flags.StringVar(&f.kind, "kind", "call", "payoff: call, put, asian_call, asian_put, barrier_up_out, barrier_down_in, lookback_float")
	flags.StringVar(&f.exercise, "exercise", "european", "exercise style: european or american")
	flags.Float64Var(&f.strike, "strike", 100, "strike price")
	flags.Float64Var(&f.maturity, "maturity", 1, "time to expiry in years")
	flags.Float64Var(&f.barrier, "barrier", 0, "barrier level for barrier payoffs")
	flags.Float64Var(&f.rebate, "rebate", 0, "rebate paid at expiry when an up-and-out contract knocks out")
	f.registerMarket(cmd, withVol)
}

// registerMarket adds only the market flags.
func (f *contractFlags) registerMarket(cmd *cobra.Command, withVol bool) {
	flags := cmd.Flags()
	flags.Float64Var(&f.spot, "spot", 100, "underlying spot price")
	flags.Float64Var(&f.rate, "rate", 0.05, "continuously compounded risk-free rate")
	flags.Float64Var(&f.dividend, "dividend", 0, "continuous dividend yield")
	if withVol {
		flags.Float64Var(&f.vol, "vol", 0.2, "annualised volatility")
	}
}

func (f *contractFlags) contract() (models.ContractSpec, error) {
	kind, err := models.ParsePayoffKind(f.kind)
	if err != nil {
		return models.ContractSpec{}, err
	}
	exercise, err := models.ParseExerciseStyle(f.exercise)
	if err != nil {
		return models.ContractSpec{}, err
	}

	var opts []models.ContractOption
	if kind.IsBarrier() {
		opts = append(opts, models.WithBarrier(f.barrier), models.WithRebate(f.rebate))
	}
	return models.NewContractSpec(kind, f.strike, f.maturity, exercise, opts...)
}

func (f *contractFlags) market() (models.MarketParameters, error) {
	return models.NewMarketParameters(f.spot, f.rate, f.dividend, f.vol)
}

// marketWithoutVol is the market for commands that solve for volatility.
func (f *contractFlags) marketWithoutVol() (models.MarketParameters, error) {
	m := models.MarketParameters{Spot: f.spot, Rate: f.rate, DividendYield: f.dividend}
	if err := m.ValidateWithoutVolatility(); err != nil {
		return models.MarketParameters{}, err
	}
	return m, nil
}
