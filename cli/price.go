package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/bcdannyboy/optpricer/greeks"
	"github.com/bcdannyboy/optpricer/logging"
	"github.com/bcdannyboy/optpricer/models"
)

func newPriceCmd(app *App) *cobra.Command {
	var flags contractFlags
	var engine string
	var withGreeks bool

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price a single contract",
		Long: `Price a single contract with the finite difference solver (fd), the Monte
Carlo simulator (mc) or the Black-Scholes-Merton closed form (bsm).

The fd engine reports delta, gamma and theta from the grid. --greeks fills in
the rest by bump-and-reprice on the same engine.`,
		Example: `  optpricer price --kind put --strike 105 --exercise american
  optpricer price --engine mc --kind asian_call --maturity 0.5 --json
  optpricer price --kind barrier_up_out --barrier 130 --rebate 2 --greeks`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.contract()
			if err != nil {
				return err
			}
			m, err := flags.market()
			if err != nil {
				return err
			}

			log := logging.WithContract(logging.WithOperation(app.Logger, "price"), c)
			start := time.Now()
			res, err := app.price(cmd.Context(), engine, c, m, withGreeks)
			if err != nil {
				log.Warn().Err(err).Str("engine", engine).Msg("Pricing failed")
				return err
			}
			elapsed := time.Since(start)
			logging.LogResult(log, res, elapsed)

			app.record(cmd, c, m, res, elapsed)
			return printResult(NewOutput(cmd), newResultView(c, res, elapsed.Milliseconds()))
		},
	}

	flags.register(cmd, true)
	cmd.Flags().StringVar(&engine, "engine", EngineFD, "pricing engine: fd, mc or bsm")
	cmd.Flags().BoolVar(&withGreeks, "greeks", false, "compute every Greek, bumping where the engine reports none")
	return cmd
}

// price runs one engine. Monte Carlo runs honour ctx.
func (a *App) price(ctx context.Context, engine string, c models.ContractSpec, m models.MarketParameters, withGreeks bool) (models.PricingResult, error) {
	if engine == EngineMC && !withGreeks {
		sim, err := a.simulator()
		if err != nil {
			return models.PricingResult{}, err
		}
		return sim.Simulate(ctx, c, m)
	}

	pricer, err := a.pricer(engine)
	if err != nil {
		return models.PricingResult{}, err
	}
	if !withGreeks {
		return pricer.Price(c, m)
	}

	g, err := greeks.NewEngine(pricer, a.Config.Bumps(), greeks.WithLogger(a.Logger))
	if err != nil {
		return models.PricingResult{}, err
	}
	return g.PriceWithGreeks(c, m)
}

func newGreeksCmd(app *App) *cobra.Command {
	var flags contractFlags
	var engine string
	var names []string

	cmd := &cobra.Command{
		Use:   "greeks",
		Short: "Bump-and-reprice sensitivities",
		Long: `Compute Greeks by central finite differences around the base market, pricing
every bumped scenario through the same engine. Bump sizes come from the
[greeks] section of the configuration.`,
		Example: `  optpricer greeks --kind put --strike 95
  optpricer greeks --engine mc --names delta,vega --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.contract()
			if err != nil {
				return err
			}
			m, err := flags.market()
			if err != nil {
				return err
			}
			pricer, err := app.pricer(engine)
			if err != nil {
				return err
			}
			g, err := greeks.NewEngine(pricer, app.Config.Bumps(), greeks.WithLogger(app.Logger))
			if err != nil {
				return err
			}

			selected := make([]models.Greek, len(names))
			for i, n := range names {
				selected[i] = models.Greek(n)
			}

			log := logging.WithContract(logging.WithOperation(app.Logger, "greeks"), c)
			start := time.Now()
			values, err := g.Compute(c, m, selected...)
			if err != nil {
				log.Warn().Err(err).Msg("Greeks failed")
				return err
			}
			elapsed := time.Since(start)
			log.Info().Dur("elapsed", elapsed).Int("greeks", len(values)).Msg("Computed greeks")

			res := models.PricingResult{Method: engineMethod(engine), Greeks: values}
			app.record(cmd, c, m, res, elapsed)

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(greekView(values))
			}
			var rows [][]string
			for _, name := range models.AllGreeks() {
				if v, ok := values[name]; ok {
					rows = append(rows, []string{titleGreek(name), fixed(v, greekPlaces)})
				}
			}
			output.KeyValues(rows)
			return nil
		},
	}

	flags.register(cmd, true)
	cmd.Flags().StringVar(&engine, "engine", EngineFD, "pricing engine: fd, mc or bsm")
	cmd.Flags().StringSliceVar(&names, "names", nil, "greeks to compute (default all): delta, gamma, theta, vega, rho")
	return cmd
}

func engineMethod(engine string) string {
	switch engine {
	case EngineFD:
		return models.MethodFiniteDifference
	case EngineMC:
		return models.MethodMonteCarlo
	case EngineBSM:
		return models.MethodAnalytical
	}
	return engine
}
