package cli

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/bcdannyboy/optpricer/calibration"
	"github.com/bcdannyboy/optpricer/logging"
	"github.com/bcdannyboy/optpricer/models"
)

func newImpliedCmd(app *App) *cobra.Command {
	var flags contractFlags
	var engine string
	var marketPrice float64

	cmd := &cobra.Command{
		Use:   "implied",
		Short: "Solve for implied volatility",
		Long: `Find the volatility at which the chosen engine reproduces --price, by Brent's
method on the bracket [lower_vol, upper_vol] from the [calibration] section.
Prices outside the range the engine can produce over that bracket fail with
no bracket found.`,
		Example: `  optpricer implied --kind call --strike 100 --price 10.45
  optpricer implied --engine fd --kind put --exercise american --price 6.1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("price") {
				return fmt.Errorf("--price is required")
			}
			c, err := flags.contract()
			if err != nil {
				return err
			}
			m, err := flags.marketWithoutVol()
			if err != nil {
				return err
			}
			pricer, err := app.pricer(engine)
			if err != nil {
				return err
			}

			log := logging.WithContract(logging.WithOperation(app.Logger, "implied"), c)
			start := time.Now()
			vol, err := calibration.SolveImpliedVol(marketPrice, c, m, pricer, app.Config.Tolerances())
			if err != nil {
				log.Warn().Err(err).Float64("market_price", marketPrice).Msg("Implied volatility failed")
				return err
			}
			elapsed := time.Since(start)
			log.Info().Float64("implied_vol", vol).Dur("elapsed", elapsed).Msg("Solved implied volatility")

			m = m.WithVolatility(vol)
			app.record(cmd, c, m, models.PricingResult{Price: marketPrice, Method: engineMethod(engine)}, elapsed)

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"contract":     c.String(),
					"engine":       engine,
					"market_price": marketPrice,
					"implied_vol":  round(vol, volPlaces),
					"elapsed_ms":   elapsed.Milliseconds(),
				})
			}
			output.KeyValues([][]string{
				{"Contract", c.String()},
				{"Engine", engine},
				{"Market price", fixed(marketPrice, pricePlaces)},
				{"Implied vol", fixed(vol, volPlaces)},
			})
			return nil
		},
	}

	flags.register(cmd, false)
	cmd.Flags().StringVar(&engine, "engine", EngineBSM, "pricing engine: fd, mc or bsm")
	cmd.Flags().Float64Var(&marketPrice, "price", 0, "observed option price")
	return cmd
}

func newFitCmd(app *App) *cobra.Command {
	var flags contractFlags
	var engine, file string

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit one flat volatility to a file of quotes",
		Long: `Read quotes (kind, strike, maturity, exercise, price columns) from a CSV file
and find the single volatility minimising the squared pricing error across
them. Per-quote implied vols are reported alongside; quotes with no implied
vol show NaN and are left out of the starting guess.`,
		Example: `  optpricer fit --file quotes.csv --spot 100 --rate 0.05`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := loadBook(file)
			if err != nil {
				return err
			}
			m, err := flags.marketWithoutVol()
			if err != nil {
				return err
			}
			quotes := make([]calibration.Quote, len(rows))
			for i, r := range rows {
				c, err := r.contract()
				if err != nil {
					return fmt.Errorf("row %d: %w", i+1, err)
				}
				quotes[i] = calibration.Quote{Contract: c, Price: r.Price}
			}
			pricer, err := app.pricer(engine)
			if err != nil {
				return err
			}

			start := time.Now()
			fit, err := calibration.FitVolatility(quotes, m, pricer, app.Config.Tolerances())
			if err != nil {
				app.Logger.Warn().Err(err).Msg("Volatility fit failed")
				return err
			}
			app.Logger.Info().
				Float64("volatility", fit.Volatility).
				Float64("rmse", fit.RMSE).
				Int("quotes", len(quotes)).
				Dur("elapsed", time.Since(start)).
				Msg("Fitted volatility")

			output := NewOutput(cmd)
			if output.IsJSON() {
				ivs := make([]*float64, len(fit.ImpliedVols))
				for i, iv := range fit.ImpliedVols {
					if !math.IsNaN(iv) {
						v := round(iv, volPlaces)
						ivs[i] = &v
					}
				}
				return output.JSON(map[string]interface{}{
					"volatility":   round(fit.Volatility, volPlaces),
					"rmse":         fit.RMSE,
					"iterations":   fit.Iterations,
					"implied_vols": ivs,
				})
			}

			table := make([][]string, len(quotes))
			for i, q := range quotes {
				table[i] = []string{q.Contract.String(), fixed(q.Price, pricePlaces), fixed(fit.ImpliedVols[i], volPlaces)}
			}
			output.Table([]string{"Contract", "Price", "Implied vol"}, table)
			output.KeyValues([][]string{
				{"Fitted vol", fixed(fit.Volatility, volPlaces)},
				{"RMSE", fixed(fit.RMSE, greekPlaces)},
			})
			return nil
		},
	}

	flags.registerMarket(cmd, false)
	cmd.Flags().StringVar(&engine, "engine", EngineBSM, "pricing engine: fd, mc or bsm")
	cmd.Flags().StringVar(&file, "file", "", "CSV file of quotes")
	cmd.MarkFlagRequired("file")
	return cmd
}
