package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bcdannyboy/optpricer/logging"
	"github.com/bcdannyboy/optpricer/probability"
)

func newRiskCmd(app *App) *cobra.Command {
	var flags contractFlags
	var premium float64

	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Value at risk of holding a contract to expiry",
		Long: `Simulate the contract with the Monte Carlo settings and report the holder's
discounted P&L distribution: mean, standard deviation, and 95%/99% value at
risk and expected shortfall, as positive losses. The premium paid defaults to
the simulated fair value.`,
		Example: `  optpricer risk --kind put --strike 95
  optpricer risk --kind call --premium 12.5 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.contract()
			if err != nil {
				return err
			}
			m, err := flags.market()
			if err != nil {
				return err
			}
			sim, err := app.simulator()
			if err != nil {
				return err
			}

			log := logging.WithContract(logging.WithOperation(app.Logger, "risk"), c)
			start := time.Now()
			if !cmd.Flags().Changed("premium") {
				fair, err := sim.Simulate(cmd.Context(), c, m)
				if err != nil {
					return err
				}
				premium = fair.Price
			}
			report, err := sim.Risk(cmd.Context(), c, m, premium)
			if err != nil {
				log.Warn().Err(err).Msg("Risk simulation failed")
				return err
			}
			log.Info().
				Float64("var95", report.VaR95).
				Float64("es95", report.ES95).
				Int("scenarios", report.Scenarios).
				Dur("elapsed", time.Since(start)).
				Msg("Simulated risk")

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(riskView(report))
			}
			output.KeyValues([][]string{
				{"Contract", c.String()},
				{"Premium", fixed(report.Premium, pricePlaces)},
				{"Mean P&L", fixed(report.MeanPnL, pricePlaces)},
				{"Std P&L", fixed(report.StdPnL, pricePlaces)},
				{"VaR 95%", fixed(report.VaR95, pricePlaces)},
				{"VaR 99%", fixed(report.VaR99, pricePlaces)},
				{"ES 95%", fixed(report.ES95, pricePlaces)},
				{"ES 99%", fixed(report.ES99, pricePlaces)},
				{"Scenarios", fmt.Sprint(report.Scenarios)},
			})
			return nil
		},
	}

	flags.register(cmd, true)
	cmd.Flags().Float64Var(&premium, "premium", 0, "premium paid (default: simulated fair value)")
	return cmd
}

func riskView(r probability.RiskReport) map[string]interface{} {
	return map[string]interface{}{
		"premium":   round(r.Premium, pricePlaces),
		"mean_pnl":  round(r.MeanPnL, pricePlaces),
		"std_pnl":   round(r.StdPnL, pricePlaces),
		"var_95":    round(r.VaR95, pricePlaces),
		"var_99":    round(r.VaR99, pricePlaces),
		"es_95":     round(r.ES95, pricePlaces),
		"es_99":     round(r.ES99, pricePlaces),
		"scenarios": r.Scenarios,
	}
}
