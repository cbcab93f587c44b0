package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bcdannyboy/optpricer/volatility"
)

func newHVolCmd(app *App) *cobra.Command {
	var file, estimator string
	var term, garch bool

	cmd := &cobra.Command{
		Use:   "hvol",
		Short: "Historical volatility from daily bars",
		Long: `Estimate annualised volatility from a CSV of daily bars (date, open, high,
low, close and optional volume columns, oldest first).

Estimators: close_to_close, parkinson, garman_klass, rogers_satchell and
yang_zhang. Without --estimator every estimator is reported. --term reports
each estimator over the 1w, 1m, 3m, 6m and 1y windows the history covers.
--garch fits GARCH(1,1) to the close-to-close returns and reports the
one-day-ahead forecast alongside the long-run level.`,
		Example: `  optpricer hvol --file spy.csv
  optpricer hvol --file spy.csv --estimator yang_zhang --term --json
  optpricer hvol --file spy.csv --garch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bars, err := volatility.LoadBarsFile(file)
			if err != nil {
				return err
			}

			estimators := volatility.Estimators()
			if estimator != "" {
				e, err := volatility.ParseEstimator(estimator)
				if err != nil {
					return err
				}
				estimators = []volatility.Estimator{e}
			}
			app.Logger.Debug().Int("bars", len(bars)).Int("estimators", len(estimators)).Msg("estimating volatility")

			output := NewOutput(cmd)
			if garch {
				return printGARCH(output, bars)
			}
			if term {
				return printTerm(output, bars, estimators)
			}

			values := make(map[string]float64, len(estimators))
			var rows [][]string
			for _, e := range estimators {
				v, err := volatility.Estimate(bars, e)
				if err != nil {
					return err
				}
				values[string(e)] = round(v, volPlaces)
				rows = append(rows, []string{string(e), fixed(v, volPlaces)})
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"bars":       len(bars),
					"volatility": values,
				})
			}
			output.Table([]string{"Estimator", fmt.Sprintf("Vol (%d bars)", len(bars))}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "CSV file of daily bars")
	cmd.Flags().StringVar(&estimator, "estimator", "", "single estimator to report")
	cmd.Flags().BoolVar(&term, "term", false, "report volatility per look-back window")
	cmd.Flags().BoolVar(&garch, "garch", false, "fit GARCH(1,1) and forecast next-day volatility")
	cmd.MarkFlagsMutuallyExclusive("garch", "term")
	cmd.MarkFlagRequired("file")
	return cmd
}

func printTerm(output *Output, bars volatility.History, estimators []volatility.Estimator) error {
	terms := make(map[string]map[string]float64, len(estimators))
	for _, e := range estimators {
		t, err := volatility.Term(bars, e)
		if err != nil {
			return err
		}
		for k, v := range t {
			t[k] = round(v, volPlaces)
		}
		terms[string(e)] = t
	}
	if output.IsJSON() {
		return output.JSON(terms)
	}

	headers := []string{"Estimator"}
	for _, p := range volatility.Periods {
		headers = append(headers, p.Name)
	}
	var rows [][]string
	for _, e := range estimators {
		row := []string{string(e)}
		for _, p := range volatility.Periods {
			if v, ok := terms[string(e)][p.Name]; ok {
				row = append(row, fixed(v, volPlaces))
			} else {
				row = append(row, "-")
			}
		}
		rows = append(rows, row)
	}
	output.Table(headers, rows)
	return nil
}

func printGARCH(output *Output, bars volatility.History) error {
	fit, err := volatility.FitGARCH11(bars)
	if err != nil {
		return err
	}
	if output.IsJSON() {
		return output.JSON(map[string]interface{}{
			"bars":       len(bars),
			"omega":      fit.Params.Omega,
			"alpha":      round(fit.Params.Alpha, volPlaces),
			"beta":       round(fit.Params.Beta, volPlaces),
			"forecast":   round(fit.Volatility, volPlaces),
			"long_run":   round(fit.LongRun, volPlaces),
			"log_lik":    fit.LogLik,
			"iterations": fit.Iterations,
		})
	}
	output.KeyValues([][]string{
		{"Omega", fmt.Sprintf("%.6e", fit.Params.Omega)},
		{"Alpha", fixed(fit.Params.Alpha, volPlaces)},
		{"Beta", fixed(fit.Params.Beta, volPlaces)},
		{"Forecast Vol", fixed(fit.Volatility, volPlaces)},
		{"Long-run Vol", fixed(fit.LongRun, volPlaces)},
		{"Log-likelihood", fixed(fit.LogLik, 2)},
	})
	return nil
}
