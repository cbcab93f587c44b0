package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bcdannyboy/optpricer/store"
)

func newRunsCmd(app *App) *cobra.Command {
	var filter store.RunFilter
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded pricing runs",
		Long: `List runs saved with --record, newest first. Filters combine; zero values
match everything.`,
		Example: `  optpricer runs --limit 20
  optpricer runs --method monte_carlo --since 24h --json
  optpricer runs show 3f2c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.runStore()
			if err != nil {
				return err
			}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			runs, err := s.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				views := make([]runView, len(runs))
				for i, r := range runs {
					views[i] = newRunView(r)
				}
				return output.JSON(views)
			}
			if len(runs) == 0 {
				output.Printf("No runs recorded\n")
				return nil
			}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{
					shortID(r.ID),
					r.Timestamp.Local().Format("2006-01-02 15:04:05"),
					r.Command,
					r.Method,
					r.Kind,
					fmt.Sprintf("%g", r.Strike),
					fmt.Sprintf("%g", r.Maturity),
					fixed(r.Price, pricePlaces),
				}
			}
			output.Table([]string{"ID", "Time", "Command", "Method", "Kind", "Strike", "Maturity", "Price"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Command, "command", "", "only runs of this command")
	cmd.Flags().StringVar(&filter.Method, "method", "", "only runs of this method (finite_difference, monte_carlo, analytical)")
	cmd.Flags().StringVar(&filter.Kind, "kind", "", "only runs of this payoff kind")
	cmd.Flags().DurationVar(&since, "since", 0, "only runs newer than this")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum runs to list")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.runStore()
			if err != nil {
				return err
			}
			run, err := s.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			v := newRunView(*run)
			if output.IsJSON() {
				return output.JSON(v)
			}
			return printResult(output, v.resultView)
		},
	})

	return cmd
}

// runView is the printed form of a stored run.
type runView struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Market    string    `json:"market"`
	resultView
}

func newRunView(r store.Run) runView {
	v := resultView{
		Contract:  fmt.Sprintf("%s %s K=%g T=%g", r.Exercise, r.Kind, r.Strike, r.Maturity),
		Method:    r.Method,
		Price:     round(r.Price, pricePlaces),
		Paths:     r.Paths,
		ElapsedMS: r.Elapsed.Milliseconds(),
		RunID:     r.ID,
	}
	if r.Barrier > 0 {
		v.Contract += fmt.Sprintf(" B=%g", r.Barrier)
	}
	if r.Paths > 0 {
		se := round(r.StandardError, pricePlaces)
		v.StandardError = &se
	}
	if len(r.Greeks) > 0 {
		v.Greeks = greekView(r.Greeks)
	}
	return runView{
		ID:         r.ID,
		Timestamp:  r.Timestamp,
		Command:    r.Command,
		Market:     fmt.Sprintf("S=%g r=%g q=%g vol=%g", r.Spot, r.Rate, r.DividendYield, r.Volatility),
		resultView: v,
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
