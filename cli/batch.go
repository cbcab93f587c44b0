package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	mpb "github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"

	"github.com/bcdannyboy/optpricer/models"
)

const jobBufferSize = 1000

type batchJob struct {
	index int
	row   bookRow
}

func newBatchCmd(app *App) *cobra.Command {
	var file, engine, out string
	var workers int
	var quiet bool

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Price every contract in a CSV book",
		Long: `Price each row of a CSV book (id, kind, exercise, strike, maturity, barrier,
rebate, spot, rate, dividend, vol columns) on a pool of workers. Rows that
fail are reported with their error and do not stop the batch.`,
		Example: `  optpricer batch --file book.csv
  optpricer batch --file book.csv --engine mc --out results.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := loadBook(file)
			if err != nil {
				return err
			}
			if workers < 1 {
				workers = defaultWorkers()
			}
			pricer, err := app.pricer(engine)
			if err != nil {
				return err
			}
			// workers share the journal, so open it up front
			if rec, _ := cmd.Flags().GetBool("record"); rec {
				if _, err := app.runStore(); err != nil {
					return err
				}
			}

			progress := cmd.ErrOrStderr()
			if quiet {
				progress = io.Discard
			}

			start := time.Now()
			results := app.processBook(cmd, rows, pricer, workers, progress)
			failed := 0
			for _, r := range results {
				if r.Error != "" {
					failed++
				}
			}
			app.Logger.Info().
				Int("contracts", len(rows)).
				Int("failed", failed).
				Int("workers", workers).
				Dur("elapsed", time.Since(start)).
				Msg("Batch complete")

			if out != "" {
				if err := writeResults(out, results); err != nil {
					return err
				}
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(results)
			}
			table := make([][]string, len(results))
			for i, r := range results {
				table[i] = []string{
					r.ID, r.Contract,
					fixed(r.Price, pricePlaces), fixed(r.StandardError, pricePlaces),
					optionalFixed(r.Delta, greekPlaces), optionalFixed(r.Gamma, greekPlaces), optionalFixed(r.Theta, greekPlaces),
					r.Error,
				}
			}
			output.Table([]string{"ID", "Contract", "Price", "Std err", "Delta", "Gamma", "Theta", "Error"}, table)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "CSV contract book")
	cmd.Flags().StringVar(&engine, "engine", EngineFD, "pricing engine: fd, mc or bsm")
	cmd.Flags().StringVar(&out, "out", "", "also write results to this CSV file")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel contracts (default: logical CPUs)")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "hide the progress bar")
	cmd.MarkFlagRequired("file")
	return cmd
}

// processBook prices rows on numWorkers goroutines. Results keep the book's
// order.
func (a *App) processBook(cmd *cobra.Command, rows []bookRow, pricer models.Pricer, numWorkers int, progress io.Writer) []resultRow {
	p := mpb.New(mpb.WithWidth(64), mpb.WithOutput(progress))
	bar := p.AddBar(int64(len(rows)),
		mpb.PrependDecorators(
			decor.Name("Pricing"),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
		),
	)

	results := make([]resultRow, len(rows))
	jobs := make(chan batchJob, jobBufferSize)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.index] = a.priceRow(cmd, j.row, pricer)
				bar.Increment()
			}
		}()
	}

	go func() {
		for i, row := range rows {
			jobs <- batchJob{index: i, row: row}
		}
		close(jobs)
	}()

	wg.Wait()
	p.Wait()
	return results
}

func (a *App) priceRow(cmd *cobra.Command, row bookRow, pricer models.Pricer) resultRow {
	out := resultRow{ID: row.ID}
	fail := func(err error) resultRow {
		out.Error = err.Error()
		a.Logger.Warn().Err(err).Str("id", row.ID).Msg("Contract failed")
		return out
	}

	if err := contextErr(cmd.Context()); err != nil {
		return fail(err)
	}
	c, err := row.contract()
	if err != nil {
		return fail(err)
	}
	out.Contract = c.String()
	m, err := row.market()
	if err != nil {
		return fail(err)
	}

	start := time.Now()
	res, err := pricer.Price(c, m)
	if err != nil {
		return fail(err)
	}
	a.record(cmd, c, m, res, time.Since(start))

	out.Method = res.Method
	out.Price = round(res.Price, pricePlaces)
	out.StandardError = round(res.StandardError, pricePlaces)
	out.Delta = greekCell(res.Greeks, models.Delta)
	out.Gamma = greekCell(res.Greeks, models.Gamma)
	out.Theta = greekCell(res.Greeks, models.Theta)
	return out
}

// greekCell is nil when the engine did not report name, so the cell stays
// blank instead of reading as zero.
func greekCell(greeks models.Greeks, name models.Greek) *float64 {
	v, ok := greeks[name]
	if !ok {
		return nil
	}
	v = round(v, greekPlaces)
	return &v
}

func contextErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("batch cancelled: %w", err)
	}
	return nil
}
