package cli

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/bcdannyboy/optpricer/models"
)

// bookRow is one line of a contract book. Columns a command does not need
// may be left out of the file.
type bookRow struct {
	ID       string  `csv:"id"`
	Kind     string  `csv:"kind"`
	Exercise string  `csv:"exercise"`
	Strike   float64 `csv:"strike"`
	Maturity float64 `csv:"maturity"`
	Barrier  float64 `csv:"barrier"`
	Rebate   float64 `csv:"rebate"`
	Spot     float64 `csv:"spot"`
	Rate     float64 `csv:"rate"`
	Dividend float64 `csv:"dividend"`
	Vol      float64 `csv:"vol"`
	Price    float64 `csv:"price"` // observed price, for fitting
}

// resultRow is one line of batch output.
type resultRow struct {
	ID            string   `csv:"id" json:"id"`
	Contract      string   `csv:"contract" json:"contract"`
	Method        string   `csv:"method" json:"method,omitempty"`
	Price         float64  `csv:"price" json:"price"`
	StandardError float64  `csv:"standard_error" json:"standard_error,omitempty"`
	Delta         *float64 `csv:"delta" json:"delta,omitempty"` // nil when the engine reports no delta
	Gamma         *float64 `csv:"gamma" json:"gamma,omitempty"`
	Theta         *float64 `csv:"theta" json:"theta,omitempty"`
	Error         string   `csv:"error" json:"error,omitempty"`
}

func loadBook(path string) ([]bookRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open book: %w", err)
	}
	defer f.Close()

	var rows []bookRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse book %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("book %s has no rows", path)
	}
	return rows, nil
}

func writeResults(path string, rows []resultRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	return gocsv.MarshalFile(&rows, f)
}

func (r bookRow) contract() (models.ContractSpec, error) {
	kind, err := models.ParsePayoffKind(r.Kind)
	if err != nil {
		return models.ContractSpec{}, err
	}
	exercise, err := models.ParseExerciseStyle(r.Exercise)
	if err != nil {
		return models.ContractSpec{}, err
	}
	var opts []models.ContractOption
	if kind.IsBarrier() {
		opts = append(opts, models.WithBarrier(r.Barrier), models.WithRebate(r.Rebate))
	}
	return models.NewContractSpec(kind, r.Strike, r.Maturity, exercise, opts...)
}

func (r bookRow) market() (models.MarketParameters, error) {
	return models.NewMarketParameters(r.Spot, r.Rate, r.Dividend, r.Vol)
}
