package probability

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/bcdannyboy/optpricer/models"
)

// RiskReport summarises the holder's P&L at maturity, discounted to today,
// over every simulated path. VaR and ES are reported as positive losses.
type RiskReport struct {
	Premium   float64
	MeanPnL   float64
	StdPnL    float64
	VaR95     float64
	VaR99     float64
	ES95      float64
	ES99      float64
	Scenarios int
}

// CalculateRisk simulates contract under market and measures the risk of
// holding it after paying premium.
func CalculateRisk(ctx context.Context, contract models.ContractSpec, market models.MarketParameters, cfg SimConfig, premium float64) (RiskReport, error) {
	s, err := NewSimulator(cfg)
	if err != nil {
		return RiskReport{}, err
	}
	return s.Risk(ctx, contract, market, premium)
}

// Risk is CalculateRisk on the simulator's configuration.
func (s *Simulator) Risk(ctx context.Context, contract models.ContractSpec, market models.MarketParameters, premium float64) (RiskReport, error) {
	if math.IsNaN(premium) || math.IsInf(premium, 0) {
		return RiskReport{}, fmt.Errorf("premium must be finite, got %v", premium)
	}

	blocks, err := s.run(ctx, contract, market, true)
	if err != nil {
		return RiskReport{}, err
	}

	df := math.Exp(-market.Rate * contract.Maturity)
	var pnl []float64
	for _, b := range blocks {
		for _, v := range b.scenarios {
			pnl = append(pnl, df*v-premium)
		}
	}

	report := RiskReport{Premium: premium, Scenarios: len(pnl)}
	if report.MeanPnL, err = stats.Mean(pnl); err != nil {
		return RiskReport{}, err
	}
	if len(pnl) > 1 {
		if report.StdPnL, err = stats.StandardDeviationSample(pnl); err != nil {
			return RiskReport{}, err
		}
	}

	sort.Float64s(pnl)
	if report.VaR95, report.ES95, err = tailRisk(pnl, 5); err != nil {
		return RiskReport{}, err
	}
	if report.VaR99, report.ES99, err = tailRisk(pnl, 1); err != nil {
		return RiskReport{}, err
	}

	log := s.logger(ctx)
	log.Debug().
		Str("contract", contract.String()).
		Int("scenarios", report.Scenarios).
		Float64("var95", report.VaR95).
		Float64("es95", report.ES95).
		Msg("risk report")

	return report, nil
}

// tailRisk returns VaR and expected shortfall for the worst tailPercent of a
// sorted P&L sample. ES averages every loss at or beyond VaR.
func tailRisk(sorted []float64, tailPercent float64) (float64, float64, error) {
	q, err := stats.Percentile(sorted, tailPercent)
	if err != nil {
		// Percentile needs the tail to hold at least one whole observation.
		q = sorted[0]
	}

	var tail []float64
	for _, v := range sorted {
		if v > q {
			break
		}
		tail = append(tail, v)
	}
	es, err := stats.Mean(tail)
	if err != nil {
		return 0, 0, err
	}
	return -q, -es, nil
}
