// Package volatility estimates annualised historical volatility from daily
// OHLC bars. The estimates seed MarketParameters.Volatility when no implied
// volatility is available.
package volatility

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/gocarina/gocsv"
)

// ErrInsufficientData is returned when a window holds too few bars.
var ErrInsufficientData = errors.New("volatility: insufficient data")

// Bar is one trading day.
type Bar struct {
	Date   string  `csv:"date" json:"date"`
	Open   float64 `csv:"open" json:"open"`
	High   float64 `csv:"high" json:"high"`
	Low    float64 `csv:"low" json:"low"`
	Close  float64 `csv:"close" json:"close"`
	Volume int64   `csv:"volume" json:"volume"`
}

// History is a series of bars, oldest first.
type History []Bar

// LoadBars reads a CSV with a date,open,high,low,close[,volume] header.
func LoadBars(r io.Reader) (History, error) {
	var bars []Bar
	if err := gocsv.Unmarshal(r, &bars); err != nil {
		return nil, fmt.Errorf("volatility: parse bars: %w", err)
	}
	h := History(bars)
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

func LoadBarsFile(path string) (History, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadBars(f)
}

// Validate rejects bars that would poison the log-ratio estimators.
func (h History) Validate() error {
	for i, b := range h {
		for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
			if !(v > 0) || math.IsInf(v, 0) {
				return fmt.Errorf("volatility: bar %d (%s): prices must be positive and finite", i, b.Date)
			}
		}
		if b.High < b.Low || b.High < math.Max(b.Open, b.Close) || b.Low > math.Min(b.Open, b.Close) {
			return fmt.Errorf("volatility: bar %d (%s): high/low do not bound open/close", i, b.Date)
		}
	}
	return nil
}

// Last returns the most recent days bars.
func (h History) Last(days int) History {
	if days >= len(h) {
		return h
	}
	return h[len(h)-days:]
}
