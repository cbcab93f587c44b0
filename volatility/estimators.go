package volatility

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

const tradingDays = 252

// Estimator names a historical volatility estimator.
type Estimator string

const (
	CloseToClose   Estimator = "close_to_close"
	Parkinson      Estimator = "parkinson"
	GarmanKlass    Estimator = "garman_klass"
	RogersSatchell Estimator = "rogers_satchell"
	YangZhang      Estimator = "yang_zhang"
)

func Estimators() []Estimator {
	return []Estimator{CloseToClose, Parkinson, GarmanKlass, RogersSatchell, YangZhang}
}

func ParseEstimator(s string) (Estimator, error) {
	for _, e := range Estimators() {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("volatility: unknown estimator %q", s)
}

// Periods are the look-back windows reported by Term, in trading days.
var Periods = []struct {
	Name string
	Days int
}{
	{"1w", 5},
	{"1m", 21},
	{"3m", 63},
	{"6m", 126},
	{"1y", 252},
}

// Estimate returns the annualised volatility of h under est.
func Estimate(h History, est Estimator) (float64, error) {
	minBars := 2
	if est == Parkinson || est == GarmanKlass || est == RogersSatchell {
		minBars = 1
	}
	if len(h) < minBars {
		return 0, fmt.Errorf("%w: %s needs %d bars, have %d", ErrInsufficientData, est, minBars, len(h))
	}

	var variance float64
	switch est {
	case CloseToClose:
		variance = closeToCloseVariance(h)
	case Parkinson:
		variance = parkinsonVariance(h)
	case GarmanKlass:
		variance = garmanKlassVariance(h)
	case RogersSatchell:
		variance = rogersSatchellVariance(h)
	case YangZhang:
		variance = yangZhangVariance(h)
	default:
		return 0, fmt.Errorf("volatility: unknown estimator %q", est)
	}

	if variance < 0 || math.IsNaN(variance) {
		return 0, fmt.Errorf("volatility: %s produced variance %v", est, variance)
	}
	return math.Sqrt(variance * tradingDays), nil
}

// Term estimates volatility over each period in Periods that h covers.
func Term(h History, est Estimator) (map[string]float64, error) {
	results := make(map[string]float64)
	for _, p := range Periods {
		if len(h) < p.Days {
			continue
		}
		v, err := Estimate(h.Last(p.Days), est)
		if err != nil {
			return nil, err
		}
		if v != 0 {
			results[p.Name] = v
		}
	}
	return results, nil
}

func closeToCloseVariance(h History) float64 {
	returns := make([]float64, len(h)-1)
	for i := 1; i < len(h); i++ {
		returns[i-1] = math.Log(h[i].Close / h[i-1].Close)
	}
	if len(returns) < 2 {
		return returns[0] * returns[0]
	}
	return stat.Variance(returns, nil)
}

func parkinsonVariance(h History) float64 {
	sum := 0.0
	for _, b := range h {
		hl := math.Log(b.High / b.Low)
		sum += hl * hl
	}
	return sum / (4 * float64(len(h)) * math.Ln2)
}

func garmanKlassVariance(h History) float64 {
	sum := 0.0
	for _, b := range h {
		hl := math.Log(b.High / b.Low)
		co := math.Log(b.Close / b.Open)
		sum += 0.5*hl*hl - (2*math.Ln2-1)*co*co
	}
	return sum / float64(len(h))
}

func rogersSatchellVariance(h History) float64 {
	sum := 0.0
	for _, b := range h {
		sum += math.Log(b.High/b.Close)*math.Log(b.High/b.Open) +
			math.Log(b.Low/b.Close)*math.Log(b.Low/b.Open)
	}
	return sum / float64(len(h))
}

// yangZhangVariance combines overnight, open-to-close and Rogers-Satchell
// variances with the weight k that minimises the estimator's variance.
func yangZhangVariance(h History) float64 {
	n := float64(len(h))
	k := 0.34 / (1.34 + (n+1)/(n-1))

	overnight := make([]float64, len(h)-1)
	for i := 1; i < len(h); i++ {
		overnight[i-1] = math.Log(h[i].Open / h[i-1].Close)
	}
	openClose := make([]float64, len(h))
	for i, b := range h {
		openClose[i] = math.Log(b.Close / b.Open)
	}

	return sampleVariance(overnight) + k*sampleVariance(openClose) + (1-k)*rogersSatchellVariance(h)
}

func sampleVariance(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return stat.Variance(x, nil)
}
