package models

import (
	"fmt"
	"math"
)

// Payoff evaluates the contract's payoff on one price path. path[0] is the
// spot at inception and path[len(path)-1] the price at maturity; the points in
// between are the monitoring dates.
func Payoff(c ContractSpec, path []float64) float64 {
	if len(path) == 0 {
		return 0
	}
	last := path[len(path)-1]

	switch c.Kind {
	case Call:
		return math.Max(last-c.Strike, 0)
	case Put:
		return math.Max(c.Strike-last, 0)
	case AsianCall:
		return math.Max(monitoredAverage(path)-c.Strike, 0)
	case AsianPut:
		return math.Max(c.Strike-monitoredAverage(path), 0)
	case BarrierUpOut:
		for _, s := range path {
			if s >= c.Barrier {
				return c.Rebate
			}
		}
		return math.Max(last-c.Strike, 0)
	case BarrierDownIn:
		for _, s := range path {
			if s <= c.Barrier {
				return math.Max(last-c.Strike, 0)
			}
		}
		return 0
	case LookbackFloat:
		low := path[0]
		for _, s := range path[1:] {
			low = math.Min(low, s)
		}
		return last - low
	default:
		panic(fmt.Sprintf("models: unhandled payoff kind %d", int(c.Kind)))
	}
}

// TerminalPayoff evaluates the payoff for a path that never left s.
func TerminalPayoff(c ContractSpec, s float64) float64 {
	return Payoff(c, []float64{s})
}

// Intrinsic is the value of exercising immediately at spot s.
func Intrinsic(c ContractSpec, s float64) float64 {
	switch c.Kind {
	case Call:
		return math.Max(s-c.Strike, 0)
	case Put:
		return math.Max(c.Strike-s, 0)
	}
	return TerminalPayoff(c, s)
}

// monitoredAverage is the arithmetic mean of the monitoring points, excluding
// the inception spot unless it is the only point.
func monitoredAverage(path []float64) float64 {
	if len(path) == 1 {
		return path[0]
	}
	sum := 0.0
	for _, s := range path[1:] {
		sum += s
	}
	return sum / float64(len(path)-1)
}
