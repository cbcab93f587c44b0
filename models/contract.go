package models

import (
	"fmt"
	"math"
	"strings"
)

// PayoffKind identifies the payoff of a contract.
type PayoffKind int

const (
	Call PayoffKind = iota
	Put
	AsianCall
	AsianPut
	BarrierUpOut  // up-and-out call
	BarrierDownIn // down-and-in call
	LookbackFloat // floating-strike lookback call
)

var payoffNames = map[PayoffKind]string{
	Call:          "call",
	Put:           "put",
	AsianCall:     "asian_call",
	AsianPut:      "asian_put",
	BarrierUpOut:  "barrier_up_out",
	BarrierDownIn: "barrier_down_in",
	LookbackFloat: "lookback_float",
}

// AllPayoffKinds lists every payoff kind in declaration order.
func AllPayoffKinds() []PayoffKind {
	return []PayoffKind{Call, Put, AsianCall, AsianPut, BarrierUpOut, BarrierDownIn, LookbackFloat}
}

func (k PayoffKind) String() string {
	if name, ok := payoffNames[k]; ok {
		return name
	}
	return fmt.Sprintf("payoff(%d)", int(k))
}

// ParsePayoffKind parses the names produced by String, case-insensitively.
func ParsePayoffKind(s string) (PayoffKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, k := range AllPayoffKinds() {
		if payoffNames[k] == name {
			return k, nil
		}
	}
	return 0, NewValidationError(ErrInvalidContractSpec, "kind", s, "unknown payoff kind")
}

func (k PayoffKind) valid() bool {
	_, ok := payoffNames[k]
	return ok
}

// IsPathDependent reports whether the payoff needs the full simulated path.
func (k PayoffKind) IsPathDependent() bool {
	switch k {
	case AsianCall, AsianPut, BarrierUpOut, BarrierDownIn, LookbackFloat:
		return true
	}
	return false
}

// IsBarrier reports whether the payoff carries a barrier level.
func (k PayoffKind) IsBarrier() bool {
	return k == BarrierUpOut || k == BarrierDownIn
}

// ExerciseStyle is European (maturity only) or American (any time).
type ExerciseStyle int

const (
	European ExerciseStyle = iota
	American
)

func (e ExerciseStyle) String() string {
	switch e {
	case European:
		return "european"
	case American:
		return "american"
	}
	return fmt.Sprintf("exercise(%d)", int(e))
}

// ParseExerciseStyle parses "european" or "american".
func ParseExerciseStyle(s string) (ExerciseStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "european", "eu", "":
		return European, nil
	case "american", "am":
		return American, nil
	}
	return 0, NewValidationError(ErrInvalidContractSpec, "exercise", s, "unknown exercise style")
}

// ContractSpec describes an option contract. It is a value type: copies are
// independent and solvers never mutate it.
type ContractSpec struct {
	Kind     PayoffKind
	Strike   float64
	Maturity float64 // years
	Exercise ExerciseStyle
	Barrier  float64 // 0 when the payoff has no barrier
	Rebate   float64 // paid at expiry when an up-and-out contract is knocked out
}

// ContractOption sets an optional ContractSpec field.
type ContractOption func(*ContractSpec)

// WithBarrier sets the barrier level.
func WithBarrier(level float64) ContractOption {
	return func(c *ContractSpec) { c.Barrier = level }
}

// WithRebate sets the knock-out rebate.
func WithRebate(amount float64) ContractOption {
	return func(c *ContractSpec) { c.Rebate = amount }
}

// NewContractSpec builds and validates a contract.
func NewContractSpec(kind PayoffKind, strike, maturity float64, exercise ExerciseStyle, opts ...ContractOption) (ContractSpec, error) {
	c := ContractSpec{
		Kind:     kind,
		Strike:   strike,
		Maturity: maturity,
		Exercise: exercise,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.Validate(); err != nil {
		return ContractSpec{}, err
	}
	return c, nil
}

// Validate checks every field and the combinations between them.
func (c ContractSpec) Validate() error {
	invalid := func(field string, value interface{}, msg string) error {
		return NewValidationError(ErrInvalidContractSpec, field, value, msg)
	}

	if !c.Kind.valid() {
		return invalid("kind", int(c.Kind), "unknown payoff kind")
	}
	if c.Exercise != European && c.Exercise != American {
		return invalid("exercise", int(c.Exercise), "unknown exercise style")
	}
	if !isFinite(c.Strike) || c.Strike < 0 {
		return invalid("strike", c.Strike, "must be finite and non-negative")
	}
	if !isFinite(c.Maturity) || c.Maturity <= 0 {
		return invalid("maturity", c.Maturity, "must be finite and positive")
	}

	if c.Kind.IsBarrier() {
		if !isFinite(c.Barrier) || c.Barrier <= 0 {
			return invalid("barrier", c.Barrier, "barrier payoffs need a positive barrier level")
		}
	} else if c.Barrier != 0 {
		return invalid("barrier", c.Barrier, fmt.Sprintf("%s payoff takes no barrier", c.Kind))
	}

	if !isFinite(c.Rebate) || c.Rebate < 0 {
		return invalid("rebate", c.Rebate, "must be finite and non-negative")
	}
	if c.Rebate != 0 && c.Kind != BarrierUpOut {
		return invalid("rebate", c.Rebate, "only up-and-out contracts pay a rebate")
	}

	if c.Exercise == American && c.Kind != Call && c.Kind != Put {
		return invalid("exercise", c.Exercise.String(), fmt.Sprintf("american exercise is not defined for %s", c.Kind))
	}

	return nil
}

func (c ContractSpec) String() string {
	s := fmt.Sprintf("%s %s K=%g T=%g", c.Exercise, c.Kind, c.Strike, c.Maturity)
	if c.Kind.IsBarrier() {
		s += fmt.Sprintf(" B=%g", c.Barrier)
	}
	if c.Rebate > 0 {
		s += fmt.Sprintf(" rebate=%g", c.Rebate)
	}
	return s
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
