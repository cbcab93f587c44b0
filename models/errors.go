package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for every failure the pricing engine reports. Typed errors
// below carry diagnostics and unwrap to one of these.
var (
	ErrInvalidContractSpec     = errors.New("invalid contract spec")
	ErrInvalidMarketParameters = errors.New("invalid market parameters")
	ErrInvalidGridConfig       = errors.New("invalid grid config")
	ErrInvalidSimConfig        = errors.New("invalid simulation config")
	ErrInvalidTolerances       = errors.New("invalid tolerances")
	ErrInvalidBumps            = errors.New("invalid greek bump sizes")
	ErrUnsupportedContract     = errors.New("contract not supported by this solver")
	ErrNumericalInstability    = errors.New("numerical instability")
	ErrNoBracketFound          = errors.New("no bracket found")
	ErrConvergenceFailure      = errors.New("convergence failure")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Kind    error
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s (%v): %s", e.Kind, e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// NewValidationError creates a new ValidationError of the given kind.
func NewValidationError(kind error, field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Kind:    kind,
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NumericalError reports a non-finite value produced during a solve.
type NumericalError struct {
	Stage string
	Step  int
	Node  int
	Value float64
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("%v: %s produced %v at step %d node %d", ErrNumericalInstability, e.Stage, e.Value, e.Step, e.Node)
}

func (e *NumericalError) Unwrap() error {
	return ErrNumericalInstability
}

// BracketError reports that the root finder's interval does not contain a
// sign change.
type BracketError struct {
	Low, High   float64
	FLow, FHigh float64
}

func (e *BracketError) Error() string {
	return fmt.Sprintf("%v: f(%g)=%g and f(%g)=%g have the same sign", ErrNoBracketFound, e.Low, e.FLow, e.High, e.FHigh)
}

func (e *BracketError) Unwrap() error {
	return ErrNoBracketFound
}

// ConvergenceError reports an exhausted iteration budget together with the
// best estimate found.
type ConvergenceError struct {
	Iterations int
	Estimate   float64
	Residual   float64
	Width      float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%v after %d iterations: best estimate %g, residual %g, bracket width %g",
		ErrConvergenceFailure, e.Iterations, e.Estimate, e.Residual, e.Width)
}

func (e *ConvergenceError) Unwrap() error {
	return ErrConvergenceFailure
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
