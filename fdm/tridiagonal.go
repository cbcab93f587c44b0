package fdm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"

	"github.com/bcdannyboy/optpricer/models"
)

// tridiagonal is the n×n system of one implicit step in LAPACK layout:
// sub[i] = A[i+1][i] and super[i] = A[i][i+1].
type tridiagonal struct {
	sub, diag, super []float64
}

func newTridiagonal(n int) *tridiagonal {
	return &tridiagonal{
		sub:   make([]float64, n-1),
		diag:  make([]float64, n),
		super: make([]float64, n-1),
	}
}

// set writes row k. Coefficients that fall outside the matrix are dropped.
func (t *tridiagonal) set(k int, lower, diag, upper float64) {
	if k > 0 {
		t.sub[k-1] = lower
	}
	t.diag[k] = diag
	if k < len(t.diag)-1 {
		t.super[k] = upper
	}
}

// solve overwrites rhs with the solution. Gtsv factorises in place, so every
// row must be set again before the next solve.
func (t *tridiagonal) solve(rhs []float64) error {
	n := len(t.diag)
	if len(rhs) != n {
		return fmt.Errorf("tridiagonal: size mismatch: system %d, rhs %d", n, len(rhs))
	}

	a := lapack64.Tridiagonal{N: n, DL: t.sub, D: t.diag, DU: t.super}
	b := blas64.General{Rows: n, Cols: 1, Stride: 1, Data: rhs}
	if !lapack64.Gtsv(blas.NoTrans, a, b) {
		return &models.NumericalError{Stage: "tridiagonal solve (singular system)", Value: math.NaN()}
	}
	return nil
}
