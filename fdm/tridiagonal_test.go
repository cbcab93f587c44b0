package fdm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/optpricer/models"
)

func TestTridiagonalSolve(t *testing.T) {
	// [ 2 -1  0  0 ] [1]   [ 0]
	// [-1  2 -1  0 ] [2] = [ 0]
	// [ 0 -1  2 -1 ] [3]   [ 0]
	// [ 0  0 -1  2 ] [4]   [ 5]
	sys := newTridiagonal(4)
	for k := 0; k < 4; k++ {
		sys.set(k, -1, 2, -1)
	}
	rhs := []float64{0, 0, 0, 5}
	require.NoError(t, sys.solve(rhs))
	assert.InDeltaSlice(t, []float64{1, 2, 3, 4}, rhs, 1e-12)

	t.Run("zero leading pivot", func(t *testing.T) {
		// [0 1 0] [1]   [2]
		// [1 0 1] [2] = [4]
		// [0 1 1] [3]   [5]
		sys := newTridiagonal(3)
		sys.set(0, 0, 0, 1)
		sys.set(1, 1, 0, 1)
		sys.set(2, 1, 1, 0)
		rhs := []float64{2, 4, 5}
		require.NoError(t, sys.solve(rhs))
		assert.InDeltaSlice(t, []float64{1, 2, 3}, rhs, 1e-12)
	})
}

func TestTridiagonalErrors(t *testing.T) {
	sys := newTridiagonal(3)
	err := sys.solve(make([]float64, 3))
	assert.ErrorIs(t, err, models.ErrNumericalInstability)

	assert.Error(t, sys.solve(make([]float64, 2)))
}
