package fdm

import (
	"math"

	"github.com/bcdannyboy/optpricer/models"
)

// priceGrid is the solution of one solve: option values on the spot nodes at
// t=0 and, when Greeks are requested, one time step later.
type priceGrid struct {
	spots  []float64
	values []float64
	next   []float64 // values at t = dt, nil unless Greeks are requested
	ds, dt float64
}

// locate returns the index j of the cell [spots[j], spots[j+1]] holding s and
// the weight of spots[j+1].
func (g *priceGrid) locate(s float64) (int, float64) {
	n := len(g.spots) - 1
	j := int(math.Floor((s - g.spots[0]) / g.ds))
	if j < 0 {
		j = 0
	}
	if j > n-1 {
		j = n - 1
	}
	w := (s - g.spots[j]) / g.ds
	return j, math.Max(0, math.Min(1, w))
}

func interpolate(v []float64, j int, w float64) float64 {
	return (1-w)*v[j] + w*v[j+1]
}

func (g *priceGrid) priceAt(s float64) float64 {
	j, w := g.locate(s)
	return interpolate(g.values, j, w)
}

// nodeDelta and nodeGamma are central differences, taken at the nearest
// interior node for the two boundary nodes.
func (g *priceGrid) nodeDelta(i int) float64 {
	i = interior(i, len(g.values))
	return (g.values[i+1] - g.values[i-1]) / (2 * g.ds)
}

func (g *priceGrid) nodeGamma(i int) float64 {
	i = interior(i, len(g.values))
	return (g.values[i+1] - 2*g.values[i] + g.values[i-1]) / (g.ds * g.ds)
}

func interior(i, n int) int {
	if i < 1 {
		return 1
	}
	if i > n-2 {
		return n - 2
	}
	return i
}

// greeksAt reads Delta, Gamma and Theta off the grid at spot s.
func (g *priceGrid) greeksAt(s float64) models.Greeks {
	if g.next == nil {
		return nil
	}
	j, w := g.locate(s)
	theta := (interpolate(g.next, j, w) - interpolate(g.values, j, w)) / g.dt
	return models.Greeks{
		models.Delta: (1-w)*g.nodeDelta(j) + w*g.nodeDelta(j+1),
		models.Gamma: (1-w)*g.nodeGamma(j) + w*g.nodeGamma(j+1),
		models.Theta: theta,
	}
}
