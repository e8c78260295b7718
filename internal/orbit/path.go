package orbit

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultPathSegments is the number of points sampled for an orbit loop.
const DefaultPathSegments = 100

// Path samples n points evenly spaced in mean anomaly over one revolution,
// starting at ma = 0. The loop is implicitly closed: the last point connects
// back to the first. n < 1 returns nil.
func Path(el Elements, n int, m Method) []r3.Vec {
	if n < 1 {
		return nil
	}
	pts := make([]r3.Vec, n)
	for j := range pts {
		ma := 2 * math.Pi * float64(j) / float64(n)
		pts[j] = m.Solve(el, ma)
	}
	return pts
}
