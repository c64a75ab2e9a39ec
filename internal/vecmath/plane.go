package vecmath

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Vec2 is a city position in the plane.
type Vec2 struct {
	X, Y float64
}

func V2Dist(a, b Vec2) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// DistanceMatrix builds the symmetric Euclidean distance matrix of points.
func DistanceMatrix(points []Vec2) *mat.SymDense {
	n := len(points)
	if n == 0 {
		return nil
	}
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			m.SetSym(i, j, V2Dist(points[i], points[j]))
		}
	}
	return m
}

// SymFromRows converts a square row-major table into a symmetric matrix.
// Off-diagonal pairs must agree.
func SymFromRows(rows [][]float64) (*mat.SymDense, error) {
	n := len(rows)
	if n == 0 {
		return nil, fmt.Errorf("distance table is empty")
	}
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("distance row %d has %d entries, want %d", i, len(row), n)
		}
	}
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if rows[i][j] != rows[j][i] {
				return nil, fmt.Errorf("distance table is not symmetric at (%d,%d)", i, j)
			}
			m.SetSym(i, j, rows[i][j])
		}
	}
	return m, nil
}
