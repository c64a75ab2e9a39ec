package vecmath

import (
	"math"
	"testing"
)

func TestRotationsPreserveLength(t *testing.T) {
	v := Vec3{X: 2, Y: -1, Z: 3}
	for i, r := range Rotations {
		got := r.Apply(v)
		if V3Dot(got, got) != V3Dot(v, v) {
			t.Fatalf("rotation %d changed length: %+v -> %+v", i, v, got)
		}
		if got == v {
			t.Fatalf("rotation %d left generic vector unchanged", i)
		}
	}
}

func TestRotateAboutKeepsPivot(t *testing.T) {
	pivot := Vec3{X: 1, Y: 1, Z: 1}
	for _, r := range Rotations {
		if got := r.RotateAbout(pivot, pivot); got != pivot {
			t.Fatalf("pivot moved to %+v", got)
		}
		p := V3Add(pivot, Axes[0])
		if !V3Adjacent(r.RotateAbout(p, pivot), pivot) {
			t.Fatal("rotated neighbour is no longer adjacent to pivot")
		}
	}
}

func TestDistanceMatrixSymmetric(t *testing.T) {
	m := DistanceMatrix([]Vec2{{0, 0}, {3, 4}, {6, 8}})
	if m.SymmetricDim() != 3 {
		t.Fatalf("unexpected dimension %d", m.SymmetricDim())
	}
	if got := m.At(0, 1); math.Abs(got-5) > 1e-12 {
		t.Fatalf("unexpected distance %v", got)
	}
	if m.At(2, 0) != m.At(0, 2) {
		t.Fatal("matrix is not symmetric")
	}
}

func TestSymFromRowsRejectsAsymmetric(t *testing.T) {
	if _, err := SymFromRows([][]float64{{0, 1}, {2, 0}}); err == nil {
		t.Fatal("expected asymmetric table to be rejected")
	}
	if _, err := SymFromRows([][]float64{{0, 1}, {1}}); err == nil {
		t.Fatal("expected ragged table to be rejected")
	}
}
