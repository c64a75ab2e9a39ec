package strategy

import (
	"math/rand"

	"opevolve/internal/scape"
	"opevolve/internal/vecmath"
)

const (
	PivotRotate         = "pivot_rotate"
	PullMove            = "pull_move"
	EndMove             = "end_move"
	HydrophobicCollapse = "hydrophobic_collapse"
)

// pivotRotate rotates the chain on one side of a random residue by a random
// lattice rotation.
func pivotRotate(rng *rand.Rand) func(scape.Environment) bool {
	return func(env scape.Environment) bool {
		s, ok := env.(*scape.ChainScape)
		if !ok {
			return false
		}
		coords := s.Coords()
		n := len(coords)
		pivot := rng.Intn(n)
		r := vecmath.Rotations[rng.Intn(len(vecmath.Rotations))]
		lo, hi := pivot+1, n
		if pivot == n-1 {
			lo, hi = 0, pivot
		}
		for i := lo; i < hi; i++ {
			coords[i] = r.RotateAbout(coords[i], coords[pivot])
		}
		return s.TrySetCoords(coords)
	}
}

// pullMove performs a pull move toward one randomly chosen chain end.
func pullMove(rng *rand.Rand) func(scape.Environment) bool {
	return func(env scape.Environment) bool {
		s, ok := env.(*scape.ChainScape)
		if !ok || s.Residues() < 3 {
			return false
		}
		coords := s.Coords()
		reversed := rng.Intn(2) == 1
		if reversed {
			reverse(coords)
		}
		n := len(coords)
		i := 1 + rng.Intn(n-2)
		next, ok := pull(s, coords, i, rng.Perm(len(vecmath.Axes)))
		if !ok {
			return false
		}
		if reversed {
			reverse(next)
		}
		return s.TrySetCoords(next)
	}
}

// pull moves residue i to a free site L adjacent to i+1 and diagonal to i,
// dragging earlier residues along the vacated path.
func pull(s *scape.ChainScape, coords []vecmath.Vec3, i int, order []int) ([]vecmath.Vec3, bool) {
	anchor := coords[i+1]
	bond := vecmath.V3Sub(coords[i], anchor)
	for _, a := range order {
		step := vecmath.Axes[a]
		if vecmath.V3Dot(step, bond) != 0 {
			continue
		}
		l := vecmath.V3Add(anchor, step)
		if _, taken := s.Occupied(l); taken {
			continue
		}
		c := vecmath.V3Add(l, bond)
		next := append([]vecmath.Vec3(nil), coords...)
		next[i] = l
		if c == coords[i-1] {
			return next, true
		}
		if _, taken := s.Occupied(c); taken {
			continue
		}
		next[i-1] = c
		for j := i - 2; j >= 0; j-- {
			if vecmath.V3Adjacent(next[j], next[j+1]) {
				break
			}
			next[j] = coords[j+2]
		}
		return next, true
	}
	return nil, false
}

// endMove relocates a chain end to a free site next to its bonded neighbour.
func endMove(rng *rand.Rand) func(scape.Environment) bool {
	return func(env scape.Environment) bool {
		s, ok := env.(*scape.ChainScape)
		if !ok {
			return false
		}
		coords := s.Coords()
		end, neighbour := 0, 1
		if rng.Intn(2) == 1 {
			end, neighbour = len(coords)-1, len(coords)-2
		}
		for _, a := range rng.Perm(len(vecmath.Axes)) {
			p := vecmath.V3Add(coords[neighbour], vecmath.Axes[a])
			if _, taken := s.Occupied(p); taken {
				continue
			}
			coords[end] = p
			return s.TrySetCoords(coords)
		}
		return false
	}
}

// hydrophobicCollapse applies the single end or corner move that lowers the
// energy the most, if any.
func hydrophobicCollapse(env scape.Environment) bool {
	s, ok := env.(*scape.ChainScape)
	if !ok {
		return false
	}
	coords := s.Coords()
	n := len(coords)
	bestEnergy := s.Evaluate()
	var best []vecmath.Vec3

	consider := func(i int, p vecmath.Vec3) {
		if _, taken := s.Occupied(p); taken {
			return
		}
		candidate := append([]vecmath.Vec3(nil), coords...)
		candidate[i] = p
		if e := s.EnergyOf(candidate); e < bestEnergy {
			bestEnergy, best = e, candidate
		}
	}

	for _, step := range vecmath.Axes {
		consider(0, vecmath.V3Add(coords[1], step))
		consider(n-1, vecmath.V3Add(coords[n-2], step))
	}
	for i := 1; i < n-1; i++ {
		if !s.Hydrophobic(i) {
			continue
		}
		prev, next := coords[i-1], coords[i+1]
		if vecmath.V3Manhattan(vecmath.V3Sub(prev, next)) != 2 || vecmath.V3Dot(vecmath.V3Sub(prev, coords[i]), vecmath.V3Sub(next, coords[i])) != 0 {
			continue
		}
		consider(i, vecmath.V3Sub(vecmath.V3Add(prev, next), coords[i]))
	}
	if best == nil {
		return false
	}
	return s.TrySetCoords(best)
}

func reverse(coords []vecmath.Vec3) {
	for lo, hi := 0, len(coords)-1; lo < hi; lo, hi = lo+1, hi-1 {
		coords[lo], coords[hi] = coords[hi], coords[lo]
	}
}
