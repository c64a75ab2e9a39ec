package strategy

import (
	"math"
	"math/rand"

	"opevolve/internal/scape"
)

const (
	ConnectNearest = "connect_nearest"
	BreakLongest   = "break_longest"
	BreakRandom    = "break_random"
	TwoOpt         = "two_opt"
)

// improvementEpsilon guards 2-opt against accepting float noise as gain.
const improvementEpsilon = 1e-9

// connectNearest adds the shortest edge that keeps the partial tour valid.
func connectNearest(env scape.Environment) bool {
	s, ok := env.(*scape.TourScape)
	if !ok {
		return false
	}
	n := s.Cities()
	bestI, bestJ := -1, -1
	best := math.Inf(1)
	for i := 0; i < n; i++ {
		if s.Degree(i) >= 2 {
			continue
		}
		for j := i + 1; j < n; j++ {
			if d := s.Distance(i, j); d < best && s.CanConnect(i, j) {
				best, bestI, bestJ = d, i, j
			}
		}
	}
	if bestI < 0 {
		return false
	}
	return s.Connect(bestI, bestJ)
}

func breakLongest(env scape.Environment) bool {
	s, ok := env.(*scape.TourScape)
	if !ok {
		return false
	}
	edges := s.Edges()
	if len(edges) == 0 {
		return false
	}
	longest := edges[0]
	for _, e := range edges[1:] {
		if s.Distance(e.I, e.J) > s.Distance(longest.I, longest.J) {
			longest = e
		}
	}
	return s.Disconnect(longest.I, longest.J)
}

func breakRandom(rng *rand.Rand) func(scape.Environment) bool {
	return func(env scape.Environment) bool {
		s, ok := env.(*scape.TourScape)
		if !ok {
			return false
		}
		edges := s.Edges()
		if len(edges) == 0 {
			return false
		}
		e := edges[rng.Intn(len(edges))]
		return s.Disconnect(e.I, e.J)
	}
}

// twoOpt applies the first improving segment reversal found, scanning from a
// random offset. It only acts on complete tours.
func twoOpt(rng *rand.Rand) func(scape.Environment) bool {
	return func(env scape.Environment) bool {
		s, ok := env.(*scape.TourScape)
		if !ok {
			return false
		}
		sol, ok := s.CurrentSolution()
		if !ok {
			return false
		}
		tour := append(scape.Tour(nil), sol.(scape.Tour)...)
		n := len(tour)
		offset := rng.Intn(n)
		for step := 0; step < n; step++ {
			i := (offset + step) % n
			for k := i + 2; k < n; k++ {
				if i == 0 && k == n-1 {
					continue
				}
				a, b := tour[i], tour[i+1]
				c, d := tour[k], tour[(k+1)%n]
				delta := s.Distance(a, c) + s.Distance(b, d) - s.Distance(a, b) - s.Distance(c, d)
				if delta >= -improvementEpsilon {
					continue
				}
				for lo, hi := i+1, k; lo < hi; lo, hi = lo+1, hi-1 {
					tour[lo], tour[hi] = tour[hi], tour[lo]
				}
				return s.Commit(tour) == nil
			}
		}
		return false
	}
}
