// Package strategy supplies the domain move functions that operators wrap.
// The evolution engine treats them as opaque actions.
package strategy

import (
	"fmt"
	"math/rand"

	"opevolve/internal/action"
	"opevolve/internal/scape"
)

// NewTourLibrary returns the tour moves. rng drives the randomised moves and
// must not be shared with another goroutine.
func NewTourLibrary(rng *rand.Rand) (*action.Library, error) {
	return action.NewLibrary(
		action.Atomic(ConnectNearest, connectNearest),
		action.Atomic(BreakLongest, breakLongest),
		action.Atomic(BreakRandom, breakRandom(rng)),
		action.Atomic(TwoOpt, twoOpt(rng)),
	)
}

func NewChainLibrary(rng *rand.Rand) (*action.Library, error) {
	return action.NewLibrary(
		action.Atomic(PivotRotate, pivotRotate(rng)),
		action.Atomic(PullMove, pullMove(rng)),
		action.Atomic(EndMove, endMove(rng)),
		action.Atomic(HydrophobicCollapse, hydrophobicCollapse),
	)
}

// ForScape picks the library matching env's concrete type.
func ForScape(env scape.Environment, rng *rand.Rand) (*action.Library, error) {
	switch env.(type) {
	case *scape.TourScape:
		return NewTourLibrary(rng)
	case *scape.ChainScape:
		return NewChainLibrary(rng)
	default:
		return nil, fmt.Errorf("no strategy library for environment %T", env)
	}
}

// DefaultSeeds names the library actions used as the initial population for
// env when the caller does not choose seeds.
func DefaultSeeds(env scape.Environment) []string {
	switch env.(type) {
	case *scape.TourScape:
		return []string{ConnectNearest, BreakLongest, TwoOpt}
	case *scape.ChainScape:
		return []string{PivotRotate, PullMove, EndMove, HydrophobicCollapse}
	default:
		return nil
	}
}
