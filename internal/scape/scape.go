package scape

import (
	"errors"
	"math"
)

// Incomplete is the cost reported for a state that is not yet a complete
// solution.
var Incomplete = math.Inf(1)

var (
	ErrTooFewCities      = errors.New("tour requires at least 3 cities")
	ErrTooFewResidues    = errors.New("chain requires at least 2 residues")
	ErrInvalidSolution   = errors.New("invalid solution")
	ErrMalformedInstance = errors.New("malformed instance")
)

// Solution is an immutable snapshot of an environment's complete state.
type Solution interface {
	Len() int
	Clone() Solution
}

// Environment is the mutable problem state searched by the engine.
// Intermediate states are never errors: incompleteness is reported as
// Incomplete cost.
type Environment interface {
	Name() string
	Evaluate() float64
	CurrentSolution() (Solution, bool)
	Reset()
	// Commit overwrites the mutable state from a snapshot. Invalid
	// snapshots are rejected and leave the state unchanged.
	Commit(Solution) error
}

// IsIncomplete reports whether cost is the incomplete sentinel.
func IsIncomplete(cost float64) bool {
	return math.IsInf(cost, 1)
}
