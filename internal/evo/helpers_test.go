package evo

import (
	"math/rand"
	"strconv"
	"testing"

	"opevolve/internal/action"
	"opevolve/internal/scape"
)

// counterSolution is the committed value of a counterEnv.
type counterSolution float64

func (counterSolution) Len() int                { return 1 }
func (c counterSolution) Clone() scape.Solution { return c }

var _ scape.Environment = (*counterEnv)(nil)

// counterEnv scores its value directly; lower is better.
type counterEnv struct {
	value float64
	moves int
}

func (*counterEnv) Name() string        { return "counter" }
func (e *counterEnv) Evaluate() float64 { return e.value }
func (e *counterEnv) CurrentSolution() (scape.Solution, bool) {
	return counterSolution(e.value), true
}
func (e *counterEnv) Reset() { e.value = 0 }
func (e *counterEnv) Commit(sol scape.Solution) error {
	e.value = float64(sol.(counterSolution))
	return nil
}

func counterLibrary(t *testing.T) *action.Library {
	t.Helper()
	lib, err := action.NewLibrary(
		action.Atomic("dec", func(env scape.Environment) bool {
			e := env.(*counterEnv)
			e.value--
			e.moves++
			return true
		}),
		action.Atomic("inc", func(env scape.Environment) bool {
			e := env.(*counterEnv)
			e.value++
			e.moves++
			return true
		}),
		action.Atomic("noop", func(scape.Environment) bool { return false }),
	)
	if err != nil {
		t.Fatalf("new library: %v", err)
	}
	return lib
}

func seedsFor(t *testing.T, lib *action.Library, names ...string) []*Operator {
	t.Helper()
	seeds, err := SeedOperators(lib, names...)
	if err != nil {
		t.Fatalf("seed operators: %v", err)
	}
	return seeds
}

// numberedPopulation builds n seeds with the given coherences, all wrapping noop.
func numberedPopulation(t *testing.T, lib *action.Library, coherence ...float64) []*Operator {
	t.Helper()
	noop, ok := lib.Lookup("noop")
	if !ok {
		t.Fatal("noop missing")
	}
	out := make([]*Operator, 0, len(coherence))
	for i, c := range coherence {
		op := NewSeedOperator(noop)
		op.id = "op" + strconv.Itoa(i)
		op.coherence = c
		out = append(out, op)
	}
	return out
}

func newTestRand() *rand.Rand {
	return rand.New(rand.NewSource(7))
}
