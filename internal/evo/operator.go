package evo

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"opevolve/internal/action"
	"opevolve/internal/scape"
)

// Coherence bounds and update factors.
const (
	MinCoherence     = 0.01
	MaxCoherence     = 10.0
	InitialCoherence = 1.0

	improveFactor = 1.05
	acceptFactor  = 1.01
	rejectFactor  = 0.95
)

type Lineage string

const (
	LineageSeed    Lineage = "seed"
	LineageAsexual Lineage = "asexual"
	LineageSexual  Lineage = "sexual"
)

type Ancestry struct {
	Parents    []string `json:"parents,omitempty"`
	Generation int      `json:"generation"`
	Lineage    Lineage  `json:"lineage"`
}

// Operator is an evolvable move: an action plus the record of how well it
// has done. Operators never touch each other's state.
type Operator struct {
	id        string
	action    action.Action
	coherence float64
	uses      int
	successes int
	failures  int
	ancestry  Ancestry
	logger    *slog.Logger
}

// OperatorState is the persistable form of an Operator. The action is kept
// by display name and rebuilt from a library.
type OperatorState struct {
	ID        string   `json:"id"`
	Action    string   `json:"action"`
	Coherence float64  `json:"coherence"`
	Uses      int      `json:"uses"`
	Successes int      `json:"successes"`
	Failures  int      `json:"failures"`
	Ancestry  Ancestry `json:"ancestry"`
}

// NewSeedOperator wraps a named action. The operator id is the action name.
func NewSeedOperator(a action.Action) *Operator {
	return &Operator{
		id:        a.Name(),
		action:    a,
		coherence: InitialCoherence,
		ancestry:  Ancestry{Lineage: LineageSeed},
		logger:    discardLogger(),
	}
}

// SeedOperators looks up each name in lib and wraps it as a seed.
func SeedOperators(lib *action.Library, names ...string) ([]*Operator, error) {
	seeds := make([]*Operator, 0, len(names))
	for _, name := range names {
		a, err := lib.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", name, err)
		}
		seeds = append(seeds, NewSeedOperator(a))
	}
	return seeds, nil
}

// RestoreOperator rebuilds a persisted operator against lib.
func RestoreOperator(st OperatorState, lib *action.Library) (*Operator, error) {
	a, err := lib.Parse(st.Action)
	if err != nil {
		return nil, fmt.Errorf("restore operator %s: %w", st.ID, err)
	}
	return &Operator{
		id:        st.ID,
		action:    a,
		coherence: clampCoherence(st.Coherence),
		uses:      st.Uses,
		successes: st.Successes,
		failures:  st.Failures,
		ancestry:  cloneAncestry(st.Ancestry),
		logger:    discardLogger(),
	}, nil
}

func (o *Operator) ID() string            { return o.id }
func (o *Operator) Name() string          { return o.action.Name() }
func (o *Operator) Action() action.Action { return o.action }
func (o *Operator) Coherence() float64    { return o.coherence }
func (o *Operator) Uses() int             { return o.uses }
func (o *Operator) Successes() int        { return o.successes }
func (o *Operator) Failures() int         { return o.failures }
func (o *Operator) Ancestry() Ancestry    { return cloneAncestry(o.ancestry) }

func (o *Operator) setLogger(l *slog.Logger) { o.logger = l }

func (o *Operator) State() OperatorState {
	return OperatorState{
		ID:        o.id,
		Action:    o.action.Name(),
		Coherence: o.coherence,
		Uses:      o.uses,
		Successes: o.successes,
		Failures:  o.failures,
		Ancestry:  cloneAncestry(o.ancestry),
	}
}

// Apply runs the action against env. A faulting action is logged and
// reported as no change.
func (o *Operator) Apply(env scape.Environment) bool {
	res := o.run(env)
	return res.Fault == nil && res.Changed
}

func (o *Operator) run(env scape.Environment) action.Result {
	o.uses++
	res := o.action.Run(env)
	if res.Fault != nil {
		o.logger.Warn("operator action faulted", "operator", o.id, "error", res.Fault)
	}
	return res
}

// Feedback updates coherence from the cost change caused by the last apply.
// Improvements always earn the improvement factor; other outcomes pass a
// Metropolis test at the given temperature.
func (o *Operator) Feedback(rng *rand.Rand, delta, temperature float64) {
	if delta < 0 {
		o.successes++
		o.coherence *= improveFactor
	} else if rng.Float64() < acceptance(delta, temperature) {
		o.coherence *= acceptFactor
	} else {
		o.failures++
		o.coherence *= rejectFactor
	}
	o.coherence = clampCoherence(o.coherence)
}

// CloneWithMutation returns a child that, with probability mutationRate,
// appends one uniformly chosen library action to this operator's action.
func (o *Operator) CloneWithMutation(rng *rand.Rand, lib *action.Library, mutationRate float64) *Operator {
	a := o.action
	if rng.Float64() < mutationRate {
		if extra, ok := lib.Pick(rng); ok {
			a = action.Compose(o.action, extra)
		}
	}
	return o.child(a, []string{o.id}, o.ancestry.Generation+1, LineageAsexual)
}

// Crossover splices the head of this operator's step sequence onto the tail
// of partner's. Sequences that cannot be resolved against lib fall back to
// a mutation clone.
func (o *Operator) Crossover(rng *rand.Rand, partner *Operator, lib *action.Library, mutationRate float64) *Operator {
	if partner == nil {
		return o.CloneWithMutation(rng, lib, mutationRate)
	}
	head := lib.Resolve(o.action)
	tail := lib.Resolve(partner.action)
	if len(head) == 0 || len(tail) == 0 {
		return o.CloneWithMutation(rng, lib, mutationRate)
	}

	cutA := rng.Intn(len(head) + 1)
	cutB := rng.Intn(len(tail) + 1)
	steps := make([]action.Action, 0, cutA+len(tail)-cutB)
	steps = append(steps, head[:cutA]...)
	steps = append(steps, tail[cutB:]...)
	if len(steps) == 0 {
		steps = head
	}

	generation := max(o.ancestry.Generation, partner.ancestry.Generation) + 1
	return o.child(action.Compose(steps...), []string{o.id, partner.id}, generation, LineageSexual)
}

func (o *Operator) String() string {
	parents := "-"
	if len(o.ancestry.Parents) > 0 {
		parents = strings.Join(o.ancestry.Parents, ",")
	}
	return fmt.Sprintf("%s (coherence=%.3f uses=%d gen=%d lineage=%s parents=%s)",
		o.action.Name(), o.coherence, o.uses, o.ancestry.Generation, o.ancestry.Lineage, parents)
}

func (o *Operator) child(a action.Action, parents []string, generation int, lineage Lineage) *Operator {
	return &Operator{
		id:        a.Name() + "#" + uuid.NewString()[:8],
		action:    a,
		coherence: InitialCoherence,
		ancestry:  Ancestry{Parents: parents, Generation: generation, Lineage: lineage},
		logger:    o.logger,
	}
}

// acceptance is the Metropolis probability exp(-delta/T). Degenerate inputs
// yield 0.
func acceptance(delta, temperature float64) float64 {
	if !(temperature > 0) || math.IsInf(temperature, 0) {
		return 0
	}
	p := math.Exp(-delta / temperature)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return math.Min(p, 1)
}

func clampCoherence(c float64) float64 {
	if math.IsNaN(c) {
		return MinCoherence
	}
	return math.Max(MinCoherence, math.Min(MaxCoherence, c))
}

func cloneAncestry(a Ancestry) Ancestry {
	a.Parents = append([]string(nil), a.Parents...)
	return a
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
