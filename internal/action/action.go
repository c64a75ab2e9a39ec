package action

import (
	"errors"
	"fmt"
	"strings"

	"opevolve/internal/scape"
)

// Separator joins step names in a composite's display name.
const Separator = "+"

var ErrActionPanic = errors.New("action panicked")

// Func is an atomic move. It reports whether the environment changed.
type Func func(env scape.Environment) bool

// Kind tags the Action variant.
type Kind uint8

const (
	KindAtomic Kind = iota
	KindComposite
)

// Result is the outcome of running an action. A non-nil Fault means the
// action failed and Changed carries no meaning.
type Result struct {
	Changed bool
	Fault   error
}

// Action is either an atomic named function or an ordered composite of
// atomic steps.
type Action struct {
	kind  Kind
	name  string
	fn    Func
	steps []Action
}

func Atomic(name string, fn Func) Action {
	return Action{kind: KindAtomic, name: name, fn: fn}
}

// Compose builds a composite that runs parts in order. Nested composites are
// flattened; a single atomic part is returned unchanged.
func Compose(parts ...Action) Action {
	steps := make([]Action, 0, len(parts))
	for _, part := range parts {
		steps = append(steps, part.Steps()...)
	}
	if len(steps) == 1 {
		return steps[0]
	}
	names := make([]string, len(steps))
	for i, step := range steps {
		names[i] = step.name
	}
	return Action{kind: KindComposite, name: strings.Join(names, Separator), steps: steps}
}

func (a Action) Kind() Kind {
	return a.kind
}

func (a Action) IsComposite() bool {
	return a.kind == KindComposite
}

func (a Action) Name() string {
	return a.name
}

// Steps returns the atomic steps of a; an atomic action is its own single
// step. The zero Action has no steps.
func (a Action) Steps() []Action {
	switch {
	case a.kind == KindComposite:
		return append([]Action(nil), a.steps...)
	case a.fn == nil:
		return nil
	default:
		return []Action{a}
	}
}

// Run executes the action. For composites the last step's Changed flag is
// returned and execution stops at the first fault.
func (a Action) Run(env scape.Environment) Result {
	if a.kind == KindComposite {
		var res Result
		for _, step := range a.steps {
			res = step.Run(env)
			if res.Fault != nil {
				return res
			}
		}
		return res
	}
	if a.fn == nil {
		return Result{Fault: fmt.Errorf("action %q has no function", a.name)}
	}
	return runAtomic(a.name, a.fn, env)
}

func runAtomic(name string, fn Func, env scape.Environment) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Fault: fmt.Errorf("%w: %s: %v", ErrActionPanic, name, r)}
		}
	}()
	return Result{Changed: fn(env)}
}
