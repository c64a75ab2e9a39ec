package action

import (
	"errors"
	"math/rand"
	"testing"

	"opevolve/internal/scape"
)

type countingEnv struct {
	calls []string
}

func (*countingEnv) Name() string                            { return "counting" }
func (*countingEnv) Evaluate() float64                       { return 0 }
func (*countingEnv) CurrentSolution() (scape.Solution, bool) { return nil, false }
func (*countingEnv) Reset()                                  {}
func (*countingEnv) Commit(scape.Solution) error             { return nil }

func recorder(name string, changed bool) Action {
	return Atomic(name, func(env scape.Environment) bool {
		e := env.(*countingEnv)
		e.calls = append(e.calls, name)
		return changed
	})
}

func TestComposeFlattensAndJoinsNames(t *testing.T) {
	a, b, c := recorder("a", true), recorder("b", false), recorder("c", true)
	ab := Compose(a, b)
	abc := Compose(ab, c)
	if abc.Name() != "a+b+c" || !abc.IsComposite() {
		t.Fatalf("unexpected composite: %s", abc.Name())
	}
	if len(abc.Steps()) != 3 {
		t.Fatalf("expected flattened steps, got %d", len(abc.Steps()))
	}
	if single := Compose(a); single.IsComposite() || single.Name() != "a" {
		t.Fatalf("single part should stay atomic: %s", single.Name())
	}
}

func TestCompositeRunsInOrderAndReturnsLastResult(t *testing.T) {
	env := &countingEnv{}
	res := Compose(recorder("a", true), recorder("b", false)).Run(env)
	if res.Fault != nil || res.Changed {
		t.Fatalf("expected last step result false, got %+v", res)
	}
	if len(env.calls) != 2 || env.calls[0] != "a" || env.calls[1] != "b" {
		t.Fatalf("unexpected call order: %v", env.calls)
	}
}

func TestPanicBecomesFault(t *testing.T) {
	boom := Atomic("boom", func(scape.Environment) bool { panic("bad move") })
	env := &countingEnv{}
	res := Compose(boom, recorder("after", true)).Run(env)
	if !errors.Is(res.Fault, ErrActionPanic) {
		t.Fatalf("expected panic fault, got %+v", res)
	}
	if len(env.calls) != 0 {
		t.Fatalf("composite continued after fault: %v", env.calls)
	}
	if res := (Action{}).Run(env); res.Fault == nil {
		t.Fatal("zero action should fault")
	}
}

func TestLibraryRegistrationRules(t *testing.T) {
	if _, err := NewLibrary(recorder("a", true), recorder("a", true)); !errors.Is(err, ErrActionExists) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := NewLibrary(Compose(recorder("a", true), recorder("b", true))); err == nil {
		t.Fatal("expected composite registration to fail")
	}
	if _, err := NewLibrary(Atomic("x+y", func(scape.Environment) bool { return true })); err == nil {
		t.Fatal("expected separator in name to fail")
	}
	if _, err := NewLibrary(Atomic("nil", nil)); err == nil {
		t.Fatal("expected nil function to fail")
	}
}

func TestLibraryParseAndResolve(t *testing.T) {
	lib, err := NewLibrary(recorder("a", true), recorder("b", true))
	if err != nil {
		t.Fatalf("new library: %v", err)
	}
	parsed, err := lib.Parse("a+b+a")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Name() != "a+b+a" || len(parsed.Steps()) != 3 {
		t.Fatalf("unexpected parse result: %s", parsed.Name())
	}
	if _, err := lib.Parse("a+zzz"); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected unknown action, got %v", err)
	}

	foreign := Compose(recorder("x", true), recorder("y", true))
	if got := lib.Resolve(foreign); len(got) != 0 {
		t.Fatalf("expected unresolvable composite, got %d steps", len(got))
	}
	mixed := Compose(recorder("a", true), recorder("x", true))
	if got := lib.Resolve(mixed); len(got) != 1 || got[0].Name() != "a" {
		t.Fatalf("unexpected resolve result: %v", got)
	}
	if got := lib.Resolve(recorder("x", true)); len(got) != 1 {
		t.Fatal("atomic action should resolve to itself")
	}
}

func TestLibraryPickIsUniformOverNames(t *testing.T) {
	lib, _ := NewLibrary(recorder("a", true), recorder("b", true), recorder("c", true))
	rng := rand.New(rand.NewSource(5))
	counts := map[string]int{}
	for i := 0; i < 3000; i++ {
		a, ok := lib.Pick(rng)
		if !ok {
			t.Fatal("pick failed")
		}
		counts[a.Name()]++
	}
	for _, name := range lib.Names() {
		if counts[name] < 850 || counts[name] > 1150 {
			t.Fatalf("pick skewed: %v", counts)
		}
	}
	var empty *Library
	if _, ok := empty.Pick(rng); ok {
		t.Fatal("empty library should not pick")
	}
}
