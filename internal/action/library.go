package action

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

var (
	ErrActionExists  = errors.New("action already registered")
	ErrUnknownAction = errors.New("unknown action")
)

// Library is an ordered name -> atomic action table used by mutation and
// crossover. It is built once and read-only afterwards.
type Library struct {
	names  []string
	byName map[string]Action
}

func NewLibrary(actions ...Action) (*Library, error) {
	lib := &Library{byName: make(map[string]Action, len(actions))}
	for _, a := range actions {
		if err := lib.add(a); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

func (l *Library) add(a Action) error {
	if a.Name() == "" {
		return errors.New("action name is required")
	}
	if a.IsComposite() {
		return fmt.Errorf("library actions must be atomic: %s", a.Name())
	}
	if strings.Contains(a.Name(), Separator) {
		return fmt.Errorf("action name %q contains %q", a.Name(), Separator)
	}
	if a.fn == nil {
		return fmt.Errorf("action %s has no function", a.Name())
	}
	if _, exists := l.byName[a.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrActionExists, a.Name())
	}
	l.names = append(l.names, a.Name())
	l.byName[a.Name()] = a
	return nil
}

func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return len(l.names)
}

// Names lists action names in registration order.
func (l *Library) Names() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.names...)
}

func (l *Library) Lookup(name string) (Action, bool) {
	if l == nil {
		return Action{}, false
	}
	a, ok := l.byName[name]
	return a, ok
}

// Pick returns a uniformly chosen action.
func (l *Library) Pick(rng *rand.Rand) (Action, bool) {
	if l.Len() == 0 || rng == nil {
		return Action{}, false
	}
	return l.byName[l.names[rng.Intn(len(l.names))]], true
}

// Parse rebuilds an action from its display name.
func (l *Library) Parse(name string) (Action, error) {
	steps, err := l.ParseSteps(name)
	if err != nil {
		return Action{}, err
	}
	return Compose(steps...), nil
}

// ParseSteps splits a "+"-joined display name into library actions. Every
// part must be known.
func (l *Library) ParseSteps(name string) ([]Action, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnknownAction)
	}
	parts := strings.Split(name, Separator)
	steps := make([]Action, 0, len(parts))
	for _, part := range parts {
		a, ok := l.Lookup(part)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAction, part)
		}
		steps = append(steps, a)
	}
	return steps, nil
}

// Resolve maps the steps of a against the library by name. Atomic actions
// resolve to themselves; composite steps unknown to the library are
// dropped.
func (l *Library) Resolve(a Action) []Action {
	if !a.IsComposite() {
		return a.Steps()
	}
	var out []Action
	for _, step := range a.Steps() {
		if known, ok := l.Lookup(step.Name()); ok {
			out = append(out, known)
		}
	}
	return out
}
