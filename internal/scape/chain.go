package scape

import (
	"fmt"
	"strings"

	"opevolve/internal/vecmath"
)

// Conformation is a chain placement: one lattice point per residue.
type Conformation []vecmath.Vec3

func (c Conformation) Len() int {
	return len(c)
}

func (c Conformation) Clone() Solution {
	return append(Conformation(nil), c...)
}

func (c Conformation) Equivalent(other Conformation) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// ChainScape is an HP lattice protein on the cubic lattice. Cost is the
// negated count of non-bonded hydrophobic contacts, so lower is better.
type ChainScape struct {
	name     string
	sequence []bool // true for H
	coords   []vecmath.Vec3
	occupied map[vecmath.Vec3]int
}

// NewChainScape parses an H/P sequence such as "HPHPPHHPHH".
func NewChainScape(name, sequence string) (*ChainScape, error) {
	sequence = strings.ToUpper(strings.TrimSpace(sequence))
	if len(sequence) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewResidues, len(sequence))
	}
	hydrophobic := make([]bool, len(sequence))
	for i, r := range sequence {
		switch r {
		case 'H':
			hydrophobic[i] = true
		case 'P':
		default:
			return nil, fmt.Errorf("invalid residue %q at position %d", r, i)
		}
	}
	if name == "" {
		name = fmt.Sprintf("hp%d", len(sequence))
	}
	s := &ChainScape{
		name:     name,
		sequence: hydrophobic,
		coords:   make([]vecmath.Vec3, len(sequence)),
		occupied: make(map[vecmath.Vec3]int, len(sequence)),
	}
	s.Reset()
	return s, nil
}

func (s *ChainScape) Name() string {
	return s.name
}

func (s *ChainScape) Residues() int {
	return len(s.sequence)
}

// Hydrophobic reports whether residue i is H.
func (s *ChainScape) Hydrophobic(i int) bool {
	return s.sequence[i]
}

func (s *ChainScape) Sequence() string {
	var b strings.Builder
	for _, h := range s.sequence {
		if h {
			b.WriteByte('H')
		} else {
			b.WriteByte('P')
		}
	}
	return b.String()
}

// Coords returns a copy of the current placement.
func (s *ChainScape) Coords() []vecmath.Vec3 {
	return append([]vecmath.Vec3(nil), s.coords...)
}

// Occupied returns the residue at p, if any.
func (s *ChainScape) Occupied(p vecmath.Vec3) (int, bool) {
	i, ok := s.occupied[p]
	return i, ok
}

func (s *ChainScape) Evaluate() float64 {
	return s.EnergyOf(s.coords)
}

// EnergyOf scores an arbitrary placement of this sequence without touching
// the current state. The placement is assumed valid.
func (s *ChainScape) EnergyOf(coords []vecmath.Vec3) float64 {
	index := make(map[vecmath.Vec3]int, len(coords))
	for i, p := range coords {
		index[p] = i
	}
	contacts := 0
	for i, p := range coords {
		if !s.sequence[i] {
			continue
		}
		for _, step := range vecmath.Axes {
			j, ok := index[vecmath.V3Add(p, step)]
			if !ok || j <= i+1 || !s.sequence[j] {
				continue
			}
			contacts++
		}
	}
	return -float64(contacts)
}

func (s *ChainScape) CurrentSolution() (Solution, bool) {
	return Conformation(s.Coords()), true
}

// Reset lays the chain out straight along +X.
func (s *ChainScape) Reset() {
	for i := range s.coords {
		s.coords[i] = vecmath.Vec3{X: i}
	}
	s.reindex()
}

func (s *ChainScape) Commit(sol Solution) error {
	c, ok := sol.(Conformation)
	if !ok {
		return fmt.Errorf("%w: %T is not a conformation", ErrInvalidSolution, sol)
	}
	if err := s.validate(c); err != nil {
		return err
	}
	copy(s.coords, c)
	s.reindex()
	return nil
}

// TrySetCoords applies coords if they form a valid placement.
func (s *ChainScape) TrySetCoords(coords []vecmath.Vec3) bool {
	return s.Commit(Conformation(coords)) == nil
}

func (s *ChainScape) validate(c []vecmath.Vec3) error {
	if len(c) != len(s.sequence) {
		return fmt.Errorf("%w: placement has %d residues, want %d", ErrInvalidSolution, len(c), len(s.sequence))
	}
	seen := make(map[vecmath.Vec3]struct{}, len(c))
	for i, p := range c {
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: residue %d collides", ErrInvalidSolution, i)
		}
		seen[p] = struct{}{}
		if i > 0 && !vecmath.V3Adjacent(c[i-1], p) {
			return fmt.Errorf("%w: residues %d and %d are not adjacent", ErrInvalidSolution, i-1, i)
		}
	}
	return nil
}

func (s *ChainScape) reindex() {
	clear(s.occupied)
	for i, p := range s.coords {
		s.occupied[p] = i
	}
}
