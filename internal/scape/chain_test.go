package scape

import (
	"errors"
	"testing"

	"opevolve/internal/vecmath"
)

func TestNewChainScapeValidation(t *testing.T) {
	if _, err := NewChainScape("", "H"); !errors.Is(err, ErrTooFewResidues) {
		t.Fatalf("expected ErrTooFewResidues, got %v", err)
	}
	if _, err := NewChainScape("", "HPX"); err == nil {
		t.Fatal("expected invalid residue error")
	}
	s, err := NewChainScape("", "hpph")
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}
	if s.Sequence() != "HPPH" || s.Name() != "hp4" {
		t.Fatalf("unexpected chain: %s %s", s.Name(), s.Sequence())
	}
}

func TestChainEnergyCountsNonBondedContacts(t *testing.T) {
	s, err := NewChainScape("square", "HPPH")
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}
	if got := s.Evaluate(); got != 0 {
		t.Fatalf("straight chain energy: got=%v want=0", got)
	}
	square := Conformation{{X: 0}, {X: 1}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	if err := s.Commit(square); err != nil {
		t.Fatalf("commit square: %v", err)
	}
	if got := s.Evaluate(); got != -1 {
		t.Fatalf("square energy: got=%v want=-1", got)
	}
}

func TestChainCommitRejectsInvalidPlacement(t *testing.T) {
	s, _ := NewChainScape("c", "HPHP")
	before := s.Coords()
	cases := []Conformation{
		{{X: 0}, {X: 1}, {X: 0}, {X: 1}},
		{{X: 0}, {X: 2}, {X: 3}, {X: 4}},
		{{X: 0}, {X: 1}},
	}
	for _, c := range cases {
		if err := s.Commit(c); !errors.Is(err, ErrInvalidSolution) {
			t.Fatalf("expected ErrInvalidSolution for %v, got %v", c, err)
		}
	}
	if !Conformation(s.Coords()).Equivalent(before) {
		t.Fatal("rejected commit changed state")
	}
	if s.TrySetCoords([]vecmath.Vec3{{X: 0}, {X: 0}, {X: 1}, {X: 2}}) {
		t.Fatal("expected colliding placement to be refused")
	}
}

func TestChainCommitRoundTripAndReset(t *testing.T) {
	s, _ := NewChainScape("c", "HPHPH")
	placement := Conformation{{X: 0}, {X: 1}, {X: 1, Y: 1}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 1, Z: 1}}
	if err := s.Commit(placement); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, ok := s.CurrentSolution()
	if !ok || !placement.Equivalent(got.(Conformation)) {
		t.Fatalf("round trip mismatch: %v", got)
	}
	if i, ok := s.Occupied(vecmath.Vec3{X: 1, Y: 1, Z: 1}); !ok || i != 3 {
		t.Fatalf("occupancy not rebuilt: %d %v", i, ok)
	}
	s.Reset()
	if _, ok := s.Occupied(vecmath.Vec3{X: 1, Y: 1, Z: 1}); ok {
		t.Fatal("reset kept stale occupancy")
	}
	if s.Coords()[4] != (vecmath.Vec3{X: 4}) {
		t.Fatalf("reset did not straighten chain: %v", s.Coords())
	}
}
