package evo

import (
	"testing"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

func selectionCounts(t *testing.T, exploration float64, coherence []float64, draws int) []float64 {
	t.Helper()
	lib := counterLibrary(t)
	cfg := DefaultConfig()
	cfg.ExplorationRate = exploration
	cfg.Seed = 11
	e, err := NewEngine(cfg, &counterEnv{}, numberedPopulation(t, lib, coherence...), lib)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	index := map[*Operator]int{}
	for i, op := range e.population {
		index[op] = i
	}
	counts := make([]float64, len(coherence))
	for i := 0; i < draws; i++ {
		counts[index[e.SelectOperator()]]++
	}
	return counts
}

func chiSquarePValue(observed, expected []float64) float64 {
	chi := stat.ChiSquare(observed, expected)
	return distuv.ChiSquared{K: float64(len(observed) - 1)}.Survival(chi)
}

func TestFullExplorationSelectsUniformly(t *testing.T) {
	const draws = 8000
	counts := selectionCounts(t, 1.0, []float64{0.1, 1, 5, 10}, draws)
	expected := []float64{draws / 4, draws / 4, draws / 4, draws / 4}
	if p := chiSquarePValue(counts, expected); p < 0.001 {
		t.Fatalf("selection is not uniform: counts=%v p=%v", counts, p)
	}
}

func TestZeroExplorationSelectsProportionally(t *testing.T) {
	const draws = 8000
	counts := selectionCounts(t, 0, []float64{1, 3}, draws)
	expected := []float64{draws / 4, 3 * draws / 4}
	if p := chiSquarePValue(counts, expected); p < 0.001 {
		t.Fatalf("selection is not coherence-proportional: counts=%v p=%v", counts, p)
	}
}

func TestRouletteSelectZeroTotalFallsBackToUniform(t *testing.T) {
	lib := counterLibrary(t)
	pop := numberedPopulation(t, lib, 0, 0, 0)
	rng := newTestRand()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		seen[RouletteSelect(rng, pop).ID()] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected every operator to be reachable, saw %v", seen)
	}
}

func TestTournamentSelectFavoursCoherence(t *testing.T) {
	lib := counterLibrary(t)
	pop := numberedPopulation(t, lib, 0.5, 0.5, 0.5, 9)
	rng := newTestRand()
	wins := 0
	for i := 0; i < 1000; i++ {
		if TournamentSelect(rng, pop, TournamentSize).ID() == "op3" {
			wins++
		}
	}
	// P(op3 drawn at least once in three) = 1 - (3/4)^3 ~ 0.58.
	if wins < 500 || wins > 660 {
		t.Fatalf("unexpected tournament wins for strongest operator: %d", wins)
	}
}

func TestSelectOnEmptyPopulation(t *testing.T) {
	rng := newTestRand()
	if UniformSelect(rng, nil) != nil || RouletteSelect(rng, nil) != nil || TournamentSelect(rng, nil, 3) != nil {
		t.Fatal("empty population must select nothing")
	}
}
