package evo

import "math/rand"

// TournamentSize is the number of candidates drawn per tournament.
const TournamentSize = 3

// UniformSelect picks any operator with equal probability.
func UniformSelect(rng *rand.Rand, population []*Operator) *Operator {
	if len(population) == 0 {
		return nil
	}
	return population[rng.Intn(len(population))]
}

// RouletteSelect picks operators with probability proportional to
// coherence. A zero total falls back to uniform choice.
func RouletteSelect(rng *rand.Rand, population []*Operator) *Operator {
	if len(population) == 0 {
		return nil
	}
	total := 0.0
	for _, op := range population {
		total += op.coherence
	}
	if total <= 0 {
		return UniformSelect(rng, population)
	}

	r := rng.Float64() * total
	cumulative := 0.0
	for _, op := range population {
		cumulative += op.coherence
		if cumulative > r {
			return op
		}
	}
	return population[len(population)-1]
}

// TournamentSelect draws size operators uniformly with replacement and
// returns the most coherent.
func TournamentSelect(rng *rand.Rand, population []*Operator, size int) *Operator {
	if len(population) == 0 {
		return nil
	}
	if size <= 0 {
		size = TournamentSize
	}

	best := population[rng.Intn(len(population))]
	for i := 1; i < size; i++ {
		candidate := population[rng.Intn(len(population))]
		if candidate.coherence > best.coherence {
			best = candidate
		}
	}
	return best
}
