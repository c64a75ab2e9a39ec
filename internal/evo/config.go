package evo

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid engine config")

// Config tunes the population engine. Zero MaxPopulation, EvolutionInterval,
// InitialTemperature and CoolingRate are treated as unset; the rate fields
// are taken literally, so start from DefaultConfig when only some values
// should change.
type Config struct {
	MaxPopulation      int     `json:"max_population"`
	CrossoverRate      float64 `json:"crossover_rate"`
	MutationRate       float64 `json:"mutation_rate"`
	EliteSurvivalRate  float64 `json:"elite_survival_rate"`
	EvolutionInterval  int     `json:"evolution_interval"`
	InitialTemperature float64 `json:"initial_temperature"`
	CoolingRate        float64 `json:"cooling_rate"`
	ExplorationRate    float64 `json:"exploration_rate"`
	Seed               int64   `json:"seed"`
}

func DefaultConfig() Config {
	return Config{
		MaxPopulation:      20,
		CrossoverRate:      0.7,
		MutationRate:       0.3,
		EliteSurvivalRate:  0.1,
		EvolutionInterval:  20,
		InitialTemperature: 10.0,
		CoolingRate:        0.999,
		ExplorationRate:    0.05,
		Seed:               1,
	}
}

// Validate reports whether c, after default filling, is usable by NewEngine.
func (c Config) Validate() error {
	_, err := c.normalize()
	return err
}

func (c Config) normalize() (Config, error) {
	defaults := DefaultConfig()
	if c.MaxPopulation == 0 {
		c.MaxPopulation = defaults.MaxPopulation
	}
	if c.EvolutionInterval == 0 {
		c.EvolutionInterval = defaults.EvolutionInterval
	}
	if c.InitialTemperature == 0 {
		c.InitialTemperature = defaults.InitialTemperature
	}
	if c.CoolingRate == 0 {
		c.CoolingRate = defaults.CoolingRate
	}

	if c.MaxPopulation < 0 {
		return Config{}, fmt.Errorf("%w: max population must be > 0", ErrInvalidConfig)
	}
	if c.EvolutionInterval < 0 {
		return Config{}, fmt.Errorf("%w: evolution interval must be > 0", ErrInvalidConfig)
	}
	if !(c.InitialTemperature > 0) {
		return Config{}, fmt.Errorf("%w: initial temperature must be > 0", ErrInvalidConfig)
	}
	if !(c.CoolingRate > 0 && c.CoolingRate <= 1) {
		return Config{}, fmt.Errorf("%w: cooling rate must be in (0, 1]", ErrInvalidConfig)
	}
	rates := []struct {
		name  string
		value float64
	}{
		{"crossover rate", c.CrossoverRate},
		{"mutation rate", c.MutationRate},
		{"elite survival rate", c.EliteSurvivalRate},
		{"exploration rate", c.ExplorationRate},
	}
	for _, r := range rates {
		if !(r.value >= 0 && r.value <= 1) {
			return Config{}, fmt.Errorf("%w: %s must be in [0, 1], got %v", ErrInvalidConfig, r.name, r.value)
		}
	}
	return c, nil
}
