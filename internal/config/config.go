// Package config loads run configurations from TOML, YAML or JSON files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"opevolve/internal/evo"
)

var ErrInvalidRunConfig = errors.New("invalid run config")

// EngineOverrides holds the engine keys a file may set. Nil fields keep the
// engine defaults.
type EngineOverrides struct {
	MaxPopulation      *int     `json:"max_population,omitempty" toml:"max_population" yaml:"max_population"`
	CrossoverRate      *float64 `json:"crossover_rate,omitempty" toml:"crossover_rate" yaml:"crossover_rate"`
	MutationRate       *float64 `json:"mutation_rate,omitempty" toml:"mutation_rate" yaml:"mutation_rate"`
	EliteSurvivalRate  *float64 `json:"elite_survival_rate,omitempty" toml:"elite_survival_rate" yaml:"elite_survival_rate"`
	EvolutionInterval  *int     `json:"evolution_interval,omitempty" toml:"evolution_interval" yaml:"evolution_interval"`
	InitialTemperature *float64 `json:"initial_temperature,omitempty" toml:"initial_temperature" yaml:"initial_temperature"`
	CoolingRate        *float64 `json:"cooling_rate,omitempty" toml:"cooling_rate" yaml:"cooling_rate"`
	ExplorationRate    *float64 `json:"exploration_rate,omitempty" toml:"exploration_rate" yaml:"exploration_rate"`
}

// RunConfig describes one engine run.
type RunConfig struct {
	RunID        string          `json:"run_id,omitempty" toml:"run_id" yaml:"run_id"`
	Scape        string          `json:"scape,omitempty" toml:"scape" yaml:"scape"`
	Instance     string          `json:"instance,omitempty" toml:"instance" yaml:"instance"`
	InstanceFile string          `json:"instance_file,omitempty" toml:"instance_file" yaml:"instance_file"`
	Seeds        []string        `json:"seeds,omitempty" toml:"seeds" yaml:"seeds"`
	Resume       string          `json:"resume,omitempty" toml:"resume" yaml:"resume"`
	Ticks        int             `json:"ticks,omitempty" toml:"ticks" yaml:"ticks"`
	Seed         *int64          `json:"seed,omitempty" toml:"seed" yaml:"seed"`
	Store        string          `json:"store,omitempty" toml:"store" yaml:"store"`
	DBPath       string          `json:"db_path,omitempty" toml:"db_path" yaml:"db_path"`
	OutDir       string          `json:"out_dir,omitempty" toml:"out_dir" yaml:"out_dir"`
	LogLevel     string          `json:"log_level,omitempty" toml:"log_level" yaml:"log_level"`
	Checkpoint   string          `json:"checkpoint,omitempty" toml:"checkpoint" yaml:"checkpoint"`
	TickInterval string          `json:"tick_interval,omitempty" toml:"tick_interval" yaml:"tick_interval"`
	Engine       EngineOverrides `json:"engine" toml:"engine" yaml:"engine"`
}

func Default() RunConfig {
	return RunConfig{
		Scape:    "tour",
		Ticks:    1000,
		Store:    "memory",
		LogLevel: "info",
	}
}

// Load reads path and decodes it by extension over Default.
func Load(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	if err != nil {
		return RunConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data in the named format ("toml", "yaml", "yml" or "json")
// over Default and validates the result.
func Parse(data []byte, format string) (RunConfig, error) {
	cfg := Default()
	var err error
	switch format {
	case "toml":
		err = toml.Unmarshal(data, &cfg)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &cfg)
	case "json":
		err = json.Unmarshal(data, &cfg)
	default:
		return RunConfig{}, fmt.Errorf("%w: unsupported config format %q", ErrInvalidRunConfig, format)
	}
	if err != nil {
		return RunConfig{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

func (c RunConfig) Validate() error {
	if c.Ticks < 0 {
		return fmt.Errorf("%w: ticks must be >= 0", ErrInvalidRunConfig)
	}
	if c.Instance != "" && c.InstanceFile != "" {
		return fmt.Errorf("%w: instance and instance_file are exclusive", ErrInvalidRunConfig)
	}
	if c.Resume != "" && len(c.Seeds) > 0 {
		return fmt.Errorf("%w: resume and seeds are exclusive", ErrInvalidRunConfig)
	}
	if c.Store == "sqlite" && c.DBPath == "" {
		return fmt.Errorf("%w: sqlite store requires db_path", ErrInvalidRunConfig)
	}
	if c.Checkpoint != "" {
		if _, err := cron.ParseStandard(c.Checkpoint); err != nil {
			return fmt.Errorf("%w: checkpoint %q: %v", ErrInvalidRunConfig, c.Checkpoint, err)
		}
	}
	if _, err := c.TickDuration(); err != nil {
		return err
	}
	if err := c.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRunConfig, err)
	}
	return nil
}

// TickDuration parses TickInterval; empty means ticks run back to back.
func (c RunConfig) TickDuration() (time.Duration, error) {
	if c.TickInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: tick_interval %q", ErrInvalidRunConfig, c.TickInterval)
	}
	return d, nil
}

// EngineConfig merges the overrides over evo.DefaultConfig.
func (c RunConfig) EngineConfig() evo.Config {
	cfg := evo.DefaultConfig()
	o := c.Engine
	if o.MaxPopulation != nil {
		cfg.MaxPopulation = *o.MaxPopulation
	}
	if o.CrossoverRate != nil {
		cfg.CrossoverRate = *o.CrossoverRate
	}
	if o.MutationRate != nil {
		cfg.MutationRate = *o.MutationRate
	}
	if o.EliteSurvivalRate != nil {
		cfg.EliteSurvivalRate = *o.EliteSurvivalRate
	}
	if o.EvolutionInterval != nil {
		cfg.EvolutionInterval = *o.EvolutionInterval
	}
	if o.InitialTemperature != nil {
		cfg.InitialTemperature = *o.InitialTemperature
	}
	if o.CoolingRate != nil {
		cfg.CoolingRate = *o.CoolingRate
	}
	if o.ExplorationRate != nil {
		cfg.ExplorationRate = *o.ExplorationRate
	}
	if c.Seed != nil {
		cfg.Seed = *c.Seed
	}
	return cfg
}
