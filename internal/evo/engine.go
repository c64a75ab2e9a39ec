package evo

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"opevolve/internal/action"
	"opevolve/internal/scape"
)

// TickReport describes one completed tick.
type TickReport struct {
	Tick        int     `json:"tick"`
	Changed     bool    `json:"changed"`
	OperatorID  string  `json:"operator_id"`
	Operator    string  `json:"operator"`
	Delta       float64 `json:"delta"`
	Score       float64 `json:"score"`
	Temperature float64 `json:"temperature"`
	Improvement string  `json:"improvement,omitempty"`
}

// BestRecord is the best state seen since the last environment reset.
type BestRecord struct {
	Score      float64
	Solution   scape.Solution
	Tick       int
	OperatorID string
}

type OperatorSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Coherence float64  `json:"coherence"`
	Uses      int      `json:"uses"`
	Successes int      `json:"successes"`
	Failures  int      `json:"failures"`
	Ancestry  Ancestry `json:"ancestry"`
}

type Status struct {
	Tick           int               `json:"tick"`
	Generation     int               `json:"generation"`
	PopulationSize int               `json:"population_size"`
	Top            []OperatorSummary `json:"top"`
	Temperature    float64           `json:"temperature"`
	BestScore      float64           `json:"-"`
	HasBest        bool              `json:"has_best"`
}

// LineageRecord logs the birth of one operator.
type LineageRecord struct {
	OperatorID string   `json:"operator_id"`
	Action     string   `json:"action"`
	Parents    []string `json:"parents,omitempty"`
	Generation int      `json:"generation"`
	Lineage    Lineage  `json:"lineage"`
	BornAtTick int      `json:"born_at_tick"`
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRand replaces the seeded random source.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// Engine evolves a population of operators against one environment. It is
// not safe for concurrent use: callers serialize Tick and the other
// methods.
type Engine struct {
	cfg        Config
	env        scape.Environment
	library    *action.Library
	population []*Operator
	rng        *rand.Rand
	logger     *slog.Logger

	tick        int
	generation  int
	temperature float64
	best        BestRecord
	lineage     []LineageRecord
}

func NewEngine(cfg Config, env scape.Environment, seeds []*Operator, lib *action.Library, opts ...Option) (*Engine, error) {
	if env == nil {
		return nil, fmt.Errorf("environment is required")
	}
	if lib == nil {
		return nil, fmt.Errorf("action library is required")
	}
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	if len(seeds) > cfg.MaxPopulation {
		return nil, fmt.Errorf("%w: %d seeds exceed max population %d", ErrInvalidConfig, len(seeds), cfg.MaxPopulation)
	}
	for i, op := range seeds {
		if op == nil {
			return nil, fmt.Errorf("seed operator is nil at index %d", i)
		}
	}

	e := &Engine{
		cfg:         cfg,
		env:         env,
		library:     lib,
		population:  append([]*Operator(nil), seeds...),
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		logger:      discardLogger(),
		temperature: cfg.InitialTemperature,
		best:        BestRecord{Score: math.Inf(1)},
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, op := range e.population {
		op.setLogger(e.logger)
		e.recordBirth(op)
	}
	return e, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) Environment() scape.Environment {
	return e.env
}

func (e *Engine) Library() *action.Library {
	return e.library
}

// Tick runs one select/apply/score/feedback cycle. It returns false and does
// nothing when the population is empty. A faulting action is scored as no
// change: the environment is restored when it exposes a solution, feedback
// sees a zero delta and the best record is left untouched.
func (e *Engine) Tick() (TickReport, bool) {
	if len(e.population) == 0 {
		return TickReport{}, false
	}
	if e.best.Solution != nil {
		if err := e.env.Commit(e.best.Solution); err != nil {
			e.logger.Warn("ratchet commit rejected", "tick", e.tick+1, "error", err)
		}
	}
	e.tick++

	before := e.env.Evaluate()
	snapshot, restorable := e.env.CurrentSolution()
	if restorable {
		snapshot = snapshot.Clone()
	}
	op := e.SelectOperator()
	res := op.run(e.env)
	faulted := res.Fault != nil
	changed := !faulted && res.Changed
	if faulted && restorable {
		if err := e.env.Commit(snapshot); err != nil {
			e.logger.Warn("restore after fault rejected", "tick", e.tick, "error", err)
		}
	}
	after := e.env.Evaluate()
	delta := after - before
	if faulted {
		delta = 0
	}
	op.Feedback(e.rng, delta, e.temperature)

	report := TickReport{
		Tick:       e.tick,
		Changed:    changed,
		OperatorID: op.ID(),
		Operator:   op.Name(),
		Delta:      delta,
		Score:      after,
	}

	if !faulted && after < e.best.Score {
		e.best.Score = after
		e.best.Tick = e.tick
		e.best.OperatorID = op.ID()
		if sol, ok := e.env.CurrentSolution(); ok {
			e.best.Solution = sol.Clone()
		}
		report.Improvement = fmt.Sprintf("new best %.6g at tick %d by %s", after, e.tick, op.Name())
		e.logger.Info("new best", "tick", e.tick, "score", after, "operator", op.ID())
	}

	if e.tick%e.cfg.EvolutionInterval == 0 {
		e.Evolve()
	}

	e.temperature *= e.cfg.CoolingRate
	report.Temperature = e.temperature
	return report, true
}

// SelectOperator picks a uniformly random operator with probability
// ExplorationRate and otherwise spins the coherence roulette wheel.
func (e *Engine) SelectOperator() *Operator {
	if len(e.population) == 0 {
		return nil
	}
	if e.rng.Float64() < e.cfg.ExplorationRate {
		return UniformSelect(e.rng, e.population)
	}
	return RouletteSelect(e.rng, e.population)
}

// Evolve regenerates the population: elites survive, the rest is refilled
// with crossover and mutation children of tournament winners. Populations
// smaller than two are left alone.
func (e *Engine) Evolve() {
	if len(e.population) < 2 {
		return
	}

	ranked := append([]*Operator(nil), e.population...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].coherence > ranked[j].coherence
	})

	eliteCount := int(float64(len(ranked)) * e.cfg.EliteSurvivalRate)
	if eliteCount < 1 {
		eliteCount = 1
	}

	next := make([]*Operator, 0, e.cfg.MaxPopulation)
	next = append(next, ranked[:eliteCount]...)
	e.generation++

	crossovers, mutations := 0, 0
	for len(next) < e.cfg.MaxPopulation {
		var child *Operator
		if e.rng.Float64() < e.cfg.CrossoverRate {
			a := TournamentSelect(e.rng, ranked, TournamentSize)
			b := TournamentSelect(e.rng, ranked, TournamentSize)
			if a == b {
				child = a.CloneWithMutation(e.rng, e.library, e.cfg.MutationRate)
				mutations++
			} else {
				child = a.Crossover(e.rng, b, e.library, e.cfg.MutationRate)
				crossovers++
			}
		} else {
			child = TournamentSelect(e.rng, ranked, TournamentSize).CloneWithMutation(e.rng, e.library, e.cfg.MutationRate)
			mutations++
		}
		next = append(next, child)
		e.recordBirth(child)
	}
	if len(next) > e.cfg.MaxPopulation {
		next = next[:e.cfg.MaxPopulation]
	}
	e.population = next

	e.logger.Debug("population regenerated",
		"tick", e.tick,
		"generation", e.generation,
		"elites", eliteCount,
		"crossovers", crossovers,
		"mutations", mutations,
	)
}

// Status summarises the engine for observers.
func (e *Engine) Status(topN int) Status {
	ranked := append([]*Operator(nil), e.population...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].coherence > ranked[j].coherence
	})
	if topN < 0 || topN > len(ranked) {
		topN = len(ranked)
	}
	top := make([]OperatorSummary, 0, topN)
	for _, op := range ranked[:topN] {
		top = append(top, summarize(op))
	}
	return Status{
		Tick:           e.tick,
		Generation:     e.generation,
		PopulationSize: len(e.population),
		Top:            top,
		Temperature:    e.temperature,
		BestScore:      e.best.Score,
		HasBest:        !math.IsInf(e.best.Score, 1),
	}
}

// Best returns the best-known record, if any complete state was scored.
func (e *Engine) Best() (BestRecord, bool) {
	if math.IsInf(e.best.Score, 1) {
		return BestRecord{Score: e.best.Score}, false
	}
	best := e.best
	if best.Solution != nil {
		best.Solution = best.Solution.Clone()
	}
	return best, true
}

// Population summarises every operator in population order.
func (e *Engine) Population() []OperatorSummary {
	out := make([]OperatorSummary, 0, len(e.population))
	for _, op := range e.population {
		out = append(out, summarize(op))
	}
	return out
}

// Snapshot returns the persistable state of every operator.
func (e *Engine) Snapshot() []OperatorState {
	out := make([]OperatorState, 0, len(e.population))
	for _, op := range e.population {
		out = append(out, op.State())
	}
	return out
}

func (e *Engine) Lineage() []LineageRecord {
	out := make([]LineageRecord, len(e.lineage))
	for i, rec := range e.lineage {
		rec.Parents = append([]string(nil), rec.Parents...)
		out[i] = rec
	}
	return out
}

func (e *Engine) Temperature() float64 {
	return e.temperature
}

// SetTemperature reconfigures the annealing temperature; cooling continues
// from the new value.
func (e *Engine) SetTemperature(t float64) {
	e.temperature = t
}

// ResetEnvironment clears the environment and forgets the best record.
func (e *Engine) ResetEnvironment() {
	e.env.Reset()
	e.best = BestRecord{Score: math.Inf(1)}
	e.logger.Info("environment reset", "tick", e.tick)
}

func (e *Engine) recordBirth(op *Operator) {
	e.lineage = append(e.lineage, LineageRecord{
		OperatorID: op.id,
		Action:     op.action.Name(),
		Parents:    append([]string(nil), op.ancestry.Parents...),
		Generation: op.ancestry.Generation,
		Lineage:    op.ancestry.Lineage,
		BornAtTick: e.tick,
	})
}

func summarize(op *Operator) OperatorSummary {
	return OperatorSummary{
		ID:        op.id,
		Name:      op.action.Name(),
		Coherence: op.coherence,
		Uses:      op.uses,
		Successes: op.successes,
		Failures:  op.failures,
		Ancestry:  cloneAncestry(op.ancestry),
	}
}
