// Package platform orchestrates engine runs: it builds environments from
// registered scape factories, drives ticks, checkpoints progress to a store
// and runs parallel benchmarks.
package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"opevolve/internal/action"
	"opevolve/internal/config"
	"opevolve/internal/evo"
	"opevolve/internal/model"
	"opevolve/internal/scape"
	"opevolve/internal/scapeid"
	"opevolve/internal/storage"
	"opevolve/internal/strategy"
)

var (
	ErrNotStarted   = errors.New("polis is not initialized")
	ErrUnknownScape = errors.New("scape not registered")
	ErrRunActive    = errors.New("run already active")
	ErrRunNotFound  = errors.New("run not active")
)

type Config struct {
	Store  storage.Store
	Logger *slog.Logger
}

// ScapeFactory builds a fresh environment for one run.
type ScapeFactory func(cfg config.RunConfig) (scape.Environment, error)

// RunResult is what RunTicks hands back after a run ends.
type RunResult struct {
	RunID      string
	Record     model.RunRecord
	Engine     evo.Config
	Best       evo.BestRecord
	HasBest    bool
	Status     evo.Status
	Population []evo.OperatorSummary
	Lineage    []evo.LineageRecord
	History    []model.ScorePoint
}

type activeRun struct {
	driver *Driver
	cancel context.CancelFunc
}

type Polis struct {
	store  storage.Store
	logger *slog.Logger

	mu      sync.RWMutex
	scapes  map[string]ScapeFactory
	runs    map[string]*activeRun
	started bool
}

func NewPolis(cfg Config) *Polis {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := &Polis{
		store:  cfg.Store,
		logger: logger,
		scapes: make(map[string]ScapeFactory),
		runs:   make(map[string]*activeRun),
	}
	p.scapes[scapeid.Tour] = tourFactory
	p.scapes[scapeid.Chain] = chainFactory
	return p
}

func (p *Polis) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return err
	}
	p.started = true
	return nil
}

// Reset stops active runs and clears the store.
func (p *Polis) Reset(ctx context.Context) error {
	p.Stop()
	if p.store != nil {
		if err := p.store.Init(ctx); err != nil {
			return err
		}
		if err := p.store.Reset(ctx); err != nil {
			return err
		}
	}
	return p.Init(ctx)
}

// Stop cancels every active run. The polis must be re-initialised before
// new runs start.
func (p *Polis) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, run := range p.runs {
		run.cancel()
	}
	p.started = false
}

func (p *Polis) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Polis) Store() storage.Store {
	return p.store
}

// RegisterScape adds or replaces the factory used for scape name. Names
// are canonicalized with scapeid.Normalize.
func (p *Polis) RegisterScape(name string, factory ScapeFactory) error {
	name = scapeid.Normalize(name)
	if name == "" {
		return fmt.Errorf("scape name is required")
	}
	if factory == nil {
		return fmt.Errorf("scape factory is nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scapes[name] = factory
	return nil
}

func (p *Polis) RegisteredScapes() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.scapes))
	for name := range p.scapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Polis) ActiveRuns() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.runs))
	for id := range p.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RunStatus reports the live status of an active run.
func (p *Polis) RunStatus(runID string, topN int) (evo.Status, bool) {
	p.mu.RLock()
	run, ok := p.runs[runID]
	p.mu.RUnlock()
	if !ok {
		return evo.Status{}, false
	}
	return run.driver.Status(topN), true
}

// StopRun cancels an active run; RunTicks then persists it as cancelled.
func (p *Polis) StopRun(runID string) error {
	p.mu.RLock()
	run, ok := p.runs[runID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	run.cancel()
	return nil
}

// BuildEnvironment resolves the scape factory for cfg and builds a fresh
// environment.
func (p *Polis) BuildEnvironment(cfg config.RunConfig) (scape.Environment, error) {
	name := scapeid.Normalize(cfg.Scape)
	if name == "" {
		name = scapeid.Tour
	}
	p.mu.RLock()
	factory, ok := p.scapes[name]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScape, name)
	}
	return factory(cfg)
}

// RunTicks builds an engine for cfg, drives cfg.Ticks ticks, and persists
// the run record, best solution, population, lineage and score history.
// Cancelling ctx ends the run early; the partial run is still persisted.
func (p *Polis) RunTicks(ctx context.Context, cfg config.RunConfig) (RunResult, error) {
	if !p.Started() {
		return RunResult{}, ErrNotStarted
	}
	if err := cfg.Validate(); err != nil {
		return RunResult{}, err
	}
	interval, err := cfg.TickDuration()
	if err != nil {
		return RunResult{}, err
	}

	env, err := p.BuildEnvironment(cfg)
	if err != nil {
		return RunResult{}, err
	}
	engineCfg := cfg.EngineConfig()
	lib, err := strategy.ForScape(env, rand.New(rand.NewSource(engineCfg.Seed+1)))
	if err != nil {
		return RunResult{}, err
	}
	seeds, seedNames, err := p.initialPopulation(ctx, cfg, env, lib)
	if err != nil {
		return RunResult{}, err
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := p.logger.With("run_id", runID, "scape", env.Name())
	engine, err := evo.NewEngine(engineCfg, env, seeds, lib, evo.WithLogger(logger))
	if err != nil {
		return RunResult{}, fmt.Errorf("build engine: %w", err)
	}
	driver := NewDriver(engine)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := p.registerRun(runID, &activeRun{driver: driver, cancel: cancel}); err != nil {
		return RunResult{}, err
	}
	defer p.unregisterRun(runID)

	record := model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              runID,
		Scape:           scapeKind(env),
		Instance:        instanceLabel(cfg, env),
		Status:          model.RunRunning,
		RequestedTicks:  cfg.Ticks,
		Engine:          engineSettings(engine.Config()),
		Seeds:           append([]string(nil), seedNames...),
		StartedAt:       time.Now().UTC(),
	}
	if err := p.store.SaveRun(ctx, record); err != nil {
		return RunResult{}, err
	}
	logger.Info("run started", "ticks", cfg.Ticks, "seeds", len(seeds))

	if cfg.Checkpoint != "" {
		checkpointer, err := NewCheckpointer(cfg.Checkpoint, func(ctx context.Context) error {
			return p.persist(ctx, record, driver)
		}, logger)
		if err != nil {
			return RunResult{}, err
		}
		checkpointer.Start(runCtx)
		defer checkpointer.Stop()
	}

	completed, runErr := driver.RunEvery(runCtx, interval, cfg.Ticks)
	record.CompletedTicks = completed
	record.FinishedAt = time.Now().UTC()
	switch {
	case runErr == nil:
		record.Status = model.RunCompleted
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		record.Status = model.RunCancelled
	default:
		record.Status = model.RunFailed
		record.Error = runErr.Error()
	}

	// The caller's ctx may already be done; persist with a fresh one.
	if err := p.persist(context.WithoutCancel(ctx), record, driver); err != nil {
		return RunResult{}, err
	}

	result := collectResult(runID, record, driver)
	logger.Info("run finished",
		"status", record.Status,
		"ticks", completed,
		"has_best", result.HasBest,
		"best", result.Best.Score,
	)
	return result, nil
}

// initialPopulation seeds a fresh run from cfg.Seeds (or the scape's
// defaults), or restores the stored population and best solution of the run
// named by cfg.Resume.
func (p *Polis) initialPopulation(ctx context.Context, cfg config.RunConfig, env scape.Environment, lib *action.Library) ([]*evo.Operator, []string, error) {
	if cfg.Resume == "" {
		names := cfg.Seeds
		if len(names) == 0 {
			names = strategy.DefaultSeeds(env)
		}
		seeds, err := evo.SeedOperators(lib, names...)
		return seeds, names, err
	}

	snapshot, ok, err := p.store.GetPopulation(ctx, cfg.Resume)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("resume %s: no stored population", cfg.Resume)
	}
	states := FromModelPopulation(snapshot)
	seeds := make([]*evo.Operator, 0, len(states))
	names := make([]string, 0, len(states))
	for _, st := range states {
		op, err := evo.RestoreOperator(st, lib)
		if err != nil {
			return nil, nil, fmt.Errorf("resume %s: %w", cfg.Resume, err)
		}
		seeds = append(seeds, op)
		names = append(names, op.ID())
	}

	best, ok, err := p.store.GetBest(ctx, cfg.Resume)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		if sol, ok := fromModelBest(best); ok {
			if err := env.Commit(sol); err != nil {
				return nil, nil, fmt.Errorf("resume %s: %w", cfg.Resume, err)
			}
		}
	}
	return seeds, names, nil
}

func (p *Polis) registerRun(runID string, run *activeRun) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.runs[runID]; exists {
		return fmt.Errorf("%w: %s", ErrRunActive, runID)
	}
	p.runs[runID] = run
	return nil
}

func (p *Polis) unregisterRun(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.runs, runID)
}

// persist writes the run record with the driver's current progress.
func (p *Polis) persist(ctx context.Context, record model.RunRecord, driver *Driver) error {
	var (
		status     evo.Status
		best       evo.BestRecord
		hasBest    bool
		population []evo.OperatorState
		lineage    []evo.LineageRecord
	)
	driver.View(func(e *evo.Engine) {
		status = e.Status(0)
		best, hasBest = e.Best()
		population = e.Snapshot()
		lineage = e.Lineage()
	})
	history := driver.History()

	if record.CompletedTicks < status.Tick {
		record.CompletedTicks = status.Tick
	}
	record.Generation = status.Generation
	record.PopulationSize = status.PopulationSize
	record.HasBest = hasBest
	if hasBest {
		record.BestScore = best.Score
	}
	if err := p.store.SaveRun(ctx, record); err != nil {
		return fmt.Errorf("save run %s: %w", record.ID, err)
	}
	if hasBest {
		if err := p.store.SaveBest(ctx, toModelBest(record.ID, best)); err != nil {
			return fmt.Errorf("save best %s: %w", record.ID, err)
		}
	}
	if err := p.store.SavePopulation(ctx, toModelPopulation(record.ID, status, population)); err != nil {
		return fmt.Errorf("save population %s: %w", record.ID, err)
	}
	if err := p.store.SaveLineage(ctx, record.ID, toModelLineage(lineage)); err != nil {
		return fmt.Errorf("save lineage %s: %w", record.ID, err)
	}
	if err := p.store.SaveScoreHistory(ctx, record.ID, history); err != nil {
		return fmt.Errorf("save score history %s: %w", record.ID, err)
	}
	return nil
}

func collectResult(runID string, record model.RunRecord, driver *Driver) RunResult {
	result := RunResult{RunID: runID, Record: record, History: driver.History()}
	driver.View(func(e *evo.Engine) {
		result.Engine = e.Config()
		result.Best, result.HasBest = e.Best()
		result.Status = e.Status(-1)
		result.Population = e.Population()
		result.Lineage = e.Lineage()
	})
	return result
}

func tourFactory(cfg config.RunConfig) (scape.Environment, error) {
	if cfg.InstanceFile != "" {
		data, err := os.ReadFile(cfg.InstanceFile)
		if err != nil {
			return nil, fmt.Errorf("read instance: %w", err)
		}
		return scape.LoadTourInstance(data)
	}
	return builtinOfKind(cfg.Instance, "pentagon5", scapeid.Tour)
}

func chainFactory(cfg config.RunConfig) (scape.Environment, error) {
	if cfg.InstanceFile != "" {
		data, err := os.ReadFile(cfg.InstanceFile)
		if err != nil {
			return nil, fmt.Errorf("read instance: %w", err)
		}
		return scape.LoadChainInstance(data)
	}
	return builtinOfKind(cfg.Instance, "hp:HPHPPHHPHPPHPHHPPHPH", scapeid.Chain)
}

func builtinOfKind(instance, fallback, kind string) (scape.Environment, error) {
	if instance == "" {
		instance = fallback
	}
	env, err := scape.Builtin(instance)
	if err != nil {
		return nil, err
	}
	if scapeKind(env) != kind {
		return nil, fmt.Errorf("instance %q is not a %s instance", instance, kind)
	}
	return env, nil
}

func scapeKind(env scape.Environment) string {
	switch env.(type) {
	case *scape.TourScape:
		return scapeid.Tour
	case *scape.ChainScape:
		return scapeid.Chain
	default:
		return env.Name()
	}
}

func instanceLabel(cfg config.RunConfig, env scape.Environment) string {
	if cfg.InstanceFile != "" {
		return cfg.InstanceFile
	}
	if cfg.Instance != "" {
		return cfg.Instance
	}
	return env.Name()
}
