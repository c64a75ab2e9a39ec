// Package opevolve is the public client over the engine platform: it runs
// and benchmarks engine runs, persists them, and writes the run artifacts
// that later queries and exports read.
package opevolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"opevolve/internal/config"
	"opevolve/internal/model"
	"opevolve/internal/platform"
	"opevolve/internal/stats"
	"opevolve/internal/storage"
)

const (
	defaultBenchmarksDir = "benchmarks"
	defaultExportsDir    = "exports"
	defaultDBPath        = "opevolve.db"
)

type (
	RunConfig           = config.RunConfig
	RunRecord           = model.RunRecord
	BestRecord          = model.BestRecord
	LineageRecord       = model.LineageRecord
	ScorePoint          = model.ScorePoint
	TopOperator         = stats.TopOperator
	BenchmarkRun        = stats.BenchmarkRunSummary
	BenchmarkExperiment = stats.BenchmarkExperiment
)

// DefaultRunConfig returns the run configuration used when no file is given.
func DefaultRunConfig() RunConfig {
	return config.Default()
}

// LoadRunConfig reads a TOML, YAML or JSON run configuration.
func LoadRunConfig(path string) (RunConfig, error) {
	return config.Load(path)
}

type Options struct {
	StoreKind     string
	DBPath        string
	BenchmarksDir string
	ExportsDir    string
	Logger        *slog.Logger
}

type Client struct {
	store  storage.Store
	polis  *platform.Polis
	logger *slog.Logger

	benchmarksDir string
	exportsDir    string
}

type RunSummary struct {
	RunID          string
	ArtifactsDir   string
	Status         string
	CompletedTicks int
	Generation     int
	HasBest        bool
	BestScore      float64
	BestTick       int
	History        []ScorePoint
}

type BenchmarkRequest struct {
	Config  RunConfig
	Seeds   []int64
	Workers int
	Notes   string
}

type BenchmarkSummary struct {
	ID           string
	ArtifactsDir string
	Completed    int
	Mean         float64
	StdDev       float64
	Min          float64
	Max          float64
	Runs         []BenchmarkRun
}

type RunsRequest struct {
	Limit int
}

// BenchmarksRequest filters listed experiments by progress flag and seed.
type BenchmarksRequest struct {
	Progress string
	Seed     *int64
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Scape        string
	Instance     string
	Status       string
	Ticks        int
	Seed         int64
	HasBest      bool
	BestScore    float64
}

// RunRef names a stored run, either by id or as the latest indexed run.
type RunRef struct {
	RunID  string
	Latest bool
}

type TopRequest struct {
	RunRef
	Limit int
}

type LineageRequest struct {
	RunRef
	Limit int
}

type ExportRequest struct {
	RunRef
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		logger:        logger,
		benchmarksDir: benchmarksDir,
		exportsDir:    exportsDir,
	}, nil
}

func (c *Client) Close() error {
	if c.polis != nil {
		c.polis.Stop()
	}
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensurePolis(ctx)
	return err
}

// RegisterScape adds a scape factory next to the built-in tour and chain.
func (c *Client) RegisterScape(ctx context.Context, name string, factory platform.ScapeFactory) error {
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return err
	}
	return p.RegisterScape(name, factory)
}

// Run executes one engine run, persists it, and writes its artifacts.
func (c *Client) Run(ctx context.Context, cfg RunConfig) (RunSummary, error) {
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	result, err := p.RunTicks(ctx, cfg)
	if err != nil {
		return RunSummary{}, err
	}
	runDir, err := c.writeArtifacts(context.WithoutCancel(ctx), cfg, result.RunID)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:          result.RunID,
		ArtifactsDir:   filepath.Clean(runDir),
		Status:         result.Record.Status,
		CompletedTicks: result.Record.CompletedTicks,
		Generation:     result.Status.Generation,
		HasBest:        result.HasBest,
		History:        append([]ScorePoint(nil), result.History...),
	}
	if result.HasBest {
		summary.BestScore = result.Best.Score
		summary.BestTick = result.Best.Tick
	}
	return summary, nil
}

// Benchmark runs cfg once per seed in parallel and writes per-run artifacts
// plus an aggregate summary, an averaged best-score series and an
// experiment record.
func (c *Client) Benchmark(ctx context.Context, req BenchmarkRequest) (BenchmarkSummary, error) {
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return BenchmarkSummary{}, err
	}
	id := req.Config.RunID
	if id == "" {
		id = "bench-" + uuid.NewString()[:8]
	}
	cfg := req.Config
	cfg.RunID = id

	exp := stats.BenchmarkExperiment{
		ID:           id,
		Notes:        req.Notes,
		ProgressFlag: stats.ExperimentInProgress,
		TotalRuns:    len(req.Seeds),
		StartedAtUTC: time.Now().UTC().Format(time.RFC3339),
		Seeds:        append([]int64(nil), req.Seeds...),
	}
	if err := stats.WriteBenchmarkExperiment(c.benchmarksDir, exp); err != nil {
		return BenchmarkSummary{}, err
	}

	result, err := p.Benchmark(ctx, platform.BenchmarkConfig{Run: cfg, Seeds: req.Seeds, Workers: req.Workers})
	if err != nil {
		exp.ProgressFlag = stats.ExperimentFailed
		exp.Error = err.Error()
		exp.CompletedAtUTC = time.Now().UTC().Format(time.RFC3339)
		if writeErr := stats.WriteBenchmarkExperiment(c.benchmarksDir, exp); writeErr != nil {
			c.logger.Warn("benchmark experiment write failed", "id", id, "error", writeErr)
		}
		return BenchmarkSummary{}, err
	}

	runs := make([]stats.BenchmarkRunSummary, 0, len(result.Runs))
	curves := make([][]float64, 0, len(result.Runs))
	for _, run := range result.Runs {
		runCfg := cfg
		seed := run.Seed
		runCfg.Seed = &seed
		runCfg.RunID = run.RunID
		if _, err := c.writeArtifacts(ctx, runCfg, run.RunID); err != nil {
			return BenchmarkSummary{}, err
		}
		runs = append(runs, stats.BenchmarkRunSummary{
			Seed:      run.Seed,
			RunID:     run.RunID,
			Ticks:     run.Ticks,
			HasBest:   run.HasBest,
			BestScore: run.BestScore,
			BestTick:  run.BestTick,
		})
		curves = append(curves, run.Curve)
		exp.RunIDs = append(exp.RunIDs, run.RunID)
	}

	benchDir := filepath.Join(c.benchmarksDir, id)
	summary := stats.BenchmarkSummary{
		ID:        id,
		Scape:     cfg.Scape,
		Instance:  cfg.Instance,
		Ticks:     cfg.Ticks,
		Workers:   req.Workers,
		Completed: result.Completed,
		Mean:      result.Mean,
		StdDev:    result.StdDev,
		Min:       result.Min,
		Max:       result.Max,
		Runs:      runs,
	}
	if err := stats.WriteBenchmarkSummary(benchDir, summary); err != nil {
		return BenchmarkSummary{}, err
	}
	if err := stats.WriteBenchmarkSeries(benchDir, stats.BuildAveragePlot(curves, 1, 1)); err != nil {
		return BenchmarkSummary{}, err
	}

	exp.ProgressFlag = stats.ExperimentCompleted
	exp.CompletedAtUTC = time.Now().UTC().Format(time.RFC3339)
	if err := stats.WriteBenchmarkExperiment(c.benchmarksDir, exp); err != nil {
		return BenchmarkSummary{}, err
	}

	return BenchmarkSummary{
		ID:           id,
		ArtifactsDir: filepath.Clean(benchDir),
		Completed:    result.Completed,
		Mean:         result.Mean,
		StdDev:       result.StdDev,
		Min:          result.Min,
		Max:          result.Max,
		Runs:         runs,
	}, nil
}

// Benchmarks lists recorded benchmark experiments: in-progress ones first,
// then newest first.
func (c *Client) Benchmarks(_ context.Context, req BenchmarksRequest) ([]BenchmarkExperiment, error) {
	return stats.ListBenchmarkExperiments(c.benchmarksDir, stats.ExperimentFilter{
		ProgressFlag: req.Progress,
		Seed:         req.Seed,
	})
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Scape:        e.Scape,
			Instance:     e.Instance,
			Status:       e.Status,
			Ticks:        e.Ticks,
			Seed:         e.Seed,
			HasBest:      e.HasBest,
			BestScore:    e.BestScore,
		})
	}
	return out, nil
}

// Status returns the stored record of a run. Runs active in this client
// report their live tick and population.
func (c *Client) Status(ctx context.Context, ref RunRef) (RunRecord, error) {
	runID, err := c.resolveRunID(ref, "status")
	if err != nil {
		return RunRecord{}, err
	}
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return RunRecord{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return RunRecord{}, err
	}
	if !ok {
		run, ok, err = stats.ReadRunRecord(c.benchmarksDir, runID)
		if err != nil {
			return RunRecord{}, err
		}
		if !ok {
			return RunRecord{}, fmt.Errorf("run not found: %s", runID)
		}
	}
	if live, active := p.RunStatus(runID, 0); active {
		run.CompletedTicks = live.Tick
		run.Generation = live.Generation
		run.PopulationSize = live.PopulationSize
	}
	return run, nil
}

// StopRun cancels a run active in this client.
func (c *Client) StopRun(ctx context.Context, runID string) error {
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return err
	}
	return p.StopRun(runID)
}

func (c *Client) Best(ctx context.Context, ref RunRef) (BestRecord, error) {
	runID, err := c.resolveRunID(ref, "best")
	if err != nil {
		return BestRecord{}, err
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return BestRecord{}, err
	}
	best, ok, err := c.store.GetBest(ctx, runID)
	if err != nil {
		return BestRecord{}, err
	}
	if !ok {
		best, ok, err = stats.ReadBest(c.benchmarksDir, runID)
		if err != nil {
			return BestRecord{}, err
		}
	}
	if !ok {
		return BestRecord{}, fmt.Errorf("best solution not found for run id: %s", runID)
	}
	return best, nil
}

// Top returns the operators of a run's final population, highest
// coherence first.
func (c *Client) Top(ctx context.Context, req TopRequest) ([]TopOperator, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunRef, "top operators")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	snapshot, ok, err := c.store.GetPopulation(ctx, runID)
	if err != nil {
		return nil, err
	}
	if ok {
		return stats.RankOperators(snapshot.Operators, req.Limit), nil
	}
	top, ok, err := stats.ReadTopOperators(c.benchmarksDir, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("top operators not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(top) > req.Limit {
		top = top[:req.Limit]
	}
	return top, nil
}

func (c *Client) Lineage(ctx context.Context, req LineageRequest) ([]LineageRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunRef, "lineage")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		lineage, ok, err = stats.ReadLineage(c.benchmarksDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("lineage not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(lineage) > req.Limit {
		lineage = lineage[:req.Limit]
	}
	return lineage, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunRef, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	exportedDir, err := stats.ExportRunArtifacts(c.benchmarksDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(ref RunRef, what string) (string, error) {
	if ref.RunID != "" && ref.Latest {
		return "", errors.New("use either run id or latest")
	}
	if !ref.Latest {
		if ref.RunID == "" {
			return "", fmt.Errorf("%s requires run id or latest", what)
		}
		return ref.RunID, nil
	}
	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

// writeArtifacts copies a persisted run from the store into its artifact
// directory and indexes it.
func (c *Client) writeArtifacts(ctx context.Context, cfg RunConfig, runID string) (string, error) {
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("run not found: %s", runID)
	}
	artifacts := stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:        runID,
			Scape:        run.Scape,
			Instance:     run.Instance,
			Resume:       cfg.Resume,
			Seeds:        append([]string(nil), run.Seeds...),
			Ticks:        cfg.Ticks,
			TickInterval: cfg.TickInterval,
			Checkpoint:   cfg.Checkpoint,
			Store:        cfg.Store,
			Engine:       run.Engine,
		},
		Run: run,
	}
	best, hasBest, err := c.store.GetBest(ctx, runID)
	if err != nil {
		return "", err
	}
	if hasBest {
		artifacts.Best = &best
	}
	artifacts.ScoreHistory, _, err = c.store.GetScoreHistory(ctx, runID)
	if err != nil {
		return "", err
	}
	snapshot, ok, err := c.store.GetPopulation(ctx, runID)
	if err != nil {
		return "", err
	}
	if ok {
		artifacts.TopOperators = stats.RankOperators(snapshot.Operators, 0)
	}
	artifacts.Lineage, _, err = c.store.GetLineage(ctx, runID)
	if err != nil {
		return "", err
	}

	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, artifacts)
	if err != nil {
		return "", err
	}
	entry := stats.RunIndexEntry{
		RunID:          runID,
		Scape:          run.Scape,
		Instance:       run.Instance,
		Status:         run.Status,
		Ticks:          run.CompletedTicks,
		Seed:           run.Engine.Seed,
		PopulationSize: run.PopulationSize,
		HasBest:        run.HasBest,
		BestScore:      run.BestScore,
		CreatedAtUTC:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := stats.AppendRunIndex(c.benchmarksDir, entry); err != nil {
		return "", err
	}
	c.logger.Debug("run artifacts written", "run_id", runID, "dir", runDir)
	return runDir, nil
}

func (c *Client) ensurePolis(ctx context.Context) (*platform.Polis, error) {
	if c.polis != nil {
		return c.polis, nil
	}
	p := platform.NewPolis(platform.Config{Store: c.store, Logger: c.logger})
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	c.polis = p
	return c.polis, nil
}
