package platform

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"opevolve/internal/config"
)

type BenchmarkConfig struct {
	Run     config.RunConfig
	Seeds   []int64
	Workers int
}

type BenchmarkRun struct {
	Seed      int64     `json:"seed"`
	RunID     string    `json:"run_id"`
	Ticks     int       `json:"ticks"`
	HasBest   bool      `json:"has_best"`
	BestScore float64   `json:"best_score"`
	BestTick  int       `json:"best_tick"`
	Curve     []float64 `json:"-"`
}

// BenchmarkResult aggregates best scores over the runs that found one.
type BenchmarkResult struct {
	ID        string         `json:"id"`
	Runs      []BenchmarkRun `json:"runs"`
	Completed int            `json:"completed"`
	Mean      float64        `json:"mean"`
	StdDev    float64        `json:"std_dev"`
	Min       float64        `json:"min"`
	Max       float64        `json:"max"`
}

// Benchmark runs cfg.Run once per seed with at most cfg.Workers runs in
// flight. Every run owns its own environment and engine.
func (p *Polis) Benchmark(ctx context.Context, cfg BenchmarkConfig) (BenchmarkResult, error) {
	if len(cfg.Seeds) == 0 {
		return BenchmarkResult{}, fmt.Errorf("benchmark requires at least one seed")
	}
	if cfg.Run.Resume != "" {
		return BenchmarkResult{}, fmt.Errorf("benchmark runs cannot resume a stored run")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	id := cfg.Run.RunID
	if id == "" {
		id = "bench"
	}

	runs := make([]BenchmarkRun, len(cfg.Seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, seed := range cfg.Seeds {
		i, seed := i, seed
		rc := cfg.Run
		rc.Seed = &seed
		rc.RunID = fmt.Sprintf("%s-seed-%d", id, seed)
		rc.Checkpoint = ""
		g.Go(func() error {
			res, err := p.RunTicks(gctx, rc)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			curve := make([]float64, 0, len(res.History))
			for _, point := range res.History {
				curve = append(curve, point.Best)
			}
			run := BenchmarkRun{
				Seed:    seed,
				RunID:   res.RunID,
				Ticks:   res.Record.CompletedTicks,
				HasBest: res.HasBest,
				Curve:   curve,
			}
			if res.HasBest {
				run.BestScore = res.Best.Score
				run.BestTick = res.Best.Tick
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BenchmarkResult{}, err
	}
	return summarizeBenchmark(id, runs), nil
}

func summarizeBenchmark(id string, runs []BenchmarkRun) BenchmarkResult {
	result := BenchmarkResult{ID: id, Runs: runs}
	var scores []float64
	for _, run := range runs {
		if run.HasBest {
			scores = append(scores, run.BestScore)
		}
	}
	result.Completed = len(scores)
	if len(scores) == 0 {
		return result
	}
	result.Mean, result.StdDev = stat.MeanStdDev(scores, nil)
	if math.IsNaN(result.StdDev) {
		result.StdDev = 0
	}
	result.Min, result.Max = scores[0], scores[0]
	for _, s := range scores[1:] {
		result.Min = math.Min(result.Min, s)
		result.Max = math.Max(result.Max, s)
	}
	return result
}
