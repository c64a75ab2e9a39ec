package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"

	"opevolve/internal/config"
	"opevolve/internal/platform"
	"opevolve/internal/storage"
	api "opevolve/pkg/opevolve"
)

const (
	benchmarksDir = "benchmarks"
	exportsDir    = "exports"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "bench":
		return runBench(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "status":
		return runStatus(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "lineage":
		return runLineage(ctx, args[1:])
	case "best":
		return runBest(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*sf.kind, *sf.dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	polis := platform.NewPolis(platform.Config{Store: store, Logger: newLogger(*sf.logLevel)})
	if err := polis.Init(ctx); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "initialized store=%s scapes=%v\n", *sf.kind, polis.RegisteredScapes())
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*sf.kind, *sf.dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	polis := platform.NewPolis(platform.Config{Store: store, Logger: newLogger(*sf.logLevel)})
	if err := polis.Reset(ctx); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "reset store=%s\n", *sf.kind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	rf := addRunFlags(fs)
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := rf.resolve(fs)
	if err != nil {
		return err
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, cfg)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(struct {
			RunID          string   `json:"run_id"`
			Status         string   `json:"status"`
			CompletedTicks int      `json:"completed_ticks"`
			Generation     int      `json:"generation"`
			BestScore      *float64 `json:"best_score,omitempty"`
			BestTick       int      `json:"best_tick"`
			ArtifactsDir   string   `json:"artifacts_dir"`
		}{
			RunID:          summary.RunID,
			Status:         summary.Status,
			CompletedTicks: summary.CompletedTicks,
			Generation:     summary.Generation,
			BestScore:      optionalScore(summary.HasBest, summary.BestScore),
			BestTick:       summary.BestTick,
			ArtifactsDir:   summary.ArtifactsDir,
		})
	}

	fmt.Fprintf(stdout, "run_id=%s status=%s ticks=%d generation=%d best=%s best_tick=%d artifacts=%s\n",
		summary.RunID,
		summary.Status,
		summary.CompletedTicks,
		summary.Generation,
		formatScore(summary.HasBest, summary.BestScore),
		summary.BestTick,
		summary.ArtifactsDir,
	)
	return nil
}

func runBench(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	rf := addRunFlags(fs)
	runs := fs.Int("runs", 5, "number of runs; seeds are --seed, --seed+1, ...")
	workers := fs.Int("workers", 4, "max runs in flight")
	notes := fs.String("notes", "", "free-form notes stored with the experiment")
	list := fs.Bool("list", false, "list recorded benchmark experiments and exit")
	progress := fs.String("progress", "", "with --list, only show experiments with this progress flag (in_progress|completed|failed)")
	jsonOut := fs.Bool("json", false, "emit benchmark summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *list {
		client, err := artifactClient(*rf.outDir)
		if err != nil {
			return err
		}
		exps, err := client.Benchmarks(ctx, api.BenchmarksRequest{Progress: *progress})
		if err != nil {
			return err
		}
		if *jsonOut {
			return writeJSON(exps)
		}
		if len(exps) == 0 {
			fmt.Fprintln(stdout, "no benchmarks found")
			return nil
		}
		for _, exp := range exps {
			fmt.Fprintf(stdout, "id=%s status=%s runs=%d/%d started_at=%s notes=%q\n",
				exp.ID, exp.ProgressFlag, len(exp.RunIDs), exp.TotalRuns, exp.StartedAtUTC, exp.Notes)
		}
		return nil
	}

	if *runs <= 0 {
		return errors.New("runs must be > 0")
	}
	cfg, err := rf.resolve(fs)
	if err != nil {
		return err
	}
	base := cfg.EngineConfig().Seed
	seeds := make([]int64, *runs)
	for i := range seeds {
		seeds[i] = base + int64(i)
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Benchmark(ctx, api.BenchmarkRequest{Config: cfg, Seeds: seeds, Workers: *workers, Notes: *notes})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(summary)
	}

	for _, r := range summary.Runs {
		fmt.Fprintf(stdout, "seed=%d run_id=%s ticks=%d best=%s best_tick=%d\n",
			r.Seed, r.RunID, r.Ticks, formatScore(r.HasBest, r.BestScore), r.BestTick)
	}
	fmt.Fprintf(stdout, "benchmark id=%s completed=%d/%d mean=%.6f std=%.6f min=%.6f max=%.6f artifacts=%s\n",
		summary.ID,
		summary.Completed,
		len(summary.Runs),
		summary.Mean,
		summary.StdDev,
		summary.Min,
		summary.Max,
		summary.ArtifactsDir,
	)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	outDir := fs.String("out-dir", benchmarksDir, "run artifacts directory")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := artifactClient(*outDir)
	if err != nil {
		return err
	}
	items, err := client.Runs(ctx, api.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(items)
	}
	if len(items) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}

	for _, e := range items {
		fmt.Fprintf(stdout, "run_id=%s created_at=%s scape=%s instance=%s status=%s ticks=%d seed=%d best=%s\n",
			e.RunID,
			e.CreatedAtUTC,
			e.Scape,
			e.Instance,
			e.Status,
			e.Ticks,
			e.Seed,
			formatScore(e.HasBest, e.BestScore),
		)
	}
	return nil
}

func runStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	qf := addQueryFlags(fs)
	jsonOut := fs.Bool("json", false, "emit run record as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref, err := qf.ref("status")
	if err != nil {
		return err
	}

	client, err := qf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	rec, err := client.Status(ctx, ref)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(rec)
	}
	fmt.Fprintf(stdout, "run_id=%s scape=%s instance=%s status=%s ticks=%d/%d generation=%d population=%d best=%s\n",
		rec.ID,
		rec.Scape,
		rec.Instance,
		rec.Status,
		rec.CompletedTicks,
		rec.RequestedTicks,
		rec.Generation,
		rec.PopulationSize,
		formatScore(rec.HasBest, rec.BestScore),
	)
	if rec.Error != "" {
		fmt.Fprintf(stdout, "error=%s\n", rec.Error)
	}
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	qf := addQueryFlags(fs)
	limit := fs.Int("limit", 10, "max operators to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit operators as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref, err := qf.ref("top")
	if err != nil {
		return err
	}
	if *limit < 0 {
		*limit = 0
	}

	client, err := qf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	top, err := client.Top(ctx, api.TopRequest{RunRef: ref, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(top)
	}
	if len(top) == 0 {
		fmt.Fprintln(stdout, "no operators")
		return nil
	}
	for _, op := range top {
		fmt.Fprintf(stdout, "rank=%d id=%s action=%s coherence=%.6f uses=%d successes=%d failures=%d generation=%d lineage=%s\n",
			op.Rank,
			op.ID,
			op.Action,
			op.Coherence,
			op.Uses,
			op.Successes,
			op.Failures,
			op.Generation,
			op.Lineage,
		)
	}
	return nil
}

func runLineage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lineage", flag.ContinueOnError)
	qf := addQueryFlags(fs)
	limit := fs.Int("limit", 50, "max lineage rows to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit lineage rows as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref, err := qf.ref("lineage")
	if err != nil {
		return err
	}
	if *limit < 0 {
		*limit = 0
	}

	client, err := qf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	lineage, err := client.Lineage(ctx, api.LineageRequest{RunRef: ref, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(lineage)
	}
	if len(lineage) == 0 {
		fmt.Fprintln(stdout, "no lineage records")
		return nil
	}
	for _, rec := range lineage {
		fmt.Fprintf(stdout, "tick=%d gen=%d id=%s action=%s lineage=%s parents=%v\n",
			rec.BornAtTick,
			rec.Generation,
			rec.OperatorID,
			rec.Action,
			rec.Lineage,
			rec.Parents,
		)
	}
	return nil
}

func runBest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("best", flag.ContinueOnError)
	qf := addQueryFlags(fs)
	jsonOut := fs.Bool("json", false, "emit best solution as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref, err := qf.ref("best")
	if err != nil {
		return err
	}

	client, err := qf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	best, err := client.Best(ctx, ref)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(best)
	}
	solution := any(best.Tour)
	if best.Conformation != nil {
		solution = best.Conformation
	}
	fmt.Fprintf(stdout, "run_id=%s kind=%s score=%.6f tick=%d operator=%s solution=%v\n",
		best.RunID,
		best.Kind,
		best.Score,
		best.Tick,
		best.OperatorID,
		solution,
	)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	artifactsDir := fs.String("out-dir", benchmarksDir, "run artifacts directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := artifactClient(*artifactsDir)
	if err != nil {
		return err
	}
	exported, err := client.Export(ctx, api.ExportRequest{RunRef: api.RunRef{RunID: *runID, Latest: *latest}, OutDir: *outDir})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "exported run_id=%s to=%s\n", exported.RunID, filepath.Clean(exported.Directory))
	return nil
}

func newClient(cfg config.RunConfig) (*api.Client, error) {
	return api.New(api.Options{
		StoreKind:     cfg.Store,
		DBPath:        cfg.DBPath,
		BenchmarksDir: outDirOr(cfg.OutDir),
		ExportsDir:    exportsDir,
		Logger:        newLogger(cfg.LogLevel),
	})
}

func outDirOr(dir string) string {
	if dir == "" {
		return benchmarksDir
	}
	return dir
}

func writeJSON(value any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func formatScore(ok bool, score float64) string {
	if !ok || math.IsInf(score, 0) {
		return "none"
	}
	return fmt.Sprintf("%.6f", score)
}

func optionalScore(ok bool, score float64) *float64 {
	if !ok {
		return nil
	}
	return &score
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: opevolvectl <init|reset|run|bench|runs|status|top|lineage|best|export> [flags]", msg)
}
