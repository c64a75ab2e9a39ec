package opevolve

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"opevolve/internal/model"
	"opevolve/internal/stats"
)

func newTestClient(t *testing.T, benchmarksDir string) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:     "memory",
		BenchmarksDir: benchmarksDir,
		ExportsDir:    filepath.Join(t.TempDir(), "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func chainRunConfig(runID string) RunConfig {
	cfg := DefaultRunConfig()
	cfg.RunID = runID
	cfg.Scape = "chain"
	cfg.Instance = "hp:HPHPPHHPHH"
	cfg.Ticks = 50
	return cfg
}

func TestClientRunRunsAndExport(t *testing.T) {
	benchmarksDir := filepath.Join(t.TempDir(), "benchmarks")
	client := newTestClient(t, benchmarksDir)
	ctx := context.Background()

	summary, err := client.Run(ctx, chainRunConfig("run-a"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID != "run-a" || summary.Status != model.RunCompleted || summary.CompletedTicks != 50 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !summary.HasBest || len(summary.History) != 50 {
		t.Fatalf("expected a scored chain run, got %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, "run.json")); err != nil {
		t.Fatalf("expected run artifacts: %v", err)
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-a" || runs[0].Scape != "chain" || runs[0].BestScore != summary.BestScore {
		t.Fatalf("unexpected runs %+v", runs)
	}

	best, err := client.Best(ctx, RunRef{RunID: "run-a"})
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if best.Kind != model.KindChain || len(best.Conformation) != 10 || best.Score != summary.BestScore {
		t.Fatalf("unexpected best %+v", best)
	}

	top, err := client.Top(ctx, TopRequest{RunRef: RunRef{Latest: true}, Limit: 2})
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) == 0 || len(top) > 2 || top[0].Rank != 1 {
		t.Fatalf("unexpected top %+v", top)
	}
	if len(top) == 2 && top[0].Coherence < top[1].Coherence {
		t.Fatalf("top operators out of order %+v", top)
	}

	lineage, err := client.Lineage(ctx, LineageRequest{RunRef: RunRef{RunID: "run-a"}})
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	if len(lineage) == 0 || lineage[0].Lineage != "seed" {
		t.Fatalf("unexpected lineage %+v", lineage)
	}

	status, err := client.Status(ctx, RunRef{RunID: "run-a"})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != model.RunCompleted || status.CompletedTicks != 50 {
		t.Fatalf("unexpected status %+v", status)
	}

	exported, err := client.Export(ctx, ExportRequest{RunRef: RunRef{Latest: true}})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != "run-a" {
		t.Fatalf("unexpected export %+v", exported)
	}
	for _, file := range []string{"config.json", "run.json", "best.json", "score_history.csv", "top_operators.json", "lineage.json"} {
		if _, err := os.Stat(filepath.Join(exported.Directory, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
}

func TestClientQueriesFallBackToArtifacts(t *testing.T) {
	benchmarksDir := filepath.Join(t.TempDir(), "benchmarks")
	ctx := context.Background()
	first := newTestClient(t, benchmarksDir)
	if _, err := first.Run(ctx, chainRunConfig("run-b")); err != nil {
		t.Fatalf("run: %v", err)
	}

	// A fresh client has an empty memory store and must read the files.
	second := newTestClient(t, benchmarksDir)
	best, err := second.Best(ctx, RunRef{Latest: true})
	if err != nil || best.RunID != "run-b" {
		t.Fatalf("best from artifacts: %+v err=%v", best, err)
	}
	top, err := second.Top(ctx, TopRequest{RunRef: RunRef{RunID: "run-b"}, Limit: 1})
	if err != nil || len(top) != 1 {
		t.Fatalf("top from artifacts: %+v err=%v", top, err)
	}
	lineage, err := second.Lineage(ctx, LineageRequest{RunRef: RunRef{RunID: "run-b"}, Limit: 1})
	if err != nil || len(lineage) != 1 {
		t.Fatalf("lineage from artifacts: %+v err=%v", lineage, err)
	}
	status, err := second.Status(ctx, RunRef{RunID: "run-b"})
	if err != nil || status.ID != "run-b" {
		t.Fatalf("status from artifacts: %+v err=%v", status, err)
	}
	if _, err := second.Best(ctx, RunRef{RunID: "missing"}); err == nil {
		t.Fatal("expected missing run error")
	}
}

func TestClientBenchmarkWritesSummaryAndExperiment(t *testing.T) {
	benchmarksDir := filepath.Join(t.TempDir(), "benchmarks")
	client := newTestClient(t, benchmarksDir)
	ctx := context.Background()

	cfg := chainRunConfig("bench-x")
	cfg.Ticks = 30
	summary, err := client.Benchmark(ctx, BenchmarkRequest{Config: cfg, Seeds: []int64{4, 5}, Workers: 2, Notes: "smoke"})
	if err != nil {
		t.Fatalf("benchmark: %v", err)
	}
	if summary.ID != "bench-x" || summary.Completed != 2 || len(summary.Runs) != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Min > summary.Mean || summary.Mean > summary.Max {
		t.Fatalf("inconsistent summary %+v", summary)
	}

	stored, ok, err := stats.ReadBenchmarkSummary(benchmarksDir, "bench-x")
	if err != nil || !ok || stored.Completed != 2 || stored.Scape != "chain" {
		t.Fatalf("unexpected stored summary ok=%t err=%v %+v", ok, err, stored)
	}
	series, ok, err := stats.ReadBenchmarkSeries(benchmarksDir, "bench-x")
	if err != nil || !ok || len(series) != 30 {
		t.Fatalf("unexpected series ok=%t err=%v len=%d", ok, err, len(series))
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 10})
	if err != nil || len(runs) != 2 {
		t.Fatalf("expected two indexed runs, got %+v err=%v", runs, err)
	}

	exps, err := client.Benchmarks(ctx, BenchmarksRequest{})
	if err != nil || len(exps) != 1 {
		t.Fatalf("expected one experiment, got %+v err=%v", exps, err)
	}
	if exps[0].ProgressFlag != stats.ExperimentCompleted || len(exps[0].RunIDs) != 2 || exps[0].Notes != "smoke" {
		t.Fatalf("unexpected experiment %+v", exps[0])
	}
	seed := int64(5)
	if exps, err := client.Benchmarks(ctx, BenchmarksRequest{Progress: stats.ExperimentCompleted, Seed: &seed}); err != nil || len(exps) != 1 {
		t.Fatalf("expected experiment for seed 5, got %+v err=%v", exps, err)
	}
	seed = 9
	if exps, err := client.Benchmarks(ctx, BenchmarksRequest{Seed: &seed}); err != nil || len(exps) != 0 {
		t.Fatalf("expected no experiment for seed 9, got %+v err=%v", exps, err)
	}
	if exps, err := client.Benchmarks(ctx, BenchmarksRequest{Progress: stats.ExperimentFailed}); err != nil || len(exps) != 0 {
		t.Fatalf("expected no failed experiment yet, got %+v err=%v", exps, err)
	}

	if _, err := client.Benchmark(ctx, BenchmarkRequest{Config: cfg}); err == nil {
		t.Fatal("expected error without seeds")
	}
	failed, ok, err := stats.ReadBenchmarkExperiment(benchmarksDir, "bench-x")
	if err != nil || !ok || failed.ProgressFlag != stats.ExperimentFailed || failed.Error == "" {
		t.Fatalf("expected failed experiment, ok=%t err=%v %+v", ok, err, failed)
	}
}

func TestClientRunRefValidation(t *testing.T) {
	client := newTestClient(t, filepath.Join(t.TempDir(), "benchmarks"))
	ctx := context.Background()

	cases := []struct {
		name string
		ref  RunRef
	}{
		{name: "both", ref: RunRef{RunID: "a", Latest: true}},
		{name: "neither", ref: RunRef{}},
		{name: "latest without runs", ref: RunRef{Latest: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := client.Export(ctx, ExportRequest{RunRef: tc.ref}); err == nil {
				t.Fatal("expected export error")
			}
			if _, err := client.Best(ctx, tc.ref); err == nil {
				t.Fatal("expected best error")
			}
		})
	}
	if _, err := client.Top(ctx, TopRequest{RunRef: RunRef{RunID: "a"}, Limit: -1}); err == nil {
		t.Fatal("expected negative limit error")
	}
}

func TestNewRejectsUnknownStore(t *testing.T) {
	if _, err := New(Options{StoreKind: "postgres"}); err == nil {
		t.Fatal("expected unsupported store error")
	}
}
