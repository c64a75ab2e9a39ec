package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"opevolve/internal/model"
	"opevolve/internal/stats"
)

// inTempDir runs the test from a fresh working directory and captures
// command output.
func inTempDir(t *testing.T) *bytes.Buffer {
	t.Helper()
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	workdir := t.TempDir()
	if err := os.Chdir(workdir); err != nil {
		t.Fatalf("chdir tempdir: %v", err)
	}
	out := &bytes.Buffer{}
	origStdout, origStderr := stdout, stderr
	stdout, stderr = out, io.Discard
	t.Cleanup(func() {
		stdout, stderr = origStdout, origStderr
		_ = os.Chdir(origWD)
	})
	return out
}

func TestRunCommandWritesArtifactsAndQueriesReadThem(t *testing.T) {
	out := inTempDir(t)
	ctx := context.Background()

	args := []string{"run", "--run-id", "cli-run", "--scape", "chain", "--instance", "hp:HPHPPHHPHH", "--ticks", "40", "--seed", "3"}
	if err := run(ctx, args); err != nil {
		t.Fatalf("run command: %v", err)
	}
	if !strings.Contains(out.String(), "run_id=cli-run status=completed ticks=40") {
		t.Fatalf("unexpected run output: %q", out.String())
	}
	for _, file := range []string{"config.json", "run.json", "best.json", "score_history.csv", "top_operators.json", "lineage.json"} {
		if _, err := os.Stat(filepath.Join("benchmarks", "cli-run", file)); err != nil {
			t.Fatalf("expected artifact %s: %v", file, err)
		}
	}
	cfg, ok, err := stats.ReadRunConfig("benchmarks", "cli-run")
	if err != nil || !ok || cfg.Engine.Seed != 3 || cfg.Scape != "chain" {
		t.Fatalf("unexpected stored config ok=%t err=%v %+v", ok, err, cfg)
	}

	out.Reset()
	if err := run(ctx, []string{"runs", "--json"}); err != nil {
		t.Fatalf("runs command: %v", err)
	}
	var items []struct {
		RunID  string
		Status string
	}
	if err := json.Unmarshal(out.Bytes(), &items); err != nil {
		t.Fatalf("decode runs output: %v (%q)", err, out.String())
	}
	if len(items) != 1 || items[0].RunID != "cli-run" || items[0].Status != model.RunCompleted {
		t.Fatalf("unexpected runs %+v", items)
	}

	out.Reset()
	if err := run(ctx, []string{"best", "--latest", "--json"}); err != nil {
		t.Fatalf("best command: %v", err)
	}
	var best model.BestRecord
	if err := json.Unmarshal(out.Bytes(), &best); err != nil {
		t.Fatalf("decode best output: %v", err)
	}
	if best.RunID != "cli-run" || best.Kind != model.KindChain || len(best.Conformation) != 10 {
		t.Fatalf("unexpected best %+v", best)
	}

	for _, cmd := range [][]string{
		{"status", "--run-id", "cli-run"},
		{"top", "--latest", "--limit", "2"},
		{"lineage", "--latest"},
	} {
		out.Reset()
		if err := run(ctx, cmd); err != nil {
			t.Fatalf("%s command: %v", cmd[0], err)
		}
		if !strings.Contains(out.String(), "cli-run") && cmd[0] == "status" {
			t.Fatalf("unexpected status output: %q", out.String())
		}
		if out.Len() == 0 {
			t.Fatalf("%s printed nothing", cmd[0])
		}
	}

	out.Reset()
	if err := run(ctx, []string{"export", "--latest", "--out", "exported"}); err != nil {
		t.Fatalf("export command: %v", err)
	}
	if _, err := os.Stat(filepath.Join("exported", "cli-run", "run.json")); err != nil {
		t.Fatalf("expected exported run: %v", err)
	}
}

func TestRunCommandFlagsOverrideConfigFile(t *testing.T) {
	out := inTempDir(t)
	data := []byte(`run_id = "from-file"
scape = "chain"
instance = "hp:HPPHHPPH"
ticks = 50

[engine]
evolution_interval = 7
`)
	if err := os.WriteFile("run.toml", data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := run(context.Background(), []string{"run", "--config", "run.toml", "--ticks", "15", "--json"}); err != nil {
		t.Fatalf("run command: %v", err)
	}
	var summary struct {
		RunID          string `json:"run_id"`
		CompletedTicks int    `json:"completed_ticks"`
	}
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("decode run output: %v (%q)", err, out.String())
	}
	if summary.RunID != "from-file" || summary.CompletedTicks != 15 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	cfg, ok, err := stats.ReadRunConfig("benchmarks", "from-file")
	if err != nil || !ok || cfg.Instance != "hp:HPPHHPPH" || cfg.Engine.EvolutionInterval != 7 {
		t.Fatalf("config file values lost: ok=%t err=%v %+v", ok, err, cfg)
	}
}

func TestBenchCommandRunsSeedsAndLists(t *testing.T) {
	out := inTempDir(t)
	ctx := context.Background()

	args := []string{"bench", "--run-id", "b1", "--scape", "chain", "--instance", "hp:HPHPPHHPHH", "--ticks", "20", "--runs", "3", "--workers", "2", "--seed", "10"}
	if err := run(ctx, args); err != nil {
		t.Fatalf("bench command: %v", err)
	}
	if !strings.Contains(out.String(), "benchmark id=b1 completed=3/3") {
		t.Fatalf("unexpected bench output: %q", out.String())
	}
	for _, id := range []string{"b1-seed-10", "b1-seed-11", "b1-seed-12"} {
		if _, err := os.Stat(filepath.Join("benchmarks", id, "run.json")); err != nil {
			t.Fatalf("expected run artifacts for %s: %v", id, err)
		}
	}

	out.Reset()
	if err := run(ctx, []string{"bench", "--list"}); err != nil {
		t.Fatalf("bench list: %v", err)
	}
	if !strings.Contains(out.String(), "id=b1 status=completed runs=3/3") {
		t.Fatalf("unexpected bench list output: %q", out.String())
	}

	out.Reset()
	if err := run(ctx, []string{"bench", "--list", "--progress", "failed"}); err != nil {
		t.Fatalf("bench list failed: %v", err)
	}
	if !strings.Contains(out.String(), "no benchmarks found") {
		t.Fatalf("expected no failed benchmarks, got %q", out.String())
	}
}

func TestCommandErrors(t *testing.T) {
	inTempDir(t)
	ctx := context.Background()

	cases := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing command", args: nil, want: "missing command"},
		{name: "unknown command", args: []string{"fly"}, want: "unknown command"},
		{name: "status without run", args: []string{"status"}, want: "requires --run-id or --latest"},
		{name: "both refs", args: []string{"best", "--run-id", "x", "--latest"}, want: "not both"},
		{name: "export without run", args: []string{"export"}, want: "requires --run-id or --latest"},
		{name: "no runs for latest", args: []string{"top", "--latest"}, want: "no runs available"},
		{name: "bad ticks", args: []string{"run", "--ticks", "-1"}, want: "ticks"},
		{name: "unknown scape", args: []string{"run", "--scape", "knapsack", "--ticks", "1"}, want: "scape not registered"},
		{name: "bench runs", args: []string{"bench", "--runs", "0"}, want: "runs must be > 0"},
		{name: "bench progress", args: []string{"bench", "--list", "--progress", "paused"}, want: "unknown progress flag"},
		{name: "runs limit", args: []string{"runs", "--limit", "0"}, want: "limit must be > 0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := run(ctx, tc.args)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Fatalf("parseLogLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" connect_nearest, ,break_longest+two_opt ,")
	if len(got) != 2 || got[0] != "connect_nearest" || got[1] != "break_longest+two_opt" {
		t.Fatalf("unexpected list %q", got)
	}
}
