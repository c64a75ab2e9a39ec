package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
)

const benchmarkExperimentsDir = "experiments"

// Experiment progress flags.
const (
	ExperimentInProgress = "in_progress"
	ExperimentCompleted  = "completed"
	ExperimentFailed     = "failed"
)

// BenchmarkExperiment tracks one benchmark invocation across its runs.
type BenchmarkExperiment struct {
	ID             string   `json:"id"`
	Notes          string   `json:"notes,omitempty"`
	ProgressFlag   string   `json:"progress_flag"`
	TotalRuns      int      `json:"total_runs"`
	StartedAtUTC   string   `json:"started_at_utc,omitempty"`
	CompletedAtUTC string   `json:"completed_at_utc,omitempty"`
	Error          string   `json:"error,omitempty"`
	Seeds          []int64  `json:"seeds,omitempty"`
	RunIDs         []string `json:"run_ids,omitempty"`
}

func WriteBenchmarkExperiment(baseDir string, exp BenchmarkExperiment) error {
	if exp.ID == "" {
		return fmt.Errorf("experiment id is required")
	}
	path := benchmarkExperimentPath(baseDir, exp.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeJSON(path, exp)
}

func ReadBenchmarkExperiment(baseDir, id string) (BenchmarkExperiment, bool, error) {
	if id == "" {
		return BenchmarkExperiment{}, false, fmt.Errorf("experiment id is required")
	}
	var exp BenchmarkExperiment
	ok, err := readJSON(benchmarkExperimentPath(baseDir, id), &exp)
	return exp, ok, err
}

// ExperimentFilter narrows ListBenchmarkExperiments. Zero fields match all.
type ExperimentFilter struct {
	ProgressFlag string
	Seed         *int64
}

func (f ExperimentFilter) Validate() error {
	switch f.ProgressFlag {
	case "", ExperimentInProgress, ExperimentCompleted, ExperimentFailed:
		return nil
	default:
		return fmt.Errorf("unknown progress flag %q", f.ProgressFlag)
	}
}

func (f ExperimentFilter) matches(exp BenchmarkExperiment) bool {
	if f.ProgressFlag != "" && exp.ProgressFlag != f.ProgressFlag {
		return false
	}
	if f.Seed != nil && !slices.Contains(exp.Seeds, *f.Seed) {
		return false
	}
	return true
}

// ListBenchmarkExperiments returns experiments accepted by filter. Experiments
// still in progress come first, then newest started first.
func ListBenchmarkExperiments(baseDir string, filter ExperimentFilter) ([]BenchmarkExperiment, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	root := filepath.Join(baseDir, benchmarkExperimentsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []BenchmarkExperiment{}, nil
		}
		return nil, err
	}

	exps := make([]BenchmarkExperiment, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		exp, ok, err := ReadBenchmarkExperiment(baseDir, entry.Name())
		if err != nil {
			return nil, err
		}
		if !ok || !filter.matches(exp) {
			continue
		}
		exps = append(exps, exp)
	}
	sort.Slice(exps, func(i, j int) bool {
		ai, aj := exps[i].ProgressFlag == ExperimentInProgress, exps[j].ProgressFlag == ExperimentInProgress
		switch {
		case ai != aj:
			return ai
		case exps[i].StartedAtUTC == exps[j].StartedAtUTC:
			return exps[i].ID < exps[j].ID
		case exps[i].StartedAtUTC == "":
			return false
		case exps[j].StartedAtUTC == "":
			return true
		default:
			return exps[i].StartedAtUTC > exps[j].StartedAtUTC
		}
	})
	return exps, nil
}

func benchmarkExperimentPath(baseDir, id string) string {
	return filepath.Join(baseDir, benchmarkExperimentsDir, id, "experiment.json")
}
