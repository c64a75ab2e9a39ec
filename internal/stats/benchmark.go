package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

type BenchmarkRunSummary struct {
	Seed      int64   `json:"seed"`
	RunID     string  `json:"run_id"`
	Ticks     int     `json:"ticks"`
	HasBest   bool    `json:"has_best"`
	BestScore float64 `json:"best_score"`
	BestTick  int     `json:"best_tick"`
}

// BenchmarkSummary aggregates best scores over the runs that found one.
type BenchmarkSummary struct {
	ID        string                `json:"id"`
	Scape     string                `json:"scape"`
	Instance  string                `json:"instance"`
	Ticks     int                   `json:"ticks"`
	Workers   int                   `json:"workers"`
	Completed int                   `json:"completed"`
	Mean      float64               `json:"mean"`
	StdDev    float64               `json:"std_dev"`
	Min       float64               `json:"min"`
	Max       float64               `json:"max"`
	Runs      []BenchmarkRunSummary `json:"runs"`
}

type PlotPoint struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// BuildAveragePlot averages the i-th value of every list that still has
// one. Points are labelled startIndex, startIndex+step, and so on.
func BuildAveragePlot(lists [][]float64, startIndex, step int) []PlotPoint {
	if step <= 0 {
		step = 1
	}
	if startIndex < 0 {
		startIndex = 0
	}
	points := make([]PlotPoint, 0, 128)
	values := make([]float64, 0, len(lists))
	for i := 0; ; i++ {
		values = values[:0]
		for _, list := range lists {
			if i < len(list) {
				values = append(values, list[i])
			}
		}
		if len(values) == 0 {
			break
		}
		points = append(points, PlotPoint{Index: startIndex + i*step, Value: stat.Mean(values, nil)})
	}
	return points
}

func WriteBenchmarkSummary(runDir string, summary BenchmarkSummary) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, "benchmark_summary.json"), summary)
}

func ReadBenchmarkSummary(baseDir, id string) (BenchmarkSummary, bool, error) {
	var summary BenchmarkSummary
	ok, err := readJSON(filepath.Join(baseDir, id, "benchmark_summary.json"), &summary)
	return summary, ok, err
}

// WriteBenchmarkSeries writes an averaged best-score curve as CSV.
func WriteBenchmarkSeries(runDir string, points []PlotPoint) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	file, err := os.Create(filepath.Join(runDir, "benchmark_series.csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"index", "mean_best"}); err != nil {
		return err
	}
	for _, point := range points {
		if err := writer.Write([]string{
			strconv.Itoa(point.Index),
			strconv.FormatFloat(point.Value, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadBenchmarkSeries(baseDir, id string) ([]PlotPoint, bool, error) {
	rows, ok, err := readCSV(filepath.Join(baseDir, id, "benchmark_series.csv"), 2)
	if err != nil || !ok {
		return nil, ok, err
	}
	points := make([]PlotPoint, 0, len(rows))
	for _, row := range rows {
		index, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, false, fmt.Errorf("benchmark series index: %w", err)
		}
		value, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, false, fmt.Errorf("benchmark series value: %w", err)
		}
		points = append(points, PlotPoint{Index: index, Value: value})
	}
	return points, true, nil
}
