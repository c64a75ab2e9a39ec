package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"opevolve/internal/model"
)

const runIndexFile = "run_index.json"

// RunConfig is the resolved configuration a run was started with.
type RunConfig struct {
	RunID        string               `json:"run_id"`
	Scape        string               `json:"scape"`
	Instance     string               `json:"instance"`
	Resume       string               `json:"resume,omitempty"`
	Seeds        []string             `json:"seeds,omitempty"`
	Ticks        int                  `json:"ticks"`
	TickInterval string               `json:"tick_interval,omitempty"`
	Checkpoint   string               `json:"checkpoint,omitempty"`
	Store        string               `json:"store"`
	Engine       model.EngineSettings `json:"engine"`
}

type TopOperator struct {
	Rank int `json:"rank"`
	model.OperatorRecord
}

type RunArtifacts struct {
	Config       RunConfig             `json:"config"`
	Run          model.RunRecord       `json:"run"`
	Best         *model.BestRecord     `json:"best,omitempty"`
	ScoreHistory []model.ScorePoint    `json:"score_history"`
	TopOperators []TopOperator         `json:"top_operators"`
	Lineage      []model.LineageRecord `json:"lineage"`
}

type RunIndexEntry struct {
	RunID          string  `json:"run_id"`
	Scape          string  `json:"scape"`
	Instance       string  `json:"instance"`
	Status         string  `json:"status"`
	Ticks          int     `json:"ticks"`
	Seed           int64   `json:"seed"`
	PopulationSize int     `json:"population_size"`
	HasBest        bool    `json:"has_best"`
	BestScore      float64 `json:"best_score"`
	CreatedAtUTC   string  `json:"created_at_utc"`
}

// RankOperators orders operators by coherence, highest first, and keeps at
// most limit of them. A non-positive limit keeps all.
func RankOperators(operators []model.OperatorRecord, limit int) []TopOperator {
	sorted := append([]model.OperatorRecord(nil), operators...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Coherence > sorted[j].Coherence
	})
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	top := make([]TopOperator, 0, len(sorted))
	for i, op := range sorted {
		top = append(top, TopOperator{Rank: i + 1, OperatorRecord: op})
	}
	return top
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "run.json"), artifacts.Run); err != nil {
		return "", err
	}
	if artifacts.Best != nil {
		if err := writeJSON(filepath.Join(runDir, "best.json"), artifacts.Best); err != nil {
			return "", err
		}
	}
	if err := WriteScoreHistory(runDir, artifacts.ScoreHistory); err != nil {
		return "", err
	}
	top := artifacts.TopOperators
	if top == nil {
		top = []TopOperator{}
	}
	if err := writeJSON(filepath.Join(runDir, "top_operators.json"), top); err != nil {
		return "", err
	}
	lineage := artifacts.Lineage
	if lineage == nil {
		lineage = []model.LineageRecord{}
	}
	if err := writeJSON(filepath.Join(runDir, "lineage.json"), lineage); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	var entries []RunIndexEntry
	ok, err := readJSON(filepath.Join(baseDir, runIndexFile), &entries)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []RunIndexEntry{}, nil
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

var (
	requiredRunFiles = []string{"config.json", "run.json", "score_history.csv", "top_operators.json", "lineage.json"}
	optionalRunFiles = []string{"best.json", "benchmark_summary.json", "benchmark_series.csv"}
)

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range requiredRunFiles {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range optionalRunFiles {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if err := copyFile(path, filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	return cfg, ok, err
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = runID
	}
	if cfg.RunID != runID {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, runID)
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, "config.json"), cfg)
}

func ReadRunRecord(baseDir, runID string) (model.RunRecord, bool, error) {
	var run model.RunRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, "run.json"), &run)
	return run, ok, err
}

func ReadBest(baseDir, runID string) (model.BestRecord, bool, error) {
	var best model.BestRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, "best.json"), &best)
	return best, ok, err
}

func ReadTopOperators(baseDir, runID string) ([]TopOperator, bool, error) {
	var top []TopOperator
	ok, err := readJSON(filepath.Join(baseDir, runID, "top_operators.json"), &top)
	return top, ok, err
}

func ReadLineage(baseDir, runID string) ([]model.LineageRecord, bool, error) {
	var lineage []model.LineageRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, "lineage.json"), &lineage)
	return lineage, ok, err
}

// WriteScoreHistory writes one CSV row per scored tick.
func WriteScoreHistory(runDir string, history []model.ScorePoint) error {
	file, err := os.Create(filepath.Join(runDir, "score_history.csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"tick", "score", "best"}); err != nil {
		return err
	}
	for _, point := range history {
		if err := writer.Write([]string{
			strconv.Itoa(point.Tick),
			strconv.FormatFloat(point.Score, 'f', -1, 64),
			strconv.FormatFloat(point.Best, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadScoreHistory(baseDir, runID string) ([]model.ScorePoint, bool, error) {
	rows, ok, err := readCSV(filepath.Join(baseDir, runID, "score_history.csv"), 3)
	if err != nil || !ok {
		return nil, ok, err
	}
	history := make([]model.ScorePoint, 0, len(rows))
	for _, row := range rows {
		tick, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, false, err
		}
		score, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, false, err
		}
		best, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, false, err
		}
		history = append(history, model.ScorePoint{Tick: tick, Score: score, Best: best})
	}
	return history, true, nil
}

// readCSV returns the data rows of a headed CSV file, each with at least
// columns fields.
func readCSV(path string, columns int) ([][]string, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return [][]string{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < columns {
		return nil, false, fmt.Errorf("%s: header must have at least %d columns", filepath.Base(path), columns)
	}

	rows := make([][]string, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < columns {
			return nil, false, fmt.Errorf("%s: row must have at least %d columns", filepath.Base(path), columns)
		}
		rows = append(rows, record)
	}
	return rows, true, nil
}

func readJSON(path string, dst any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
