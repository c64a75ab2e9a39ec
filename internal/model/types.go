package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Run states.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunCancelled = "cancelled"
	RunFailed    = "failed"
)

type EngineSettings struct {
	MaxPopulation      int     `json:"max_population"`
	CrossoverRate      float64 `json:"crossover_rate"`
	MutationRate       float64 `json:"mutation_rate"`
	EliteSurvivalRate  float64 `json:"elite_survival_rate"`
	EvolutionInterval  int     `json:"evolution_interval"`
	InitialTemperature float64 `json:"initial_temperature"`
	CoolingRate        float64 `json:"cooling_rate"`
	ExplorationRate    float64 `json:"exploration_rate"`
	Seed               int64   `json:"seed"`
}

// RunRecord summarises one engine run.
type RunRecord struct {
	VersionedRecord
	ID             string         `json:"id"`
	Scape          string         `json:"scape"`
	Instance       string         `json:"instance"`
	Status         string         `json:"status"`
	RequestedTicks int            `json:"requested_ticks"`
	CompletedTicks int            `json:"completed_ticks"`
	Generation     int            `json:"generation"`
	PopulationSize int            `json:"population_size"`
	HasBest        bool           `json:"has_best"`
	BestScore      float64        `json:"best_score"`
	Engine         EngineSettings `json:"engine"`
	Seeds          []string       `json:"seeds"`
	Error          string         `json:"error,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
}

// BestRecord is the best solution of a run. Exactly one of Tour or
// Conformation is set, matching Kind.
type BestRecord struct {
	VersionedRecord
	RunID        string   `json:"run_id"`
	Kind         string   `json:"kind"`
	Score        float64  `json:"score"`
	Tick         int      `json:"tick"`
	OperatorID   string   `json:"operator_id"`
	Tour         []int    `json:"tour,omitempty"`
	Conformation [][3]int `json:"conformation,omitempty"`
}

// Solution kinds.
const (
	KindTour  = "tour"
	KindChain = "chain"
)

type OperatorRecord struct {
	ID         string   `json:"id"`
	Action     string   `json:"action"`
	Coherence  float64  `json:"coherence"`
	Uses       int      `json:"uses"`
	Successes  int      `json:"successes"`
	Failures   int      `json:"failures"`
	Parents    []string `json:"parents,omitempty"`
	Generation int      `json:"generation"`
	Lineage    string   `json:"lineage"`
}

// PopulationSnapshot is the operator population of a run at one tick.
type PopulationSnapshot struct {
	VersionedRecord
	RunID      string           `json:"run_id"`
	Tick       int              `json:"tick"`
	Generation int              `json:"generation"`
	Operators  []OperatorRecord `json:"operators"`
}

type LineageRecord struct {
	VersionedRecord
	OperatorID string   `json:"operator_id"`
	Action     string   `json:"action"`
	Parents    []string `json:"parents,omitempty"`
	Generation int      `json:"generation"`
	Lineage    string   `json:"lineage"`
	BornAtTick int      `json:"born_at_tick"`
}

// ScorePoint is one scored tick. Ticks that left the environment
// incomplete are not recorded.
type ScorePoint struct {
	Tick  int     `json:"tick"`
	Score float64 `json:"score"`
	Best  float64 `json:"best"`
}
