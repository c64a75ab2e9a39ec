package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"opevolve/internal/config"
	api "opevolve/pkg/opevolve"
)

type storeFlags struct {
	kind     *string
	dbPath   *string
	logLevel *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:     fs.String("store", "memory", "store backend: memory|sqlite"),
		dbPath:   fs.String("db-path", "opevolve.db", "sqlite database path"),
		logLevel: fs.String("log-level", "info", "log level: debug|info|warn|error"),
	}
}

// queryFlags select a stored run for the read-only commands.
type queryFlags struct {
	storeFlags
	runID  *string
	latest *bool
	outDir *string
}

func addQueryFlags(fs *flag.FlagSet) queryFlags {
	return queryFlags{
		storeFlags: addStoreFlags(fs),
		runID:      fs.String("run-id", "", "run id"),
		latest:     fs.Bool("latest", false, "use the most recent run from run index"),
		outDir:     fs.String("out-dir", benchmarksDir, "run artifacts directory"),
	}
}

func (q queryFlags) ref(command string) (api.RunRef, error) {
	if *q.runID != "" && *q.latest {
		return api.RunRef{}, errors.New("use either --run-id or --latest, not both")
	}
	if *q.runID == "" && !*q.latest {
		return api.RunRef{}, fmt.Errorf("%s requires --run-id or --latest", command)
	}
	return api.RunRef{RunID: *q.runID, Latest: *q.latest}, nil
}

func (q queryFlags) client() (*api.Client, error) {
	return api.New(api.Options{
		StoreKind:     *q.kind,
		DBPath:        *q.dbPath,
		BenchmarksDir: *q.outDir,
		ExportsDir:    exportsDir,
		Logger:        newLogger(*q.logLevel),
	})
}

// artifactClient reads run artifacts only; its memory store stays empty.
func artifactClient(dir string) (*api.Client, error) {
	return api.New(api.Options{StoreKind: "memory", BenchmarksDir: outDirOr(dir), ExportsDir: exportsDir})
}

// runFlags mirror config.RunConfig. Flags given on the command line
// override the values of --config.
type runFlags struct {
	configPath   *string
	runID        *string
	scape        *string
	instance     *string
	instanceFile *string
	seeds        *string
	resume       *string
	ticks        *int
	seed         *int64
	store        *string
	dbPath       *string
	outDir       *string
	logLevel     *string
	checkpoint   *string
	tickInterval *string

	maxPopulation      *int
	crossoverRate      *float64
	mutationRate       *float64
	eliteSurvivalRate  *float64
	evolutionInterval  *int
	initialTemperature *float64
	coolingRate        *float64
	explorationRate    *float64
}

func addRunFlags(fs *flag.FlagSet) *runFlags {
	defaults := config.Default()
	engine := defaults.EngineConfig()
	return &runFlags{
		configPath:   fs.String("config", "", "run config path (.toml, .yaml, .yml or .json)"),
		runID:        fs.String("run-id", "", "explicit run id (optional)"),
		scape:        fs.String("scape", defaults.Scape, "scape name: tour|chain"),
		instance:     fs.String("instance", "", "builtin instance: pentagon5|random:<n>:<seed>|hp:<sequence>"),
		instanceFile: fs.String("instance-file", "", "instance JSON file"),
		seeds:        fs.String("seeds", "", "comma-separated seed operator actions (default: scape defaults)"),
		resume:       fs.String("resume", "", "continue from the stored population of this run id"),
		ticks:        fs.Int("ticks", defaults.Ticks, "ticks to run"),
		seed:         fs.Int64("seed", engine.Seed, "rng seed"),
		store:        fs.String("store", defaults.Store, "store backend: memory|sqlite"),
		dbPath:       fs.String("db-path", "opevolve.db", "sqlite database path"),
		outDir:       fs.String("out-dir", benchmarksDir, "run artifacts directory"),
		logLevel:     fs.String("log-level", defaults.LogLevel, "log level: debug|info|warn|error"),
		checkpoint:   fs.String("checkpoint", "", "cron expression for store checkpoints (e.g. @every 1m)"),
		tickInterval: fs.String("tick-interval", "", "pause between ticks (e.g. 10ms)"),

		maxPopulation:      fs.Int("max-pop", engine.MaxPopulation, "maximum operator population"),
		crossoverRate:      fs.Float64("crossover-rate", engine.CrossoverRate, "share of regenerated operators built by crossover"),
		mutationRate:       fs.Float64("mutation-rate", engine.MutationRate, "share of regenerated operators built by mutation"),
		eliteSurvivalRate:  fs.Float64("elite-rate", engine.EliteSurvivalRate, "share of operators kept as elites"),
		evolutionInterval:  fs.Int("evolve-every", engine.EvolutionInterval, "ticks between population regenerations"),
		initialTemperature: fs.Float64("temperature", engine.InitialTemperature, "initial annealing temperature"),
		coolingRate:        fs.Float64("cooling", engine.CoolingRate, "per-tick temperature multiplier"),
		explorationRate:    fs.Float64("explore", engine.ExplorationRate, "probability of a uniform random operator pick"),
	}
}

// resolve loads --config (or the defaults) and applies every flag that was
// set explicitly.
func (r *runFlags) resolve(fs *flag.FlagSet) (config.RunConfig, error) {
	cfg := config.Default()
	if *r.configPath != "" {
		loaded, err := config.Load(*r.configPath)
		if err != nil {
			return config.RunConfig{}, err
		}
		cfg = loaded
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	// Without a config file every flag default applies.
	all := *r.configPath == ""
	use := func(name string) bool { return all || set[name] }

	if use("run-id") && *r.runID != "" {
		cfg.RunID = *r.runID
	}
	if use("scape") {
		cfg.Scape = *r.scape
	}
	if use("instance") && *r.instance != "" {
		cfg.Instance = *r.instance
	}
	if use("instance-file") && *r.instanceFile != "" {
		cfg.InstanceFile = *r.instanceFile
	}
	if use("seeds") && *r.seeds != "" {
		cfg.Seeds = splitList(*r.seeds)
	}
	if use("resume") && *r.resume != "" {
		cfg.Resume = *r.resume
	}
	if use("ticks") {
		cfg.Ticks = *r.ticks
	}
	if set["seed"] {
		seed := *r.seed
		cfg.Seed = &seed
	}
	if use("store") {
		cfg.Store = *r.store
	}
	if use("db-path") {
		cfg.DBPath = *r.dbPath
	}
	if use("out-dir") {
		cfg.OutDir = *r.outDir
	}
	if use("log-level") {
		cfg.LogLevel = *r.logLevel
	}
	if use("checkpoint") && *r.checkpoint != "" {
		cfg.Checkpoint = *r.checkpoint
	}
	if use("tick-interval") && *r.tickInterval != "" {
		cfg.TickInterval = *r.tickInterval
	}

	if set["max-pop"] {
		cfg.Engine.MaxPopulation = r.maxPopulation
	}
	if set["crossover-rate"] {
		cfg.Engine.CrossoverRate = r.crossoverRate
	}
	if set["mutation-rate"] {
		cfg.Engine.MutationRate = r.mutationRate
	}
	if set["elite-rate"] {
		cfg.Engine.EliteSurvivalRate = r.eliteSurvivalRate
	}
	if set["evolve-every"] {
		cfg.Engine.EvolutionInterval = r.evolutionInterval
	}
	if set["temperature"] {
		cfg.Engine.InitialTemperature = r.initialTemperature
	}
	if set["cooling"] {
		cfg.Engine.CoolingRate = r.coolingRate
	}
	if set["explore"] {
		cfg.Engine.ExplorationRate = r.explorationRate
	}

	if err := cfg.Validate(); err != nil {
		return config.RunConfig{}, err
	}
	return cfg, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: parseLogLevel(level)}))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
