package platform

import (
	"opevolve/internal/evo"
	"opevolve/internal/model"
	"opevolve/internal/scape"
	"opevolve/internal/storage"
	"opevolve/internal/vecmath"
)

func engineSettings(cfg evo.Config) model.EngineSettings {
	return model.EngineSettings{
		MaxPopulation:      cfg.MaxPopulation,
		CrossoverRate:      cfg.CrossoverRate,
		MutationRate:       cfg.MutationRate,
		EliteSurvivalRate:  cfg.EliteSurvivalRate,
		EvolutionInterval:  cfg.EvolutionInterval,
		InitialTemperature: cfg.InitialTemperature,
		CoolingRate:        cfg.CoolingRate,
		ExplorationRate:    cfg.ExplorationRate,
		Seed:               cfg.Seed,
	}
}

func toModelBest(runID string, best evo.BestRecord) model.BestRecord {
	out := model.BestRecord{
		VersionedRecord: storage.Versioned(),
		RunID:           runID,
		Score:           best.Score,
		Tick:            best.Tick,
		OperatorID:      best.OperatorID,
	}
	switch sol := best.Solution.(type) {
	case scape.Tour:
		out.Kind = model.KindTour
		out.Tour = append([]int(nil), sol...)
	case scape.Conformation:
		out.Kind = model.KindChain
		out.Conformation = make([][3]int, len(sol))
		for i, p := range sol {
			out.Conformation[i] = [3]int{p.X, p.Y, p.Z}
		}
	}
	return out
}

func fromModelBest(best model.BestRecord) (scape.Solution, bool) {
	switch best.Kind {
	case model.KindTour:
		return scape.Tour(append([]int(nil), best.Tour...)), len(best.Tour) > 0
	case model.KindChain:
		conf := make(scape.Conformation, len(best.Conformation))
		for i, p := range best.Conformation {
			conf[i] = vecmath.Vec3{X: p[0], Y: p[1], Z: p[2]}
		}
		return conf, len(conf) > 0
	default:
		return nil, false
	}
}

func toModelPopulation(runID string, status evo.Status, population []evo.OperatorState) model.PopulationSnapshot {
	operators := make([]model.OperatorRecord, 0, len(population))
	for _, st := range population {
		operators = append(operators, model.OperatorRecord{
			ID:         st.ID,
			Action:     st.Action,
			Coherence:  st.Coherence,
			Uses:       st.Uses,
			Successes:  st.Successes,
			Failures:   st.Failures,
			Parents:    append([]string(nil), st.Ancestry.Parents...),
			Generation: st.Ancestry.Generation,
			Lineage:    string(st.Ancestry.Lineage),
		})
	}
	return model.PopulationSnapshot{
		VersionedRecord: storage.Versioned(),
		RunID:           runID,
		Tick:            status.Tick,
		Generation:      status.Generation,
		Operators:       operators,
	}
}

// FromModelPopulation converts a stored snapshot back into operator states
// that evo.RestoreOperator accepts.
func FromModelPopulation(snapshot model.PopulationSnapshot) []evo.OperatorState {
	out := make([]evo.OperatorState, 0, len(snapshot.Operators))
	for _, op := range snapshot.Operators {
		out = append(out, evo.OperatorState{
			ID:        op.ID,
			Action:    op.Action,
			Coherence: op.Coherence,
			Uses:      op.Uses,
			Successes: op.Successes,
			Failures:  op.Failures,
			Ancestry: evo.Ancestry{
				Parents:    append([]string(nil), op.Parents...),
				Generation: op.Generation,
				Lineage:    evo.Lineage(op.Lineage),
			},
		})
	}
	return out
}

func toModelLineage(lineage []evo.LineageRecord) []model.LineageRecord {
	out := make([]model.LineageRecord, 0, len(lineage))
	for _, rec := range lineage {
		out = append(out, model.LineageRecord{
			VersionedRecord: storage.Versioned(),
			OperatorID:      rec.OperatorID,
			Action:          rec.Action,
			Parents:         append([]string(nil), rec.Parents...),
			Generation:      rec.Generation,
			Lineage:         string(rec.Lineage),
			BornAtTick:      rec.BornAtTick,
		})
	}
	return out
}
