package storage

import (
	"context"
	"sync"

	"opevolve/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	best        map[string]model.BestRecord
	populations map[string]model.PopulationSnapshot
	lineage     map[string][]model.LineageRecord
	history     map[string][]model.ScorePoint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.clear()
	return nil
}

// Reset drops every stored record.
func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.clear()
	return nil
}

func (s *MemoryStore) clear() {
	s.runs = make(map[string]model.RunRecord)
	s.best = make(map[string]model.BestRecord)
	s.populations = make(map[string]model.PopulationSnapshot)
	s.lineage = make(map[string][]model.LineageRecord)
	s.history = make(map[string][]model.ScorePoint)
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	run.Seeds = append([]string(nil), run.Seeds...)
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	run.Seeds = append([]string(nil), run.Seeds...)
	return run, true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		run.Seeds = append([]string(nil), run.Seeds...)
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) SaveBest(_ context.Context, best model.BestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.best[best.RunID] = copyBest(best)
	return nil
}

func (s *MemoryStore) GetBest(_ context.Context, runID string) (model.BestRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best, ok := s.best[runID]
	if !ok {
		return model.BestRecord{}, false, nil
	}
	return copyBest(best), true, nil
}

func (s *MemoryStore) SavePopulation(_ context.Context, snapshot model.PopulationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.populations[snapshot.RunID] = copyPopulation(snapshot)
	return nil
}

func (s *MemoryStore) GetPopulation(_ context.Context, runID string) (model.PopulationSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.populations[runID]
	if !ok {
		return model.PopulationSnapshot{}, false, nil
	}
	return copyPopulation(snapshot), true, nil
}

func (s *MemoryStore) SaveLineage(_ context.Context, runID string, lineage []model.LineageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.lineage[runID] = copyLineage(lineage)
	return nil
}

func (s *MemoryStore) GetLineage(_ context.Context, runID string) ([]model.LineageRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lineage, ok := s.lineage[runID]
	if !ok {
		return nil, false, nil
	}
	return copyLineage(lineage), true, nil
}

func (s *MemoryStore) SaveScoreHistory(_ context.Context, runID string, history []model.ScorePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.history[runID] = append([]model.ScorePoint(nil), history...)
	return nil
}

func (s *MemoryStore) GetScoreHistory(_ context.Context, runID string) ([]model.ScorePoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.ScorePoint(nil), history...), true, nil
}

func copyBest(b model.BestRecord) model.BestRecord {
	b.Tour = append([]int(nil), b.Tour...)
	b.Conformation = append([][3]int(nil), b.Conformation...)
	return b
}

func copyPopulation(p model.PopulationSnapshot) model.PopulationSnapshot {
	operators := make([]model.OperatorRecord, len(p.Operators))
	for i, op := range p.Operators {
		op.Parents = append([]string(nil), op.Parents...)
		operators[i] = op
	}
	p.Operators = operators
	return p
}

func copyLineage(lineage []model.LineageRecord) []model.LineageRecord {
	copied := make([]model.LineageRecord, len(lineage))
	for i, record := range lineage {
		record.Parents = append([]string(nil), record.Parents...)
		copied[i] = record
	}
	return copied
}
