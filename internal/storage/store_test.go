package storage

import (
	"context"
	"testing"
	"time"

	"opevolve/internal/model"
)

// exerciseStore runs the shared round-trip checks against any backend.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []model.RunRecord{
		{VersionedRecord: Versioned(), ID: "b", Scape: "tour", Status: model.RunCompleted, StartedAt: base.Add(time.Minute), Seeds: []string{"two_opt"}},
		{VersionedRecord: Versioned(), ID: "a", Scape: "chain", Status: model.RunRunning, StartedAt: base},
		{VersionedRecord: Versioned(), ID: "c", Scape: "tour", Status: model.RunCompleted, StartedAt: base.Add(time.Minute)},
	}
	for _, run := range runs {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}
	listed, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(listed) != 3 || listed[0].ID != "a" || listed[1].ID != "b" || listed[2].ID != "c" {
		t.Fatalf("unexpected run order: %+v", listed)
	}
	run, ok, err := store.GetRun(ctx, "b")
	if err != nil || !ok || run.Seeds[0] != "two_opt" {
		t.Fatalf("get run: ok=%t err=%v run=%+v", ok, err, run)
	}

	best := model.BestRecord{VersionedRecord: Versioned(), RunID: "b", Kind: model.KindTour, Score: 12.5, Tick: 9, Tour: []int{0, 2, 1}}
	if err := store.SaveBest(ctx, best); err != nil {
		t.Fatalf("save best: %v", err)
	}
	gotBest, ok, err := store.GetBest(ctx, "b")
	if err != nil || !ok || gotBest.Score != 12.5 || len(gotBest.Tour) != 3 || gotBest.Tour[1] != 2 {
		t.Fatalf("get best: ok=%t err=%v best=%+v", ok, err, gotBest)
	}

	snapshot := model.PopulationSnapshot{
		VersionedRecord: Versioned(),
		RunID:           "b",
		Tick:            20,
		Generation:      1,
		Operators:       []model.OperatorRecord{{ID: "two_opt", Action: "two_opt", Coherence: 1.05, Lineage: "seed"}},
	}
	if err := store.SavePopulation(ctx, snapshot); err != nil {
		t.Fatalf("save population: %v", err)
	}
	gotSnapshot, ok, err := store.GetPopulation(ctx, "b")
	if err != nil || !ok || len(gotSnapshot.Operators) != 1 || gotSnapshot.Generation != 1 {
		t.Fatalf("get population: ok=%t err=%v snapshot=%+v", ok, err, gotSnapshot)
	}

	lineage := []model.LineageRecord{
		{VersionedRecord: Versioned(), OperatorID: "two_opt", Action: "two_opt", Lineage: "seed"},
		{VersionedRecord: Versioned(), OperatorID: "two_opt#1234abcd", Action: "two_opt", Parents: []string{"two_opt"}, Generation: 1, Lineage: "asexual", BornAtTick: 20},
	}
	if err := store.SaveLineage(ctx, "b", lineage); err != nil {
		t.Fatalf("save lineage: %v", err)
	}
	gotLineage, ok, err := store.GetLineage(ctx, "b")
	if err != nil || !ok || len(gotLineage) != 2 || gotLineage[1].Parents[0] != "two_opt" {
		t.Fatalf("get lineage: ok=%t err=%v lineage=%+v", ok, err, gotLineage)
	}

	history := []model.ScorePoint{{Tick: 5, Score: 14, Best: 14}, {Tick: 6, Score: 13, Best: 13}}
	if err := store.SaveScoreHistory(ctx, "b", history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	gotHistory, ok, err := store.GetScoreHistory(ctx, "b")
	if err != nil || !ok || len(gotHistory) != 2 || gotHistory[1].Best != 13 {
		t.Fatalf("get history: ok=%t err=%v history=%+v", ok, err, gotHistory)
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	listed, err = store.ListRuns(ctx)
	if err != nil || len(listed) != 0 {
		t.Fatalf("expected no runs after reset, got %d err=%v", len(listed), err)
	}
	if _, ok, _ := store.GetBest(ctx, "b"); ok {
		t.Fatal("expected best to be cleared by reset")
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	exerciseStore(t, store)
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	err := store.SaveRun(context.Background(), model.RunRecord{ID: "x"})
	if err == nil {
		t.Fatal("expected error before init")
	}
}

func TestMemoryStoreCopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	tour := []int{0, 1, 2}
	if err := store.SaveBest(ctx, model.BestRecord{RunID: "r", Tour: tour}); err != nil {
		t.Fatalf("save best: %v", err)
	}
	tour[0] = 9
	best, _, _ := store.GetBest(ctx, "r")
	if best.Tour[0] != 0 {
		t.Fatalf("stored tour aliased caller slice: %v", best.Tour)
	}
	best.Tour[1] = 9
	again, _, _ := store.GetBest(ctx, "r")
	if again.Tour[1] != 1 {
		t.Fatalf("returned tour aliased stored slice: %v", again.Tour)
	}
}
