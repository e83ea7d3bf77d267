package persistence

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/fire-tactics/internal/engine"
	"github.com/talgya/fire-tactics/internal/entropy"
	"github.com/talgya/fire-tactics/internal/grid"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "firesim.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunRecords(t *testing.T) {
	db := openTestDB(t)
	id := uuid.New().String()

	if err := db.SaveRun(Run{ID: "not-a-uuid"}); err == nil {
		t.Fatal("expected error for malformed run id")
	}
	if err := db.SaveRun(Run{ID: id, Rows: 10, Cols: 12, Seed: 42, StartedAt: 1000}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := db.SaveRun(Run{ID: id, Rows: 10, Cols: 12, Seed: 42, StartedAt: 1000, LastTick: 77}); err != nil {
		t.Fatalf("SaveRun update: %v", err)
	}

	r, err := db.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if r.Rows != 10 || r.Cols != 12 || r.Seed != 42 || r.LastTick != 77 {
		t.Fatalf("run = %+v", r)
	}
	if !r.Started().Equal(time.Unix(1000, 0)) {
		t.Fatalf("started = %v", r.Started())
	}

	runs, err := db.Runs(10)
	if err != nil || len(runs) != 1 {
		t.Fatalf("Runs = %v, %v", runs, err)
	}
}

func TestMetricsStore(t *testing.T) {
	db := openTestDB(t)
	id := uuid.New().String()

	if err := db.SaveMetrics(id, sampleHistory()); err != nil {
		t.Fatalf("SaveMetrics: %v", err)
	}
	// Saving again replaces rather than duplicates.
	if err := db.SaveMetrics(id, sampleHistory()); err != nil {
		t.Fatalf("SaveMetrics again: %v", err)
	}

	got, err := db.RecentMetrics(id, 2)
	if err != nil {
		t.Fatalf("RecentMetrics: %v", err)
	}
	if len(got) != 2 || got[0].Step != 2 || got[1].Step != 3 {
		t.Fatalf("recent = %+v", got)
	}
	if got[0].PositionsString() != "(0,1); (4,4)" {
		t.Fatalf("positions = %q", got[0].PositionsString())
	}
}

func TestSnapshotStore(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.LatestSnapshot(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("err = %v, want ErrNoSnapshot", err)
	}

	g, crew := sampleWorld()
	if err := db.SaveSnapshot("run-a", 5, g, crew); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	g.Set(grid.C(0, 3), grid.Fire)
	if err := db.SaveSnapshot("run-a", 9, g, crew); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	snap, err := db.LatestSnapshot()
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if snap.Tick != 9 || snap.RunID != "run-a" || !snap.Grid.Equal(g) || len(snap.Crew) != 2 {
		t.Fatalf("snapshot = tick %d run %s", snap.Tick, snap.RunID)
	}
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveMeta("k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMeta("k", "v2"); err != nil {
		t.Fatal(err)
	}
	if v, err := db.GetMeta("k"); err != nil || v != "v2" {
		t.Fatalf("GetMeta = %q, %v", v, err)
	}
}

func TestCheckpoint(t *testing.T) {
	db := openTestDB(t)
	sim := engine.NewSimulation(4, 4, engine.WithRand(entropy.NewSeeded(3)))
	sim.SetCell(grid.C(2, 2), grid.Fire)
	sim.AddAgent(grid.C(0, 0))
	if _, err := sim.Run(5); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if err := db.Checkpoint(sim, 3, time.Unix(500, 0)); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}

	run, err := db.GetRun(sim.RunID().String())
	if err != nil || run.LastTick != 5 || run.Seed != 3 {
		t.Fatalf("run = %+v, %v", run, err)
	}
	rows, err := db.RecentMetrics(sim.RunID().String(), 100)
	if err != nil || len(rows) != 5 {
		t.Fatalf("metrics rows = %d, %v", len(rows), err)
	}
	snap, err := db.LatestSnapshot()
	if err != nil || snap.Tick != 5 {
		t.Fatalf("snapshot tick = %d, %v", snap.Tick, err)
	}
	live, _ := sim.Snapshot()
	if !snap.Grid.Equal(live) {
		t.Fatal("stored grid differs from live grid")
	}
	if v, _ := db.GetMeta("last_tick"); v != "5" {
		t.Fatalf("last_tick meta = %q", v)
	}
}
