package dispatcher

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/talgya/fire-tactics/internal/api"
	"github.com/talgya/fire-tactics/internal/engine"
	"github.com/talgya/fire-tactics/internal/entropy"
	"github.com/talgya/fire-tactics/internal/grid"
)

func idle(index, row, col int) AgentInfo {
	return AgentInfo{Index: index, Row: row, Col: col, Type: "firefighter", Waypoints: []grid.Coord{}}
}

func TestTriageLevels(t *testing.T) {
	tests := []struct {
		name string
		obs  Observation
		want string
	}{
		{"no fire", Observation{Status: Status{FireArea: 0}}, LevelContained},
		{"no crews", Observation{Status: Status{FireArea: 3}}, LevelCritical},
		{
			"outnumbered",
			Observation{
				Status:   Status{FireArea: 9},
				Strategy: StrategyView{Agents: []AgentInfo{idle(0, 0, 0), idle(1, 0, 1)}},
			},
			LevelCritical,
		},
		{
			"nothing routable",
			Observation{
				Status:   Status{FireArea: 2},
				Strategy: StrategyView{Agents: []AgentInfo{idle(0, 0, 0)}},
			},
			LevelWarning,
		},
		{
			"routed",
			Observation{
				Status: Status{FireArea: 2},
				Strategy: StrategyView{
					Agents:      []AgentInfo{idle(0, 0, 0)},
					Assignments: []Assignment{{Agent: 0, Start: grid.C(0, 0), Target: grid.C(2, 1)}},
				},
			},
			LevelWatch,
		},
	}
	for _, tc := range tests {
		if got := Triage(&tc.obs).Level; got != tc.want {
			t.Errorf("%s: level = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestDecideSkipsBusyAndDuplicateTargets(t *testing.T) {
	busy := idle(1, 4, 4)
	busy.Waypoints = []grid.Coord{grid.C(2, 3)}

	obs := &Observation{
		Status: Status{FireArea: 1},
		Strategy: StrategyView{
			Agents: []AgentInfo{idle(0, 0, 0), busy, idle(2, 0, 4), idle(3, 4, 0)},
			Assignments: []Assignment{
				{Agent: 0, Start: grid.C(0, 0), Target: grid.C(1, 2)},
				{Agent: 1, Start: grid.C(4, 4), Target: grid.C(3, 2)},
				{Agent: 2, Start: grid.C(0, 4), Target: grid.C(1, 2)},
				{Agent: 3, Start: grid.C(1, 0), Target: grid.C(2, 1)}, // stale
			},
		},
	}
	d := Decide(obs, Triage(obs))

	if d.Action != "dispatch" || len(d.Orders) != 1 {
		t.Fatalf("decision = %+v", d)
	}
	o := d.Orders[0]
	if o.Row != 0 || o.Col != 0 || len(o.Waypoints) != 1 || o.Waypoints[0] != grid.C(1, 2) {
		t.Fatalf("order = %+v", o)
	}
}

func TestDecideAvoidsTargetsAlreadyClaimed(t *testing.T) {
	busy := idle(1, 4, 4)
	busy.Waypoints = []grid.Coord{grid.C(1, 2)}
	obs := &Observation{
		Status: Status{FireArea: 1},
		Strategy: StrategyView{
			Agents:      []AgentInfo{idle(0, 0, 0), busy},
			Assignments: []Assignment{{Agent: 0, Start: grid.C(0, 0), Target: grid.C(1, 2)}},
		},
	}
	if d := Decide(obs, Triage(obs)); d.Action != "none" {
		t.Fatalf("decision = %+v, want none", d)
	}
}

func TestDecideNoFire(t *testing.T) {
	obs := &Observation{Strategy: StrategyView{Agents: []AgentInfo{idle(0, 0, 0)}}}
	if d := Decide(obs, Triage(obs)); d.Action != "none" || len(d.Orders) != 0 {
		t.Fatalf("decision = %+v", d)
	}
}

func TestMemoryRingAndTrend(t *testing.T) {
	m := &CycleMemory{}
	if _, ok := m.Trend(); ok {
		t.Fatal("empty memory has no trend")
	}
	for i := 0; i < maxRecords+5; i++ {
		m.Record(CycleRecord{RunID: "a", Tick: uint64(i), FireArea: i})
	}
	if len(m.Records) != maxRecords {
		t.Fatalf("records = %d, want %d", len(m.Records), maxRecords)
	}
	if delta, ok := m.Trend(); !ok || delta != 1 {
		t.Fatalf("trend = %d %v, want 1 true", delta, ok)
	}

	m.Record(CycleRecord{RunID: "b", FireArea: 0})
	if _, ok := m.Trend(); ok {
		t.Fatal("trend should not span runs")
	}
}

func TestMemorySaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	m := &CycleMemory{}
	m.Record(CycleRecord{RunID: "a", Tick: 7, Action: "dispatch", FireArea: 3, Orders: 2, Level: LevelWatch})
	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	back := LoadMemory(path)
	if len(back.Records) != 1 || back.Records[0] != m.Records[0] {
		t.Fatalf("loaded %+v", back.Records)
	}
	if missing := LoadMemory(filepath.Join(t.TempDir(), "none.json")); len(missing.Records) != 0 {
		t.Fatal("missing file should load empty")
	}
}

func TestCycleAgainstLiveAPI(t *testing.T) {
	sim := engine.NewSimulation(5, 5, engine.WithRand(entropy.Constant(0.5)))
	sim.SetCell(grid.C(2, 2), grid.Fire)
	sim.AddAgent(grid.C(0, 0))
	sim.AddAgent(grid.C(4, 4))

	srv := &api.Server{Sim: sim, AdminKey: "k"}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	bot := NewBot(ts.URL, "k", "")
	d, err := bot.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if d.Action != "dispatch" || len(d.Orders) != 2 {
		t.Fatalf("decision = %+v", d)
	}

	targets := make(map[grid.Coord]bool)
	for _, c := range []grid.Coord{grid.C(0, 0), grid.C(4, 4)} {
		a, ok := sim.AgentAt(c)
		if !ok || len(a.Waypoints) != 1 {
			t.Fatalf("agent at %v: %+v", c, a)
		}
		if grid.Manhattan(a.Waypoints[0], grid.C(2, 2)) != 1 {
			t.Fatalf("waypoint %v is not an attack point", a.Waypoints[0])
		}
		targets[a.Waypoints[0]] = true
	}
	if len(targets) != 2 {
		t.Fatal("both crews were sent to the same cell")
	}

	// Second cycle: both crews are busy, nothing to do.
	d, err = bot.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second RunCycle: %v", err)
	}
	if d.Action != "none" {
		t.Fatalf("second decision = %+v", d)
	}
	if len(bot.Memory.Records) != 2 || bot.Memory.Records[0].Orders != 2 {
		t.Fatalf("memory = %+v", bot.Memory.Records)
	}
}

func TestCycleObserveFailure(t *testing.T) {
	bot := NewBot("http://127.0.0.1:1", "k", "")
	if _, err := bot.RunCycle(context.Background()); err == nil {
		t.Fatal("expected observe error")
	}
}
