package engine

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/talgya/fire-tactics/internal/agents"
	"github.com/talgya/fire-tactics/internal/entropy"
	"github.com/talgya/fire-tactics/internal/grid"
)

// quiet never triggers burnout, spread or clearing, and always suppresses.
const quiet = entropy.Constant(0.5)

func newQuietSim(rows, cols int) *Simulation {
	return NewSimulation(rows, cols, WithRand(quiet), WithForecastRand(quiet))
}

type panicSource struct{}

func (panicSource) Float64() float64 { panic("entropy exhausted") }

func agentAt(t *testing.T, s *Simulation, c grid.Coord) *agents.Agent {
	t.Helper()
	a, ok := s.AgentAt(c)
	if !ok {
		t.Fatalf("no agent at %v", c)
	}
	return a
}

func TestTickDeterministicUnderFixedSeed(t *testing.T) {
	build := func() *Simulation {
		s := NewSimulation(12, 12, WithRand(entropy.NewSeeded(7)))
		s.SetCell(grid.C(6, 6), grid.Fire)
		s.SetCell(grid.C(3, 3), grid.Wall)
		s.AddAgent(grid.C(0, 0))
		s.AddAgent(grid.C(11, 11))
		s.SetWaypoints(grid.C(0, 0), []grid.Coord{grid.C(5, 6)})
		s.SetWaypoints(grid.C(11, 11), []grid.Coord{grid.C(7, 6)})
		return s
	}
	a, b := build(), build()

	for i := 0; i < 40; i++ {
		ma, errA := a.Tick()
		mb, errB := b.Tick()
		if errA != nil || errB != nil {
			t.Fatalf("tick %d: %v / %v", i+1, errA, errB)
		}
		ga, ca := a.Snapshot()
		gb, cb := b.Snapshot()
		if !ga.Equal(gb) {
			t.Fatalf("tick %d: grids diverged", i+1)
		}
		if ma.PositionsString() != mb.PositionsString() {
			t.Fatalf("tick %d: positions %s vs %s", i+1, ma.PositionsString(), mb.PositionsString())
		}
		if len(ca) != len(cb) {
			t.Fatalf("tick %d: crew sizes differ", i+1)
		}
	}
}

// Suppression only ever turns Fire into Smoke. It never clears a cell to
// Normal and never changes the spread model. This is intended behaviour.
func TestSuppressionOnlyProducesSmoke(t *testing.T) {
	s := newQuietSim(3, 3)
	s.SetCell(grid.C(1, 1), grid.Fire)
	s.AddAgent(grid.C(1, 0))
	model := s.Model

	if _, err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	g, _ := s.Snapshot()
	if got := g.At(grid.C(1, 1)); got != grid.Smoke {
		t.Fatalf("suppressed fire = %s, want smoke", got)
	}
	if g.Count(grid.Normal) != 8 {
		t.Fatalf("normal cells = %d, want 8", g.Count(grid.Normal))
	}
	if s.Model != model {
		t.Fatal("suppression changed the hazard model")
	}
	if a := agentAt(t, s, grid.C(1, 0)); a.Pos != grid.C(1, 0) {
		t.Fatal("hazard-adjacent agent should hold position")
	}
}

func TestSuppressionMissLeavesFire(t *testing.T) {
	s := NewSimulation(3, 3, WithRand(entropy.Constant(0.9)))
	s.SetCell(grid.C(1, 1), grid.Fire)
	s.AddAgent(grid.C(0, 0))

	if _, err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if s.FireArea() != 1 {
		t.Fatalf("fire area = %d, want 1", s.FireArea())
	}
}

func TestWaypointConsumption(t *testing.T) {
	s := newQuietSim(1, 5)
	s.AddAgent(grid.C(0, 0))
	s.SetWaypoints(grid.C(0, 0), []grid.Coord{grid.C(0, 3)})
	id, events := s.Subscribe()
	defer s.Unsubscribe(id)

	for i := 0; i < 3; i++ {
		if _, err := s.Tick(); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	a := agentAt(t, s, grid.C(0, 3))
	if len(a.Waypoints) != 1 {
		t.Fatalf("waypoint consumed before the arrival tick: %v", a.Waypoints)
	}

	if _, err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	a = agentAt(t, s, grid.C(0, 3))
	if len(a.Waypoints) != 0 || a.HasPath() {
		t.Fatalf("after arrival waypoints=%v path=%v", a.Waypoints, a.Path)
	}

	reached := 0
	for len(events) > 0 {
		if e := <-events; e.Category == CategoryWaypoint {
			reached++
			if e.Tick != 4 {
				t.Errorf("waypoint event tick = %d, want 4", e.Tick)
			}
		}
	}
	if reached != 1 {
		t.Fatalf("waypoint events = %d, want 1", reached)
	}
}

func TestEarlierAgentWinsContestedCell(t *testing.T) {
	s := newQuietSim(1, 5)
	s.AddAgent(grid.C(0, 0))
	s.AddAgent(grid.C(0, 4))
	s.SetWaypoints(grid.C(0, 0), []grid.Coord{grid.C(0, 2)})
	s.SetWaypoints(grid.C(0, 4), []grid.Coord{grid.C(0, 2)})

	for i := 0; i < 2; i++ {
		if _, err := s.Tick(); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	_, crew := s.Snapshot()
	if crew[0].Pos != grid.C(0, 2) {
		t.Fatalf("first agent at %v, want (0,2)", crew[0].Pos)
	}
	if crew[1].Pos != grid.C(0, 3) {
		t.Fatalf("second agent at %v, want (0,3)", crew[1].Pos)
	}
}

func TestBlockedAgentDetours(t *testing.T) {
	s := newQuietSim(2, 4)
	s.AddAgent(grid.C(0, 0))
	s.AddAgent(grid.C(0, 1))
	s.SetWaypoints(grid.C(0, 0), []grid.Coord{grid.C(0, 3)})

	if _, err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	a := agentAt(t, s, grid.C(0, 0))
	if len(a.Path) != 5 {
		t.Fatalf("detour = %v, want 5 steps", a.Path)
	}
	for _, c := range a.Path {
		if c == grid.C(0, 1) {
			t.Fatalf("detour %v crosses the occupied cell", a.Path)
		}
	}

	if _, err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	agentAt(t, s, grid.C(1, 0))
}

func TestTerrainBlockDropsPath(t *testing.T) {
	s := newQuietSim(1, 4)
	s.AddAgent(grid.C(0, 0))
	s.SetWaypoints(grid.C(0, 0), []grid.Coord{grid.C(0, 3)})

	if _, err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if a := agentAt(t, s, grid.C(0, 1)); len(a.Path) != 2 {
		t.Fatalf("path after first move = %v", a.Path)
	}

	s.SetCell(grid.C(0, 2), grid.Wall)
	if _, err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	a := agentAt(t, s, grid.C(0, 1))
	if a.HasPath() {
		t.Fatalf("blocked path should be dropped, got %v", a.Path)
	}
	if len(a.Waypoints) != 1 {
		t.Fatal("waypoint should survive a terrain block")
	}
}

func TestTickFailureKeepsState(t *testing.T) {
	s := NewSimulation(3, 3, WithRand(panicSource{}))
	s.SetCell(grid.C(1, 1), grid.Fire)
	s.AddAgent(grid.C(0, 0))
	before, _ := s.Snapshot()

	_, err := s.Tick()
	if !errors.Is(err, ErrTickFailed) {
		t.Fatalf("err = %v, want ErrTickFailed", err)
	}
	after, crew := s.Snapshot()
	if !after.Equal(before) {
		t.Fatal("failed tick changed the grid")
	}
	if s.CurrentTick() != 0 || len(s.History()) != 0 {
		t.Fatal("failed tick advanced the counter or history")
	}
	if len(crew) != 1 || crew[0].Pos != grid.C(0, 0) {
		t.Fatal("failed tick changed the crew")
	}

	// The simulation stays usable once the source is fixed.
	s.Rand = quiet
	if _, err := s.Tick(); err != nil {
		t.Fatalf("Tick after recovery: %v", err)
	}
}

func TestMetricsUseCommittedGrid(t *testing.T) {
	s := newQuietSim(3, 3)
	s.SetCell(grid.C(1, 1), grid.Fire)
	s.AddAgent(grid.C(1, 0))

	m, err := s.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if m.Step != 1 || m.FireArea != 0 || m.AgentCount != 1 {
		t.Fatalf("metrics = %+v", m)
	}
	if m.PositionsString() != "(1,0)" {
		t.Fatalf("positions = %q", m.PositionsString())
	}
	if h := s.AreaHistory(); len(h) != 1 || h[0] != 0 {
		t.Fatalf("area history = %v", h)
	}
}

func TestForecastLeavesLiveStateAlone(t *testing.T) {
	live := entropy.NewSequence(0.5)
	s := NewSimulation(5, 5, WithRand(live), WithForecastRand(entropy.Constant(0)))
	s.SetCell(grid.C(2, 2), grid.Fire)
	before, _ := s.Snapshot()

	pred := s.Forecast(3)
	if pred.FireArea() <= 1 {
		t.Fatalf("forecast fire area = %d, want growth", pred.FireArea())
	}
	after, _ := s.Snapshot()
	if !after.Equal(before) {
		t.Fatal("forecast mutated the live grid")
	}
	if live.Drawn() != 0 {
		t.Fatalf("forecast drew %d values from the live source", live.Drawn())
	}
}

func TestRestoreResetsRun(t *testing.T) {
	s := newQuietSim(3, 3)
	s.AddAgent(grid.C(0, 0))
	if _, err := s.Run(3); err != nil {
		t.Fatalf("Run: %v", err)
	}
	oldRun := s.RunID()

	g := grid.New(4, 2)
	g.Set(grid.C(3, 1), grid.Fire)
	a := agents.New(grid.C(0, 0))
	a.Path = []grid.Coord{grid.C(1, 0)}
	a.Waypoints = []grid.Coord{grid.C(2, 0)}

	if err := s.Restore(g, []*agents.Agent{a}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if r, c := s.Dims(); r != 4 || c != 2 {
		t.Fatalf("dims = %dx%d, want 4x2", r, c)
	}
	if s.CurrentTick() != 0 || len(s.History()) != 0 {
		t.Fatal("restore should clear tick counter and history")
	}
	if s.RunID() == oldRun {
		t.Fatal("restore should start a new run")
	}
	got := agentAt(t, s, grid.C(0, 0))
	if got.HasPath() || len(got.Waypoints) != 1 {
		t.Fatalf("restored agent path=%v waypoints=%v", got.Path, got.Waypoints)
	}
	if err := s.Restore(nil, nil); err == nil {
		t.Fatal("expected error for nil grid")
	}
}

func TestSummarize(t *testing.T) {
	h := []TickMetrics{{FireArea: 1}, {FireArea: 4}, {FireArea: 4}, {FireArea: 2}}
	sum := Summarize(h)
	if sum.PeakArea != 4 || sum.PeakStep != 1 || sum.AUC != 11 || sum.FinalArea != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if empty := Summarize(nil); empty.Ticks != 0 || empty.MeanArea != 0 {
		t.Fatalf("empty summary = %+v", empty)
	}
}

func TestRunIDSafeDuringReset(t *testing.T) {
	s := newQuietSim(2, 2)
	seen := map[uuid.UUID]bool{s.RunID(): true}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			s.Reset(2, 2)
		}
	}()
	for i := 0; i < 200; i++ {
		if s.RunID() == uuid.Nil {
			t.Fatal("nil run id")
		}
	}
	wg.Wait()

	seen[s.RunID()] = true
	if len(seen) != 2 {
		t.Fatal("reset should replace the run id")
	}
}
