package engine

import (
	"testing"

	"github.com/talgya/fire-tactics/internal/agents"
	"github.com/talgya/fire-tactics/internal/grid"
)

func TestAddAgentRules(t *testing.T) {
	s := newQuietSim(3, 3)
	s.SetCell(grid.C(0, 1), grid.Wall)
	s.SetCell(grid.C(0, 2), grid.Fire)

	tests := []struct {
		name string
		at   grid.Coord
		want bool
	}{
		{"normal", grid.C(1, 1), true},
		{"occupied", grid.C(1, 1), false},
		{"wall", grid.C(0, 1), false},
		{"fire", grid.C(0, 2), false},
		{"out of range", grid.C(5, 0), false},
		{"negative", grid.C(-1, 0), false},
	}
	for _, tc := range tests {
		if got := s.AddAgent(tc.at); got != tc.want {
			t.Errorf("%s: AddAgent = %v, want %v", tc.name, got, tc.want)
		}
	}
	if n := s.AgentCount(); n != 1 {
		t.Fatalf("agents = %d, want 1", n)
	}
}

func TestRemoveAgentDropsEveryCrewOnCell(t *testing.T) {
	s := newQuietSim(3, 3)
	crew := []*agents.Agent{
		agents.New(grid.C(1, 1)),
		agents.New(grid.C(1, 1)),
		agents.New(grid.C(2, 2)),
	}
	if err := s.Restore(grid.New(3, 3), crew); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if s.RemoveAgent(grid.C(0, 0)) {
		t.Fatal("removing from an empty cell should be a no-op")
	}
	if !s.RemoveAgent(grid.C(1, 1)) {
		t.Fatal("RemoveAgent reported nothing removed")
	}
	if n := s.AgentCount(); n != 1 {
		t.Fatalf("agents = %d, want 1", n)
	}
}

func TestToggleCellThroughSimulation(t *testing.T) {
	s := newQuietSim(2, 2)
	c := grid.C(0, 1)
	for i := 0; i < 3; i++ {
		if !s.ToggleCell(c) {
			t.Fatalf("toggle %d reported no change", i+1)
		}
	}
	g, _ := s.Snapshot()
	if g.At(c) != grid.Normal {
		t.Fatalf("after three toggles = %s, want normal", g.At(c))
	}
	if s.ToggleCell(grid.C(2, 0)) {
		t.Fatal("out-of-range toggle should be a no-op")
	}
}

func TestWaypointEditing(t *testing.T) {
	s := newQuietSim(4, 4)
	s.AddAgent(grid.C(0, 0))

	if s.SetWaypoints(grid.C(3, 3), []grid.Coord{grid.C(1, 1)}) {
		t.Fatal("no agent at (3,3)")
	}
	s.SetWaypoints(grid.C(0, 0), []grid.Coord{grid.C(1, 1), grid.C(9, 9), grid.C(2, 2)})
	if !s.AppendWaypoint(grid.C(0, 0), grid.C(3, 0)) {
		t.Fatal("AppendWaypoint failed")
	}
	if s.AppendWaypoint(grid.C(0, 0), grid.C(0, 7)) {
		t.Fatal("off-grid waypoint should be rejected")
	}

	a := agentAt(t, s, grid.C(0, 0))
	want := []grid.Coord{grid.C(1, 1), grid.C(2, 2), grid.C(3, 0)}
	if len(a.Waypoints) != len(want) {
		t.Fatalf("waypoints = %v, want %v", a.Waypoints, want)
	}
	for i := range want {
		if a.Waypoints[i] != want[i] {
			t.Fatalf("waypoint %d = %v, want %v", i, a.Waypoints[i], want[i])
		}
	}

	s.ClearWaypoints(grid.C(0, 0))
	if a := agentAt(t, s, grid.C(0, 0)); len(a.Waypoints) != 0 {
		t.Fatalf("waypoints after clear = %v", a.Waypoints)
	}
}

func TestAgentAtReturnsCopy(t *testing.T) {
	s := newQuietSim(2, 2)
	s.AddAgent(grid.C(0, 0))
	a := agentAt(t, s, grid.C(0, 0))
	a.Pos = grid.C(1, 1)
	if _, ok := s.AgentAt(grid.C(1, 1)); ok {
		t.Fatal("mutating the copy moved the live agent")
	}
}
