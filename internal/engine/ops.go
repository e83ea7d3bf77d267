package engine

import (
	"log/slog"

	"github.com/talgya/fire-tactics/internal/agents"
	"github.com/talgya/fire-tactics/internal/grid"
)

// Operator edits. Out-of-range coordinates and disallowed edits are silent
// no-ops; the bool results only report whether anything changed.

// ToggleCell cycles the cell Normal → Fire → Wall → Normal.
func (s *Simulation) ToggleCell(c grid.Coord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.grid.InBounds(c) {
		return false
	}
	s.grid.Toggle(c)
	slog.Debug("cell toggled", "cell", c, "state", s.grid.At(c))
	return true
}

// SetCell writes a state directly. Used by scenario generation and tests.
func (s *Simulation) SetCell(c grid.Coord, st grid.CellState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.grid.InBounds(c) || !st.Valid() {
		return false
	}
	s.grid.Set(c, st)
	return true
}

// AddAgent places an idle crew at c unless the cell is Wall or Fire or
// already holds a crew.
func (s *Simulation) AddAgent(c grid.Coord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.grid.InBounds(c) {
		return false
	}
	switch s.grid.At(c) {
	case grid.Wall, grid.Fire:
		return false
	case grid.Normal, grid.Smoke, grid.Burnt:
	}
	if s.indexAt(c) >= 0 {
		return false
	}
	a := agents.New(c)
	a.Waypoints = []grid.Coord{}
	s.crew = append(s.crew, a)
	slog.Debug("agent added", "cell", c, "agents", len(s.crew))
	return true
}

// RemoveAgent removes every crew standing on c.
func (s *Simulation) RemoveAgent(c grid.Coord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.crew[:0:0]
	for _, a := range s.crew {
		if a.Pos != c {
			kept = append(kept, a)
		}
	}
	removed := len(kept) != len(s.crew)
	s.crew = kept
	if removed {
		slog.Debug("agent removed", "cell", c, "agents", len(s.crew))
	}
	return removed
}

// FireArea returns the number of cells currently burning.
func (s *Simulation) FireArea() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid.FireArea()
}

// AgentCount returns the number of crews.
func (s *Simulation) AgentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.crew)
}

// AgentAt returns a copy of the first crew standing on c.
func (s *Simulation) AgentAt(c grid.Coord) (*agents.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexAt(c)
	if i < 0 {
		return nil, false
	}
	return s.crew[i].Clone(), true
}

// SetWaypoints replaces the waypoint queue of the crew at c. Off-grid
// waypoints are dropped. The cached route is discarded.
func (s *Simulation) SetWaypoints(c grid.Coord, wps []grid.Coord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexAt(c)
	if i < 0 {
		return false
	}
	a := s.crew[i]
	a.Waypoints = s.inBounds(wps)
	a.ClearPath()
	return true
}

// AppendWaypoint queues one more destination for the crew at c.
func (s *Simulation) AppendWaypoint(c, wp grid.Coord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexAt(c)
	if i < 0 || !s.grid.InBounds(wp) {
		return false
	}
	s.crew[i].Waypoints = append(s.crew[i].Waypoints, wp)
	return true
}

// ClearWaypoints empties the queue and route of the crew at c.
func (s *Simulation) ClearWaypoints(c grid.Coord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexAt(c)
	if i < 0 {
		return false
	}
	s.crew[i].Waypoints = []grid.Coord{}
	s.crew[i].ClearPath()
	return true
}

func (s *Simulation) indexAt(c grid.Coord) int {
	for i, a := range s.crew {
		if a.Pos == c {
			return i
		}
	}
	return -1
}

func (s *Simulation) inBounds(cs []grid.Coord) []grid.Coord {
	out := make([]grid.Coord, 0, len(cs))
	for _, c := range cs {
		if s.grid.InBounds(c) {
			out = append(out, c)
		}
	}
	return out
}
