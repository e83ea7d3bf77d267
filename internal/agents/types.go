// Package agents provides the firefighting crew data model.
package agents

import (
	"fmt"

	"github.com/talgya/fire-tactics/internal/grid"
)

// AgentType tags the kind of crew. Snapshot files store the numeric code;
// new kinds are appended, never renumbered.
type AgentType uint8

const (
	FireFighter AgentType = 0 // Ground crew
)

// Valid reports whether t is a known crew kind.
func (t AgentType) Valid() bool {
	switch t {
	case FireFighter:
		return true
	}
	return false
}

func (t AgentType) String() string {
	switch t {
	case FireFighter:
		return "firefighter"
	}
	return fmt.Sprintf("AgentType(%d)", uint8(t))
}

// Agent is a mobile crew on the grid.
type Agent struct {
	Pos  grid.Coord `json:"pos"`
	Type AgentType  `json:"type"`

	// Path is the cached route of next moves, excluding Pos. Rebuilt on
	// demand and dropped on arrival or when terrain blocks it.
	Path []grid.Coord `json:"path"`

	// Waypoints are long-term destinations, consumed front to back.
	Waypoints []grid.Coord `json:"waypoints"`
}

// New creates an idle firefighter at pos.
func New(pos grid.Coord) *Agent {
	return &Agent{Pos: pos, Type: FireFighter}
}

// Clone returns a deep copy.
func (a *Agent) Clone() *Agent {
	cp := *a
	cp.Path = append([]grid.Coord(nil), a.Path...)
	cp.Waypoints = append([]grid.Coord(nil), a.Waypoints...)
	return &cp
}

// HasPath reports whether a cached route exists.
func (a *Agent) HasPath() bool {
	return len(a.Path) > 0
}

// ClearPath drops the cached route.
func (a *Agent) ClearPath() {
	a.Path = nil
}

// NextWaypoint returns the front waypoint, if any.
func (a *Agent) NextWaypoint() (grid.Coord, bool) {
	if len(a.Waypoints) == 0 {
		return grid.Coord{}, false
	}
	return a.Waypoints[0], true
}

// PopWaypoint removes the front waypoint.
func (a *Agent) PopWaypoint() {
	if len(a.Waypoints) > 0 {
		a.Waypoints = a.Waypoints[1:]
	}
}

// Target is where the agent is ultimately heading: the front waypoint, or
// the end of its cached route when it has no waypoints.
func (a *Agent) Target() (grid.Coord, bool) {
	if wp, ok := a.NextWaypoint(); ok {
		return wp, true
	}
	if len(a.Path) > 0 {
		return a.Path[len(a.Path)-1], true
	}
	return grid.Coord{}, false
}

// CloneAll deep-copies an ordered agent list.
func CloneAll(list []*Agent) []*Agent {
	out := make([]*Agent, len(list))
	for i, a := range list {
		out[i] = a.Clone()
	}
	return out
}
