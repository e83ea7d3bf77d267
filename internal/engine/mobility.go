package engine

import (
	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/fire-tactics/internal/agents"
	"github.com/talgya/fire-tactics/internal/grid"
	"github.com/talgya/fire-tactics/internal/pathfind"
)

// SuppressProb is the chance a crew next to a fire turns that cell to smoke.
//
// Suppression only ever produces Smoke; it does not remove Fire from the
// model or lower its spread chance. Crews knock flames down into smoke and
// the planner/forecast loop is what directs them. Keep it that way.
const SuppressProb = 0.8

// moveAgents runs the mobility controller for every crew in list order.
// Earlier crews claim contested cells first.
//
// hz is the post-hazard grid and is only read; suppression writes go to work.
func (s *Simulation) moveAgents(hz, work *grid.Grid, crew []*agents.Agent) []Event {
	occupied := mapset.New[grid.Coord]()
	for _, a := range crew {
		occupied.Put(a.Pos)
	}

	var events []Event
	for i, a := range crew {
		events = append(events, s.moveAgent(i, a, hz, work, &occupied)...)
	}
	return events
}

func (s *Simulation) moveAgent(idx int, a *agents.Agent, hz, work *grid.Grid, occupied *mapset.Set[grid.Coord]) []Event {
	if s.suppress(a, hz, work) {
		return nil
	}

	var events []Event
	if wp, ok := a.NextWaypoint(); ok {
		if a.Pos == wp {
			a.PopWaypoint()
			a.ClearPath()
			events = append(events, newEvent(CategoryWaypoint, "agent %d reached waypoint %s", idx, wp))
		}
		if next, ok := a.NextWaypoint(); ok && !a.HasPath() {
			a.Path = pathfind.Find(hz, a.Pos, next, nil)
		}
	}

	if !a.HasPath() {
		return events
	}

	next := a.Path[0]
	blockedByAgent := next != a.Pos && occupied.Has(next)
	lastStep := len(a.Path) == 1

	switch {
	case !blockedByAgent && passable(hz, next, lastStep):
		occupied.Remove(a.Pos)
		occupied.Put(next)
		a.Pos = next
		a.Path = a.Path[1:]
	case blockedByAgent:
		// Local detour around every occupied cell toward the same target.
		target, _ := a.Target()
		if detour := pathfind.Find(hz, a.Pos, target, occupied); len(detour) > 0 {
			a.Path = detour
		}
	default:
		a.ClearPath()
	}
	return events
}

// suppress reports whether the crew is hazard-adjacent: any Fire in the 3×3
// block around it. Each such fire turns to smoke with SuppressProb.
func (s *Simulation) suppress(a *agents.Agent, hz, work *grid.Grid) bool {
	found := false
	for _, c := range hz.Moore(a.Pos) {
		if hz.At(c) != grid.Fire {
			continue
		}
		found = true
		if s.Rand.Float64() < SuppressProb {
			work.Set(c, grid.Smoke)
		}
	}
	return found
}

// passable applies the route terrain rule to a single step: Wall and Burnt
// never, Fire only as the final step.
func passable(g *grid.Grid, c grid.Coord, lastStep bool) bool {
	switch g.At(c) {
	case grid.Normal, grid.Smoke:
		return true
	case grid.Fire:
		return lastStep
	case grid.Wall, grid.Burnt:
		return false
	}
	return false
}
