// Package strategy proposes where each crew should engage the fire.
// Its output is advisory: nothing here mutates the grid or the crews.
package strategy

import (
	"sort"

	"github.com/talgya/fire-tactics/internal/agents"
	"github.com/talgya/fire-tactics/internal/grid"
	"github.com/talgya/fire-tactics/internal/pathfind"
)

// CandidatesPerAgent is how many of the nearest attack points are routed.
const CandidatesPerAgent = 3

// Assignment is a proposed route for one crew.
type Assignment struct {
	Agent  int          `json:"agent"` // index into the agent list
	Start  grid.Coord   `json:"start"`
	Target grid.Coord   `json:"target"`
	Path   []grid.Coord `json:"path"`
}

// Plan pairs every crew with its best reachable attack point.
//
// Attack points are ranked by Manhattan distance from the crew (ties keep
// discovery order), the closest CandidatesPerAgent are routed, and the one
// with the shortest actual route wins. Crews with no reachable candidate get
// no assignment.
func Plan(g *grid.Grid, crew []*agents.Agent) []Assignment {
	points := g.AttackPoints()
	if len(points) == 0 {
		return nil
	}

	var out []Assignment
	for i, a := range crew {
		candidates := nearest(points, a.Pos, CandidatesPerAgent)

		var best []grid.Coord
		var target grid.Coord
		for _, c := range candidates {
			path := pathfind.Find(g, a.Pos, c, nil)
			if len(path) == 0 {
				continue
			}
			if best == nil || len(path) < len(best) {
				best = path
				target = c
			}
		}
		if best == nil {
			continue
		}
		out = append(out, Assignment{Agent: i, Start: a.Pos, Target: target, Path: best})
	}
	return out
}

func nearest(points []grid.Coord, from grid.Coord, k int) []grid.Coord {
	sorted := make([]grid.Coord, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return grid.Manhattan(from, sorted[i]) < grid.Manhattan(from, sorted[j])
	})
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}
