// Package pathfind finds least-cost routes across the fire grid.
package pathfind

import (
	"container/heap"
	"math"

	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/fire-tactics/internal/grid"
)

// Step costs per terrain.
const (
	CostNormal = 1
	CostSmoke  = 5
)

// Blocked marks a cell no route may enter.
const Blocked = math.MaxInt

// Forbidden is an optional set of cells a route must avoid. A nil set
// forbids nothing.
type Forbidden = *mapset.Set[grid.Coord]

// StepCost returns the cost of entering c on a route to target.
//
// Fire costs CostNormal when it is the target and is blocked otherwise, so
// crews may end a route on a fire but never cross one. A forbidden cell is
// blocked unless it is the target.
func StepCost(g *grid.Grid, c, target grid.Coord, forbidden Forbidden) int {
	if !g.InBounds(c) {
		return Blocked
	}
	if forbidden != nil && c != target && forbidden.Has(c) {
		return Blocked
	}
	switch g.At(c) {
	case grid.Normal:
		return CostNormal
	case grid.Smoke:
		return CostSmoke
	case grid.Fire:
		if c == target {
			return CostNormal
		}
		return Blocked
	case grid.Wall, grid.Burnt:
		return Blocked
	}
	return Blocked
}

type pathNode struct {
	cell   grid.Coord
	g, h   int
	seq    int // discovery order, breaks f ties
	parent *pathNode
	index  int // heap index
}

type openList []*pathNode

func (ol openList) Len() int { return len(ol) }
func (ol openList) Less(i, j int) bool {
	fi, fj := ol[i].g+ol[i].h, ol[j].g+ol[j].h
	if fi != fj {
		return fi < fj
	}
	return ol[i].seq < ol[j].seq
}
func (ol openList) Swap(i, j int)       { ol[i], ol[j] = ol[j], ol[i]; ol[i].index = i; ol[j].index = j }
func (ol *openList) Push(x interface{}) { n := x.(*pathNode); n.index = len(*ol); *ol = append(*ol, n) }
func (ol *openList) Pop() interface{} {
	old := *ol
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*ol = old[:len(old)-1]
	return n
}

// Find returns the cheapest route from start to target, excluding start and
// including target. It returns nil when the target cannot be reached, when
// either end is off the grid, or when start == target.
//
// Nodes are ordered by accumulated cost plus Manhattan distance. Equal
// priorities pop in discovery order, and neighbours are discovered north,
// south, west, east, so results do not depend on coordinate values.
func Find(g *grid.Grid, start, target grid.Coord, forbidden Forbidden) []grid.Coord {
	if !g.InBounds(start) || !g.InBounds(target) {
		return nil
	}

	seq := 0
	root := &pathNode{cell: start, h: grid.Manhattan(start, target), seq: seq}
	ol := &openList{root}
	heap.Init(ol)

	visited := make(map[grid.Coord]int)

	for ol.Len() > 0 {
		cur := heap.Pop(ol).(*pathNode)
		if cur.cell == target {
			return buildPath(cur)
		}
		if best, ok := visited[cur.cell]; ok && best <= cur.g {
			continue
		}
		visited[cur.cell] = cur.g

		for _, n := range g.Neighbors4(cur.cell) {
			cost := StepCost(g, n, target, forbidden)
			if cost == Blocked {
				continue
			}
			seq++
			heap.Push(ol, &pathNode{
				cell:   n,
				g:      cur.g + cost,
				h:      grid.Manhattan(n, target),
				seq:    seq,
				parent: cur,
			})
		}
	}
	return nil
}

func buildPath(end *pathNode) []grid.Coord {
	var cells []grid.Coord
	for n := end; n.parent != nil; n = n.parent {
		cells = append(cells, n.cell)
	}
	// Reverse
	for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
		cells[i], cells[j] = cells[j], cells[i]
	}
	if len(cells) == 0 {
		return nil
	}
	return cells
}

// Cost sums the step costs of a route produced by Find.
func Cost(g *grid.Grid, path []grid.Coord, forbidden Forbidden) int {
	if len(path) == 0 {
		return 0
	}
	target := path[len(path)-1]
	total := 0
	for _, c := range path {
		step := StepCost(g, c, target, forbidden)
		if step == Blocked {
			return Blocked
		}
		total += step
	}
	return total
}
