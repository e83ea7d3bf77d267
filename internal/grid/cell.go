// Package grid provides the square cell grid that the fire and the crews share.
// Coordinates are (row, col) with row 0 at the top; storage is row-major.
package grid

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// CellState is the hazard state of a single cell. The numeric values are the
// codes written to map snapshots and must not be reordered.
type CellState uint8

const (
	Normal CellState = iota // Open floor
	Smoke                   // Passable, expensive to cross
	Fire                    // Active burning
	Burnt                   // Burnt out, permanently impassable
	Wall                    // Operator-placed obstacle
)

// Valid reports whether s is one of the five known states.
func (s CellState) Valid() bool {
	switch s {
	case Normal, Smoke, Fire, Burnt, Wall:
		return true
	}
	return false
}

// Impassable reports whether no path may ever cross the cell.
// Fire is handled separately because it can be a path's final step.
func (s CellState) Impassable() bool {
	switch s {
	case Wall, Burnt:
		return true
	case Normal, Smoke, Fire:
		return false
	}
	return true
}

func (s CellState) String() string {
	switch s {
	case Normal:
		return "normal"
	case Smoke:
		return "smoke"
	case Fire:
		return "fire"
	case Burnt:
		return "burnt"
	case Wall:
		return "wall"
	}
	return fmt.Sprintf("CellState(%d)", uint8(s))
}

// Coord addresses a cell.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// C is shorthand for Coord{Row: row, Col: col}.
func C(row, col int) Coord {
	return Coord{Row: row, Col: col}
}

// String formats the coordinate the way the metrics log does: "(r,c)".
func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Add returns c shifted by the given offset.
func (c Coord) Add(dr, dc int) Coord {
	return Coord{Row: c.Row + dr, Col: c.Col + dc}
}

// Directions4 is the fixed expansion order used everywhere a 4-neighbourhood
// is walked: north, south, west, east. Search tie-breaking depends on it.
var Directions4 = [4][2]int{
	{-1, 0},
	{1, 0},
	{0, -1},
	{0, 1},
}

// Manhattan returns the 4-connected distance between two cells.
func Manhattan(a, b Coord) int {
	return abs(a.Row-b.Row) + abs(a.Col-b.Col)
}

func abs[T constraints.Signed](v T) T {
	if v < 0 {
		return -v
	}
	return v
}
