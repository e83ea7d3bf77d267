package grid

import (
	"errors"
	"fmt"
)

// ErrShape is returned when a code matrix does not match its declared size.
var ErrShape = errors.New("grid: shape mismatch")

// Grid holds the hazard state of every cell. Dimensions are fixed for the
// life of a value; loading a snapshot builds a new Grid.
type Grid struct {
	rows  int
	cols  int
	cells []CellState
}

// New creates a rows×cols grid with every cell Normal.
func New(rows, cols int) *Grid {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	return &Grid{
		rows:  rows,
		cols:  cols,
		cells: make([]CellState, rows*cols),
	}
}

// FromCodes builds a grid from a row-major matrix of snapshot codes.
func FromCodes(rows, cols int, codes [][]int) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrShape, rows, cols)
	}
	if len(codes) != rows {
		return nil, fmt.Errorf("%w: %d rows declared, %d present", ErrShape, rows, len(codes))
	}
	g := New(rows, cols)
	for r, line := range codes {
		if len(line) != cols {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrShape, r, len(line), cols)
		}
		for c, code := range line {
			s := CellState(code)
			if code < 0 || !s.Valid() {
				return nil, fmt.Errorf("grid: invalid cell code %d at (%d,%d)", code, r, c)
			}
			g.cells[r*cols+c] = s
		}
	}
	return g, nil
}

// Rows returns the number of rows.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of columns.
func (g *Grid) Cols() int { return g.cols }

// InBounds reports whether c lies inside the grid.
func (g *Grid) InBounds(c Coord) bool {
	return c.Row >= 0 && c.Row < g.rows && c.Col >= 0 && c.Col < g.cols
}

// At returns the state at c. Out-of-range coordinates read as Wall so that
// callers treating the border as an obstacle need no extra check.
func (g *Grid) At(c Coord) CellState {
	if !g.InBounds(c) {
		return Wall
	}
	return g.cells[c.Row*g.cols+c.Col]
}

// Set writes the state at c. Out-of-range coordinates are ignored.
func (g *Grid) Set(c Coord, s CellState) {
	if !g.InBounds(c) {
		return
	}
	g.cells[c.Row*g.cols+c.Col] = s
}

// Toggle cycles an operator edit: Normal → Fire → Wall → Normal.
// Smoke and Burnt reset to Normal.
func (g *Grid) Toggle(c Coord) {
	if !g.InBounds(c) {
		return
	}
	switch g.At(c) {
	case Normal:
		g.Set(c, Fire)
	case Fire:
		g.Set(c, Wall)
	case Wall, Smoke, Burnt:
		g.Set(c, Normal)
	}
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	cells := make([]CellState, len(g.cells))
	copy(cells, g.cells)
	return &Grid{rows: g.rows, cols: g.cols, cells: cells}
}

// Equal reports whether both grids have the same size and contents.
func (g *Grid) Equal(o *Grid) bool {
	if o == nil || g.rows != o.rows || g.cols != o.cols {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// Count returns how many cells are in state s.
func (g *Grid) Count(s CellState) int {
	n := 0
	for _, v := range g.cells {
		if v == s {
			n++
		}
	}
	return n
}

// FireArea returns the number of burning cells.
func (g *Grid) FireArea() int {
	return g.Count(Fire)
}

// Codes returns the grid as a row-major matrix of snapshot codes.
func (g *Grid) Codes() [][]int {
	out := make([][]int, g.rows)
	for r := 0; r < g.rows; r++ {
		line := make([]int, g.cols)
		for c := 0; c < g.cols; c++ {
			line[c] = int(g.cells[r*g.cols+c])
		}
		out[r] = line
	}
	return out
}

// Neighbors4 returns the in-bounds 4-neighbours of c in Directions4 order.
func (g *Grid) Neighbors4(c Coord) []Coord {
	out := make([]Coord, 0, 4)
	for _, d := range Directions4 {
		n := c.Add(d[0], d[1])
		if g.InBounds(n) {
			out = append(out, n)
		}
	}
	return out
}

// Moore returns the in-bounds cells of the 3×3 block centred on c,
// row-major, including c itself.
func (g *Grid) Moore(c Coord) []Coord {
	out := make([]Coord, 0, 9)
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			n := c.Add(dr, dc)
			if g.InBounds(n) {
				out = append(out, n)
			}
		}
	}
	return out
}

// AttackPoints returns every Normal cell 4-adjacent to a Fire cell, each
// once, in the order first discovered by a row-major scan of Fire cells.
func (g *Grid) AttackPoints() []Coord {
	seen := make(map[Coord]bool)
	var out []Coord
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if g.cells[r*g.cols+c] != Fire {
				continue
			}
			for _, n := range g.Neighbors4(C(r, c)) {
				if g.At(n) == Normal && !seen[n] {
					seen[n] = true
					out = append(out, n)
				}
			}
		}
	}
	return out
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, fire=%d)", g.rows, g.cols, g.FireArea())
}
