// Package hazard advances the fire cellular automaton.
//
// Every step reads the previous grid and writes a fresh one, so no decision
// within a step can observe a neighbour that changed in the same step.
package hazard

import (
	"github.com/talgya/fire-tactics/internal/entropy"
	"github.com/talgya/fire-tactics/internal/grid"
)

// Per-tick transition probabilities.
const (
	DefaultBurnoutProb = 0.02 // Fire → Burnt
	DefaultSpreadProb  = 0.08 // Fire ignites a Normal 4-neighbour
	DefaultClearProb   = 0.1  // Smoke → Normal
)

// Model holds the transition probabilities of the automaton.
type Model struct {
	BurnoutProb float64 `yaml:"burnout_prob" json:"burnout_prob"`
	SpreadProb  float64 `yaml:"spread_prob" json:"spread_prob"`
	ClearProb   float64 `yaml:"clear_prob" json:"clear_prob"`
}

// DefaultModel returns the standard probabilities.
func DefaultModel() Model {
	return Model{
		BurnoutProb: DefaultBurnoutProb,
		SpreadProb:  DefaultSpreadProb,
		ClearProb:   DefaultClearProb,
	}
}

// Step returns the grid one tick later. g is not modified.
//
// Cells are visited row-major. A Fire cell draws once for burnout, then once
// per Normal 4-neighbour (north, south, west, east) for spread. A Smoke cell
// draws once for clearing. Wall and Burnt cells never change and draw nothing.
func (m Model) Step(g *grid.Grid, src entropy.Source) *grid.Grid {
	next := g.Clone()
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			cell := grid.C(r, c)
			switch g.At(cell) {
			case grid.Fire:
				if src.Float64() < m.BurnoutProb {
					next.Set(cell, grid.Burnt)
				}
				m.spreadFrom(g, next, cell, src)
			case grid.Smoke:
				if src.Float64() < m.ClearProb {
					next.Set(cell, grid.Normal)
				}
			case grid.Normal, grid.Burnt, grid.Wall:
			}
		}
	}
	return next
}

// Spread runs only the ignition rule: no burnout, no smoke clearing.
func (m Model) Spread(g *grid.Grid, src entropy.Source) *grid.Grid {
	next := g.Clone()
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			cell := grid.C(r, c)
			if g.At(cell) == grid.Fire {
				m.spreadFrom(g, next, cell, src)
			}
		}
	}
	return next
}

func (m Model) spreadFrom(old, next *grid.Grid, cell grid.Coord, src entropy.Source) {
	for _, n := range old.Neighbors4(cell) {
		if old.At(n) != grid.Normal {
			continue
		}
		if src.Float64() < m.SpreadProb {
			next.Set(n, grid.Fire)
		}
	}
}
