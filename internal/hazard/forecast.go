package hazard

import (
	"github.com/talgya/fire-tactics/internal/entropy"
	"github.com/talgya/fire-tactics/internal/grid"
)

// DefaultHorizon is the forecast length used when none is configured.
const DefaultHorizon = 20

// Forecast projects the fire horizon ticks ahead on a private copy of g.
// Only the spread rule runs; crews, smoke and burnout are ignored. The
// result is a snapshot and g is never modified.
func Forecast(g *grid.Grid, horizon int, m Model, src entropy.Source) *grid.Grid {
	out := g.Clone()
	for i := 0; i < horizon; i++ {
		out = m.Spread(out, src)
	}
	return out
}
