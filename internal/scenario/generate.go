// Package scenario builds starting maps: a noise-generated floor plan, one or
// more ignition points and firefighter crews placed away from the fire.
package scenario

import (
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/fire-tactics/internal/agents"
	"github.com/talgya/fire-tactics/internal/engine"
	"github.com/talgya/fire-tactics/internal/grid"
)

// Config holds scenario generation parameters.
type Config struct {
	Rows        int     `yaml:"rows"`
	Cols        int     `yaml:"cols"`
	Seed        int64   `yaml:"seed"`          // 0 = random
	WallLevel   float64 `yaml:"wall_level"`    // Noise threshold for walls (0.0–1.0); 1 disables walls
	Frequency   float64 `yaml:"frequency"`     // Base noise frequency; higher = smaller rooms
	Ignitions   int     `yaml:"ignitions"`     // Number of initial fires
	Crews       int     `yaml:"crews"`         // Number of firefighter crews
	MinCrewDist int     `yaml:"min_crew_dist"` // Minimum Manhattan distance from crews to any fire
}

// DefaultConfig returns a reasonable starting configuration.
func DefaultConfig() Config {
	return Config{
		Rows:        30,
		Cols:        30,
		WallLevel:   0.68,
		Frequency:   0.12,
		Ignitions:   1,
		Crews:       4,
		MinCrewDist: 6,
	}
}

// Scenario is a generated starting state.
type Scenario struct {
	Seed      int64
	Grid      *grid.Grid
	Crew      []*agents.Agent
	Ignitions []grid.Coord
}

// Generate creates a scenario. The same non-zero seed always produces the
// same scenario.
func Generate(cfg Config) Scenario {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if cfg.Frequency <= 0 {
		cfg.Frequency = DefaultConfig().Frequency
	}

	g := grid.New(cfg.Rows, cfg.Cols)
	layoutWalls(g, seed, cfg)
	sealPockets(g)

	rng := rand.New(rand.NewSource(seed + 100))
	open := openCells(g)

	sc := Scenario{Seed: seed, Grid: g}
	sc.Ignitions = placeIgnitions(g, open, cfg.Ignitions, rng)
	sc.Crew = placeCrews(g, open, sc.Ignitions, cfg, rng)
	return sc
}

// Apply loads the scenario into a simulation, replacing its state.
func (s Scenario) Apply(sim *engine.Simulation) error {
	return sim.Restore(s.Grid, s.Crew)
}

// layoutWalls marks cells whose noise value exceeds the wall threshold.
// The one-cell border is never walled so the map edge stays walkable.
func layoutWalls(g *grid.Grid, seed int64, cfg Config) {
	if cfg.WallLevel >= 1 {
		return
	}
	noise := opensimplex.NewNormalized(seed)
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			if r == 0 || c == 0 || r == g.Rows()-1 || c == g.Cols()-1 {
				continue
			}
			if octaveNoise(noise, float64(c), float64(r), 3, cfg.Frequency, 0.5) > cfg.WallLevel {
				g.Set(grid.C(r, c), grid.Wall)
			}
		}
	}
}

// sealPockets walls off every open region except the largest, so every
// remaining floor cell is reachable from every other.
func sealPockets(g *grid.Grid) {
	region := make([]int, g.Rows()*g.Cols())
	var sizes []int
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			start := grid.C(r, c)
			if g.At(start) == grid.Wall || region[r*g.Cols()+c] != 0 {
				continue
			}
			id := len(sizes) + 1
			sizes = append(sizes, flood(g, start, id, region))
		}
	}
	if len(sizes) <= 1 {
		return
	}

	largest := 1
	for i, n := range sizes {
		if n > sizes[largest-1] {
			largest = i + 1
		}
	}
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			if id := region[r*g.Cols()+c]; id != 0 && id != largest {
				g.Set(grid.C(r, c), grid.Wall)
			}
		}
	}
}

func flood(g *grid.Grid, start grid.Coord, id int, region []int) int {
	queue := []grid.Coord{start}
	region[start.Row*g.Cols()+start.Col] = id
	n := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		n++
		for _, nb := range g.Neighbors4(cur) {
			idx := nb.Row*g.Cols() + nb.Col
			if g.At(nb) == grid.Wall || region[idx] != 0 {
				continue
			}
			region[idx] = id
			queue = append(queue, nb)
		}
	}
	return n
}

func openCells(g *grid.Grid) []grid.Coord {
	var out []grid.Coord
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			if g.At(grid.C(r, c)) == grid.Normal {
				out = append(out, grid.C(r, c))
			}
		}
	}
	return out
}

func placeIgnitions(g *grid.Grid, open []grid.Coord, n int, rng *rand.Rand) []grid.Coord {
	if n > len(open) {
		n = len(open)
	}
	var out []grid.Coord
	for _, i := range rng.Perm(len(open))[:max(n, 0)] {
		g.Set(open[i], grid.Fire)
		out = append(out, open[i])
	}
	return out
}

// placeCrews prefers cells far from every fire, shuffled so equally distant
// cells are chosen by seed rather than scan order. Crews keep at least two
// cells apart.
func placeCrews(g *grid.Grid, open, fires []grid.Coord, cfg Config, rng *rand.Rand) []*agents.Agent {
	type scored struct {
		cell grid.Coord
		dist int
	}
	var candidates []scored
	for _, i := range rng.Perm(len(open)) {
		c := open[i]
		if g.At(c) != grid.Normal {
			continue
		}
		d := nearest(c, fires)
		if d < cfg.MinCrewDist {
			continue
		}
		candidates = append(candidates, scored{c, d})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist > candidates[j].dist
	})

	var crew []*agents.Agent
	var taken []grid.Coord
	for _, cand := range candidates {
		if len(crew) >= cfg.Crews {
			break
		}
		if nearest(cand.cell, taken) < 2 {
			continue
		}
		taken = append(taken, cand.cell)
		a := agents.New(cand.cell)
		a.Waypoints = []grid.Coord{}
		crew = append(crew, a)
	}
	return crew
}

// nearest returns the Manhattan distance to the closest of cells, or a large
// value when cells is empty.
func nearest(c grid.Coord, cells []grid.Coord) int {
	best := int(^uint(0) >> 1)
	for _, o := range cells {
		best = min(best, grid.Manhattan(c, o))
	}
	return best
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
