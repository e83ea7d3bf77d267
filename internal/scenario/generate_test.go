package scenario

import (
	"testing"

	"github.com/talgya/fire-tactics/internal/engine"
	"github.com/talgya/fire-tactics/internal/grid"
	"github.com/talgya/fire-tactics/internal/pathfind"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 42
	cfg.Rows = 24
	cfg.Cols = 24
	cfg.Crews = 3
	cfg.Ignitions = 2
	return cfg
}

func TestGenerateDeterministic(t *testing.T) {
	a := Generate(testConfig())
	b := Generate(testConfig())
	if !a.Grid.Equal(b.Grid) {
		t.Fatal("same seed produced different maps")
	}
	if len(a.Crew) != len(b.Crew) {
		t.Fatal("same seed produced different crews")
	}
	for i := range a.Crew {
		if a.Crew[i].Pos != b.Crew[i].Pos {
			t.Fatalf("crew %d at %v vs %v", i, a.Crew[i].Pos, b.Crew[i].Pos)
		}
	}
}

func TestGeneratePlacement(t *testing.T) {
	cfg := testConfig()
	sc := Generate(cfg)

	if sc.Seed != cfg.Seed {
		t.Fatalf("seed = %d, want %d", sc.Seed, cfg.Seed)
	}
	if len(sc.Ignitions) != cfg.Ignitions || sc.Grid.FireArea() != cfg.Ignitions {
		t.Fatalf("ignitions = %v, fire area %d", sc.Ignitions, sc.Grid.FireArea())
	}
	if len(sc.Crew) == 0 {
		t.Fatal("no crews placed")
	}
	for i, a := range sc.Crew {
		if sc.Grid.At(a.Pos) != grid.Normal {
			t.Errorf("crew %d on %s", i, sc.Grid.At(a.Pos))
		}
		for _, f := range sc.Ignitions {
			if d := grid.Manhattan(a.Pos, f); d < cfg.MinCrewDist {
				t.Errorf("crew %d is %d cells from fire %v", i, d, f)
			}
		}
		for j := i + 1; j < len(sc.Crew); j++ {
			if grid.Manhattan(a.Pos, sc.Crew[j].Pos) < 2 {
				t.Errorf("crews %d and %d are adjacent", i, j)
			}
		}
	}
}

func TestGenerateFloorIsConnected(t *testing.T) {
	sc := Generate(testConfig())
	g := sc.Grid.Clone()
	for _, f := range sc.Ignitions {
		g.Set(f, grid.Normal)
	}
	var open []grid.Coord
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			if g.At(grid.C(r, c)) == grid.Normal {
				open = append(open, grid.C(r, c))
			}
		}
	}
	if len(open) < 2 {
		t.Fatal("map has no floor")
	}
	for _, c := range open[1:] {
		if pathfind.Find(g, open[0], c, nil) == nil {
			t.Fatalf("%v unreachable from %v", c, open[0])
		}
	}
}

func TestGenerateWithoutWalls(t *testing.T) {
	cfg := testConfig()
	cfg.WallLevel = 1
	sc := Generate(cfg)
	if n := sc.Grid.Count(grid.Wall); n != 0 {
		t.Fatalf("walls = %d, want 0", n)
	}
}

func TestGenerateTinyMap(t *testing.T) {
	cfg := Config{Rows: 2, Cols: 2, Seed: 1, WallLevel: 1, Ignitions: 10, Crews: 3, MinCrewDist: 1}
	sc := Generate(cfg)
	if sc.Grid.FireArea() != 4 || len(sc.Crew) != 0 {
		t.Fatalf("fire area %d crews %d", sc.Grid.FireArea(), len(sc.Crew))
	}
}

func TestApply(t *testing.T) {
	sc := Generate(testConfig())
	sim := engine.NewSimulation(5, 5)
	if err := sc.Apply(sim); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if r, c := sim.Dims(); r != 24 || c != 24 {
		t.Fatalf("dims = %dx%d", r, c)
	}
	if sim.AgentCount() != len(sc.Crew) || sim.FireArea() != len(sc.Ignitions) {
		t.Fatal("simulation does not match the scenario")
	}
}
