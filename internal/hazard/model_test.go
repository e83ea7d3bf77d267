package hazard

import (
	"testing"

	"github.com/talgya/fire-tactics/internal/entropy"
	"github.com/talgya/fire-tactics/internal/grid"
)

func TestStepDoesNotMutateInput(t *testing.T) {
	g := grid.New(3, 3)
	g.Set(grid.C(1, 1), grid.Fire)
	before := g.Clone()

	DefaultModel().Step(g, entropy.Constant(0))

	if !g.Equal(before) {
		t.Fatal("Step modified its input grid")
	}
}

func TestStepAllBranchesTaken(t *testing.T) {
	g := grid.New(3, 3)
	g.Set(grid.C(1, 1), grid.Fire)
	g.Set(grid.C(0, 0), grid.Smoke)

	next := DefaultModel().Step(g, entropy.Constant(0))

	if got := next.At(grid.C(1, 1)); got != grid.Burnt {
		t.Fatalf("centre = %s, want burnt", got)
	}
	for _, n := range []grid.Coord{grid.C(0, 1), grid.C(2, 1), grid.C(1, 0), grid.C(1, 2)} {
		if got := next.At(n); got != grid.Fire {
			t.Fatalf("%v = %s, want fire", n, got)
		}
	}
	if got := next.At(grid.C(0, 0)); got != grid.Normal {
		t.Fatalf("smoke = %s, want cleared", got)
	}
	if got := next.At(grid.C(2, 2)); got != grid.Normal {
		t.Fatalf("diagonal = %s, fire must not spread diagonally", got)
	}
}

func TestStepNoBranchesTaken(t *testing.T) {
	g := grid.New(3, 3)
	g.Set(grid.C(1, 1), grid.Fire)
	g.Set(grid.C(0, 0), grid.Smoke)

	next := DefaultModel().Step(g, entropy.Constant(0.999))

	if !next.Equal(g) {
		t.Fatal("no draw below any probability, grid should be unchanged")
	}
}

func TestStepReadsOldGrid(t *testing.T) {
	// A cell ignited this tick must not spread further in the same tick.
	g := grid.New(1, 4)
	g.Set(grid.C(0, 0), grid.Fire)

	next := DefaultModel().Step(g, entropy.Constant(0))

	if got := next.At(grid.C(0, 1)); got != grid.Fire {
		t.Fatalf("(0,1) = %s, want fire", got)
	}
	if got := next.At(grid.C(0, 2)); got != grid.Normal {
		t.Fatalf("(0,2) = %s, fire spread two cells in one tick", got)
	}
}

func TestWallAndBurntNeverChange(t *testing.T) {
	g := grid.New(4, 4)
	g.Set(grid.C(1, 1), grid.Fire)
	g.Set(grid.C(1, 2), grid.Wall)
	g.Set(grid.C(2, 1), grid.Burnt)
	g.Set(grid.C(0, 1), grid.Wall)

	for _, v := range []float64{0, 0.05, 0.5, 0.999} {
		next := DefaultModel().Step(g, entropy.Constant(v))
		if next.At(grid.C(1, 2)) != grid.Wall || next.At(grid.C(0, 1)) != grid.Wall {
			t.Fatalf("draw %v: wall changed", v)
		}
		if next.At(grid.C(2, 1)) != grid.Burnt {
			t.Fatalf("draw %v: burnt changed", v)
		}
	}

	src := entropy.NewSeeded(3)
	cur := g
	for i := 0; i < 200; i++ {
		cur = DefaultModel().Step(cur, src)
		if cur.At(grid.C(1, 2)) != grid.Wall || cur.At(grid.C(2, 1)) != grid.Burnt {
			t.Fatalf("tick %d: permanent cell changed", i)
		}
	}
}

func TestStepDrawOrder(t *testing.T) {
	// Fire at (0,0) on a 1x2 grid: burnout draw, then one spread draw east.
	g := grid.New(1, 2)
	g.Set(grid.C(0, 0), grid.Fire)
	src := entropy.NewSequence(0.5, 0.01)

	next := DefaultModel().Step(g, src)

	if next.At(grid.C(0, 0)) != grid.Fire {
		t.Fatal("burnout draw 0.5 should not burn out")
	}
	if next.At(grid.C(0, 1)) != grid.Fire {
		t.Fatal("spread draw 0.01 should ignite the neighbour")
	}
	if src.Drawn() != 2 {
		t.Fatalf("drew %d values, want 2", src.Drawn())
	}
}

func TestStepDeterministicUnderSeed(t *testing.T) {
	g := grid.New(10, 10)
	g.Set(grid.C(5, 5), grid.Fire)
	g.Set(grid.C(2, 2), grid.Smoke)

	a, b := entropy.NewSeeded(99), entropy.NewSeeded(99)
	ga, gb := g, g
	for i := 0; i < 30; i++ {
		ga = DefaultModel().Step(ga, a)
		gb = DefaultModel().Step(gb, b)
		if !ga.Equal(gb) {
			t.Fatalf("tick %d diverged under identical seeds", i)
		}
	}
}
