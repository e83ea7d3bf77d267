package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/fire-tactics/internal/dispatcher"
	"github.com/talgya/fire-tactics/internal/engine"
	"github.com/talgya/fire-tactics/internal/entropy"
	"github.com/talgya/fire-tactics/internal/grid"
	"github.com/talgya/fire-tactics/internal/persistence"
	"github.com/talgya/fire-tactics/internal/predictor"
	"github.com/talgya/fire-tactics/internal/report"
	"github.com/talgya/fire-tactics/internal/scenario"
)

type runStats struct {
	runIndex int
	seed     int64

	crews          int
	ignitions      int
	ordersSent     int
	extinguishedAt int // -1 while still burning
	summary        engine.Summary

	report report.Report
}

type runOptions struct {
	ticks     int
	scenario  scenario.Config
	intensity int
	dispatch  bool
	outDir    string
}

func main() {
	var runs int
	var ticks int
	var seedBase int64
	var seedStep int64
	var rows, cols, crews, ignitions int
	var intensity int
	var dispatch bool
	var outDir string

	flag.IntVar(&runs, "runs", 5, "number of headless simulation runs")
	flag.IntVar(&ticks, "ticks", 200, "ticks per run")
	flag.Int64Var(&seedBase, "seed-base", 42, "base RNG seed for run 1")
	flag.Int64Var(&seedStep, "seed-step", 1, "seed increment between runs")
	flag.IntVar(&rows, "rows", 30, "grid rows")
	flag.IntVar(&cols, "cols", 30, "grid columns")
	flag.IntVar(&crews, "crews", 4, "crews per scenario")
	flag.IntVar(&ignitions, "ignitions", 1, "ignition points per scenario")
	flag.IntVar(&intensity, "intensity", engine.DefaultIntensity, "fire rank 1-5 for the predictor")
	flag.BoolVar(&dispatch, "dispatch", true, "send idle crews to planned attack points every tick")
	flag.StringVar(&outDir, "out", "", "directory for per-run CSV, snapshot and chart files")
	flag.Parse()

	if runs <= 0 {
		fmt.Println("error: -runs must be > 0")
		return
	}
	if ticks <= 0 {
		fmt.Println("error: -ticks must be > 0")
		return
	}
	if rows <= 0 || cols <= 0 {
		fmt.Println("error: -rows and -cols must be > 0")
		return
	}
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
	}

	sc := scenario.DefaultConfig()
	sc.Rows, sc.Cols = rows, cols
	sc.Crews, sc.Ignitions = crews, ignitions
	opts := runOptions{ticks: ticks, scenario: sc, intensity: intensity, dispatch: dispatch, outDir: outDir}

	fmt.Printf("=== Headless Fire Response Report ===\n")
	fmt.Printf("grid=%dx%d runs=%d ticks=%d seed_base=%d seed_step=%d dispatch=%v\n\n",
		rows, cols, runs, ticks, seedBase, seedStep, dispatch)

	all := make([]runStats, 0, runs)
	for i := 0; i < runs; i++ {
		seed := seedBase + int64(i)*seedStep
		stats, err := runOnce(context.Background(), i+1, seed, opts)
		if err != nil {
			fmt.Printf("run %d: error: %v\n", i+1, err)
			continue
		}
		all = append(all, stats)
		printRun(stats)
	}
	printAggregate(all)
}

// runOnce plays one seeded scenario for opts.ticks ticks.
func runOnce(ctx context.Context, index int, seed int64, opts runOptions) (runStats, error) {
	cfg := opts.scenario
	cfg.Seed = seed
	sc := scenario.Generate(cfg)

	sim := engine.NewSimulation(cfg.Rows, cfg.Cols,
		engine.WithRand(entropy.NewSeeded(seed)),
		engine.WithForecastRand(entropy.NewSeeded(seed+1)),
	)
	sim.Intensity = opts.intensity
	if err := sc.Apply(sim); err != nil {
		return runStats{}, err
	}

	stats := runStats{
		runIndex:       index,
		seed:           seed,
		crews:          len(sc.Crew),
		ignitions:      len(sc.Ignitions),
		extinguishedAt: -1,
	}

	for t := 0; t < opts.ticks; t++ {
		if opts.dispatch {
			stats.ordersSent += dispatchIdle(sim)
		}
		m, err := sim.Tick()
		if err != nil {
			return runStats{}, fmt.Errorf("tick %d: %w", t+1, err)
		}
		if m.FireArea == 0 {
			stats.extinguishedAt = int(m.Step)
			break
		}
	}

	history := sim.History()
	stats.summary = engine.Summarize(history)
	rep, err := report.Analyze(ctx, sim.AreaHistory(), sim.AgentCount(), sim.Intensity, predictor.Baseline{})
	if err != nil {
		return runStats{}, err
	}
	stats.report = rep

	if opts.outDir != "" {
		if err := writeOutputs(opts.outDir, index, sim, rep); err != nil {
			return runStats{}, err
		}
	}
	return stats, nil
}

// dispatchIdle applies the operator bot's decision rules in process.
func dispatchIdle(sim *engine.Simulation) int {
	_, crew := sim.Snapshot()
	obs := &dispatcher.Observation{
		Status: dispatcher.Status{Tick: sim.CurrentTick(), FireArea: sim.FireArea(), Agents: len(crew)},
	}
	for i, a := range crew {
		obs.Strategy.Agents = append(obs.Strategy.Agents, dispatcher.AgentInfo{
			Index:     i,
			Row:       a.Pos.Row,
			Col:       a.Pos.Col,
			Type:      a.Type.String(),
			Path:      a.Path,
			Waypoints: a.Waypoints,
		})
	}
	for _, as := range sim.Strategy() {
		obs.Strategy.Assignments = append(obs.Strategy.Assignments, dispatcher.Assignment{
			Agent:  as.Agent,
			Start:  as.Start,
			Target: as.Target,
			Path:   as.Path,
		})
	}

	sent := 0
	for _, o := range dispatcher.Decide(obs, dispatcher.Triage(obs)).Orders {
		if sim.SetWaypoints(grid.C(o.Row, o.Col), o.Waypoints) {
			sent++
		}
	}
	return sent
}

func writeOutputs(dir string, index int, sim *engine.Simulation, rep report.Report) error {
	base := filepath.Join(dir, fmt.Sprintf("run-%02d", index))

	if err := persistence.SaveMetricsCSV(base+".csv", sim.History()); err != nil {
		return fmt.Errorf("metrics csv: %w", err)
	}
	g, crew := sim.Snapshot()
	if err := persistence.SaveSnapshotFile(base+".json", g, crew); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	var chart bytes.Buffer
	err := report.RenderChart(&chart, sim.AreaHistory(), rep.Ideal)
	if errors.Is(err, report.ErrTooShort) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("chart: %w", err)
	}
	return os.WriteFile(base+".png", chart.Bytes(), 0o644)
}

func printRun(s runStats) {
	fmt.Printf("--- run %d (seed=%d) ---\n", s.runIndex, s.seed)
	fmt.Printf("crews=%d ignitions=%d orders=%d ", s.crews, s.ignitions, s.ordersSent)
	if s.extinguishedAt >= 0 {
		fmt.Printf("extinguished at tick %d\n", s.extinguishedAt)
	} else {
		fmt.Printf("still burning (%d cells)\n", s.summary.FinalArea)
	}
	fmt.Print(indent(s.report.String()))
	fmt.Println()
}

type aggregate struct {
	runs           int
	extinguished   int
	meanEfficiency float64
	meanPeak       float64
	totalAUC       int
}

func summarize(all []runStats) aggregate {
	var a aggregate
	a.runs = len(all)
	if a.runs == 0 {
		return a
	}
	for _, s := range all {
		if s.extinguishedAt >= 0 {
			a.extinguished++
		}
		a.meanEfficiency += s.report.Efficiency
		a.meanPeak += float64(s.report.PeakArea)
		a.totalAUC += s.report.AUC
	}
	a.meanEfficiency /= float64(a.runs)
	a.meanPeak /= float64(a.runs)
	return a
}

func printAggregate(all []runStats) {
	a := summarize(all)
	fmt.Printf("=== Aggregate ===\n")
	if a.runs == 0 {
		fmt.Println("no completed runs")
		return
	}
	fmt.Printf("runs=%d extinguished=%d (%s%%)\n", a.runs, a.extinguished,
		humanize.FtoaWithDigits(float64(a.extinguished)/float64(a.runs)*100, 1))
	fmt.Printf("mean efficiency=%s%% mean peak=%s cells total damage=%s\n",
		humanize.FtoaWithDigits(a.meanEfficiency, 1),
		humanize.FtoaWithDigits(a.meanPeak, 1),
		humanize.Comma(int64(a.totalAUC)))
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return "  " + strings.Join(lines, "\n  ") + "\n"
}
