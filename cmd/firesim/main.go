// Command firesim runs the fire-response simulation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/fire-tactics/internal/api"
	"github.com/talgya/fire-tactics/internal/config"
	"github.com/talgya/fire-tactics/internal/engine"
	"github.com/talgya/fire-tactics/internal/entropy"
	"github.com/talgya/fire-tactics/internal/persistence"
	"github.com/talgya/fire-tactics/internal/predictor"
	"github.com/talgya/fire-tactics/internal/scenario"
)

func main() {
	configPath := flag.String("config", os.Getenv("FIRESIM_CONFIG"), "YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("fire-tactics simulation starting",
		"grid", fmt.Sprintf("%dx%d", cfg.Scenario.Rows, cfg.Scenario.Cols),
		"seed", cfg.Seed,
		"tick_interval", cfg.TickInterval,
	)

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	if cfg.DBPath != "" {
		os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755)
		db, err = persistence.Open(cfg.DBPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database opened", "path", cfg.DBPath)
	} else {
		slog.Warn("no db_path set, checkpoints disabled")
	}

	// ── Simulation ────────────────────────────────────────────────────
	opts := []engine.Option{engine.WithModel(cfg.Hazard)}
	if cfg.Seed != 0 {
		opts = append(opts,
			engine.WithRand(entropy.NewSeeded(cfg.Seed)),
			engine.WithForecastRand(entropy.NewSeeded(cfg.Seed+1)),
		)
	} else if rc := entropy.NewClient(cfg.EntropyKey); rc != nil {
		slog.Info("random.org entropy enabled")
		opts = append(opts, engine.WithRand(rc))
	}
	sim := engine.NewSimulation(cfg.Scenario.Rows, cfg.Scenario.Cols, opts...)
	sim.Intensity = cfg.Intensity

	rules, err := cfg.CompileAlerts()
	if err != nil {
		slog.Error("invalid alert rules", "error", err)
		os.Exit(1)
	}
	sim.SetAlerts(rules)

	if err := loadWorld(sim, cfg, db); err != nil {
		slog.Error("failed to load world", "error", err)
		os.Exit(1)
	}

	rows, cols := sim.Dims()
	slog.Info("world ready",
		"run", sim.RunID(),
		"cells", humanize.Comma(int64(rows*cols)),
		"fire_area", sim.FireArea(),
		"agents", sim.AgentCount(),
	)

	// ── Predictor ─────────────────────────────────────────────────────
	pred := predictor.FromURL(cfg.PredictorURL)
	if cfg.PredictorURL != "" {
		slog.Info("predictor service enabled", "url", cfg.PredictorURL)
	} else {
		slog.Warn("FIRESIM_PREDICTOR_URL not set, using baseline estimates")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now()

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(sim)
	eng.Interval = cfg.TickInterval
	eng.AssessEvery = cfg.AssessEvery
	eng.CheckpointEvery = cfg.CheckpointEvery
	eng.SetSpeed(cfg.Speed)

	eng.OnAssess = func(m engine.TickMetrics) {
		units := max(1, m.AgentCount)
		est, err := pred.Predict(ctx, m.FireArea, units, sim.Intensity)
		if err != nil {
			slog.Error("assessment failed", "error", err)
			return
		}
		slog.Info("assessment",
			"tick", m.Step,
			"fire_area", m.FireArea,
			"units", units,
			"predicted_steps", est.Steps(),
			"risk", est.Risk,
		)
		if est.Risk {
			sim.EmitEvent(engine.Event{
				Tick:        m.Step,
				Description: fmt.Sprintf("escalation risk: %d burning cells for %d crews", m.FireArea, units),
				Category:    engine.CategoryAlert,
			})
		}
	}
	if db != nil {
		eng.OnCheckpoint = func(m engine.TickMetrics) {
			if err := db.Checkpoint(sim, cfg.Seed, startedAt); err != nil {
				slog.Error("checkpoint failed", "error", err)
			}
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("FIRESIM_ADMIN_KEY not set, operator POST endpoints will be disabled")
	}

	apiServer := &api.Server{
		Sim:             sim,
		Eng:             eng,
		DB:              db,
		Predictor:       pred,
		Port:            cfg.APIPort,
		AdminKey:        cfg.AdminKey,
		CORSOrigins:     cfg.CORSOrigins,
		ForecastHorizon: cfg.ForecastHorizon,
		Seed:            cfg.Seed,
		StartedAt:       startedAt,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	fmt.Printf("\nFire simulation running: %dx%d grid, %d crews, %d burning cells.\n",
		rows, cols, sim.AgentCount(), sim.FireArea())
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.APIPort)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	// Final save on shutdown.
	if db != nil {
		slog.Info("final save...")
		if err := db.Checkpoint(sim, cfg.Seed, startedAt); err != nil {
			slog.Error("final save failed", "error", err)
		}
	}

	fmt.Printf("Simulation stopped at tick %d.\n", sim.CurrentTick())
}

// loadWorld fills sim from the configured map file, the latest stored
// checkpoint, or a generated scenario, in that order.
func loadWorld(sim *engine.Simulation, cfg config.Config, db *persistence.DB) error {
	if cfg.MapFile != "" {
		g, crew, err := persistence.LoadSnapshotFile(cfg.MapFile)
		if err != nil {
			return fmt.Errorf("load map %s: %w", cfg.MapFile, err)
		}
		slog.Info("map file loaded", "path", cfg.MapFile)
		return sim.Restore(g, crew)
	}

	if db != nil {
		stored, err := db.LatestSnapshot()
		switch {
		case err == nil:
			slog.Info("resuming from checkpoint", "run", stored.RunID, "tick", stored.Tick)
			return sim.Restore(stored.Grid, stored.Crew)
		case errors.Is(err, persistence.ErrNoSnapshot):
		default:
			slog.Warn("stored checkpoint unreadable, generating a new scenario", "error", err)
		}
	}

	scCfg := cfg.Scenario
	if scCfg.Seed == 0 {
		scCfg.Seed = cfg.Seed
	}
	sc := scenario.Generate(scCfg)
	slog.Info("scenario generated",
		"seed", sc.Seed,
		"ignitions", len(sc.Ignitions),
		"crews", len(sc.Crew),
	)
	return sc.Apply(sim)
}
