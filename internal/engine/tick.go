// Package engine provides the tick-based fire simulation and the loop that drives it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Default cadences.
const (
	DefaultInterval   = 300 * time.Millisecond
	DefaultAssessEach = 10  // risk re-check every 10 ticks
	DefaultCheckpoint = 100 // persist every 100 ticks
)

// Engine drives a Simulation forward in real time.
type Engine struct {
	Sim      *Simulation
	Interval time.Duration // Base tick interval at speed 1.0

	AssessEvery     uint64 // 0 disables OnAssess
	CheckpointEvery uint64 // 0 disables OnCheckpoint

	// Callbacks, populated during setup.
	OnTick       func(m TickMetrics) // Every tick
	OnAssess     func(m TickMetrics) // Every AssessEvery ticks
	OnCheckpoint func(m TickMetrics) // Every CheckpointEvery ticks

	stepMu sync.Mutex // serializes Step between the loop and manual steps

	mu      sync.Mutex
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running bool
	stop    chan struct{}
}

// NewEngine creates an engine around sim with default settings.
func NewEngine(sim *Simulation) *Engine {
	return &Engine{
		Sim:             sim,
		Interval:        DefaultInterval,
		AssessEvery:     DefaultAssessEach,
		CheckpointEvery: DefaultCheckpoint,
		speed:           1.0,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. 0 pauses the loop.
func (e *Engine) SetSpeed(v float64) {
	if v < 0 {
		v = 0
	}
	e.mu.Lock()
	e.speed = v
	e.mu.Unlock()
	slog.Info("engine speed changed", "speed", v)
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run starts the simulation loop. Blocks until ctx is done or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stop = make(chan struct{})
	stop := e.stop
	e.mu.Unlock()

	slog.Info("simulation engine started", "tick", e.Sim.CurrentTick(), "speed", e.Speed(), "interval", e.Interval)
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		slog.Info("simulation engine stopped", "tick", e.Sim.CurrentTick())
	}()

	for {
		wait := 100 * time.Millisecond
		if speed := e.Speed(); speed > 0 {
			start := time.Now()
			e.Step()
			// Sleep for the remainder of the tick interval, adjusted for speed.
			wait = time.Duration(float64(e.Interval)/speed) - time.Since(start)
		}

		if wait <= 0 {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Stop halts the simulation loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}

// Step advances the simulation by one tick and fires the callbacks.
// A failed tick is logged and skipped; the simulation keeps its prior state.
// Concurrent callers are serialized, so callbacks never overlap.
func (e *Engine) Step() (TickMetrics, error) {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()

	m, err := e.Sim.Tick()
	if err != nil {
		return m, err
	}

	if e.OnTick != nil {
		e.OnTick(m)
	}
	if e.AssessEvery > 0 && m.Step%e.AssessEvery == 0 && e.OnAssess != nil {
		e.OnAssess(m)
	}
	if e.CheckpointEvery > 0 && m.Step%e.CheckpointEvery == 0 && e.OnCheckpoint != nil {
		e.OnCheckpoint(m)
	}
	return m, nil
}

// SimTime returns a human-readable elapsed time for a tick number at the
// given interval, e.g. "tick 42 (12.6s)".
func SimTime(tick uint64, interval time.Duration) string {
	elapsed := time.Duration(tick) * interval
	return fmt.Sprintf("tick %d (%s)", tick, elapsed.Round(time.Millisecond))
}
