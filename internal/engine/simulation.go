// Simulation owns the grid and the ordered crew list and advances them tick by tick.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/fire-tactics/internal/agents"
	"github.com/talgya/fire-tactics/internal/entropy"
	"github.com/talgya/fire-tactics/internal/grid"
	"github.com/talgya/fire-tactics/internal/hazard"
	"github.com/talgya/fire-tactics/internal/strategy"
)

// ErrTickFailed wraps an unexpected failure inside a tick. The simulation
// keeps its last committed state when it is returned.
var ErrTickFailed = errors.New("tick failed")

// DefaultIntensity is the fire rank passed to the extinguish-time predictor.
const DefaultIntensity = 1

// Simulation holds the complete world state. All exported methods are safe
// for concurrent use; the tick itself is single-threaded.
type Simulation struct {
	mu sync.RWMutex

	runID    uuid.UUID
	grid     *grid.Grid
	crew     []*agents.Agent
	lastTick uint64
	history  []TickMetrics

	// Model holds the hazard transition probabilities.
	Model hazard.Model

	// Rand drives every live stochastic transition. ForecastRand is kept
	// separate so forecasting never perturbs the live stream.
	Rand         entropy.Source
	ForecastRand entropy.Source
	forecastMu   sync.Mutex

	// Intensity is the fire rank reported to the predictor (1–5).
	Intensity int

	alerts []*AlertRule

	subMu     sync.Mutex
	subs      map[int]chan Event
	nextSubID int
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithRand sets the live randomness source.
func WithRand(src entropy.Source) Option {
	return func(s *Simulation) { s.Rand = src }
}

// WithForecastRand sets the source used only by Forecast.
func WithForecastRand(src entropy.Source) Option {
	return func(s *Simulation) { s.ForecastRand = src }
}

// WithModel overrides the hazard transition probabilities.
func WithModel(m hazard.Model) Option {
	return func(s *Simulation) { s.Model = m }
}

// NewSimulation creates a rows×cols all-Normal simulation with no crews.
// Both randomness sources default to crypto randomness.
func NewSimulation(rows, cols int, opts ...Option) *Simulation {
	s := &Simulation{
		runID:        uuid.New(),
		grid:         grid.New(rows, cols),
		Model:        hazard.DefaultModel(),
		Rand:         entropy.Crypto{},
		ForecastRand: entropy.Crypto{},
		Intensity:    DefaultIntensity,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Rand == nil {
		s.Rand = entropy.Crypto{}
	}
	if s.ForecastRand == nil {
		s.ForecastRand = entropy.Crypto{}
	}
	return s
}

// RunID identifies the current run. Reset and Restore start a new one.
func (s *Simulation) RunID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runID
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTick
}

// Dims returns the grid dimensions.
func (s *Simulation) Dims() (rows, cols int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid.Rows(), s.grid.Cols()
}

// Snapshot returns deep copies of the grid and crews.
func (s *Simulation) Snapshot() (*grid.Grid, []*agents.Agent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid.Clone(), agents.CloneAll(s.crew)
}

// History returns a copy of the per-tick metrics recorded so far.
func (s *Simulation) History() []TickMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TickMetrics, len(s.history))
	copy(out, s.history)
	return out
}

// AreaHistory returns the fire area of every recorded tick.
func (s *Simulation) AreaHistory() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, len(s.history))
	for i, m := range s.history {
		out[i] = m.FireArea
	}
	return out
}

// Forecast projects the fire horizon ticks ahead on a private copy.
func (s *Simulation) Forecast(horizon int) *grid.Grid {
	s.mu.RLock()
	g := s.grid.Clone()
	model := s.Model
	s.mu.RUnlock()

	s.forecastMu.Lock()
	defer s.forecastMu.Unlock()
	return hazard.Forecast(g, horizon, model, s.ForecastRand)
}

// Strategy returns advisory attack assignments for the current crews.
func (s *Simulation) Strategy() []strategy.Assignment {
	g, crew := s.Snapshot()
	return strategy.Plan(g, crew)
}

// Reset replaces the world with an empty rows×cols grid and no crews.
func (s *Simulation) Reset(rows, cols int) {
	s.mu.Lock()
	s.grid = grid.New(rows, cols)
	s.crew = nil
	s.lastTick = 0
	s.history = nil
	s.runID = uuid.New()
	s.mu.Unlock()

	slog.Info("simulation reset", "rows", rows, "cols", cols)
}

// Restore atomically replaces the grid and crews, as when loading a map.
// Cached paths are dropped, history is cleared and the tick counter restarts.
func (s *Simulation) Restore(g *grid.Grid, crew []*agents.Agent) error {
	if g == nil {
		return fmt.Errorf("restore: nil grid")
	}
	loaded := agents.CloneAll(crew)
	for _, a := range loaded {
		a.ClearPath()
		if a.Waypoints == nil {
			a.Waypoints = []grid.Coord{}
		}
	}

	s.mu.Lock()
	s.grid = g.Clone()
	s.crew = loaded
	s.lastTick = 0
	s.history = nil
	s.runID = uuid.New()
	s.mu.Unlock()

	slog.Info("simulation restored",
		"rows", g.Rows(),
		"cols", g.Cols(),
		"agents", len(loaded),
		"fire_area", g.FireArea(),
	)
	return nil
}
