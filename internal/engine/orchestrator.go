package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/fire-tactics/internal/agents"
	"github.com/talgya/fire-tactics/internal/grid"
)

// Tick advances the simulation by exactly one step: hazard propagation on a
// snapshot, then every crew in list order, then a metrics row.
//
// All work happens on copies and is committed at the end. If anything
// panics the prior state stays in place and ErrTickFailed is returned.
func (s *Simulation) Tick() (TickMetrics, error) {
	m, events, fired, err := s.advance()
	if err != nil {
		slog.Error("tick aborted", "error", err)
		return TickMetrics{}, err
	}

	for _, e := range events {
		e.Tick = m.Step
		s.EmitEvent(e)
	}
	s.EmitEvent(Event{
		Tick:        m.Step,
		Description: fmt.Sprintf("tick %d: fire area %d, %d agents", m.Step, m.FireArea, m.AgentCount),
		Category:    CategoryTick,
		Metrics:     &m,
	})
	s.emitAlerts(fired, m)
	return m, nil
}

func (s *Simulation) advance() (m TickMetrics, events []Event, fired []*AlertRule, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w at step %d: %v", ErrTickFailed, s.lastTick+1, r)
		}
	}()

	hz := s.Model.Step(s.grid, s.Rand)
	work := hz.Clone()
	crew := agents.CloneAll(s.crew)
	events = s.moveAgents(hz, work, crew)

	step := s.lastTick + 1
	m = TickMetrics{
		Step:       step,
		FireArea:   work.FireArea(),
		AgentCount: len(crew),
		Positions:  positions(crew),
	}

	s.grid = work
	s.crew = crew
	s.lastTick = step
	s.history = append(s.history, m)
	return m, events, s.checkAlertsLocked(m), nil
}

// Run advances n ticks, stopping at the first failure.
func (s *Simulation) Run(n int) ([]TickMetrics, error) {
	out := make([]TickMetrics, 0, n)
	for i := 0; i < n; i++ {
		m, err := s.Tick()
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

func positions(crew []*agents.Agent) []grid.Coord {
	out := make([]grid.Coord, len(crew))
	for i, a := range crew {
		out[i] = a.Pos
	}
	return out
}
