package engine

import (
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/talgya/fire-tactics/internal/grid"
)

// AlertEnv is the set of names an alert condition can reference.
type AlertEnv struct {
	Step       uint64
	FireArea   int
	AgentCount int
	Burnt      int
	Smoke      int
	PeakArea   int
}

// AlertRule is an operator-defined condition checked after every tick,
// e.g. `FireArea > 50 && AgentCount < 3`. It fires when the condition
// turns true and re-arms once it turns false again.
type AlertRule struct {
	Name         string
	ConditionSrc string

	program *vm.Program
	active  bool
}

// CompileAlert parses and type-checks a condition.
func CompileAlert(name, src string) (*AlertRule, error) {
	prog, err := expr.Compile(src, expr.Env(AlertEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile alert %q: %w", name, err)
	}
	return &AlertRule{Name: name, ConditionSrc: src, program: prog}, nil
}

// SetAlerts replaces the alert rules.
func (s *Simulation) SetAlerts(rules []*AlertRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = rules
}

func (s *Simulation) alertEnv(m TickMetrics) AlertEnv {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alertEnvLocked(m)
}

// alertEnvLocked requires s.mu.
func (s *Simulation) alertEnvLocked(m TickMetrics) AlertEnv {
	env := AlertEnv{
		Step:       m.Step,
		FireArea:   m.FireArea,
		AgentCount: m.AgentCount,
		Burnt:      s.grid.Count(grid.Burnt),
		Smoke:      s.grid.Count(grid.Smoke),
	}
	for _, h := range s.history {
		if h.FireArea > env.PeakArea {
			env.PeakArea = h.FireArea
		}
	}
	return env
}

// checkAlertsLocked evaluates every rule against the committed state and
// returns the ones that just turned true. Requires the s.mu write lock,
// which also guards each rule's armed state.
func (s *Simulation) checkAlertsLocked(m TickMetrics) []*AlertRule {
	if len(s.alerts) == 0 {
		return nil
	}
	env := s.alertEnvLocked(m)
	var fired []*AlertRule
	for _, r := range s.alerts {
		out, err := expr.Run(r.program, env)
		if err != nil {
			slog.Warn("alert evaluation failed", "alert", r.Name, "error", err)
			continue
		}
		on, _ := out.(bool)
		if on && !r.active {
			fired = append(fired, r)
		}
		r.active = on
	}
	return fired
}

func (s *Simulation) emitAlerts(fired []*AlertRule, m TickMetrics) {
	for _, r := range fired {
		slog.Warn("alert triggered",
			"alert", r.Name,
			"condition", r.ConditionSrc,
			"tick", m.Step,
			"fire_area", m.FireArea,
			"agents", m.AgentCount,
		)
		s.EmitEvent(Event{
			Tick:        m.Step,
			Description: fmt.Sprintf("alert %s: %s", r.Name, r.ConditionSrc),
			Category:    CategoryAlert,
		})
	}
}
