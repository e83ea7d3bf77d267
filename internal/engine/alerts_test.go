package engine

import (
	"sync"
	"testing"

	"github.com/talgya/fire-tactics/internal/grid"
)

func TestCompileAlertRejectsBadRules(t *testing.T) {
	for _, src := range []string{
		"FireArea >",
		"Unknown > 3",
		"FireArea + 1", // not a bool
	} {
		if _, err := CompileAlert("bad", src); err == nil {
			t.Errorf("%q: expected compile error", src)
		}
	}
}

func TestAlertFiresOnRisingEdge(t *testing.T) {
	s := NewSimulation(3, 3, WithRand(quiet))
	s.SetCell(grid.C(1, 1), grid.Fire)

	rule, err := CompileAlert("burning", "FireArea > 0 && AgentCount < 3")
	if err != nil {
		t.Fatalf("CompileAlert: %v", err)
	}
	s.SetAlerts([]*AlertRule{rule})
	id, events := s.Subscribe()
	defer s.Unsubscribe(id)

	if _, err := s.Run(3); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := countAlerts(events); got != 1 {
		t.Fatalf("alerts while burning = %d, want 1", got)
	}

	s.SetCell(grid.C(1, 1), grid.Normal)
	if _, err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	s.SetCell(grid.C(1, 1), grid.Fire)
	if _, err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if got := countAlerts(events); got != 1 {
		t.Fatalf("alerts after re-ignition = %d, want 1", got)
	}
}

func TestAlertFiresOnceUnderConcurrentTicks(t *testing.T) {
	s := newQuietSim(3, 3)
	s.SetCell(grid.C(1, 1), grid.Fire)
	rule, err := CompileAlert("burning", "FireArea > 0")
	if err != nil {
		t.Fatalf("CompileAlert: %v", err)
	}
	s.SetAlerts([]*AlertRule{rule})
	id, events := s.Subscribe()
	defer s.Unsubscribe(id)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if _, err := s.Tick(); err != nil {
					t.Errorf("Tick: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if s.CurrentTick() != 40 {
		t.Fatalf("tick = %d, want 40", s.CurrentTick())
	}
	if got := countAlerts(events); got != 1 {
		t.Fatalf("alerts = %d, want 1", got)
	}
}

func TestAlertEnvCountsTerrain(t *testing.T) {
	s := newQuietSim(2, 2)
	s.SetCell(grid.C(0, 0), grid.Burnt)
	s.SetCell(grid.C(0, 1), grid.Smoke)
	s.SetCell(grid.C(1, 0), grid.Fire)

	m, err := s.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	env := s.alertEnv(m)
	if env.Burnt != 1 || env.Smoke != 1 || env.FireArea != 1 || env.PeakArea != 1 {
		t.Fatalf("env = %+v", env)
	}
}

func countAlerts(ch <-chan Event) int {
	n := 0
	for len(ch) > 0 {
		if e := <-ch; e.Category == CategoryAlert {
			n++
		}
	}
	return n
}
