package engine

import (
	"strings"

	"github.com/talgya/fire-tactics/internal/grid"
)

// TickMetrics is one row of the tick log.
type TickMetrics struct {
	Step       uint64       `json:"step" db:"step"`
	FireArea   int          `json:"fire_area" db:"fire_area"`
	AgentCount int          `json:"agent_count" db:"agent_count"`
	Positions  []grid.Coord `json:"agent_positions" db:"-"`
}

// PositionsString formats crew positions in list order as "(r,c); (r,c)".
func (m TickMetrics) PositionsString() string {
	parts := make([]string, len(m.Positions))
	for i, p := range m.Positions {
		parts[i] = p.String()
	}
	return strings.Join(parts, "; ")
}

// Summary aggregates a metrics history.
type Summary struct {
	Ticks     int     `json:"ticks"`
	PeakArea  int     `json:"peak_area"`
	PeakStep  int     `json:"peak_step"` // index of the first peak in the history
	FinalArea int     `json:"final_area"`
	AUC       int     `json:"auc"` // sum of fire area over all ticks
	MeanArea  float64 `json:"mean_area"`
}

// Summarize computes peak, area-under-curve and final area.
func Summarize(history []TickMetrics) Summary {
	var s Summary
	s.Ticks = len(history)
	for i, m := range history {
		if m.FireArea > s.PeakArea {
			s.PeakArea = m.FireArea
			s.PeakStep = i
		}
		s.AUC += m.FireArea
	}
	if len(history) > 0 {
		s.FinalArea = history[len(history)-1].FireArea
		s.MeanArea = float64(s.AUC) / float64(len(history))
	}
	return s
}
