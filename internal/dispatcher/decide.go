package dispatcher

import (
	"fmt"
	"log/slog"

	"github.com/talgya/fire-tactics/internal/grid"
)

// MaxOrders caps how many crews are redirected in one cycle.
const MaxOrders = 10

// Decision is the bot's plan for one cycle.
type Decision struct {
	Action    string  `json:"action"` // "none" or "dispatch"
	Rationale string  `json:"rationale"`
	Orders    []Order `json:"orders"`
}

// Order sends the crew standing on (Row, Col) to the given waypoints.
type Order struct {
	Row       int          `json:"row"`
	Col       int          `json:"col"`
	Waypoints []grid.Coord `json:"waypoints"`
	Mode      string       `json:"mode"`
}

// Decide turns the advisory plan into orders for idle crews. Crews that
// already carry waypoints or a route are left alone, and no two crews are
// sent to the same attack point.
func Decide(obs *Observation, h *Health) *Decision {
	if h.FireArea == 0 {
		return &Decision{Action: "none", Rationale: "no fire"}
	}

	agents := make(map[int]AgentInfo, len(obs.Strategy.Agents))
	for _, a := range obs.Strategy.Agents {
		agents[a.Index] = a
	}

	taken := make(map[grid.Coord]bool)
	for _, a := range obs.Strategy.Agents {
		for _, w := range a.Waypoints {
			taken[w] = true
		}
	}

	var orders []Order
	for _, as := range obs.Strategy.Assignments {
		a, ok := agents[as.Agent]
		if !ok || len(a.Waypoints) > 0 || len(a.Path) > 0 {
			continue
		}
		// The plan is stale if the crew moved since it was computed.
		if a.Pos() != as.Start {
			continue
		}
		if taken[as.Target] {
			continue
		}
		if len(orders) == MaxOrders {
			slog.Warn("dispatch capped", "planned", len(obs.Strategy.Assignments), "capped", MaxOrders)
			break
		}
		taken[as.Target] = true
		orders = append(orders, Order{
			Row:       a.Row,
			Col:       a.Col,
			Waypoints: []grid.Coord{as.Target},
			Mode:      "set",
		})
	}

	if len(orders) == 0 {
		return &Decision{
			Action:    "none",
			Rationale: fmt.Sprintf("%s: no idle crew with a free route (%d idle)", h.Level, h.Idle),
		}
	}
	return &Decision{
		Action:    "dispatch",
		Rationale: fmt.Sprintf("%s: fire area %d, sending %d of %d idle crews", h.Level, h.FireArea, len(orders), h.Idle),
		Orders:    orders,
	}
}
