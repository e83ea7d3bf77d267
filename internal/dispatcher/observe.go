// Package dispatcher implements the operator bot.
// It observes the fire and the advisory plan via the API, decides which idle
// crews to send where, and acts through the waypoint endpoint.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/fire-tactics/internal/grid"
)

// Observation holds all data collected during an observation cycle.
type Observation struct {
	Status   Status       `json:"status"`
	Strategy StrategyView `json:"strategy"`
}

// Status mirrors GET /api/v1/status.
type Status struct {
	RunID     string  `json:"run_id"`
	Tick      uint64  `json:"tick"`
	SimTime   string  `json:"sim_time"`
	Rows      int     `json:"rows"`
	Cols      int     `json:"cols"`
	FireArea  int     `json:"fire_area"`
	Agents    int     `json:"agents"`
	Intensity int     `json:"intensity"`
	Speed     float64 `json:"speed"`
	Running   bool    `json:"running"`
}

// StrategyView mirrors GET /api/v1/strategy.
type StrategyView struct {
	Tick        uint64       `json:"tick"`
	Assignments []Assignment `json:"assignments"`
	Agents      []AgentInfo  `json:"agents"`
}

// Assignment is one advisory attack route.
type Assignment struct {
	Agent  int          `json:"agent"`
	Start  grid.Coord   `json:"start"`
	Target grid.Coord   `json:"target"`
	Path   []grid.Coord `json:"path"`
}

// AgentInfo mirrors items from GET /api/v1/agents.
type AgentInfo struct {
	Index     int          `json:"index"`
	Row       int          `json:"row"`
	Col       int          `json:"col"`
	Type      string       `json:"type"`
	Path      []grid.Coord `json:"path"`
	Waypoints []grid.Coord `json:"waypoints"`
}

// Pos returns the agent's cell.
func (a AgentInfo) Pos() grid.Coord { return grid.C(a.Row, a.Col) }

// Observer fetches simulation state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Observe fetches the status and strategy endpoints.
func (o *Observer) Observe(ctx context.Context) (*Observation, error) {
	obs := &Observation{}

	if err := o.fetchJSON(ctx, "/api/v1/status", &obs.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/strategy", &obs.Strategy); err != nil {
		return nil, fmt.Errorf("fetch strategy: %w", err)
	}

	return obs, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
