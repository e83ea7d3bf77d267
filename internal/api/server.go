// Package api provides the HTTP API for observing and steering the fire simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (operator control plane).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/fire-tactics/internal/agents"
	"github.com/talgya/fire-tactics/internal/engine"
	"github.com/talgya/fire-tactics/internal/grid"
	"github.com/talgya/fire-tactics/internal/hazard"
	"github.com/talgya/fire-tactics/internal/persistence"
	"github.com/talgya/fire-tactics/internal/predictor"
	"github.com/talgya/fire-tactics/internal/report"
)

// Limits on operator input.
const (
	maxForecastHorizon = 200
	maxGridSide        = 500
	maxSnapshotBytes   = 8 << 20
)

// Server serves the simulation over HTTP.
type Server struct {
	Sim       *engine.Simulation
	Eng       *engine.Engine
	DB        *persistence.DB     // Optional. Nil disables checkpoints.
	Predictor predictor.Predictor // Nil falls back to the baseline formula.
	Port      int
	AdminKey  string // Bearer token for POST endpoints. Empty = POST disabled.

	CORSOrigins     []string
	ForecastHorizon int
	Seed            int64
	StartedAt       time.Time

	// opMu serializes operator commands so compound edits (load, reset)
	// never interleave.
	opMu sync.Mutex

	upgrader    websocket.Upgrader
	streamMu    sync.Mutex
	streamConns int

	httpSrv *http.Server
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	// Rate limiter for model-consuming endpoints.
	predictLimiter := NewRateLimiter(60, time.Minute)

	allowed := allowedOrigins(s.CORSOrigins)
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		},
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/grid", s.handleGrid)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/forecast", s.handleForecast)
	mux.HandleFunc("/api/v1/strategy", s.handleStrategy)
	mux.HandleFunc("/api/v1/predict", RateLimitMiddleware(predictLimiter, s.handlePredict))
	mux.HandleFunc("/api/v1/report", RateLimitMiddleware(predictLimiter, s.handleReport))
	mux.HandleFunc("/api/v1/metrics", s.handleMetrics)
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Snapshot: GET is public, POST loads a map and needs the token.
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	// Operator endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/cell", s.adminOnly(postOnly(s.handleCell)))
	mux.HandleFunc("/api/v1/agent", s.adminOnly(postOnly(s.handleAgent)))
	mux.HandleFunc("/api/v1/waypoints", s.adminOnly(postOnly(s.handleWaypoints)))
	mux.HandleFunc("/api/v1/step", s.adminOnly(postOnly(s.handleStep)))
	mux.HandleFunc("/api/v1/reset", s.adminOnly(postOnly(s.handleReset)))
	mux.HandleFunc("/api/v1/checkpoint", s.adminOnly(postOnly(s.handleCheckpoint)))

	return corsMiddleware(allowed, mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "db", s.DB != nil)

	s.httpSrv = &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// allowedOrigins returns the configured frontend origins.
// Localhost dev servers are always allowed.
func allowedOrigins(origins []string) map[string]bool {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		allowed[origin] = true
	}
	return allowed
}

// corsMiddleware adds CORS headers for allowed frontend origins.
func corsMiddleware(allowedOrigins map[string]bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "operator endpoints disabled (no FIRESIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}

			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			s.opMu.Lock()
			defer s.opMu.Unlock()
		}

		next(w, r)
	}
}

func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) predictor() predictor.Predictor {
	if s.Predictor == nil {
		return predictor.Baseline{}
	}
	return s.Predictor
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rows, cols := s.Sim.Dims()
	tick := s.Sim.CurrentTick()

	status := map[string]any{
		"name":       "fire-tactics",
		"run_id":     s.Sim.RunID().String(),
		"tick":       tick,
		"rows":       rows,
		"cols":       cols,
		"fire_area":  s.Sim.FireArea(),
		"agents":     s.Sim.AgentCount(),
		"intensity":  s.Sim.Intensity,
		"speed":      0.0,
		"running":    false,
		"sim_time":   engine.SimTime(tick, engine.DefaultInterval),
		"checkpoint": s.DB != nil,
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
		status["sim_time"] = engine.SimTime(tick, s.Eng.Interval)
	}
	writeJSON(w, status)
}

type gridView struct {
	Rows      int     `json:"rows"`
	Cols      int     `json:"cols"`
	FireArea  int     `json:"fire_area"`
	Cells     [][]int `json:"cells"`
	Tick      uint64  `json:"tick"`
	Horizon   int     `json:"horizon,omitempty"`
	Predicted bool    `json:"predicted,omitempty"`
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	g, _ := s.Sim.Snapshot()
	writeJSON(w, gridView{
		Rows:     g.Rows(),
		Cols:     g.Cols(),
		FireArea: g.FireArea(),
		Cells:    g.Codes(),
		Tick:     s.Sim.CurrentTick(),
	})
}

type agentView struct {
	Index     int          `json:"index"`
	Row       int          `json:"row"`
	Col       int          `json:"col"`
	Type      string       `json:"type"`
	Path      []grid.Coord `json:"path"`
	Waypoints []grid.Coord `json:"waypoints"`
}

func viewAgents(crew []*agents.Agent) []agentView {
	out := make([]agentView, len(crew))
	for i, a := range crew {
		out[i] = agentView{
			Index:     i,
			Row:       a.Pos.Row,
			Col:       a.Pos.Col,
			Type:      a.Type.String(),
			Path:      nonNil(a.Path),
			Waypoints: nonNil(a.Waypoints),
		}
	}
	return out
}

func nonNil(cs []grid.Coord) []grid.Coord {
	if cs == nil {
		return []grid.Coord{}
	}
	return cs
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	_, crew := s.Sim.Snapshot()
	writeJSON(w, viewAgents(crew))
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	horizon := s.ForecastHorizon
	if horizon <= 0 {
		horizon = hazard.DefaultHorizon
	}
	if v := r.URL.Query().Get("horizon"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxForecastHorizon {
			http.Error(w, fmt.Sprintf("horizon must be 0-%d", maxForecastHorizon), http.StatusBadRequest)
			return
		}
		horizon = n
	}

	pred := s.Sim.Forecast(horizon)
	writeJSON(w, gridView{
		Rows:      pred.Rows(),
		Cols:      pred.Cols(),
		FireArea:  pred.FireArea(),
		Cells:     pred.Codes(),
		Tick:      s.Sim.CurrentTick(),
		Horizon:   horizon,
		Predicted: true,
	})
}

func (s *Server) handleStrategy(w http.ResponseWriter, r *http.Request) {
	plan := s.Sim.Strategy()
	_, crew := s.Sim.Snapshot()
	writeJSON(w, map[string]any{
		"tick":        s.Sim.CurrentTick(),
		"assignments": plan,
		"agents":      viewAgents(crew),
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	area := s.Sim.FireArea()
	units := s.Sim.AgentCount()
	if units == 0 {
		units = 1
	}
	est, err := s.predictor().Predict(r.Context(), area, units, s.Sim.Intensity)
	if err != nil {
		slog.Error("prediction failed", "error", err)
		http.Error(w, "prediction failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"area":      area,
		"units":     units,
		"intensity": s.Sim.Intensity,
		"time":      est.Time,
		"steps":     est.Steps(),
		"risk":      est.Risk,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	history := s.Sim.AreaHistory()
	rep, err := report.Analyze(r.Context(), history, s.Sim.AgentCount(), s.Sim.Intensity, s.predictor())
	if errors.Is(err, report.ErrNoHistory) {
		http.Error(w, "no ticks recorded yet", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("report failed", "error", err)
		http.Error(w, "report failed", http.StatusInternalServerError)
		return
	}

	if r.URL.Query().Get("format") == "png" {
		var buf bytes.Buffer
		if err := report.RenderChart(&buf, history, rep.Ideal); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
		return
	}
	writeJSON(w, map[string]any{
		"report":  rep,
		"summary": rep.String(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := persistence.WriteMetricsCSV(&buf, s.Sim.History())
	if errors.Is(err, persistence.ErrNoData) {
		http.Error(w, "no metrics to export", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("metrics export failed", "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="tick_metrics.csv"`)
	w.Write(buf.Bytes())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g, crew := s.Sim.Snapshot()
		writeJSON(w, persistence.NewSnapshot(g, crew))
	case http.MethodPost:
		g, crew, err := persistence.DecodeSnapshot(http.MaxBytesReader(w, r.Body, maxSnapshotBytes))
		var fe *persistence.FormatError
		if errors.As(err, &fe) {
			http.Error(w, fe.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, "invalid snapshot", http.StatusBadRequest)
			return
		}
		if err := s.Sim.Restore(g, crew); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.Sim.EmitEvent(engine.Event{Description: "map loaded", Category: engine.CategoryOperator})
		writeJSON(w, map[string]any{
			"rows":    g.Rows(),
			"cols":    g.Cols(),
			"agents":  len(crew),
			"run_id":  s.Sim.RunID().String(),
			"message": "snapshot loaded",
		})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not running", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

type cellRequest struct {
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Action string `json:"action"`
}

func (s *Server) handleCell(w http.ResponseWriter, r *http.Request) {
	var req cellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	c := grid.C(req.Row, req.Col)

	var changed bool
	switch req.Action {
	case "", "toggle":
		changed = s.Sim.ToggleCell(c)
	default:
		http.Error(w, "action must be toggle", http.StatusBadRequest)
		return
	}

	g, _ := s.Sim.Snapshot()
	writeJSON(w, map[string]any{
		"row":     req.Row,
		"col":     req.Col,
		"changed": changed,
		"state":   g.At(c).String(),
	})
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	var req cellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	c := grid.C(req.Row, req.Col)

	var changed bool
	switch req.Action {
	case "add":
		changed = s.Sim.AddAgent(c)
	case "remove":
		changed = s.Sim.RemoveAgent(c)
	default:
		http.Error(w, "action must be add or remove", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{
		"row":     req.Row,
		"col":     req.Col,
		"changed": changed,
		"agents":  s.Sim.AgentCount(),
	})
}

type waypointRequest struct {
	Row       int          `json:"row"`
	Col       int          `json:"col"`
	Waypoints []grid.Coord `json:"waypoints"`
	Mode      string       `json:"mode"` // set (default) | append | clear
}

func (s *Server) handleWaypoints(w http.ResponseWriter, r *http.Request) {
	var req waypointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	at := grid.C(req.Row, req.Col)

	var ok bool
	switch req.Mode {
	case "", "set":
		ok = s.Sim.SetWaypoints(at, req.Waypoints)
	case "append":
		ok = len(req.Waypoints) > 0
		for _, wp := range req.Waypoints {
			ok = s.Sim.AppendWaypoint(at, wp) && ok
		}
	case "clear":
		ok = s.Sim.ClearWaypoints(at)
	default:
		http.Error(w, "mode must be set, append or clear", http.StatusBadRequest)
		return
	}

	a, found := s.Sim.AgentAt(at)
	if !found {
		http.Error(w, fmt.Sprintf("no agent at %s", at), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"changed":   ok,
		"waypoints": nonNil(a.Waypoints),
	})
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var (
		m   engine.TickMetrics
		err error
	)
	if s.Eng != nil {
		m, err = s.Eng.Step()
	} else {
		m, err = s.Sim.Tick()
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, m)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rows int `json:"rows"`
		Cols int `json:"cols"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Rows == 0 && req.Cols == 0 {
		req.Rows, req.Cols = s.Sim.Dims()
	}
	if req.Rows < 1 || req.Cols < 1 || req.Rows > maxGridSide || req.Cols > maxGridSide {
		http.Error(w, fmt.Sprintf("rows and cols must be 1-%d", maxGridSide), http.StatusBadRequest)
		return
	}
	s.Sim.Reset(req.Rows, req.Cols)
	s.Sim.EmitEvent(engine.Event{Description: "simulation reset", Category: engine.CategoryOperator})
	writeJSON(w, map[string]any{
		"rows":   req.Rows,
		"cols":   req.Cols,
		"run_id": s.Sim.RunID().String(),
	})
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	if err := s.DB.Checkpoint(s.Sim, s.Seed, s.StartedAt); err != nil {
		slog.Error("checkpoint failed", "error", err)
		http.Error(w, "checkpoint failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    s.Sim.CurrentTick(),
		"message": "checkpoint saved",
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
