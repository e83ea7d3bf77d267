package persistence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/talgya/fire-tactics/internal/agents"
	"github.com/talgya/fire-tactics/internal/grid"
)

// FormatError reports a malformed map snapshot. Nothing is loaded when one
// is returned.
type FormatError struct {
	Field string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("snapshot: %s: %v", e.Field, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatErr(field, format string, args ...any) *FormatError {
	return &FormatError{Field: field, Err: fmt.Errorf(format, args...)}
}

// Snapshot is the on-disk map document.
type Snapshot struct {
	Rows   int           `json:"rows"`
	Cols   int           `json:"cols"`
	Grid   [][]int       `json:"grid"`
	Agents []AgentRecord `json:"agents"`
}

// AgentRecord is one crew in a snapshot. Cached paths are never stored.
type AgentRecord struct {
	Row       int      `json:"row"`
	Col       int      `json:"col"`
	Type      int      `json:"type"`
	Waypoints [][2]int `json:"waypoints"`
}

// NewSnapshot captures a grid and crew list.
func NewSnapshot(g *grid.Grid, crew []*agents.Agent) Snapshot {
	s := Snapshot{
		Rows:   g.Rows(),
		Cols:   g.Cols(),
		Grid:   g.Codes(),
		Agents: make([]AgentRecord, len(crew)),
	}
	for i, a := range crew {
		wps := make([][2]int, len(a.Waypoints))
		for j, w := range a.Waypoints {
			wps[j] = [2]int{w.Row, w.Col}
		}
		s.Agents[i] = AgentRecord{Row: a.Pos.Row, Col: a.Pos.Col, Type: int(a.Type), Waypoints: wps}
	}
	return s
}

// agentDoc accepts both the current row/col keys and the short r/c keys of
// older files. Waypoints are decoded loosely so their length can be checked.
type agentDoc struct {
	Row       *int    `json:"row"`
	Col       *int    `json:"col"`
	R         *int    `json:"r"`
	C         *int    `json:"c"`
	Type      int     `json:"type"`
	Waypoints [][]int `json:"waypoints"`
}

type snapshotDoc struct {
	Rows   *int       `json:"rows"`
	Cols   *int       `json:"cols"`
	Grid   [][]int    `json:"grid"`
	Agents []agentDoc `json:"agents"`
}

// EncodeSnapshot writes the grid and crews as a JSON snapshot.
func EncodeSnapshot(w io.Writer, g *grid.Grid, crew []*agents.Agent) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewSnapshot(g, crew)); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// DecodeSnapshot parses and fully validates a JSON snapshot. Loaded crews
// have no cached path; a missing waypoint list reads as empty.
func DecodeSnapshot(r io.Reader) (*grid.Grid, []*agents.Agent, error) {
	var doc snapshotDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, &FormatError{Field: "document", Err: err}
	}
	if doc.Rows == nil || doc.Cols == nil {
		return nil, nil, formatErr("dimensions", "rows and cols are required")
	}

	g, err := grid.FromCodes(*doc.Rows, *doc.Cols, doc.Grid)
	if err != nil {
		return nil, nil, &FormatError{Field: "grid", Err: err}
	}

	crew := make([]*agents.Agent, 0, len(doc.Agents))
	for i, ad := range doc.Agents {
		a, err := ad.build(g)
		if err != nil {
			var fe *FormatError
			if errors.As(err, &fe) {
				fe.Field = fmt.Sprintf("agents[%d].%s", i, fe.Field)
				return nil, nil, fe
			}
			return nil, nil, err
		}
		crew = append(crew, a)
	}
	return g, crew, nil
}

func (ad agentDoc) build(g *grid.Grid) (*agents.Agent, error) {
	row, col := ad.Row, ad.Col
	if row == nil {
		row = ad.R
	}
	if col == nil {
		col = ad.C
	}
	if row == nil || col == nil {
		return nil, formatErr("position", "row and col are required")
	}
	pos := grid.C(*row, *col)
	if !g.InBounds(pos) {
		return nil, formatErr("position", "%s outside %dx%d grid", pos, g.Rows(), g.Cols())
	}
	if ad.Type < 0 || ad.Type > 255 || !agents.AgentType(ad.Type).Valid() {
		return nil, formatErr("type", "unknown agent type %d", ad.Type)
	}

	a := agents.New(pos)
	a.Type = agents.AgentType(ad.Type)
	a.Waypoints = make([]grid.Coord, 0, len(ad.Waypoints))
	for j, w := range ad.Waypoints {
		if len(w) != 2 {
			return nil, formatErr(fmt.Sprintf("waypoints[%d]", j), "want [row,col], got %d values", len(w))
		}
		wp := grid.C(w[0], w[1])
		if !g.InBounds(wp) {
			return nil, formatErr(fmt.Sprintf("waypoints[%d]", j), "%s outside grid", wp)
		}
		a.Waypoints = append(a.Waypoints, wp)
	}
	return a, nil
}

// SaveSnapshotFile writes a snapshot atomically: a temp file in the same
// directory is renamed over path.
func SaveSnapshotFile(path string, g *grid.Grid, crew []*agents.Agent) error {
	var buf bytes.Buffer
	if err := EncodeSnapshot(&buf, g, crew); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// LoadSnapshotFile reads and validates a snapshot file.
func LoadSnapshotFile(path string) (*grid.Grid, []*agents.Agent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return DecodeSnapshot(f)
}
