package persistence

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/talgya/fire-tactics/internal/engine"
	"github.com/talgya/fire-tactics/internal/grid"
)

// ErrNoData is returned when a metrics export is requested before any tick.
var ErrNoData = errors.New("no metrics to export")

// MetricsHeader is the first row of every metrics log.
var MetricsHeader = []string{"step", "fire_area", "agent_count", "agent_positions"}

// WriteMetricsCSV writes one row per tick.
func WriteMetricsCSV(w io.Writer, history []engine.TickMetrics) error {
	if len(history) == 0 {
		return ErrNoData
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(MetricsHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, m := range history {
		row := []string{
			strconv.FormatUint(m.Step, 10),
			strconv.Itoa(m.FireArea),
			strconv.Itoa(m.AgentCount),
			m.PositionsString(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write step %d: %w", m.Step, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveMetricsCSV writes the metrics log to path. No file is created when
// history is empty.
func SaveMetricsCSV(path string, history []engine.TickMetrics) error {
	if len(history) == 0 {
		return ErrNoData
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics log: %w", err)
	}
	if err := WriteMetricsCSV(f, history); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadMetricsCSV parses a metrics log written by WriteMetricsCSV.
func ReadMetricsCSV(r io.Reader) ([]engine.TickMetrics, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(MetricsHeader)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read metrics log: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	if strings.Join(rows[0], ",") != strings.Join(MetricsHeader, ",") {
		return nil, fmt.Errorf("read metrics log: unexpected header %v", rows[0])
	}

	out := make([]engine.TickMetrics, 0, len(rows)-1)
	for i, row := range rows[1:] {
		m, err := parseMetricsRow(row)
		if err != nil {
			return nil, fmt.Errorf("metrics row %d: %w", i+1, err)
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func parseMetricsRow(row []string) (engine.TickMetrics, error) {
	var m engine.TickMetrics
	var err error
	if m.Step, err = strconv.ParseUint(row[0], 10, 64); err != nil {
		return m, fmt.Errorf("step: %w", err)
	}
	if m.FireArea, err = strconv.Atoi(row[1]); err != nil {
		return m, fmt.Errorf("fire_area: %w", err)
	}
	if m.AgentCount, err = strconv.Atoi(row[2]); err != nil {
		return m, fmt.Errorf("agent_count: %w", err)
	}
	if m.Positions, err = ParsePositions(row[3]); err != nil {
		return m, err
	}
	return m, nil
}

// ParsePositions parses "(r,c); (r,c)" back into coordinates.
func ParsePositions(s string) ([]grid.Coord, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []grid.Coord{}, nil
	}
	parts := strings.Split(s, ";")
	out := make([]grid.Coord, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		var r, c int
		if _, err := fmt.Sscanf(p, "(%d,%d)", &r, &c); err != nil {
			return nil, fmt.Errorf("position %q: %w", p, err)
		}
		out = append(out, grid.C(r, c))
	}
	return out, nil
}
