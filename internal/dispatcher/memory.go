package dispatcher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const (
	maxRecords     = 20
	summaryRecords = 5 // how many recent records Summary prints
)

// CycleRecord captures what happened in a single dispatch cycle.
type CycleRecord struct {
	RunID    string `json:"run_id"`
	Tick     uint64 `json:"tick"`
	Action   string `json:"action"`
	FireArea int    `json:"fire_area"`
	Orders   int    `json:"orders"`
	Level    string `json:"level"`
}

// CycleMemory keeps a ring of recent cycle records across restarts.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`
}

// LoadMemory reads the memory file. Returns empty memory if it is missing
// or unreadable.
func LoadMemory(path string) *CycleMemory {
	data, err := os.ReadFile(path)
	if err != nil {
		return &CycleMemory{}
	}
	var mem CycleMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		slog.Warn("dispatcher memory corrupted, starting fresh", "error", err)
		return &CycleMemory{}
	}
	return &mem
}

// Save writes the memory to path.
func (m *CycleMemory) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write memory: %w", err)
	}
	return nil
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Trend returns the fire area change since the previous cycle of the same
// run. ok is false when there is nothing to compare against.
func (m *CycleMemory) Trend() (delta int, ok bool) {
	n := len(m.Records)
	if n < 2 || m.Records[n-1].RunID != m.Records[n-2].RunID {
		return 0, false
	}
	return m.Records[n-1].FireArea - m.Records[n-2].FireArea, true
}

// Summary formats the last few cycles, one per line.
func (m *CycleMemory) Summary() string {
	if len(m.Records) == 0 {
		return ""
	}

	var b strings.Builder
	start := max(0, len(m.Records)-summaryRecords)
	for _, r := range m.Records[start:] {
		fmt.Fprintf(&b, "tick %d: action=%s fire=%d orders=%d level=%s\n",
			r.Tick, r.Action, r.FireArea, r.Orders, r.Level)
	}
	return b.String()
}
