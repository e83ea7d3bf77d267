// Package persistence stores simulation state: JSON map snapshots, the CSV
// metrics log, and a SQLite run store for checkpoints and history.
package persistence

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/fire-tactics/internal/agents"
	"github.com/talgya/fire-tactics/internal/engine"
	"github.com/talgya/fire-tactics/internal/grid"
)

// ErrNoSnapshot is returned when the store holds no checkpoint.
var ErrNoSnapshot = errors.New("no snapshot stored")

// DB wraps a SQLite connection for run persistence.
type DB struct {
	conn *sqlx.DB
}

// Run is one simulation run, from creation or load until the next reset.
type Run struct {
	ID        string `db:"id"`
	Rows      int    `db:"grid_rows"`
	Cols      int    `db:"grid_cols"`
	Seed      int64  `db:"seed"`
	StartedAt int64  `db:"started_at"` // unix seconds
	LastTick  uint64 `db:"last_tick"`
}

// Started returns StartedAt as a time.
func (r Run) Started() time.Time {
	return time.Unix(r.StartedAt, 0)
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		grid_rows INTEGER NOT NULL,
		grid_cols INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		last_tick INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tick_metrics (
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		fire_area INTEGER NOT NULL,
		agent_count INTEGER NOT NULL,
		positions TEXT NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		data TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_run ON snapshots(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun inserts or updates a run record.
func (db *DB) SaveRun(r Run) error {
	if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("run id %q: %w", r.ID, err)
	}
	_, err := db.conn.NamedExec(`INSERT INTO runs (id, grid_rows, grid_cols, seed, started_at, last_tick)
		VALUES (:id, :grid_rows, :grid_cols, :seed, :started_at, :last_tick)
		ON CONFLICT(id) DO UPDATE SET grid_rows = excluded.grid_rows,
			grid_cols = excluded.grid_cols, last_tick = excluded.last_tick`, r)
	return err
}

// GetRun returns one run record.
func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT id, grid_rows, grid_cols, seed, started_at, last_tick FROM runs WHERE id = ?", id)
	return r, err
}

// Runs returns the most recent runs, newest first.
func (db *DB) Runs(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs,
		"SELECT id, grid_rows, grid_cols, seed, started_at, last_tick FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	return runs, err
}

// SaveMetrics writes tick rows for a run. Rows already stored are replaced.
func (db *DB) SaveMetrics(runID string, history []engine.TickMetrics) error {
	if len(history) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO tick_metrics
		(run_id, step, fire_area, agent_count, positions) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range history {
		if _, err := stmt.Exec(runID, m.Step, m.FireArea, m.AgentCount, m.PositionsString()); err != nil {
			return fmt.Errorf("insert metrics step %d: %w", m.Step, err)
		}
	}

	return tx.Commit()
}

type metricsRow struct {
	Step       uint64 `db:"step"`
	FireArea   int    `db:"fire_area"`
	AgentCount int    `db:"agent_count"`
	Positions  string `db:"positions"`
}

// RecentMetrics returns up to limit of the latest tick rows of a run, in
// step order.
func (db *DB) RecentMetrics(runID string, limit int) ([]engine.TickMetrics, error) {
	var rows []metricsRow
	err := db.conn.Select(&rows,
		`SELECT step, fire_area, agent_count, positions FROM (
			SELECT step, fire_area, agent_count, positions FROM tick_metrics
			WHERE run_id = ? ORDER BY step DESC LIMIT ?
		) ORDER BY step ASC`,
		runID, limit,
	)
	if err != nil {
		return nil, err
	}

	out := make([]engine.TickMetrics, len(rows))
	for i, r := range rows {
		pos, err := ParsePositions(r.Positions)
		if err != nil {
			return nil, fmt.Errorf("metrics step %d: %w", r.Step, err)
		}
		out[i] = engine.TickMetrics{Step: r.Step, FireArea: r.FireArea, AgentCount: r.AgentCount, Positions: pos}
	}
	return out, nil
}

// SaveSnapshot stores a map checkpoint for a run.
func (db *DB) SaveSnapshot(runID string, tick uint64, g *grid.Grid, crew []*agents.Agent) error {
	var buf bytes.Buffer
	if err := EncodeSnapshot(&buf, g, crew); err != nil {
		return err
	}
	_, err := db.conn.Exec(
		"INSERT INTO snapshots (run_id, tick, data, created_at) VALUES (?, ?, ?, ?)",
		runID, tick, buf.String(), time.Now().Unix(),
	)
	if err != nil {
		return err
	}
	slog.Debug("snapshot stored", "run", runID, "tick", tick, "size", humanize.Bytes(uint64(buf.Len())))
	return nil
}

// StoredSnapshot is a checkpoint read back from the store.
type StoredSnapshot struct {
	RunID string
	Tick  uint64
	Grid  *grid.Grid
	Crew  []*agents.Agent
}

// LatestSnapshot returns the most recently stored checkpoint.
func (db *DB) LatestSnapshot() (StoredSnapshot, error) {
	var row struct {
		RunID string `db:"run_id"`
		Tick  uint64 `db:"tick"`
		Data  string `db:"data"`
	}
	err := db.conn.Get(&row, "SELECT run_id, tick, data FROM snapshots ORDER BY id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return StoredSnapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return StoredSnapshot{}, err
	}

	g, crew, err := DecodeSnapshot(bytes.NewReader([]byte(row.Data)))
	if err != nil {
		return StoredSnapshot{}, fmt.Errorf("decode stored snapshot: %w", err)
	}
	return StoredSnapshot{RunID: row.RunID, Tick: row.Tick, Grid: g, Crew: crew}, nil
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// Checkpoint performs a full save of a simulation: run record, metrics
// history, a map snapshot and the last tick.
func (db *DB) Checkpoint(sim *engine.Simulation, seed int64, startedAt time.Time) error {
	g, crew := sim.Snapshot()
	history := sim.History()
	tick := sim.CurrentTick()
	runID := sim.RunID().String()

	slog.Info("saving checkpoint",
		"run", runID,
		"tick", tick,
		"agents", len(crew),
		"metrics_rows", humanize.Comma(int64(len(history))),
	)

	run := Run{
		ID:        runID,
		Rows:      g.Rows(),
		Cols:      g.Cols(),
		Seed:      seed,
		StartedAt: startedAt.Unix(),
		LastTick:  tick,
	}
	if err := db.SaveRun(run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if err := db.SaveMetrics(runID, history); err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	if err := db.SaveSnapshot(runID, tick, g, crew); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := db.SaveMeta("last_run", runID); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta("last_tick", strconv.FormatUint(tick, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("checkpoint saved", "run", runID, "tick", tick)
	return nil
}
