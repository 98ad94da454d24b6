// Package results persists CCF tasks produced by alignment workers.
//
// Results are stored in SQLite, one row per tile pair, with the peak list
// encoded as JSON. [ExportJSON] writes a run's results as a JSON document.
package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sugawarayuuta/sonnet"

	"github.com/Iron-Ham/pciam/internal/task"
)

// Result is the persisted form of a CCF task.
type Result struct {
	RunID        string      `json:"run_id"`
	TileID       string      `json:"tile"`
	NeighborID   string      `json:"neighbor"`
	Direction    string      `json:"direction"`
	OriginDevice int         `json:"origin_device"`
	OriginWorker int         `json:"origin_worker"`
	Peaks        []task.Peak `json:"peaks"`
}

// FromTask converts a CCF task into a Result.
func FromTask(runID string, t *task.Task) (Result, error) {
	if t == nil || t.Kind != task.KindCCF {
		return Result{}, fmt.Errorf("results: expected a ccf task, got %v", t)
	}
	if t.Tile == nil || t.Neighbor == nil {
		return Result{}, errors.New("results: ccf task without tile pair")
	}
	return Result{
		RunID:        runID,
		TileID:       t.Tile.ID(),
		NeighborID:   t.Neighbor.ID(),
		Direction:    t.Direction.String(),
		OriginDevice: t.OriginDevice,
		OriginWorker: t.OriginWorker,
		Peaks:        t.Peaks,
	}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS ccf_results (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT    NOT NULL,
	tile_id       TEXT    NOT NULL,
	neighbor_id   TEXT    NOT NULL,
	direction     TEXT    NOT NULL,
	origin_device INTEGER NOT NULL,
	origin_worker INTEGER NOT NULL,
	peaks         TEXT    NOT NULL,
	UNIQUE (run_id, tile_id, neighbor_id)
);
CREATE INDEX IF NOT EXISTS idx_ccf_results_run ON ccf_results (run_id);
`

// Store is a SQLite-backed result store. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	insert *sql.Stmt
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("results: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("results: open %s: %w", path, err)
	}
	// A single connection serializes writers from concurrent consumers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("results: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("results: create schema: %w", err)
	}

	insert, err := db.Prepare(`
		INSERT INTO ccf_results (run_id, tile_id, neighbor_id, direction, origin_device, origin_worker, peaks)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, tile_id, neighbor_id) DO UPDATE SET
			direction = excluded.direction,
			origin_device = excluded.origin_device,
			origin_worker = excluded.origin_worker,
			peaks = excluded.peaks`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("results: prepare insert: %w", err)
	}
	return &Store{db: db, insert: insert}, nil
}

// Record stores r, replacing any earlier result for the same run and pair.
func (s *Store) Record(ctx context.Context, r Result) error {
	peaks := r.Peaks
	if peaks == nil {
		peaks = []task.Peak{}
	}
	encoded, err := sonnet.Marshal(peaks)
	if err != nil {
		return fmt.Errorf("results: encode peaks: %w", err)
	}
	if _, err := s.insert.ExecContext(ctx,
		r.RunID, r.TileID, r.NeighborID, r.Direction, r.OriginDevice, r.OriginWorker, string(encoded),
	); err != nil {
		return fmt.Errorf("results: insert %s<-%s: %w", r.TileID, r.NeighborID, err)
	}
	return nil
}

// All returns every result of runID ordered by tile and neighbor.
func (s *Store) All(ctx context.Context, runID string) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, tile_id, neighbor_id, direction, origin_device, origin_worker, peaks
		FROM ccf_results WHERE run_id = ? ORDER BY tile_id, neighbor_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("results: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Result
	for rows.Next() {
		var r Result
		var peaks string
		if err := rows.Scan(&r.RunID, &r.TileID, &r.NeighborID, &r.Direction, &r.OriginDevice, &r.OriginWorker, &peaks); err != nil {
			return nil, fmt.Errorf("results: scan: %w", err)
		}
		if err := sonnet.Unmarshal([]byte(peaks), &r.Peaks); err != nil {
			return nil, fmt.Errorf("results: decode peaks of %s<-%s: %w", r.TileID, r.NeighborID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of results stored for runID.
func (s *Store) Count(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ccf_results WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("results: count: %w", err)
	}
	return n, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return errors.Join(s.insert.Close(), s.db.Close())
}
