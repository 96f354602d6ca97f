// Package store keeps an optional SQLite journal of iteration runs: one row
// per run and one row per stage transition inside it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"toolsmith/internal/logging"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// IterationStore persists runs and their steps.
//
// Storage location: journal.database_path in the config (e.g. .toolsmith/journal.db)
type IterationStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	now    func() time.Time
}

// Run is one Iterate call as recorded in the journal.
type Run struct {
	ID          string
	RequestJSON string
	StartedAt   time.Time
	FinishedAt  *time.Time
	Outcome     string // converged, exhausted, failed; empty while running
	Iterations  int
	Slug        string
	Code        string
	Error       string
}

// Step is one stage transition inside a run.
type Step struct {
	ID        int64
	RunID     string
	Iteration int
	Stage     string
	Slug      string
	Code      string
	Log       string
	CreatedAt time.Time
}

// Stats summarizes the journal.
type Stats struct {
	TotalRuns int
	ByOutcome map[string]int
	Steps     int
}

// NewIterationStore opens (creating if needed) the journal at dbPath.
// ":memory:" opens a private in-memory journal.
func NewIterationStore(dbPath string) (*IterationStore, error) {
	logging.StoreDebug("Initializing IterationStore at path: %s", dbPath)

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	s := &IterationStore{db: db, dbPath: dbPath, now: time.Now}
	if err := s.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize IterationStore schema: %v", err)
		db.Close()
		return nil, err
	}

	logging.Store("IterationStore initialized at %s", dbPath)
	return s, nil
}

// initialize creates the database schema.
func (s *IterationStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		request_json TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		outcome TEXT NOT NULL DEFAULT '',
		iterations INTEGER NOT NULL DEFAULT 0,
		slug TEXT NOT NULL DEFAULT '',
		code TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		iteration INTEGER NOT NULL,
		stage TEXT NOT NULL,
		slug TEXT NOT NULL DEFAULT '',
		code TEXT NOT NULL DEFAULT '',
		log TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_steps_run ON steps(run_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *IterationStore) Close() error {
	return s.db.Close()
}

// StartRun records a new run for request and returns its ID.
func (s *IterationStore) StartRun(ctx context.Context, request any) (string, error) {
	data, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, request_json, started_at) VALUES (?, ?, ?)`,
		id, string(data), s.now().UnixMilli())
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to start run: %v", err)
		return "", err
	}
	logging.StoreDebug("Started run %s", id)
	return id, nil
}

// AddStep appends a step to a run.
func (s *IterationStore) AddStep(ctx context.Context, step Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO steps (run_id, iteration, stage, slug, code, log, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		step.RunID, step.Iteration, step.Stage, step.Slug, step.Code, step.Log, s.now().UnixMilli())
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to store step for run %s: %v", step.RunID, err)
	}
	return err
}

// FinishRun records the end of a run.
func (s *IterationStore) FinishRun(ctx context.Context, id, outcome string, iterations int, slug, code, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, outcome = ?, iterations = ?, slug = ?, code = ?, error = ?
		WHERE id = ?`,
		s.now().UnixMilli(), outcome, iterations, slug, code, errText, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	logging.Store("Run %s finished: %s after %d iteration(s)", id, outcome, iterations)
	return nil
}

const runColumns = `id, request_json, started_at, finished_at, outcome, iterations, slug, code, error`

// GetRun returns one run by ID.
func (s *IterationStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// Runs returns the most recent runs, newest first.
func (s *IterationStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Steps returns the steps of a run in the order they were recorded.
func (s *IterationStore) Steps(ctx context.Context, runID string) ([]Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, iteration, stage, slug, code, log, created_at
		FROM steps WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var st Step
		var created int64
		if err := rows.Scan(&st.ID, &st.RunID, &st.Iteration, &st.Stage, &st.Slug, &st.Code, &st.Log, &created); err != nil {
			return nil, err
		}
		st.CreatedAt = time.UnixMilli(created)
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// GetStats returns journal statistics.
func (s *IterationStore) GetStats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{ByOutcome: make(map[string]int)}
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM runs GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		if outcome == "" {
			outcome = "running"
		}
		stats.ByOutcome[outcome] = n
		stats.TotalRuns += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM steps`).Scan(&stats.Steps); err != nil {
		return nil, err
	}
	return stats, nil
}

// Prune deletes all but the newest keep runs and their steps.
func (s *IterationStore) Prune(ctx context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stale := `SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT -1 OFFSET ?`
	if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE run_id IN (`+stale+`)`, keep); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id IN (`+stale+`)`, keep)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Store("Pruned %d run(s), keeping %d", n, keep)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var started int64
	var finished sql.NullInt64
	if err := row.Scan(&run.ID, &run.RequestJSON, &started, &finished, &run.Outcome, &run.Iterations, &run.Slug, &run.Code, &run.Error); err != nil {
		return nil, err
	}
	run.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		t := time.UnixMilli(finished.Int64)
		run.FinishedAt = &t
	}
	return &run, nil
}
