// Package store persists recorded sessions and converted automations in
// a local SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"screenpilot/internal/codex"
	"screenpilot/internal/logging"
)

// ErrNotFound reports a missing session or automation.
var ErrNotFound = errors.New("store: not found")

// Store wraps the SQLite database holding sessions and automations.
// Automations are stored as their canonical JSON payload with the quality
// figures lifted into columns so listings can filter without decoding.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	log    *zap.Logger
}

// SessionRecord is one recorded session as persisted.
type SessionRecord struct {
	ID         string
	Name       string
	Actions    []codex.ActionRecord
	RecordedAt time.Time
}

// AutomationInfo is the listing row for a stored automation.
type AutomationInfo struct {
	Name        string
	Source      string
	SuccessRate float64
	Rating      string
	StepCount   int
	CreatedAt   time.Time
}

// RunInfo is the listing row for one archived replay run.
type RunInfo struct {
	RunID      string
	Automation string
	State      string
	CreatedAt  time.Time
}

// New opens (or creates) the database at path and prepares the schema.
func New(path string) (*Store, error) {
	log := logging.Get(logging.CategoryStore)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Debug("failed to set busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Debug("failed to set journal_mode=WAL", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		log.Debug("failed to set synchronous=NORMAL", zap.Error(err))
	}

	s := &Store{db: db, dbPath: path, log: log}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("store ready", zap.String("path", path))
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	sessionsTable := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		actions_json TEXT NOT NULL,
		action_count INTEGER NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_name ON sessions(name);
	`

	automationsTable := `
	CREATE TABLE IF NOT EXISTS automations (
		name TEXT PRIMARY KEY,
		source TEXT,
		payload_json TEXT NOT NULL,
		success_rate REAL NOT NULL,
		step_count INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_automations_rate ON automations(success_rate);
	`

	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		automation TEXT NOT NULL,
		state TEXT NOT NULL,
		report_json TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_runs_automation ON runs(automation);
	`

	for _, table := range []string{sessionsTable, automationsTable, runsTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.log.Debug("closing store", zap.String("path", s.dbPath))
	return s.db.Close()
}

// SaveSession upserts one recorded session.
func (s *Store) SaveSession(rec SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions, err := json.Marshal(rec.Actions)
	if err != nil {
		return fmt.Errorf("marshal session actions: %w", err)
	}
	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	_, err = s.db.Exec(`
		INSERT INTO sessions (id, name, actions_json, action_count, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			actions_json = excluded.actions_json,
			action_count = excluded.action_count,
			recorded_at = excluded.recorded_at`,
		rec.ID, rec.Name, string(actions), len(rec.Actions), recordedAt)
	if err != nil {
		return fmt.Errorf("save session %q: %w", rec.ID, err)
	}
	return nil
}

// LoadSession fetches one session by id.
func (s *Store) LoadSession(id string) (SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec SessionRecord
	var actionsJSON string
	err := s.db.QueryRow(
		`SELECT id, name, actions_json, recorded_at FROM sessions WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Name, &actionsJSON, &rec.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("load session %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(actionsJSON), &rec.Actions); err != nil {
		return SessionRecord{}, fmt.Errorf("decode session %q: %w", id, err)
	}
	return rec, nil
}

// ListSessions returns session ids and names, most recent first.
func (s *Store) ListSessions() ([]SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, name, recorded_at FROM sessions ORDER BY recorded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveAutomation upserts an automation under its name.
func (s *Store) SaveAutomation(auto *codex.Automation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(auto)
	if err != nil {
		return fmt.Errorf("marshal automation: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO automations (name, source, payload_json, success_rate, step_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			source = excluded.source,
			payload_json = excluded.payload_json,
			success_rate = excluded.success_rate,
			step_count = excluded.step_count`,
		auto.Name, auto.Source, string(payload), auto.Quality.Rate(), len(auto.Steps))
	if err != nil {
		return fmt.Errorf("save automation %q: %w", auto.Name, err)
	}
	s.log.Info("automation saved",
		zap.String("name", auto.Name),
		zap.Int("steps", len(auto.Steps)),
		zap.Float64("success_rate", auto.Quality.Rate()))
	return nil
}

// LoadAutomation fetches an automation by name.
func (s *Store) LoadAutomation(name string) (*codex.Automation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRow(
		`SELECT payload_json FROM automations WHERE name = ?`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("automation %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load automation %q: %w", name, err)
	}
	var auto codex.Automation
	if err := json.Unmarshal([]byte(payload), &auto); err != nil {
		return nil, fmt.Errorf("decode automation %q: %w", name, err)
	}
	return &auto, nil
}

// ListAutomations returns summary rows for every stored automation.
func (s *Store) ListAutomations() ([]AutomationInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT name, source, success_rate, step_count, created_at
		FROM automations ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list automations: %w", err)
	}
	defer rows.Close()

	var out []AutomationInfo
	for rows.Next() {
		var info AutomationInfo
		var source sql.NullString
		if err := rows.Scan(&info.Name, &source, &info.SuccessRate, &info.StepCount, &info.CreatedAt); err != nil {
			return nil, err
		}
		info.Source = source.String
		info.Rating = codex.Rating(info.SuccessRate)
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteAutomation removes an automation by name.
func (s *Store) DeleteAutomation(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM automations WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete automation %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("automation %q: %w", name, ErrNotFound)
	}
	return nil
}

// SaveRunReport archives the outcome of one replay run.
func (s *Store) SaveRunReport(runID, automation, state string, report any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO runs (run_id, automation, state, report_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			state = excluded.state,
			report_json = excluded.report_json`,
		runID, automation, state, string(payload))
	if err != nil {
		return fmt.Errorf("save run %q: %w", runID, err)
	}
	return nil
}

// ListRuns returns summary rows for archived runs, newest first.
func (s *Store) ListRuns() ([]RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT run_id, automation, state, created_at
		FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var info RunInfo
		if err := rows.Scan(&info.RunID, &info.Automation, &info.State, &info.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Stats returns per-table row counts.
func (s *Store) Stats() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	for _, table := range []string{"sessions", "automations", "runs"} {
		var count int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		stats[table] = count
	}
	return stats, nil
}
