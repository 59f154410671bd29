// Package store is the SQLite-backed event/verdict store. The inference
// packages never import it: they operate on already-materialized slices,
// and the CLI wires the two sides together. One writer at a time; WAL mode
// keeps readers cheap.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"vigil/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS checks (
	id         TEXT PRIMARY KEY,
	profile_id TEXT NOT NULL,
	ts         INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	check_id   TEXT NOT NULL REFERENCES checks(id),
	profile_id TEXT NOT NULL,
	type       TEXT NOT NULL,
	ts         INTEGER NOT NULL,
	label      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS verdicts (
	check_id   TEXT PRIMARY KEY REFERENCES checks(id),
	profile_id TEXT NOT NULL,
	ts         INTEGER NOT NULL,
	verdict    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_profile_ts ON events(profile_id, ts);
CREATE INDEX IF NOT EXISTS idx_verdicts_profile_ts ON verdicts(profile_id, ts);
`

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// Open initializes the database at path, creating directories and schema
// as needed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Debug("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug("event store opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertCheck persists a check and its events in one transaction.
func (s *Store) InsertCheck(check types.Check) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO checks (id, profile_id, ts) VALUES (?, ?, ?)`,
		check.ID, check.ProfileID, check.Timestamp.UnixMilli(),
	); err != nil {
		return fmt.Errorf("failed to insert check %s: %w", check.ID, err)
	}
	for _, ev := range check.Events {
		if _, err := tx.Exec(
			`INSERT INTO events (id, check_id, profile_id, type, ts, label) VALUES (?, ?, ?, ?, ?, ?)`,
			ev.ID, check.ID, check.ProfileID, string(ev.Type), ev.Timestamp.UnixMilli(), ev.Label,
		); err != nil {
			return fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
		}
	}
	return tx.Commit()
}

// SaveVerdict persists the verdict produced for a check.
func (s *Store) SaveVerdict(checkID, profileID string, ts time.Time, v types.Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict for %s: %w", checkID, err)
	}
	if _, err := s.db.Exec(
		`INSERT OR REPLACE INTO verdicts (check_id, profile_id, ts, verdict) VALUES (?, ?, ?, ?)`,
		checkID, profileID, ts.UnixMilli(), string(data),
	); err != nil {
		return fmt.Errorf("failed to save verdict for %s: %w", checkID, err)
	}
	return nil
}

// Timeline returns the profile's (check, event) pairs inside [from, to],
// ordered by event timestamp then event id for stable output.
func (s *Store) Timeline(profileID string, from, to time.Time) ([]types.TimelineEntry, error) {
	rows, err := s.db.Query(
		`SELECT check_id, id, type, ts, label FROM events
		 WHERE profile_id = ? AND ts >= ? AND ts <= ?
		 ORDER BY ts ASC, id ASC`,
		profileID, from.UnixMilli(), to.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer rows.Close()

	var out []types.TimelineEntry
	for rows.Next() {
		var (
			entry  types.TimelineEntry
			evType string
			ms     int64
		)
		if err := rows.Scan(&entry.CheckID, &entry.Event.ID, &evType, &ms, &entry.Event.Label); err != nil {
			return nil, fmt.Errorf("failed to scan timeline row: %w", err)
		}
		entry.Event.Type = types.EventType(evType)
		entry.Event.Timestamp = time.UnixMilli(ms).UTC()
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Verdicts returns the profile's persisted verdicts inside [from, to],
// ordered by timestamp.
func (s *Store) Verdicts(profileID string, from, to time.Time) ([]types.StoredVerdict, error) {
	rows, err := s.db.Query(
		`SELECT check_id, ts, verdict FROM verdicts
		 WHERE profile_id = ? AND ts >= ? AND ts <= ?
		 ORDER BY ts ASC, check_id ASC`,
		profileID, from.UnixMilli(), to.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts: %w", err)
	}
	defer rows.Close()

	var out []types.StoredVerdict
	for rows.Next() {
		var (
			sv   types.StoredVerdict
			ms   int64
			data string
		)
		if err := rows.Scan(&sv.CheckID, &ms, &data); err != nil {
			return nil, fmt.Errorf("failed to scan verdict row: %w", err)
		}
		sv.Timestamp = time.UnixMilli(ms).UTC()
		if err := json.Unmarshal([]byte(data), &sv.Verdict); err != nil {
			return nil, fmt.Errorf("failed to unmarshal verdict for %s: %w", sv.CheckID, err)
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}
