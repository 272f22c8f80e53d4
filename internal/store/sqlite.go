package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/shreedharv16/accesslint/agentloop"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	goal        TEXT NOT NULL,
	status      TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	provider    TEXT NOT NULL DEFAULT '',
	model       TEXT NOT NULL DEFAULT '',
	iterations  INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL,
	ended_at    DATETIME
);

CREATE TABLE IF NOT EXISTS iterations (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	iteration   INTEGER NOT NULL,
	record      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_iterations_session ON iterations(session_id, iteration);

CREATE TABLE IF NOT EXISTS file_changes (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	change      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_changes_session ON file_changes(session_id, seq);
`

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes all access through Go's pool, preventing "database is
	// locked" errors.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string for row IDs.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSession upserts a session summary row.
func (s *SQLiteStore) SaveSession(ctx context.Context, rec *SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, goal, status, reason, provider, model, iterations, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			reason = excluded.reason,
			iterations = excluded.iterations,
			ended_at = excluded.ended_at`,
		rec.ID, rec.Goal, rec.Status, rec.Reason, rec.Provider, rec.Model,
		rec.Iterations, rec.StartedAt, rec.EndedAt)
	if err != nil {
		return fmt.Errorf("save session %s: %w", rec.ID, err)
	}
	return nil
}

// GetSession returns one session summary.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, goal, status, reason, provider, model, iterations, started_at, ended_at
		FROM sessions WHERE id = ?`, id)

	var rec SessionRecord
	var endedAt sql.NullTime
	err := row.Scan(&rec.ID, &rec.Goal, &rec.Status, &rec.Reason, &rec.Provider,
		&rec.Model, &rec.Iterations, &rec.StartedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	if endedAt.Valid {
		rec.EndedAt = endedAt.Time
	}
	return &rec, nil
}

// ListSessions returns the most recent sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]*SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, goal, status, reason, provider, model, iterations, started_at, ended_at
		FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var endedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Goal, &rec.Status, &rec.Reason, &rec.Provider,
			&rec.Model, &rec.Iterations, &rec.StartedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if endedAt.Valid {
			rec.EndedAt = endedAt.Time
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// SaveTranscript stores the per-iteration records for a session. Each record
// is serialized whole; the transcript is an audit artifact, not a query
// surface.
func (s *SQLiteStore) SaveTranscript(ctx context.Context, sessionID string, records []agentloop.IterationRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transcript tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM iterations WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear transcript: %w", err)
	}
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal iteration %d: %w", rec.Iteration, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO iterations (id, session_id, iteration, record) VALUES (?, ?, ?, ?)`,
			newULID(), sessionID, rec.Iteration, string(raw)); err != nil {
			return fmt.Errorf("save iteration %d: %w", rec.Iteration, err)
		}
	}
	return tx.Commit()
}

// GetTranscript returns a session's iteration records in order.
func (s *SQLiteStore) GetTranscript(ctx context.Context, sessionID string) ([]agentloop.IterationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record FROM iterations WHERE session_id = ? ORDER BY iteration`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	defer rows.Close()

	var out []agentloop.IterationRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		var rec agentloop.IterationRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal iteration: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveChanges stores the session's file change log in application order.
func (s *SQLiteStore) SaveChanges(ctx context.Context, sessionID string, changes []agentloop.FileChange) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin changes tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM file_changes WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear changes: %w", err)
	}
	for i, change := range changes {
		raw, err := json.Marshal(change)
		if err != nil {
			return fmt.Errorf("marshal change %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO file_changes (id, session_id, seq, change) VALUES (?, ?, ?, ?)`,
			newULID(), sessionID, i, string(raw)); err != nil {
			return fmt.Errorf("save change %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// GetChanges returns a session's file changes in application order.
func (s *SQLiteStore) GetChanges(ctx context.Context, sessionID string) ([]agentloop.FileChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT change FROM file_changes WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get changes: %w", err)
	}
	defer rows.Close()

	var out []agentloop.FileChange
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		var change agentloop.FileChange
		if err := json.Unmarshal([]byte(raw), &change); err != nil {
			return nil, fmt.Errorf("unmarshal change: %w", err)
		}
		out = append(out, change)
	}
	return out, rows.Err()
}
