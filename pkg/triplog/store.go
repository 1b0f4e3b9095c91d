// Package triplog persists monitoring sessions and their alerts to SQLite.
package triplog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/teslashibe/go-vigil/pkg/alert"
	"github.com/teslashibe/go-vigil/pkg/hazard"
)

// ErrSessionNotFound is returned when a session id is unknown or already ended.
var ErrSessionNotFound = errors.New("triplog: session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	started_at TEXT NOT NULL,
	ended_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at DESC);

CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	source TEXT NOT NULL,
	detail TEXT NOT NULL,
	closed_ms INTEGER NOT NULL DEFAULT 0,
	hazard TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_alerts_session_id ON alerts(session_id);
CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at DESC);
`

// timeLayout keeps fractional seconds fixed width so stored timestamps
// sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Session is one monitoring run of a source.
type Session struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Record is a stored alert.
type Record struct {
	alert.Alert
	SessionID string `json:"session_id"`
}

// Store is a SQLite trip log.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. The parent directory is
// created if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("execute %s: %w", p, err)
		}
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartSession opens a new session for source.
func (s *Store) StartSession(ctx context.Context, source string) (Session, error) {
	sess := Session{
		ID:        uuid.NewString(),
		Source:    source,
		StartedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, source, started_at) VALUES (?, ?, ?)`,
		sess.ID, sess.Source, sess.StartedAt.Format(timeLayout),
	)
	if err != nil {
		return Session{}, fmt.Errorf("start session: %w", err)
	}
	return sess, nil
}

// EndSession marks a session ended. Ending an unknown or already ended
// session returns ErrSessionNotFound.
func (s *Store) EndSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
		s.now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// GetSession loads a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	var sess Session
	var started string
	var ended sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, started_at, ended_at FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Source, &started, &ended)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	if sess.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Session{}, fmt.Errorf("parse started_at: %w", err)
	}
	if ended.Valid {
		t, err := time.Parse(timeLayout, ended.String)
		if err != nil {
			return Session{}, fmt.Errorf("parse ended_at: %w", err)
		}
		sess.EndedAt = &t
	}
	return sess, nil
}

// RecordAlert stores an alert against an open session.
func (s *Store) RecordAlert(ctx context.Context, sessionID string, a alert.Alert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.At.IsZero() {
		a.At = s.now()
	}
	var hz string
	if a.Hazard != hazard.KindNone {
		hz = a.Hazard.String()
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO alerts (id, session_id, kind, source, detail, closed_ms, hazard, created_at)
	SELECT ?, id, ?, ?, ?, ?, ?, ? FROM sessions WHERE id = ? AND ended_at IS NULL`,
		a.ID, string(a.Kind), a.Source, a.Detail, a.ClosedMs, hz,
		a.At.UTC().Format(timeLayout), sessionID,
	)
	if err != nil {
		return fmt.Errorf("record alert: %w", err)
	}

	// The insert selects from sessions, so nothing is written when the
	// session is missing or ended.
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE id = ?`, a.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("record alert: %w", err)
	}
	if exists == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, session_id, kind, source, detail, closed_ms, hazard, created_at
	FROM alerts
	ORDER BY created_at DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		var kind, hz, created string
		if err := rows.Scan(&r.ID, &r.SessionID, &kind, &r.Source, &r.Detail, &r.ClosedMs, &hz, &created); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		r.Kind = alert.Kind(kind)
		if hz != "" {
			if err := r.Hazard.UnmarshalText([]byte(hz)); err != nil {
				return nil, fmt.Errorf("parse hazard: %w", err)
			}
		}
		if r.At, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
