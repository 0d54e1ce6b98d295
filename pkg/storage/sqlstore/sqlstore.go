// Package sqlstore implements the storage driver's SQL operations once,
// shared by the postgres and sqlite backends. The schema is plain enough
// that a single DDL works on both engines; only the bind-variable style
// differs.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/quillworksco/quill/pkg/run"
	"github.com/quillworksco/quill/pkg/storage"
)

// Dialect selects the bind-variable style for the underlying engine.
type Dialect int

const (
	// Question uses ? placeholders (sqlite).
	Question Dialect = iota

	// Dollar uses $1..$n placeholders (postgres).
	Dollar
)

// Store implements storage.Driver over a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an open database handle. Callers own the handle's lifecycle
// until Close is called on the Store.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		agent_id   TEXT NOT NULL,
		user_id    TEXT NOT NULL DEFAULT '',
		title      TEXT NOT NULL DEFAULT '',
		created_at DOUBLE PRECISION NOT NULL,
		updated_at DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_agent ON sessions (agent_id)`,
	`CREATE TABLE IF NOT EXISTS runs (
		run_id     TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		run_input  TEXT NOT NULL DEFAULT '',
		run_output TEXT NOT NULL DEFAULT '',
		tools      TEXT NOT NULL DEFAULT '[]',
		created_at DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_session ON runs (session_id)`,
}

// Migrate creates the schema. Statements are append-only and idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}

// rebind converts ? placeholders to the store's dialect.
func (s *Store) rebind(query string) string {
	if s.dialect == Question {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) CreateSession(ctx context.Context, session *run.Session) error {
	if session == nil {
		return errors.New("cannot store nil session")
	}

	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO sessions (session_id, agent_id, user_id, title, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		session.SessionID, session.AgentID, session.UserID, session.Title,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*run.Session, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT session_id, agent_id, user_id, title, created_at, updated_at
		 FROM sessions WHERE session_id = ?`), sessionID)

	session := &run.Session{}
	err := row.Scan(&session.SessionID, &session.AgentID, &session.UserID,
		&session.Title, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{SessionID: sessionID}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	return session, nil
}

func (s *Store) ListSessions(ctx context.Context, agentID string) ([]*run.Session, error) {
	query := `SELECT session_id, agent_id, user_id, title, created_at, updated_at
		 FROM sessions`
	args := []any{}
	if agentID != "" {
		query += ` WHERE agent_id = ?`
		args = append(args, agentID)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*run.Session
	for rows.Next() {
		session := &run.Session{}
		if err := rows.Scan(&session.SessionID, &session.AgentID, &session.UserID,
			&session.Title, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *Store) UpdateSession(ctx context.Context, session *run.Session) error {
	if session == nil {
		return errors.New("cannot update nil session")
	}

	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE sessions SET title = ?, updated_at = ? WHERE session_id = ?`),
		session.Title, session.UpdatedAt, session.SessionID)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{SessionID: session.SessionID}
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM runs WHERE session_id = ?`), sessionID); err != nil {
		return fmt.Errorf("deleting session runs: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM sessions WHERE session_id = ?`), sessionID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{SessionID: sessionID}
	}
	return nil
}

func (s *Store) SaveRun(ctx context.Context, rec *run.Record) error {
	if rec == nil {
		return errors.New("cannot store nil run record")
	}

	tools, err := json.Marshal(rec.Tools)
	if err != nil {
		return fmt.Errorf("encoding tool calls: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO runs (run_id, session_id, run_input, run_output, tools, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		rec.RunID, rec.SessionID, rec.Input, rec.Output, string(tools), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context, sessionID string) ([]*run.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT run_id, session_id, run_input, run_output, tools, created_at
		 FROM runs WHERE session_id = ? ORDER BY created_at ASC`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var records []*run.Record
	for rows.Next() {
		rec := &run.Record{}
		var tools string
		if err := rows.Scan(&rec.RunID, &rec.SessionID, &rec.Input, &rec.Output,
			&tools, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if err := json.Unmarshal([]byte(tools), &rec.Tools); err != nil {
			return nil, fmt.Errorf("decoding tool calls: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
