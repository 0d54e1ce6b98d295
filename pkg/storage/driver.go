// Package storage
package storage

import (
	"context"

	"github.com/quillworksco/quill/pkg/run"
)

// Driver defines the interface for persisting and retrieving agent sessions
// and their run records in a storage backend. The Driver is what the API
// server and agent runtime program against; postgres, sqlite, and inmemory
// implement it.
type Driver interface {
	// CreateSession stores a new session.
	CreateSession(ctx context.Context, session *run.Session) error

	// GetSession retrieves a session by id. Returns NotFoundError if the
	// session does not exist.
	GetSession(ctx context.Context, sessionID string) (*run.Session, error)

	// ListSessions returns all sessions for an agent, most recently updated
	// first. An empty agentID returns every session.
	ListSessions(ctx context.Context, agentID string) ([]*run.Session, error)

	// UpdateSession persists changes to a session's title and updated_at.
	// Returns NotFoundError if the session does not exist.
	UpdateSession(ctx context.Context, session *run.Session) error

	// DeleteSession removes a session and all of its runs. Returns
	// NotFoundError if the session does not exist.
	DeleteSession(ctx context.Context, sessionID string) error

	// SaveRun stores one completed run record.
	SaveRun(ctx context.Context, rec *run.Record) error

	// ListRuns returns a session's run records ordered by creation time.
	ListRuns(ctx context.Context, sessionID string) ([]*run.Record, error)

	// Close closes the store and releases any resources.
	Close() error
}
