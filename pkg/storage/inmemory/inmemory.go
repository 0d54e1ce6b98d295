// Package inmemory provides a map-backed storage driver for tests and
// ephemeral servers.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/quillworksco/quill/pkg/run"
	"github.com/quillworksco/quill/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu guards both maps.
	mu sync.RWMutex

	sessions map[string]*run.Session

	// runs maps session id to that session's records in insertion order.
	runs map[string][]*run.Record
}

// NewDriver creates a new in-memory storer.
func NewDriver() *Driver {
	return &Driver{
		sessions: make(map[string]*run.Session),
		runs:     make(map[string][]*run.Record),
	}
}

func (s *Driver) CreateSession(_ context.Context, session *run.Session) error {
	if session == nil {
		return errors.New("cannot store nil session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.SessionID]; ok {
		return errors.New("session already exists: " + session.SessionID)
	}

	copied := *session
	s.sessions[session.SessionID] = &copied
	return nil
}

func (s *Driver) GetSession(_ context.Context, sessionID string) (*run.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, storage.NotFoundError{SessionID: sessionID}
	}

	copied := *session
	return &copied, nil
}

func (s *Driver) ListSessions(_ context.Context, agentID string) ([]*run.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []*run.Session
	for _, session := range s.sessions {
		if agentID != "" && session.AgentID != agentID {
			continue
		}
		copied := *session
		sessions = append(sessions, &copied)
	}

	// Most recently updated first, matching the SQL backends.
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt > sessions[j].UpdatedAt
	})

	return sessions, nil
}

func (s *Driver) UpdateSession(_ context.Context, session *run.Session) error {
	if session == nil {
		return errors.New("cannot update nil session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[session.SessionID]
	if !ok {
		return storage.NotFoundError{SessionID: session.SessionID}
	}

	existing.Title = session.Title
	existing.UpdatedAt = session.UpdatedAt
	return nil
}

func (s *Driver) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return storage.NotFoundError{SessionID: sessionID}
	}

	delete(s.sessions, sessionID)
	delete(s.runs, sessionID)
	return nil
}

func (s *Driver) SaveRun(_ context.Context, rec *run.Record) error {
	if rec == nil {
		return errors.New("cannot store nil run record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *rec
	s.runs[rec.SessionID] = append(s.runs[rec.SessionID], &copied)
	return nil
}

func (s *Driver) ListRuns(_ context.Context, sessionID string) ([]*run.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*run.Record, 0, len(s.runs[sessionID]))
	for _, rec := range s.runs[sessionID] {
		copied := *rec
		records = append(records, &copied)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt < records[j].CreatedAt
	})

	return records, nil
}

// Close is a no-op for the in-memory store.
func (s *Driver) Close() error {
	return nil
}
