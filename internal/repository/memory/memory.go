// Package memory is an in-process, map-backed repository.Store, used by
// the test suite and by `ragts inspect` (a single-shot CLI run with no
// need for a database file).
package memory

import (
	"context"
	"sync"

	"ragts/internal/repository"
)

// Store is a mutex-guarded, map-backed repository.Store. It is safe for
// concurrent use but shares nothing across process boundaries.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*repository.Session
	sections map[string][]repository.Section
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		sessions: make(map[string]*repository.Session),
		sections: make(map[string][]repository.Section),
	}
}

func (s *Store) CreateSession(ctx context.Context, sessionID string, cols, rows int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = &repository.Session{
		ID:     sessionID,
		Cols:   cols,
		Rows:   rows,
		Status: repository.Pending,
	}
	return nil
}

func (s *Store) MarkProcessing(ctx context.Context, sessionID string, cols, rows int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	sess.Status = repository.Processing
	sess.Cols, sess.Rows = cols, rows
	return nil
}

func (s *Store) Commit(ctx context.Context, sessionID string, result repository.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	// Both fields are only ever written together, so a reader never
	// observes a snapshot without its sections or vice versa.
	sess.Snapshot = result.Snapshot
	sess.EventCount = result.EventCount
	sess.SectionCount = len(result.Sections)
	sess.Status = repository.Completed
	s.sections[sessionID] = append([]repository.Section(nil), result.Sections...)
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, sessionID string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	sess.Status = repository.Failed
	delete(s.sections, sessionID)
	return nil
}

func (s *Store) Session(ctx context.Context, sessionID string) (*repository.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) SectionsFor(ctx context.Context, sessionID string) ([]repository.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, repository.ErrNotFound
	}
	return append([]repository.Section(nil), s.sections[sessionID]...), nil
}

var _ repository.Store = (*Store)(nil)
