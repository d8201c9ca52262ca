// Package store provides persistence backends for session snapshots.
package store

import (
	"context"
	"sync"

	apperrors "github.com/sweetpotato0/ai-tutor/errors"
	"github.com/sweetpotato0/ai-tutor/session"
)

// MemoryStore keeps session snapshots in process memory. Suitable for
// tests and single-instance deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*session.Session),
	}
}

// Save stores a snapshot, replacing any previous one.
func (s *MemoryStore) Save(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Load returns a snapshot or ErrSessionNotFound.
func (s *MemoryStore) Load(_ context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Delete removes a snapshot. Deleting an unknown id is not an error.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// List returns all stored session ids.
func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

// Count returns the number of stored sessions.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}
