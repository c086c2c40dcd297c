package memory

import (
	"context"
	"sync"

	"quiz-attempt-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore, used in
// tests and demo mode. Snapshots are copied on the way in and out so callers
// never share attempt maps with the store.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.SessionState
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.SessionState),
	}
}

func (s *SessionStore) Load(_ context.Context, key string) (domain.SessionState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[key]
	if !ok {
		return domain.SessionState{}, false, nil
	}
	state.Attempt = state.Attempt.Clone()
	return state, true, nil
}

func (s *SessionStore) Save(_ context.Context, key string, state domain.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.Attempt = state.Attempt.Clone()
	s.sessions[key] = state
	return nil
}

func (s *SessionStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}
