package session

import (
	"context"
	"sync"
	"time"
)

// memoryStore keeps sessions in a process-local map. Suitable for a single
// instance; sessions do not survive a restart. Expired entries are dropped
// lazily on access.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMemoryStore builds the in-process session store.
func NewMemoryStore() Store {
	return &memoryStore{sessions: map[string]*Session{}}
}

func (m *memoryStore) Create(_ context.Context, s *Session) error {
	c := *s
	m.mu.Lock()
	m.sessions[s.ID] = &c
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNoSession
	}
	if s.Expired(time.Now()) {
		delete(m.sessions, id)
		return nil, ErrNoSession
	}
	c := *s
	return &c, nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}
