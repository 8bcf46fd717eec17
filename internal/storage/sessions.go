package storage

import (
	"sort"
	"sync"
)

// SessionStore is the registry of live editor sessions held by the server.
type SessionStore[T any] struct {
	sessions map[string]T
	mu       sync.RWMutex
}

func NewSessionStore[T any]() *SessionStore[T] {
	return &SessionStore[T]{
		sessions: make(map[string]T),
	}
}

func (s *SessionStore[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.sessions[id]
	return v, ok
}

func (s *SessionStore[T]) Set(id string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = v
}

// Remove deletes id and returns what was stored under it.
func (s *SessionStore[T]) Remove(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.sessions[id]
	delete(s.sessions, id)
	return v, ok
}

// IDs lists live session ids in sorted order.
func (s *SessionStore[T]) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *SessionStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
