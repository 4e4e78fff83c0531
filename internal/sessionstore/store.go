// Package sessionstore is the Session Store (C3): per-peer-session
// state keyed by local SEID.
package sessionstore

import (
	"sync"

	"github.com/calee0219/upf/internal/n4model"
)

// Store is a concurrency-safe map of local SEID to *n4model.Session.
// Per-session serialization (spec §5) is handled by the session's own
// mutex, not by this store's lock — the store lock only protects the
// map shape itself, grounded on the single-RWMutex-over-map-of-pointers
// idiom used throughout the example corpus (manager.go, UPFContext).
type Store struct {
	mu       sync.RWMutex
	sessions map[uint64]*n4model.Session
}

// New creates an empty session store.
func New() *Store {
	return &Store{sessions: make(map[uint64]*n4model.Session)}
}

// Create allocates and stores a new session for localSEID.
func (s *Store) Create(localSEID uint64, peer *n4model.Peer) *n4model.Session {
	session := n4model.NewSession(localSEID, peer)
	s.mu.Lock()
	s.sessions[localSEID] = session
	s.mu.Unlock()
	return session
}

// Get looks up a session by local SEID.
func (s *Store) Get(localSEID uint64) (*n4model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[localSEID]
	return session, ok
}

// Delete removes a session from the store. It does not touch the
// datapath; callers must have already torn down the session's rules.
func (s *Store) Delete(localSEID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, localSEID)
}

// Count returns the number of active sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// All returns a snapshot of every active session, for the admin API.
func (s *Store) All() []*n4model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*n4model.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}
