// Package peerstore is the Peer/Node registry (C7): peer address and
// association state keyed by the transaction's source address.
package peerstore

import (
	"net"
	"sync"

	"github.com/calee0219/upf/internal/n4model"
)

// Store is a concurrency-safe registry of peers keyed by UDP address.
type Store struct {
	mu    sync.RWMutex
	peers map[string]*n4model.Peer
}

// New creates an empty peer registry.
func New() *Store {
	return &Store{peers: make(map[string]*n4model.Peer)}
}

// GetOrCreate returns the peer for addr, creating an IDLE one if this
// is the first time this address has been seen.
func (s *Store) GetOrCreate(addr *net.UDPAddr) *n4model.Peer {
	key := addr.String()

	s.mu.RLock()
	peer, ok := s.peers[key]
	s.mu.RUnlock()
	if ok {
		return peer
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if peer, ok := s.peers[key]; ok {
		return peer
	}
	peer = n4model.NewPeer(addr)
	s.peers[key] = peer
	return peer
}

// Get looks up a peer without creating one.
func (s *Store) Get(addr *net.UDPAddr) (*n4model.Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	peer, ok := s.peers[addr.String()]
	return peer, ok
}

// All returns a snapshot of every known peer, for the admin API.
func (s *Store) All() []*n4model.Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*n4model.Peer, 0, len(s.peers))
	for _, peer := range s.peers {
		out = append(out, peer)
	}
	return out
}
