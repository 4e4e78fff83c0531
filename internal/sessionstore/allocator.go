package sessionstore

import (
	"fmt"
	"math/rand"
	"sync"
)

// SEIDAllocator mints the local SEID this UPF assigns to a session at
// establishment time (spec §3 notes local SEIDs are "allocated outside
// this core"; this is that outside allocator). The returned value is
// what the dispatcher stores as Session.LocalSEID, keys the session
// store by, and the response builder embeds in the body F-SEID IE of
// the SessionEstablishmentResponse — every later Modification/Deletion
// request addresses the session by this value in the PFCP header SEID
// field, so a collision here is a session mix-up, not just a counter
// bug.
type SEIDAllocator struct {
	strategy  string
	nextSEID  uint64
	usedSEIDs map[uint64]bool
	mu        sync.Mutex
}

// NewSEIDAllocator creates an allocator using "sequential" (predictable,
// easy to correlate in logs/pcaps) or "random" (harder for a
// misbehaving or compromised SMF peer to guess another session's SEID
// and address it out of turn).
func NewSEIDAllocator(strategy string, startSEID uint64) *SEIDAllocator {
	if startSEID == 0 {
		startSEID = 1 // SEID 0 is reserved
	}
	return &SEIDAllocator{
		strategy:  strategy,
		nextSEID:  startSEID,
		usedSEIDs: make(map[uint64]bool),
	}
}

// Allocate returns a new local SEID, unique among those currently in
// use by live sessions (SEID 0 is reserved by the protocol for
// node-level messages and is never handed out).
func (s *SEIDAllocator) Allocate() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.strategy {
	case "sequential":
		for i := 0; i < 1000000; i++ {
			if s.nextSEID == 0 {
				s.nextSEID = 1
			}
			seid := s.nextSEID
			s.nextSEID++
			if !s.usedSEIDs[seid] {
				s.usedSEIDs[seid] = true
				return seid, nil
			}
		}
		return 0, fmt.Errorf("failed to allocate sequential SEID: too many collisions")
	case "random":
		for attempts := 0; attempts < 10000; attempts++ {
			seid := rand.Uint64()
			if seid == 0 || s.usedSEIDs[seid] {
				continue
			}
			s.usedSEIDs[seid] = true
			return seid, nil
		}
		return 0, fmt.Errorf("failed to allocate random SEID after 10000 attempts")
	default:
		return 0, fmt.Errorf("unknown SEID strategy: %s", s.strategy)
	}
}

// Release frees a session's local SEID for reuse after the dispatcher
// has torn the session down (session deletion, or association release
// dropping every session bound to the peer).
func (s *SEIDAllocator) Release(seid uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.usedSEIDs, seid)
}

// AllocatedCount returns the number of currently allocated SEIDs.
func (s *SEIDAllocator) AllocatedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.usedSEIDs)
}
