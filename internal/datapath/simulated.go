package datapath

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/calee0219/upf/internal/n4model"
)

// ifaceTable holds the PDR/FAR namespace for one named interface.
type ifaceTable struct {
	mu   sync.RWMutex
	pdrs map[uint16]*n4model.PDR
	fars map[uint32]*n4model.FAR
	// related tracks, per FAR id, the set of PDR ids currently pointing
	// at it. This is the weak back-index from spec §9 — a lookup aid,
	// not ownership.
	related map[uint32]map[uint16]struct{}
}

func newIfaceTable() *ifaceTable {
	return &ifaceTable{
		pdrs:    make(map[uint16]*n4model.PDR),
		fars:    make(map[uint32]*n4model.FAR),
		related: make(map[uint32]map[uint16]struct{}),
	}
}

// Simulated is an in-process, map-backed Datapath implementation. It
// stands in for the gtp5g kernel module in environments without it
// (tests, non-Linux hosts, local development).
type Simulated struct {
	mu     sync.RWMutex
	ifaces map[string]*ifaceTable
}

// NewSimulated creates an empty simulated datapath.
func NewSimulated() *Simulated {
	return &Simulated{ifaces: make(map[string]*ifaceTable)}
}

func (s *Simulated) table(iface string) *ifaceTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.ifaces[iface]
	if !ok {
		t = newIfaceTable()
		s.ifaces[iface] = t
	}
	return t
}

func (s *Simulated) AddPdr(iface string, pdr *n4model.PDR) error {
	t := s.table(iface)
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.pdrs[pdr.PDRID]; exists {
		return fmt.Errorf("pdr %d already exists on %s", pdr.PDRID, iface)
	}
	t.pdrs[pdr.PDRID] = pdr
	if pdr.FARID != 0 {
		t.linkLocked(pdr.FARID, pdr.PDRID)
	}
	log.WithFields(log.Fields{"iface": iface, "pdr_id": pdr.PDRID, "far_id": pdr.FARID}).Debug("datapath: pdr added")
	return nil
}

func (s *Simulated) ModPdr(iface string, pdr *n4model.PDR) error {
	t := s.table(iface)
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.pdrs[pdr.PDRID]
	if !ok {
		return fmt.Errorf("pdr %d not found on %s", pdr.PDRID, iface)
	}
	if existing.FARID != pdr.FARID {
		t.unlinkLocked(existing.FARID, pdr.PDRID)
		if pdr.FARID != 0 {
			t.linkLocked(pdr.FARID, pdr.PDRID)
		}
	}
	t.pdrs[pdr.PDRID] = pdr
	return nil
}

func (s *Simulated) DelPdr(iface string, pdrID uint16) error {
	t := s.table(iface)
	t.mu.Lock()
	defer t.mu.Unlock()

	pdr, ok := t.pdrs[pdrID]
	if !ok {
		return fmt.Errorf("pdr %d not found on %s", pdrID, iface)
	}
	if pdr.FARID != 0 {
		t.unlinkLocked(pdr.FARID, pdrID)
	}
	delete(t.pdrs, pdrID)
	return nil
}

func (s *Simulated) FindPdrByID(iface string, pdrID uint16) (*n4model.PDR, bool) {
	t := s.table(iface)
	t.mu.RLock()
	defer t.mu.RUnlock()
	pdr, ok := t.pdrs[pdrID]
	return pdr, ok
}

func (s *Simulated) AddFar(iface string, far *n4model.FAR) error {
	t := s.table(iface)
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.fars[far.FARID]; exists {
		return fmt.Errorf("far %d already exists on %s", far.FARID, iface)
	}
	t.fars[far.FARID] = far
	if _, ok := t.related[far.FARID]; !ok {
		t.related[far.FARID] = make(map[uint16]struct{})
	}
	log.WithFields(log.Fields{"iface": iface, "far_id": far.FARID, "apply_action": far.ApplyAction}).Debug("datapath: far added")
	return nil
}

func (s *Simulated) ModFar(iface string, far *n4model.FAR) error {
	t := s.table(iface)
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.fars[far.FARID]; !ok {
		return fmt.Errorf("far %d not found on %s", far.FARID, iface)
	}
	t.fars[far.FARID] = far
	return nil
}

func (s *Simulated) DelFar(iface string, farID uint32) error {
	t := s.table(iface)
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.fars[farID]; !ok {
		return fmt.Errorf("far %d not found on %s", farID, iface)
	}
	// Invariant 3: clear farId back to zero on every PDR that still
	// points at this FAR before the FAR itself disappears.
	for pdrID := range t.related[farID] {
		if pdr, ok := t.pdrs[pdrID]; ok {
			pdr.FARID = 0
		}
	}
	delete(t.related, farID)
	delete(t.fars, farID)
	return nil
}

func (s *Simulated) FindFarByID(iface string, farID uint32) (*n4model.FAR, bool) {
	t := s.table(iface)
	t.mu.RLock()
	defer t.mu.RUnlock()
	far, ok := t.fars[farID]
	return far, ok
}

func (s *Simulated) FarGetRelatedPdrs(iface string, farID uint32) []*n4model.PDR {
	t := s.table(iface)
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*n4model.PDR, 0, len(t.related[farID]))
	for pdrID := range t.related[farID] {
		if pdr, ok := t.pdrs[pdrID]; ok {
			out = append(out, pdr)
		}
	}
	return out
}

func (s *Simulated) PdrSetFarID(iface string, pdr *n4model.PDR, farID uint32) {
	t := s.table(iface)
	t.mu.Lock()
	defer t.mu.Unlock()

	if pdr.FARID != 0 {
		t.unlinkLocked(pdr.FARID, pdr.PDRID)
	}
	pdr.FARID = farID
	if farID != 0 {
		t.linkLocked(farID, pdr.PDRID)
	}
}

func (s *Simulated) Close() error { return nil }

// linkLocked and unlinkLocked must be called with t.mu held.
func (t *ifaceTable) linkLocked(farID uint32, pdrID uint16) {
	if t.related[farID] == nil {
		t.related[farID] = make(map[uint16]struct{})
	}
	t.related[farID][pdrID] = struct{}{}
}

func (t *ifaceTable) unlinkLocked(farID uint32, pdrID uint16) {
	if set, ok := t.related[farID]; ok {
		delete(set, pdrID)
	}
}
