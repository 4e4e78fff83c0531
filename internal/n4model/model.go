// Package n4model holds the PFCP session/rule data model shared by the
// rule translator, session store, and dispatcher.
package n4model

import (
	"net"
	"sync"
	"time"
)

// AssocState is the association state of a peer node.
type AssocState int

const (
	StateIdle AssocState = iota
	StateAssociated
)

func (s AssocState) String() string {
	if s == StateAssociated {
		return "ASSOCIATED"
	}
	return "IDLE"
}

// NodeIDType distinguishes the variant carried by a Node ID IE.
type NodeIDType int

const (
	NodeIDUnknown NodeIDType = iota
	NodeIDIPv4
	NodeIDIPv6
	NodeIDFQDN
)

// NodeID identifies a peer PFCP endpoint.
type NodeID struct {
	Type NodeIDType
	IPv4 net.IP
	IPv6 net.IP
	FQDN string
}

// Peer is a remote PFCP node reachable through a UDP address, tracked
// across association setup/update/release.
type Peer struct {
	mu sync.RWMutex

	Addr  *net.UDPAddr
	Node  NodeID
	State AssocState

	// SessionSEIDs is the set of local SEIDs bound to this peer, used by
	// Association Release to drop every session owned by the peer.
	SessionSEIDs map[uint64]struct{}
}

// NewPeer creates an IDLE peer for the given source address.
func NewPeer(addr *net.UDPAddr) *Peer {
	return &Peer{
		Addr:         addr,
		State:        StateIdle,
		SessionSEIDs: make(map[uint64]struct{}),
	}
}

func (p *Peer) SetAssociated(node NodeID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Node = node
	p.State = StateAssociated
}

func (p *Peer) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.State = StateIdle
	p.SessionSEIDs = make(map[uint64]struct{})
}

func (p *Peer) IsAssociated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.State == StateAssociated
}

func (p *Peer) BindSession(seid uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SessionSEIDs[seid] = struct{}{}
}

func (p *Peer) UnbindSession(seid uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.SessionSEIDs, seid)
}

// BoundSessions returns a snapshot of the session SEIDs currently bound
// to this peer.
func (p *Peer) BoundSessions() []uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]uint64, 0, len(p.SessionSEIDs))
	for seid := range p.SessionSEIDs {
		out = append(out, seid)
	}
	return out
}

// SourceInterface enumerates the PDI source-interface values used by PDRs.
type SourceInterface uint8

const (
	SrcIfaceAccess SourceInterface = iota
	SrcIfaceCore
	SrcIfaceSGiLAN
	SrcIfaceCPFunction
)

// FTEID is a Fully-Qualified TEID: a TEID plus an address family.
type FTEID struct {
	TEID     uint32
	IPv4     net.IP
	IPv6     net.IP
	ChooseID bool
}

// UEIPAddress carries the UE's allocated IP, v4 or v6.
type UEIPAddress struct {
	IPv4 net.IP
	IPv6 net.IP
}

// PDI is the Packet Detection Information embedded in a PDR.
type PDI struct {
	SourceInterface SourceInterface
	LocalFTEID      *FTEID
	UEIPAddress     *UEIPAddress
}

// OuterHeaderRemovalDesc is the one-byte enum copied verbatim from the IE.
type OuterHeaderRemovalDesc uint8

// PDR is a Packet Detection Rule as held by the datapath.
type PDR struct {
	PDRID              uint16
	Precedence         uint32
	PDI                PDI
	OuterHeaderRemoval *OuterHeaderRemovalDesc
	FARID              uint32 // 0 means unlinked
}

// OuterHeaderCreation describes GTP-U/UDP encapsulation to apply on egress.
type OuterHeaderCreation struct {
	Description uint16
	TEID        uint32
	IPv4        net.IP
	IPv6        net.IP
	Port        uint16
}

// ForwardingParameters is the optional forwarding detail attached to a FAR.
type ForwardingParameters struct {
	DestinationInterface SourceInterface
	NetworkInstance      string
	OuterHeaderCreation  *OuterHeaderCreation
}

// Apply Action bitmap values (3GPP TS 29.244 clause 8.2.26).
const (
	ApplyActionDrop    uint8 = 0x01
	ApplyActionForward uint8 = 0x02
	ApplyActionBuffer  uint8 = 0x04
	ApplyActionNoCP    uint8 = 0x08
	ApplyActionDupl    uint8 = 0x10
)

// FAR is a Forwarding Action Rule as held by the datapath. The
// back-index of PDRs pointing at a FAR is maintained by the datapath
// (see datapath.Simulated's related map), not here: it is a lookup
// aid for removeFar, not part of the rule's own identity.
type FAR struct {
	FARID                uint32
	ApplyAction          uint8
	ForwardingParameters *ForwardingParameters
}

// Session is a PFCP session keyed by the locally-allocated SEID.
type Session struct {
	mu sync.Mutex

	LocalSEID uint64
	SMFSEID   uint64 // remote (CP) SEID, learned at establishment
	Peer      *Peer

	// pdrIDs preserves insertion order: the spec calls pdrIdList an
	// "ordered set of PDR identifiers this session owns".
	pdrIDs   []uint16
	pdrIndex map[uint16]struct{}

	CreatedAt time.Time
}

// NewSession allocates an empty session bound to peer.
func NewSession(localSEID uint64, peer *Peer) *Session {
	return &Session{
		LocalSEID: localSEID,
		Peer:      peer,
		pdrIndex:  make(map[uint16]struct{}),
		CreatedAt: time.Now(),
	}
}

// Lock/Unlock implement the per-session serialization required by §5:
// every dispatcher handler holds this lock while it reads or mutates
// the session's fields and PDR list. The deletion and association
// release handlers release it before removing the session from the
// store.
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// AddPDRID records pdrId as owned by this session. Caller must hold the
// session lock.
func (s *Session) AddPDRID(pdrID uint16) {
	if _, ok := s.pdrIndex[pdrID]; ok {
		return
	}
	s.pdrIndex[pdrID] = struct{}{}
	s.pdrIDs = append(s.pdrIDs, pdrID)
}

// RemovePDRID drops pdrId from the owned set. Caller must hold the
// session lock.
func (s *Session) RemovePDRID(pdrID uint16) {
	if _, ok := s.pdrIndex[pdrID]; !ok {
		return
	}
	delete(s.pdrIndex, pdrID)
	for i, id := range s.pdrIDs {
		if id == pdrID {
			s.pdrIDs = append(s.pdrIDs[:i], s.pdrIDs[i+1:]...)
			break
		}
	}
}

// OwnsPDR reports whether pdrId is in this session's owned set. Caller
// must hold the session lock.
func (s *Session) OwnsPDR(pdrID uint16) bool {
	_, ok := s.pdrIndex[pdrID]
	return ok
}

// PDRIDs returns a snapshot of the owned PDR ids in insertion order.
// Caller must hold the session lock.
func (s *Session) PDRIDs() []uint16 {
	out := make([]uint16, len(s.pdrIDs))
	copy(out, s.pdrIDs)
	return out
}
