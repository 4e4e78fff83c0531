// Package dispatcher is the Request Dispatcher (C4): one handler per
// PFCP message type, sharing the contract of validating the session
// and transaction, invoking the rule translator, building a response,
// and handing it to the transaction layer.
package dispatcher

import (
	"net"

	log "github.com/sirupsen/logrus"
	"github.com/wmnsk/go-pfcp/ie"
	"github.com/wmnsk/go-pfcp/message"

	"github.com/calee0219/upf/internal/n4error"
	"github.com/calee0219/upf/internal/n4model"
	"github.com/calee0219/upf/internal/peerstore"
	"github.com/calee0219/upf/internal/response"
	"github.com/calee0219/upf/internal/sessionstore"
	"github.com/calee0219/upf/internal/translator"
)

// Dispatcher owns every collaborator a handler body needs.
type Dispatcher struct {
	Sessions   *sessionstore.Store
	Peers      *peerstore.Store
	Allocator  *sessionstore.SEIDAllocator
	Translator *translator.Translator
	Responses  *response.Builder
}

// New wires a dispatcher from its collaborators.
func New(sessions *sessionstore.Store, peers *peerstore.Store, alloc *sessionstore.SEIDAllocator, tr *translator.Translator, resp *response.Builder) *Dispatcher {
	return &Dispatcher{Sessions: sessions, Peers: peers, Allocator: alloc, Translator: tr, Responses: resp}
}

// Dispatch routes req to its handler and returns the encoded response
// bytes to commit. The caller (internal/server) owns the transaction
// (UpdateTx/Commit) and the SMF-retransmission dedup cache.
func (d *Dispatcher) Dispatch(req message.Message, from *net.UDPAddr) ([]byte, error) {
	var (
		resp message.Message
		err  error
	)

	switch r := req.(type) {
	case *message.HeartbeatRequest:
		resp = d.handleHeartbeatRequest(r)
	case *message.HeartbeatResponse:
		d.handleHeartbeatResponse(r)
		return nil, nil
	case *message.AssociationSetupRequest:
		resp, err = d.handleAssociationSetup(r, from)
	case *message.AssociationUpdateRequest:
		resp, err = d.handleAssociationUpdate(r, from)
	case *message.AssociationReleaseRequest:
		resp, err = d.handleAssociationRelease(r, from)
	case *message.SessionEstablishmentRequest:
		resp, err = d.handleSessionEstablishment(r, from)
	case *message.SessionModificationRequest:
		resp, err = d.handleSessionModification(r)
	case *message.SessionDeletionRequest:
		resp, err = d.handleSessionDeletion(r)
	case *message.SessionReportResponse:
		err = d.handleSessionReportResponse(r)
		return nil, err
	default:
		return nil, n4error.New(n4error.NotImplemented, "unhandled PFCP message type")
	}

	if err != nil {
		return nil, err
	}
	return response.Encode(resp)
}

func (d *Dispatcher) handleHeartbeatRequest(req *message.HeartbeatRequest) message.Message {
	return d.Responses.HeartbeatResponse(req.Sequence())
}

func (d *Dispatcher) handleHeartbeatResponse(resp *message.HeartbeatResponse) {
	log.WithField("seq", resp.Sequence()).Debug("heartbeat response received, peer alive")
}

// nodeIDFromIE resolves go-pfcp's single formatted Node ID string into
// our variant type, discriminating IPv4/IPv6/FQDN by parsing it rather
// than destructuring the IE (NodeID() returns one address string, not
// one value per family).
func nodeIDFromIE(nodeIE *ie.IE) (n4model.NodeID, error) {
	addr, err := nodeIE.NodeID()
	if err != nil {
		return n4model.NodeID{}, n4error.Wrap(n4error.InvalidRequest, "malformed Node ID", err)
	}
	if addr == "" {
		return n4model.NodeID{}, n4error.New(n4error.InvalidRequest, "empty Node ID")
	}
	if ip := net.ParseIP(addr); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return n4model.NodeID{Type: n4model.NodeIDIPv4, IPv4: ip4}, nil
		}
		return n4model.NodeID{Type: n4model.NodeIDIPv6, IPv6: ip}, nil
	}
	return n4model.NodeID{Type: n4model.NodeIDFQDN, FQDN: addr}, nil
}

func (d *Dispatcher) handleAssociationSetup(req *message.AssociationSetupRequest, from *net.UDPAddr) (message.Message, error) {
	if req.NodeID == nil {
		return nil, n4error.New(n4error.InvalidRequest, "AssociationSetupRequest missing Node ID")
	}
	node, err := nodeIDFromIE(req.NodeID)
	if err != nil {
		return nil, err
	}

	peer := d.Peers.GetOrCreate(from)
	peer.SetAssociated(node)

	log.WithFields(log.Fields{"peer": from.String(), "node_type": node.Type}).Info("association established")
	return d.Responses.AssociationSetupResponse(req.Sequence()), nil
}

// handleAssociationUpdate merges node-level parameters into the peer
// record. The source leaves this as a stub; this core implements the
// design-level requirement spec §4.2 calls for instead of leaving it
// unimplemented.
func (d *Dispatcher) handleAssociationUpdate(req *message.AssociationUpdateRequest, from *net.UDPAddr) (message.Message, error) {
	peer, ok := d.Peers.Get(from)
	if !ok || !peer.IsAssociated() {
		return nil, n4error.New(n4error.InvalidRequest, "AssociationUpdateRequest from unassociated peer")
	}
	// No per-node parameters are modeled in this core beyond the Node ID
	// itself, so there is nothing further to merge; acknowledge only.
	return d.Responses.AssociationUpdateResponse(req.Sequence()), nil
}

// handleAssociationRelease transitions the peer to IDLE and drops every
// session bound to it, per spec §4.2's design-level requirement.
func (d *Dispatcher) handleAssociationRelease(req *message.AssociationReleaseRequest, from *net.UDPAddr) (message.Message, error) {
	peer, ok := d.Peers.Get(from)
	if !ok {
		return nil, n4error.New(n4error.InvalidRequest, "AssociationReleaseRequest from unknown peer")
	}

	for _, seid := range peer.BoundSessions() {
		if session, ok := d.Sessions.Get(seid); ok {
			session.Lock()
			for _, pdrID := range session.PDRIDs() {
				_ = d.Translator.RemovePdr(session, pdrID)
			}
			session.Unlock()
			d.Sessions.Delete(seid)
			d.Allocator.Release(seid)
		}
	}
	peer.Release()

	return d.Responses.AssociationReleaseResponse(req.Sequence()), nil
}

// handleSessionEstablishment implements spec §4.2. The guard on the
// second createFAR is intentionally asymmetric with the second
// createPDR's own presence check, not createFAR[1]'s — see DESIGN.md
// for why this is preserved rather than "fixed".
func (d *Dispatcher) handleSessionEstablishment(req *message.SessionEstablishmentRequest, from *net.UDPAddr) (message.Message, error) {
	peer := d.Peers.GetOrCreate(from)
	if !peer.IsAssociated() {
		return nil, n4error.New(n4error.InvalidRequest, "SessionEstablishmentRequest from unassociated peer")
	}

	if req.CPFSEID == nil {
		return nil, n4error.New(n4error.InvalidRequest, "SessionEstablishmentRequest missing CP F-SEID")
	}
	cpFSEID, err := req.CPFSEID.FSEID()
	if err != nil {
		return nil, n4error.Wrap(n4error.InvalidRequest, "malformed CP F-SEID", err)
	}

	localSEID, err := d.Allocator.Allocate()
	if err != nil {
		return nil, n4error.Wrap(n4error.DatapathError, "SEID allocation failed", err)
	}

	session := d.Sessions.Create(localSEID, peer)
	session.Lock()
	defer session.Unlock()
	session.SMFSEID = cpFSEID.SEID

	for _, createPDR := range req.CreatePDR {
		if _, err := d.Translator.CreatePdr(session, createPDR); err != nil {
			return nil, err
		}
	}

	for i, createFAR := range req.CreateFAR {
		if i == 1 {
			// Preserved quirk from the source: the second createFAR is
			// gated on createPDR[1]'s presence, not createFAR[1]'s own.
			if len(req.CreatePDR) <= 1 {
				continue
			}
		}
		if _, err := d.Translator.CreateFar(createFAR); err != nil {
			return nil, err
		}
	}

	if len(req.CreateURR) > 0 || len(req.CreateQER) > 0 {
		log.Debug("TODO: URR/QER IEs recognized but ignored (out of scope)")
	}

	peer.BindSession(localSEID)
	return d.Responses.SessionEstablishmentResponse(req.Sequence(), session.SMFSEID, localSEID), nil
}

// handleSessionModification implements the fixed, spec-mandated order
// of §4.2: create PDRs, create FARs, update PDRs, update FARs, remove
// PDRs, remove FARs.
func (d *Dispatcher) handleSessionModification(req *message.SessionModificationRequest) (message.Message, error) {
	localSEID := req.SEID()
	session, ok := d.Sessions.Get(localSEID)
	if !ok {
		return nil, n4error.New(n4error.NotFound, "SessionModificationRequest: unknown SEID")
	}

	session.Lock()
	defer session.Unlock()

	for _, createPDR := range req.CreatePDR {
		if _, err := d.Translator.CreatePdr(session, createPDR); err != nil {
			return nil, err
		}
	}
	for _, createFAR := range req.CreateFAR {
		if _, err := d.Translator.CreateFar(createFAR); err != nil {
			return nil, err
		}
	}
	for _, updatePDR := range req.UpdatePDR {
		if err := d.Translator.UpdatePdr(updatePDR); err != nil {
			return nil, err
		}
	}
	for _, updateFAR := range req.UpdateFAR {
		if err := d.Translator.UpdateFar(updateFAR); err != nil {
			return nil, err
		}
	}
	for _, removePDR := range req.RemovePDR {
		pdrID, err := pdrIDFromRemoveIE(removePDR)
		if err != nil {
			return nil, err
		}
		if err := d.Translator.RemovePdr(session, pdrID); err != nil {
			return nil, err
		}
	}
	for _, removeFAR := range req.RemoveFAR {
		farID, err := farIDFromRemoveIE(removeFAR)
		if err != nil {
			return nil, err
		}
		if err := d.Translator.RemoveFar(farID); err != nil {
			return nil, err
		}
	}

	return d.Responses.SessionModificationResponse(req.Sequence(), session.SMFSEID), nil
}

func pdrIDFromRemoveIE(removePDR *ie.IE) (uint16, error) {
	for _, child := range removePDR.ChildIEs {
		if child.Type == ie.PDRID {
			v, err := child.PDRID()
			if err != nil {
				return 0, n4error.Wrap(n4error.InvalidRequest, "malformed removePDR.PDRID", err)
			}
			return v, nil
		}
	}
	return 0, n4error.New(n4error.InvalidRequest, "removePDR missing PDR ID")
}

func farIDFromRemoveIE(removeFAR *ie.IE) (uint32, error) {
	for _, child := range removeFAR.ChildIEs {
		if child.Type == ie.FARID {
			v, err := child.FARID()
			if err != nil {
				return 0, n4error.Wrap(n4error.InvalidRequest, "malformed removeFAR.FARID", err)
			}
			return v, nil
		}
	}
	return 0, n4error.New(n4error.InvalidRequest, "removeFAR missing FAR ID")
}

// handleSessionDeletion materializes the response before detaching the
// session handle, per spec §4.2: smfSEID is read out before the
// session is removed from the store.
func (d *Dispatcher) handleSessionDeletion(req *message.SessionDeletionRequest) (message.Message, error) {
	localSEID := req.SEID()
	session, ok := d.Sessions.Get(localSEID)
	if !ok {
		return nil, n4error.New(n4error.NotFound, "SessionDeletionRequest: unknown SEID")
	}

	session.Lock()
	smfSEID := session.SMFSEID
	for _, pdrID := range session.PDRIDs() {
		if err := d.Translator.RemovePdr(session, pdrID); err != nil {
			session.Unlock()
			return nil, err
		}
	}
	session.Unlock()

	resp := d.Responses.SessionDeletionResponse(req.Sequence(), smfSEID)

	d.Sessions.Delete(localSEID)
	d.Allocator.Release(localSEID)
	if session.Peer != nil {
		session.Peer.UnbindSession(localSEID)
	}

	return resp, nil
}

// handleSessionReportResponse validates Cause is present and closes the
// pending report transaction; there is no session state change.
func (d *Dispatcher) handleSessionReportResponse(resp *message.SessionReportResponse) error {
	if resp.Cause == nil {
		return n4error.New(n4error.InvalidRequest, "SessionReportResponse missing Cause")
	}
	return nil
}
