// Package response is the Response Builder (C5): it produces a byte
// block for each response type from session/request context.
package response

import (
	"net"
	"time"

	"github.com/wmnsk/go-pfcp/ie"
	"github.com/wmnsk/go-pfcp/message"

	"github.com/calee0219/upf/internal/n4error"
)

// Builder holds the node-level context every response needs: the
// UPF's own address (for Node ID / F-SEID IEs) and its recovery
// timestamp (heartbeat liveness).
type Builder struct {
	LocalIP    net.IP
	RecoveryTS time.Time
}

func New(localIP net.IP, recoveryTS time.Time) *Builder {
	return &Builder{LocalIP: localIP, RecoveryTS: recoveryTS}
}

// Encode marshals a built message to bytes, surfacing any failure as a
// BuildError per spec §7.
func Encode(msg message.Message) ([]byte, error) {
	b := make([]byte, msg.MarshalLen())
	if err := msg.MarshalTo(b); err != nil {
		return nil, n4error.Wrap(n4error.BuildError, "marshal response", err)
	}
	return b, nil
}

func (b *Builder) HeartbeatResponse(seq uint32) message.Message {
	return message.NewHeartbeatResponse(seq,
		ie.NewRecoveryTimeStamp(b.RecoveryTS),
	)
}

func (b *Builder) AssociationSetupResponse(seq uint32) message.Message {
	return message.NewAssociationSetupResponse(seq,
		ie.NewNodeID(b.LocalIP.String(), "", ""),
		ie.NewCause(ie.CauseRequestAccepted),
		ie.NewRecoveryTimeStamp(b.RecoveryTS),
	)
}

func (b *Builder) AssociationSetupResponseReject(seq uint32, cause uint8) message.Message {
	return message.NewAssociationSetupResponse(seq,
		ie.NewNodeID(b.LocalIP.String(), "", ""),
		ie.NewCause(cause),
	)
}

func (b *Builder) AssociationUpdateResponse(seq uint32) message.Message {
	return message.NewAssociationUpdateResponse(seq,
		ie.NewNodeID(b.LocalIP.String(), "", ""),
		ie.NewCause(ie.CauseRequestAccepted),
	)
}

func (b *Builder) AssociationReleaseResponse(seq uint32) message.Message {
	return message.NewAssociationReleaseResponse(seq,
		ie.NewNodeID(b.LocalIP.String(), "", ""),
		ie.NewCause(ie.CauseRequestAccepted),
	)
}

// SessionEstablishmentResponse replies with the header SEID set to the
// peer's SEID (the remote/CP side) and a body F-SEID carrying our own
// local SEID, matching the collaborator's "materialize before detach"
// convention: localSEID here is read from the session before any
// teardown could happen.
func (b *Builder) SessionEstablishmentResponse(seq uint32, smfSEID, localSEID uint64) message.Message {
	return message.NewSessionEstablishmentResponse(
		0, 0,
		smfSEID,
		seq,
		0,
		ie.NewNodeID(b.LocalIP.String(), "", ""),
		ie.NewCause(ie.CauseRequestAccepted),
		ie.NewFSEID(localSEID, b.LocalIP, nil),
	)
}

func (b *Builder) SessionEstablishmentResponseReject(seq uint32, cause uint8) message.Message {
	return message.NewSessionEstablishmentResponse(
		0, 0,
		0,
		seq,
		0,
		ie.NewNodeID(b.LocalIP.String(), "", ""),
		ie.NewCause(cause),
	)
}

func (b *Builder) SessionModificationResponse(seq uint32, smfSEID uint64) message.Message {
	return message.NewSessionModificationResponse(
		0, 0,
		smfSEID,
		seq,
		0,
		ie.NewCause(ie.CauseRequestAccepted),
	)
}

func (b *Builder) SessionModificationResponseReject(seq uint32, smfSEID uint64, cause uint8) message.Message {
	return message.NewSessionModificationResponse(
		0, 0,
		smfSEID,
		seq,
		0,
		ie.NewCause(cause),
	)
}

// SessionDeletionResponse is built from values the caller already read
// out of the session, since spec §4.2 requires the response to be
// materialized before the session handle is detached.
func (b *Builder) SessionDeletionResponse(seq uint32, smfSEID uint64) message.Message {
	return message.NewSessionDeletionResponse(
		0, 0,
		smfSEID,
		seq,
		0,
		ie.NewCause(ie.CauseRequestAccepted),
	)
}

func (b *Builder) SessionDeletionResponseReject(seq uint32, smfSEID uint64, cause uint8) message.Message {
	return message.NewSessionDeletionResponse(
		0, 0,
		smfSEID,
		seq,
		0,
		ie.NewCause(cause),
	)
}
