// Package transaction is the Transaction interface (C6): it attaches a
// built response to an in-flight request and sends it, and deduplicates
// SMF-side retransmissions of a request already committed once.
//
// This inverts the role the collaborator plays in an SMF-side replay
// tool: there, a TransactionTracker tracks requests this process sent
// and is waiting on responses for, retransmitting on timeout. Here, the
// UPF is the one receiving (and being retransmitted) requests, so the
// tracker instead remembers sequence numbers already committed per
// peer and replays the cached response rather than re-running
// createPdr/createFar a second time, which would double-count
// already-installed rules.
package transaction

import (
	"context"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/calee0219/upf/internal/n4error"
)

type dedupKey struct {
	addr string
	seq  uint32
}

type cachedReply struct {
	response  []byte
	createdAt time.Time
}

// Tracker deduplicates retransmitted requests by (peer address,
// sequence number) and caches the committed response for replay.
type Tracker struct {
	mu   sync.Mutex
	seen map[dedupKey]*cachedReply
	ttl  time.Duration
}

// NewTracker creates a dedup tracker. ttl bounds how long a committed
// response is kept around for retransmission replay before it is
// evicted — the same order of magnitude as the SMF's own Xact
// retransmission timeout.
func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{seen: make(map[dedupKey]*cachedReply), ttl: ttl}
}

// Lookup reports whether (addr, seq) was already committed, returning
// the cached response bytes to replay verbatim without touching the
// dispatcher again.
func (t *Tracker) Lookup(addr *net.UDPAddr, seq uint32) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.seen[dedupKey{addr: addr.String(), seq: seq}]
	if !ok {
		return nil, false
	}
	return entry.response, true
}

// Remember caches a committed response for future retransmission replay.
func (t *Tracker) Remember(addr *net.UDPAddr, seq uint32, response []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[dedupKey{addr: addr.String(), seq: seq}] = &cachedReply{
		response:  response,
		createdAt: time.Now(),
	}
}

// StartExpiryMonitor periodically sweeps entries older than the TTL.
func (t *Tracker) StartExpiryMonitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(t.ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.sweep()
			}
		}
	}()
}

func (t *Tracker) sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-t.ttl)
	for k, entry := range t.seen {
		if entry.createdAt.Before(cutoff) {
			delete(t.seen, k)
		}
	}
}

// TrackedCount returns the number of cached replies, for diagnostics.
func (t *Tracker) TrackedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// Xact is a single PFCP transaction's reply path: it accepts exactly
// one UpdateTx before Commit, per spec §6 and invariant 5.
type Xact struct {
	mu      sync.Mutex
	conn    *net.UDPConn
	addr    *net.UDPAddr
	updated bool
	payload []byte
}

// NewXact binds a transaction to the socket and peer address a reply
// must be written to.
func NewXact(conn *net.UDPConn, addr *net.UDPAddr) *Xact {
	return &Xact{conn: conn, addr: addr}
}

// UpdateTx attaches the built response bytes. A second call fails with
// TransactionError: a single transaction accepts exactly one UpdateTx.
func (x *Xact) UpdateTx(payload []byte) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.updated {
		return n4error.New(n4error.TransactionError, "UpdateTx called twice on the same transaction")
	}
	x.payload = payload
	x.updated = true
	return nil
}

// Commit sends the attached response and finalizes the transaction.
func (x *Xact) Commit() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.updated {
		return n4error.New(n4error.TransactionError, "Commit called before UpdateTx")
	}
	if _, err := x.conn.WriteToUDP(x.payload, x.addr); err != nil {
		return n4error.Wrap(n4error.TransactionError, "write response", err)
	}
	log.WithFields(log.Fields{"to": x.addr.String(), "bytes": len(x.payload)}).Debug("transaction committed")
	return nil
}
