// Package server is the N4 UDP transport: it accepts datagrams,
// decodes them with go-pfcp, deduplicates retransmissions, hands the
// decoded message to the dispatcher, and writes the encoded response
// back to the sender. Grounded on the mock UPF test harness's
// run()/handleMessage() shape, generalized from a test double into the
// production listener.
package server

import (
	"context"
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/calee0219/upf/internal/dispatcher"
	"github.com/calee0219/upf/internal/metrics"
	"github.com/calee0219/upf/internal/n4error"
	"github.com/calee0219/upf/internal/pfcp"
	"github.com/calee0219/upf/internal/transaction"
)

// Server is the N4 UDP listener.
type Server struct {
	addr       string
	conn       *net.UDPConn
	dispatcher *dispatcher.Dispatcher
	dedup      *transaction.Tracker
}

// New binds a server to addr without opening the socket yet.
func New(addr string, d *dispatcher.Dispatcher, dedup *transaction.Tracker) *Server {
	return &Server{addr: addr, dispatcher: d, dedup: dedup}
}

// Run opens the UDP socket and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	s.conn, err = net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer s.conn.Close()

	log.WithField("addr", s.addr).Info("N4 listener started")

	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	buf := make([]byte, 65535)
	for {
		n, remoteAddr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Warn("read error")
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		go s.handleDatagram(payload, remoteAddr)
	}
}

func (s *Server) handleDatagram(data []byte, from *net.UDPAddr) {
	req, err := pfcp.Decode(data)
	if err != nil {
		log.WithError(err).WithField("from", from.String()).Warn("malformed PFCP datagram dropped")
		return
	}

	seq := req.Sequence()
	msgTypeName := pfcp.MessageTypeName(req.MessageType())
	metrics.RecordMessage(msgTypeName)

	if cached, ok := s.dedup.Lookup(from, seq); ok {
		metrics.RetransmissionsDeduped.Inc()
		log.WithFields(log.Fields{"from": from.String(), "seq": seq}).Debug("retransmission detected, replaying cached response")
		s.send(cached, from)
		return
	}

	respBytes, err := s.dispatcher.Dispatch(req, from)
	if err != nil {
		metrics.RecordError(string(n4error.KindOf(err)))
		log.WithError(err).WithFields(log.Fields{"from": from.String(), "seq": seq}).Warn("dispatch failed")
		return
	}
	metrics.SetActiveSessions(s.dispatcher.Sessions.Count())
	associated := 0
	for _, peer := range s.dispatcher.Peers.All() {
		if peer.IsAssociated() {
			associated++
		}
	}
	metrics.SetActivePeers(associated)
	if respBytes == nil {
		// Responses (e.g. HeartbeatResponse, SessionReportResponse) carry
		// no reply of their own.
		return
	}

	xact := transaction.NewXact(s.conn, from)
	if err := xact.UpdateTx(respBytes); err != nil {
		log.WithError(err).Error("UpdateTx failed")
		return
	}
	if err := xact.Commit(); err != nil {
		log.WithError(err).Error("Commit failed")
		return
	}

	s.dedup.Remember(from, seq, respBytes)
	metrics.RecordResponse(msgTypeName)
}

func (s *Server) send(b []byte, to *net.UDPAddr) {
	if _, err := s.conn.WriteToUDP(b, to); err != nil {
		log.WithError(err).Warn("failed to replay cached response")
	}
}
