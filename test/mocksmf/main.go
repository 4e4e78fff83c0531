// Mock SMF client for end-to-end testing of the N4 core.
// Sends an Association Setup, a Session Establishment, and a Session
// Deletion to a target UPF, printing each response.
//
// Usage:
//
//	go run test/mocksmf/main.go [--addr 127.0.0.1:8805]
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/wmnsk/go-pfcp/ie"
	"github.com/wmnsk/go-pfcp/message"
)

type mockSMF struct {
	addr    string
	conn    *net.UDPConn
	localIP net.IP
	seq     uint32
}

func newMockSMF(addr string) (*mockSMF, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve addr: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &mockSMF{addr: addr, conn: conn, localIP: net.ParseIP("127.0.0.1")}, nil
}

func (s *mockSMF) nextSeq() uint32 {
	s.seq++
	return s.seq
}

func (s *mockSMF) roundTrip(req message.Message) (message.Message, error) {
	b := make([]byte, req.MarshalLen())
	if err := req.MarshalTo(b); err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := s.conn.Write(b); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	buf := make([]byte, 65535)
	s.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := s.conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	resp, err := message.Parse(buf[:n])
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return resp, nil
}

func (s *mockSMF) associationSetup() error {
	req := message.NewAssociationSetupRequest(s.nextSeq(),
		ie.NewNodeID(s.localIP.String(), "", ""),
		ie.NewRecoveryTimeStamp(time.Now()),
	)
	resp, err := s.roundTrip(req)
	if err != nil {
		return err
	}
	log.Printf("AssociationSetup -> %s", resp.MessageTypeName())
	return nil
}

func (s *mockSMF) sessionEstablishment(cpSEID uint64) (uint64, error) {
	createPDR := ie.NewCreatePDR(
		ie.NewPDRID(1),
		ie.NewPrecedence(100),
		ie.NewPDI(
			ie.NewSourceInterface(ie.SrcInterfaceAccess),
			ie.NewFTEID(0x01, 0x11223344, net.ParseIP("10.0.0.1"), nil, 0), // IPv4 flag, TEID, IPv4 addr
		),
		ie.NewFARID(1),
	)
	createFAR := ie.NewCreateFAR(
		ie.NewFARID(1),
		ie.NewApplyAction(0x02), // FORWARD
		ie.NewForwardingParameters(
			ie.NewDestinationInterface(ie.DstInterfaceCore),
		),
	)

	req := message.NewSessionEstablishmentRequest(0, 0,
		0, s.nextSeq(), 0,
		ie.NewNodeID(s.localIP.String(), "", ""),
		ie.NewFSEID(cpSEID, s.localIP, nil),
		createPDR,
		createFAR,
	)

	resp, err := s.roundTrip(req)
	if err != nil {
		return 0, err
	}
	log.Printf("SessionEstablishment -> %s", resp.MessageTypeName())

	est, ok := resp.(*message.SessionEstablishmentResponse)
	if !ok {
		return 0, fmt.Errorf("unexpected response type")
	}
	if est.UPFSEID == nil {
		return 0, fmt.Errorf("no UP F-SEID in response")
	}
	fseid, err := est.UPFSEID.FSEID()
	if err != nil {
		return 0, fmt.Errorf("parse UP F-SEID: %w", err)
	}
	return fseid.SEID, nil
}

func (s *mockSMF) sessionDeletion(upSEID uint64) error {
	req := message.NewSessionDeletionRequest(0, 0, upSEID, s.nextSeq(), 0)
	resp, err := s.roundTrip(req)
	if err != nil {
		return err
	}
	log.Printf("SessionDeletion -> %s", resp.MessageTypeName())
	return nil
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8805", "UDP address of the UPF under test")
	flag.Parse()

	smf, err := newMockSMF(*addr)
	if err != nil {
		log.Fatalf("mock SMF setup failed: %v", err)
	}
	defer smf.conn.Close()

	if err := smf.associationSetup(); err != nil {
		log.Fatalf("association setup failed: %v", err)
	}

	upSEID, err := smf.sessionEstablishment(1001)
	if err != nil {
		log.Fatalf("session establishment failed: %v", err)
	}
	log.Printf("session established, UP SEID=%d", upSEID)

	if err := smf.sessionDeletion(upSEID); err != nil {
		log.Fatalf("session deletion failed: %v", err)
	}
}
