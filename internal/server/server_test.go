package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wmnsk/go-pfcp/ie"
	"github.com/wmnsk/go-pfcp/message"

	"github.com/calee0219/upf/internal/datapath"
	"github.com/calee0219/upf/internal/dispatcher"
	"github.com/calee0219/upf/internal/peerstore"
	"github.com/calee0219/upf/internal/response"
	"github.com/calee0219/upf/internal/sessionstore"
	"github.com/calee0219/upf/internal/transaction"
	"github.com/calee0219/upf/internal/translator"
)

func newTestServer(t *testing.T) (*Server, *net.UDPAddr) {
	t.Helper()
	dp := datapath.NewSimulated()
	d := dispatcher.New(
		sessionstore.New(),
		peerstore.New(),
		sessionstore.NewSEIDAllocator("sequential", 1),
		translator.New(dp, "gtp5g0"),
		response.New(net.ParseIP("127.0.0.1"), time.Now()),
	)
	dedup := transaction.NewTracker(time.Minute)

	// Reserve an ephemeral port by listening once and releasing it; the
	// server then binds that same address in Run.
	probe, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	boundAddr := probe.LocalAddr().(*net.UDPAddr)
	probe.Close()

	return New(boundAddr.String(), d, dedup), boundAddr
}

func dialClient(t *testing.T, to *net.UDPAddr) *net.UDPConn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c, err := net.DialUDP("udp", nil, to)
		if err == nil {
			return c
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server never became dialable")
	return nil
}

func roundTrip(t *testing.T, client *net.UDPConn, req []byte) message.Message {
	t.Helper()
	buf := make([]byte, 65535)
	for attempt := 0; attempt < 20; attempt++ {
		_, err := client.Write(req)
		require.NoError(t, err)
		client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := client.Read(buf)
		if err == nil {
			resp, parseErr := message.Parse(buf[:n])
			require.NoError(t, parseErr)
			return resp
		}
	}
	t.Fatal("no response received within the retry window")
	return nil
}

func TestServer_HeartbeatRoundTrip(t *testing.T) {
	srv, addr := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	client := dialClient(t, addr)
	defer client.Close()

	req := message.NewHeartbeatRequest(1, ie.NewRecoveryTimeStamp(time.Now()))
	b := make([]byte, req.MarshalLen())
	require.NoError(t, req.MarshalTo(b))

	resp := roundTrip(t, client, b)
	_, ok := resp.(*message.HeartbeatResponse)
	assert.True(t, ok)
}

func TestServer_RetransmissionReplaysCachedResponse(t *testing.T) {
	srv, addr := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	client := dialClient(t, addr)
	defer client.Close()

	req := message.NewAssociationSetupRequest(1,
		ie.NewNodeID("10.0.0.1", "", ""),
		ie.NewRecoveryTimeStamp(time.Now()),
	)
	b := make([]byte, req.MarshalLen())
	require.NoError(t, req.MarshalTo(b))

	first := roundTrip(t, client, b)
	firstResp, ok := first.(*message.AssociationSetupResponse)
	require.True(t, ok)

	second := roundTrip(t, client, b)
	secondResp, ok := second.(*message.AssociationSetupResponse)
	require.True(t, ok)

	assert.Equal(t, firstResp.Sequence(), secondResp.Sequence())
	assert.Equal(t, 1, srv.dedup.TrackedCount())
}
