package transaction

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAddr(t *testing.T) *net.UDPAddr {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp", "192.0.2.1:8805")
	require.NoError(t, err)
	return addr
}

func TestTracker_LookupMiss(t *testing.T) {
	tr := NewTracker(time.Minute)
	_, ok := tr.Lookup(testAddr(t), 1)
	assert.False(t, ok)
}

func TestTracker_RememberThenLookup(t *testing.T) {
	tr := NewTracker(time.Minute)
	addr := testAddr(t)
	tr.Remember(addr, 1, []byte("reply"))

	b, ok := tr.Lookup(addr, 1)
	require.True(t, ok)
	assert.Equal(t, []byte("reply"), b)
}

func TestTracker_DistinctSequenceNumbersAreDistinctEntries(t *testing.T) {
	tr := NewTracker(time.Minute)
	addr := testAddr(t)
	tr.Remember(addr, 1, []byte("one"))
	tr.Remember(addr, 2, []byte("two"))

	assert.Equal(t, 2, tr.TrackedCount())
	b1, _ := tr.Lookup(addr, 1)
	b2, _ := tr.Lookup(addr, 2)
	assert.Equal(t, []byte("one"), b1)
	assert.Equal(t, []byte("two"), b2)
}

func TestTracker_DistinctPeersAreDistinctEntries(t *testing.T) {
	tr := NewTracker(time.Minute)
	addr1, err := net.ResolveUDPAddr("udp", "192.0.2.1:8805")
	require.NoError(t, err)
	addr2, err := net.ResolveUDPAddr("udp", "192.0.2.2:8805")
	require.NoError(t, err)

	tr.Remember(addr1, 1, []byte("from-1"))
	_, ok := tr.Lookup(addr2, 1)
	assert.False(t, ok)
}

func TestTracker_Sweep_EvictsExpiredEntries(t *testing.T) {
	tr := NewTracker(10 * time.Millisecond)
	addr := testAddr(t)
	tr.Remember(addr, 1, []byte("reply"))

	time.Sleep(20 * time.Millisecond)
	tr.sweep()

	assert.Equal(t, 0, tr.TrackedCount())
}

func TestTracker_StartExpiryMonitor_StopsOnCancel(t *testing.T) {
	tr := NewTracker(5 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	tr.StartExpiryMonitor(ctx)
	cancel()
	// No assertion beyond not hanging: the monitor goroutine must return
	// promptly once ctx is cancelled, which the test runtime's own
	// goroutine leak detection (if configured) would otherwise catch.
}

func TestXact_CommitBeforeUpdateTx_Fails(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer conn.Close()

	x := NewXact(conn, testAddr(t))
	err = x.Commit()
	assert.Error(t, err)
}

func TestXact_DoubleUpdateTx_Fails(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer conn.Close()

	x := NewXact(conn, testAddr(t))
	require.NoError(t, x.UpdateTx([]byte("one")))
	err = x.UpdateTx([]byte("two"))
	assert.Error(t, err)
}

func TestXact_UpdateTxThenCommit_SendsPayload(t *testing.T) {
	recv, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer recv.Close()

	send, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer send.Close()

	x := NewXact(send, recv.LocalAddr().(*net.UDPAddr))
	require.NoError(t, x.UpdateTx([]byte("payload")))
	require.NoError(t, x.Commit())

	buf := make([]byte, 64)
	recv.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := recv.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(buf[:n]))
}
