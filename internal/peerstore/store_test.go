package peerstore

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(t *testing.T, s string) *net.UDPAddr {
	t.Helper()
	a, err := net.ResolveUDPAddr("udp", s)
	require.NoError(t, err)
	return a
}

func TestStore_GetOrCreate_NewPeerIsIdle(t *testing.T) {
	s := New()
	peer := s.GetOrCreate(addr(t, "192.0.2.1:8805"))
	require.NotNil(t, peer)
	assert.False(t, peer.IsAssociated())
}

func TestStore_GetOrCreate_ReturnsSameInstance(t *testing.T) {
	s := New()
	a := addr(t, "192.0.2.1:8805")

	p1 := s.GetOrCreate(a)
	p2 := s.GetOrCreate(a)
	assert.Same(t, p1, p2)
}

func TestStore_Get_Missing(t *testing.T) {
	s := New()
	_, ok := s.Get(addr(t, "192.0.2.1:8805"))
	assert.False(t, ok)
}

func TestStore_Get_Found(t *testing.T) {
	s := New()
	a := addr(t, "192.0.2.1:8805")
	created := s.GetOrCreate(a)

	found, ok := s.Get(a)
	require.True(t, ok)
	assert.Same(t, created, found)
}

func TestStore_All(t *testing.T) {
	s := New()
	s.GetOrCreate(addr(t, "192.0.2.1:8805"))
	s.GetOrCreate(addr(t, "192.0.2.2:8805"))

	assert.Len(t, s.All(), 2)
}

func TestStore_DistinctAddressesAreDistinctPeers(t *testing.T) {
	s := New()
	p1 := s.GetOrCreate(addr(t, "192.0.2.1:8805"))
	p2 := s.GetOrCreate(addr(t, "192.0.2.2:8805"))
	assert.NotSame(t, p1, p2)
}
