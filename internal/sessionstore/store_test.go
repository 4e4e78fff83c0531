package sessionstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calee0219/upf/internal/n4model"
)

func TestStore_CreateAndGet(t *testing.T) {
	s := New()
	peer := n4model.NewPeer(nil)

	session := s.Create(42, peer)
	require.NotNil(t, session)
	assert.Equal(t, uint64(42), session.LocalSEID)
	assert.Same(t, peer, session.Peer)

	got, ok := s.Get(42)
	require.True(t, ok)
	assert.Same(t, session, got)
}

func TestStore_Get_Missing(t *testing.T) {
	s := New()
	_, ok := s.Get(1)
	assert.False(t, ok)
}

func TestStore_Delete(t *testing.T) {
	s := New()
	s.Create(1, n4model.NewPeer(nil))
	assert.Equal(t, 1, s.Count())

	s.Delete(1)
	assert.Equal(t, 0, s.Count())
	_, ok := s.Get(1)
	assert.False(t, ok)
}

func TestStore_All(t *testing.T) {
	s := New()
	s.Create(1, n4model.NewPeer(nil))
	s.Create(2, n4model.NewPeer(nil))

	all := s.All()
	assert.Len(t, all, 2)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := uint64(1); i <= 100; i++ {
		wg.Add(1)
		go func(seid uint64) {
			defer wg.Done()
			s.Create(seid, n4model.NewPeer(nil))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, s.Count())
}
