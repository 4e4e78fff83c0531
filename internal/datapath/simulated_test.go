package datapath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calee0219/upf/internal/n4model"
)

const testIface = "gtp5g0"

func TestSimulated_AddAndFindPdr(t *testing.T) {
	dp := NewSimulated()
	pdr := &n4model.PDR{PDRID: 1, Precedence: 100}

	require.NoError(t, dp.AddPdr(testIface, pdr))

	found, ok := dp.FindPdrByID(testIface, 1)
	require.True(t, ok)
	assert.Equal(t, pdr, found)
}

func TestSimulated_AddPdr_DuplicateFails(t *testing.T) {
	dp := NewSimulated()
	pdr := &n4model.PDR{PDRID: 1}
	require.NoError(t, dp.AddPdr(testIface, pdr))

	err := dp.AddPdr(testIface, &n4model.PDR{PDRID: 1})
	assert.Error(t, err)
}

func TestSimulated_DelPdr_NotFound(t *testing.T) {
	dp := NewSimulated()
	err := dp.DelPdr(testIface, 99)
	assert.Error(t, err)
}

func TestSimulated_DelPdr_RemovesFromRelatedIndex(t *testing.T) {
	dp := NewSimulated()
	require.NoError(t, dp.AddFar(testIface, &n4model.FAR{FARID: 10}))
	require.NoError(t, dp.AddPdr(testIface, &n4model.PDR{PDRID: 1, FARID: 10}))

	require.NoError(t, dp.DelPdr(testIface, 1))

	related := dp.FarGetRelatedPdrs(testIface, 10)
	assert.Empty(t, related)
}

func TestSimulated_RemoveFar_BackClearsRelatedPdrs(t *testing.T) {
	dp := NewSimulated()
	require.NoError(t, dp.AddFar(testIface, &n4model.FAR{FARID: 10}))
	pdr := &n4model.PDR{PDRID: 1, FARID: 10}
	require.NoError(t, dp.AddPdr(testIface, pdr))

	related := dp.FarGetRelatedPdrs(testIface, 10)
	require.Len(t, related, 1)
	for _, p := range related {
		dp.PdrSetFarID(testIface, p, 0)
	}
	require.NoError(t, dp.DelFar(testIface, 10))

	found, ok := dp.FindPdrByID(testIface, 1)
	require.True(t, ok)
	assert.Equal(t, uint32(0), found.FARID)

	_, ok = dp.FindFarByID(testIface, 10)
	assert.False(t, ok)
}

func TestSimulated_ModPdr_RelinksFar(t *testing.T) {
	dp := NewSimulated()
	require.NoError(t, dp.AddFar(testIface, &n4model.FAR{FARID: 10}))
	require.NoError(t, dp.AddFar(testIface, &n4model.FAR{FARID: 20}))
	require.NoError(t, dp.AddPdr(testIface, &n4model.PDR{PDRID: 1, FARID: 10}))

	require.NoError(t, dp.ModPdr(testIface, &n4model.PDR{PDRID: 1, FARID: 20}))

	assert.Empty(t, dp.FarGetRelatedPdrs(testIface, 10))
	assert.Len(t, dp.FarGetRelatedPdrs(testIface, 20), 1)
}

func TestSimulated_ModPdr_NotFound(t *testing.T) {
	dp := NewSimulated()
	err := dp.ModPdr(testIface, &n4model.PDR{PDRID: 1})
	assert.Error(t, err)
}

func TestSimulated_AddFar_DuplicateFails(t *testing.T) {
	dp := NewSimulated()
	require.NoError(t, dp.AddFar(testIface, &n4model.FAR{FARID: 1}))
	err := dp.AddFar(testIface, &n4model.FAR{FARID: 1})
	assert.Error(t, err)
}

func TestSimulated_DelFar_NotFound(t *testing.T) {
	dp := NewSimulated()
	err := dp.DelFar(testIface, 99)
	assert.Error(t, err)
}

func TestSimulated_IfacesAreIndependent(t *testing.T) {
	dp := NewSimulated()
	require.NoError(t, dp.AddPdr("iface-a", &n4model.PDR{PDRID: 1}))

	_, ok := dp.FindPdrByID("iface-b", 1)
	assert.False(t, ok)
}
