package translator

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wmnsk/go-pfcp/ie"

	"github.com/calee0219/upf/internal/datapath"
	"github.com/calee0219/upf/internal/n4error"
	"github.com/calee0219/upf/internal/n4model"
)

const testIface = "gtp5g0"

func newTranslator() (*Translator, datapath.Datapath) {
	dp := datapath.NewSimulated()
	return New(dp, testIface), dp
}

func TestCreatePdr_HappyPath(t *testing.T) {
	tr, dp := newTranslator()
	session := n4model.NewSession(1, nil)

	createPDR := ie.NewCreatePDR(
		ie.NewPDRID(1),
		ie.NewPrecedence(100),
		ie.NewPDI(
			ie.NewSourceInterface(ie.SrcInterfaceAccess),
			ie.NewFTEID(0x01, 0x11223344, net.ParseIP("10.0.0.1"), nil, 0),
		),
		ie.NewFARID(10),
	)

	pdr, err := tr.CreatePdr(session, createPDR)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), pdr.PDRID)
	assert.Equal(t, uint32(100), pdr.Precedence)
	assert.True(t, session.OwnsPDR(1))

	found, ok := dp.FindPdrByID(testIface, 1)
	require.True(t, ok)
	assert.Equal(t, pdr, found)
}

func TestCreatePdr_MissingPDRID(t *testing.T) {
	tr, _ := newTranslator()
	session := n4model.NewSession(1, nil)

	createPDR := ie.NewCreatePDR(
		ie.NewPrecedence(100),
		ie.NewPDI(ie.NewSourceInterface(ie.SrcInterfaceAccess)),
	)

	_, err := tr.CreatePdr(session, createPDR)
	require.Error(t, err)
	assert.True(t, n4error.Is(err, n4error.InvalidRequest))
}

func TestCreatePdr_MissingPDI(t *testing.T) {
	tr, _ := newTranslator()
	session := n4model.NewSession(1, nil)

	createPDR := ie.NewCreatePDR(
		ie.NewPDRID(1),
		ie.NewPrecedence(100),
	)

	_, err := tr.CreatePdr(session, createPDR)
	require.Error(t, err)
	assert.True(t, n4error.Is(err, n4error.InvalidRequest))
}

func TestCreateFar_HappyPath(t *testing.T) {
	tr, dp := newTranslator()

	createFAR := ie.NewCreateFAR(
		ie.NewFARID(10),
		ie.NewApplyAction(0x02),
		ie.NewForwardingParameters(
			ie.NewDestinationInterface(ie.DstInterfaceCore),
		),
	)

	far, err := tr.CreateFar(createFAR)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), far.FARID)

	found, ok := dp.FindFarByID(testIface, 10)
	require.True(t, ok)
	assert.Equal(t, far, found)
}

func TestCreateFar_MissingApplyAction(t *testing.T) {
	tr, _ := newTranslator()
	createFAR := ie.NewCreateFAR(ie.NewFARID(10))

	_, err := tr.CreateFar(createFAR)
	require.Error(t, err)
	assert.True(t, n4error.Is(err, n4error.InvalidRequest))
}

func TestUpdatePdr_NotFound(t *testing.T) {
	tr, _ := newTranslator()
	updatePDR := ie.NewUpdatePDR(ie.NewPDRID(99), ie.NewPrecedence(5))

	err := tr.UpdatePdr(updatePDR)
	require.Error(t, err)
	assert.True(t, n4error.Is(err, n4error.NotFound))
}

func TestUpdatePdr_MergesPrecedenceOnly(t *testing.T) {
	tr, dp := newTranslator()
	session := n4model.NewSession(1, nil)

	createPDR := ie.NewCreatePDR(
		ie.NewPDRID(1),
		ie.NewPrecedence(100),
		ie.NewPDI(ie.NewSourceInterface(ie.SrcInterfaceAccess)),
	)
	_, err := tr.CreatePdr(session, createPDR)
	require.NoError(t, err)

	updatePDR := ie.NewUpdatePDR(ie.NewPDRID(1), ie.NewPrecedence(42))
	require.NoError(t, tr.UpdatePdr(updatePDR))

	found, ok := dp.FindPdrByID(testIface, 1)
	require.True(t, ok)
	assert.Equal(t, uint32(42), found.Precedence)
	assert.Equal(t, n4model.SourceInterface(ie.SrcInterfaceAccess), found.PDI.SourceInterface)
}

func TestRemovePdr_NotOwned(t *testing.T) {
	tr, dp := newTranslator()
	owner := n4model.NewSession(1, nil)
	other := n4model.NewSession(2, nil)

	require.NoError(t, dp.AddPdr(testIface, &n4model.PDR{PDRID: 1}))
	owner.AddPDRID(1)

	err := tr.RemovePdr(other, 1)
	require.Error(t, err)
	assert.True(t, n4error.Is(err, n4error.NotOwned))

	_, ok := dp.FindPdrByID(testIface, 1)
	assert.True(t, ok, "pdr must not be removed when ownership check fails")
}

func TestRemovePdr_ZeroIDInvalid(t *testing.T) {
	tr, _ := newTranslator()
	session := n4model.NewSession(1, nil)

	err := tr.RemovePdr(session, 0)
	require.Error(t, err)
	assert.True(t, n4error.Is(err, n4error.InvalidRequest))
}

func TestRemovePdr_Owned(t *testing.T) {
	tr, dp := newTranslator()
	session := n4model.NewSession(1, nil)
	require.NoError(t, dp.AddPdr(testIface, &n4model.PDR{PDRID: 1}))
	session.AddPDRID(1)

	require.NoError(t, tr.RemovePdr(session, 1))
	assert.False(t, session.OwnsPDR(1))

	_, ok := dp.FindPdrByID(testIface, 1)
	assert.False(t, ok)
}

func TestRemoveFar_BackClearsRelatedPdrs(t *testing.T) {
	tr, dp := newTranslator()
	require.NoError(t, dp.AddFar(testIface, &n4model.FAR{FARID: 10}))
	require.NoError(t, dp.AddPdr(testIface, &n4model.PDR{PDRID: 1, FARID: 10}))

	require.NoError(t, tr.RemoveFar(10))

	found, ok := dp.FindPdrByID(testIface, 1)
	require.True(t, ok)
	assert.Equal(t, uint32(0), found.FARID)
}

func TestCreatePdr_DualStackFTEIDNotImplemented(t *testing.T) {
	tr, _ := newTranslator()
	session := n4model.NewSession(1, nil)

	createPDR := ie.NewCreatePDR(
		ie.NewPDRID(1),
		ie.NewPrecedence(100),
		ie.NewPDI(
			ie.NewSourceInterface(ie.SrcInterfaceAccess),
			ie.NewFTEID(0x03, 0x11223344, net.ParseIP("10.0.0.1"), net.ParseIP("::1"), 0),
		),
	)

	_, err := tr.CreatePdr(session, createPDR)
	require.Error(t, err)
	assert.True(t, n4error.Is(err, n4error.NotImplemented))
}
