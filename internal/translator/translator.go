// Package translator implements the Rule Translator (C2): it maps PFCP
// Information Elements into datapath PDR/FAR objects and drives the
// Datapath Control Interface (C1) to install, update, and remove them.
package translator

import (
	log "github.com/sirupsen/logrus"
	"github.com/wmnsk/go-pfcp/ie"

	"github.com/calee0219/upf/internal/datapath"
	"github.com/calee0219/upf/internal/n4error"
	"github.com/calee0219/upf/internal/n4model"
)

// fixed GTP-U UDP port, per spec §6.
const gtpuPort = 2152

// Translator owns a named datapath interface and turns IEs into calls
// against it.
type Translator struct {
	dp    datapath.Datapath
	iface string
}

// New binds a translator to the datapath reachable on iface (the
// gtp5g_int_name of the original handler).
func New(dp datapath.Datapath, iface string) *Translator {
	return &Translator{dp: dp, iface: iface}
}

// CreatePdr implements spec §4.1 createPdr. session must already be
// locked by the caller (dispatcher holds the per-session lock for the
// whole handler body).
func (t *Translator) CreatePdr(session *n4model.Session, createPDR *ie.IE) (*n4model.PDR, error) {
	pdr := &n4model.PDR{}

	var havePDRID, havePrecedence, havePDI bool

	for _, child := range createPDR.ChildIEs {
		switch child.Type {
		case ie.PDRID:
			v, err := child.PDRID()
			if err != nil {
				continue
			}
			pdr.PDRID = v
			havePDRID = true
		case ie.Precedence:
			v, err := child.Precedence()
			if err != nil {
				continue
			}
			pdr.Precedence = v
			havePrecedence = true
		case ie.PDI:
			if err := t.fillPDI(&pdr.PDI, child); err != nil {
				return nil, err
			}
			havePDI = true
		case ie.OuterHeaderRemoval:
			v, err := child.OuterHeaderRemovalDescription()
			if err != nil {
				continue
			}
			desc := n4model.OuterHeaderRemovalDesc(v)
			pdr.OuterHeaderRemoval = &desc
		case ie.FARID:
			v, err := child.FARID()
			if err != nil {
				continue
			}
			pdr.FARID = v
		}
	}

	if !havePDRID || !havePrecedence || !havePDI {
		return nil, n4error.New(n4error.InvalidRequest, "createPDR missing PDR ID, Precedence, or PDI")
	}
	if pdr.PDI.SourceInterface == 0 && !sourceInterfacePresent(createPDR) {
		// SourceInterface enum default-zeros to Access; only treat it as
		// missing if the PDI truly carried no Source Interface child IE.
		return nil, n4error.New(n4error.InvalidRequest, "createPDR.PDI missing Source Interface")
	}

	if err := t.dp.AddPdr(t.iface, pdr); err != nil {
		return nil, n4error.Wrap(n4error.DatapathError, "AddPdr failed", err)
	}
	session.AddPDRID(pdr.PDRID)
	return pdr, nil
}

func sourceInterfacePresent(createPDR *ie.IE) bool {
	for _, child := range createPDR.ChildIEs {
		if child.Type != ie.PDI {
			continue
		}
		for _, pdiChild := range child.ChildIEs {
			if pdiChild.Type == ie.SourceInterface {
				return true
			}
		}
	}
	return false
}

func (t *Translator) fillPDI(pdi *n4model.PDI, pdiIE *ie.IE) error {
	for _, child := range pdiIE.ChildIEs {
		switch child.Type {
		case ie.SourceInterface:
			v, err := child.SourceInterface()
			if err != nil {
				continue
			}
			pdi.SourceInterface = n4model.SourceInterface(v)
		case ie.FTEID:
			f, err := child.FTEID()
			if err != nil {
				continue
			}
			fteid, nerr := translateFTEID(f)
			if nerr != nil {
				return nerr
			}
			pdi.LocalFTEID = fteid
		case ie.UEIPAddress:
			u, err := child.UEIPAddress()
			if err != nil {
				continue
			}
			uip, nerr := translateUEIP(u)
			if nerr != nil {
				return nerr
			}
			pdi.UEIPAddress = uip
		}
	}
	return nil
}

// F-TEID flag bits (3GPP TS 29.244 clause 8.2.3).
const (
	fteidFlagV4   = 0x01
	fteidFlagV6   = 0x02
	fteidFlagCHID = 0x08
)

// translateFTEID converts network-order fields into host representation.
// Dual-stack (both v4 and v6 flagged) is explicitly unimplemented per
// spec §4.1 step 3 and §9. Flag bits are read straight off f.Flags
// rather than through named accessors, matching the bitmask style the
// codec's own callers use when rebuilding IEs from decoded fields.
func translateFTEID(f *ie.FTEIDFields) (*n4model.FTEID, error) {
	hasV4 := f.Flags&fteidFlagV4 != 0
	hasV6 := f.Flags&fteidFlagV6 != 0
	if hasV4 && hasV6 {
		return nil, n4error.New(n4error.NotImplemented, "dual-stack F-TEID not supported")
	}
	out := &n4model.FTEID{TEID: f.TEID, ChooseID: f.Flags&fteidFlagCHID != 0}
	if hasV4 {
		out.IPv4 = f.IPv4Address
	}
	if hasV6 {
		out.IPv6 = f.IPv6Address
	}
	return out, nil
}

// UE IP Address flag bits (3GPP TS 29.244 clause 8.2.62).
const (
	ueipFlagV6 = 0x01
	ueipFlagV4 = 0x02
)

func translateUEIP(u *ie.UEIPAddressFields) (*n4model.UEIPAddress, error) {
	hasV4 := u.Flags&ueipFlagV4 != 0
	hasV6 := u.Flags&ueipFlagV6 != 0
	if hasV4 && hasV6 {
		return nil, n4error.New(n4error.NotImplemented, "dual-stack UE IP not supported")
	}
	out := &n4model.UEIPAddress{}
	if hasV4 {
		out.IPv4 = u.IPv4Address
	}
	if hasV6 {
		return nil, n4error.New(n4error.NotImplemented, "IPv6 UE IP not supported")
	}
	return out, nil
}

// Outer Header Creation description bitmap values (3GPP TS 29.244
// clause 8.2.56).
const (
	ohcGTPUIPv4 uint16 = 1 << 0
	ohcGTPUIPv6 uint16 = 1 << 1
	ohcUDPIPv4  uint16 = 1 << 2
	ohcUDPIPv6  uint16 = 1 << 3
)

// CreateFar implements spec §4.1 createFar.
func (t *Translator) CreateFar(createFAR *ie.IE) (*n4model.FAR, error) {
	far := &n4model.FAR{}
	var haveFARID, haveApplyAction bool

	for _, child := range createFAR.ChildIEs {
		switch child.Type {
		case ie.FARID:
			v, err := child.FARID()
			if err != nil {
				continue
			}
			far.FARID = v
			haveFARID = true
		case ie.ApplyAction:
			v, err := child.ApplyAction()
			if err != nil {
				continue
			}
			far.ApplyAction = v[0]
			haveApplyAction = true
		case ie.ForwardingParameters:
			fp, err := t.translateForwardingParameters(child)
			if err != nil {
				return nil, err
			}
			far.ForwardingParameters = fp
		}
	}

	if !haveFARID || !haveApplyAction {
		return nil, n4error.New(n4error.InvalidRequest, "createFAR missing FAR ID or Apply Action")
	}

	if err := t.dp.AddFar(t.iface, far); err != nil {
		return nil, n4error.Wrap(n4error.DatapathError, "AddFar failed", err)
	}
	return far, nil
}

func (t *Translator) translateForwardingParameters(fpIE *ie.IE) (*n4model.ForwardingParameters, error) {
	fp := &n4model.ForwardingParameters{}
	for _, child := range fpIE.ChildIEs {
		switch child.Type {
		case ie.DestinationInterface:
			v, err := child.DestinationInterface()
			if err != nil {
				continue
			}
			fp.DestinationInterface = n4model.SourceInterface(v)
		case ie.NetworkInstance:
			v, err := child.NetworkInstance()
			if err != nil {
				continue
			}
			fp.NetworkInstance = v
		case ie.OuterHeaderCreation:
			ohc, err := child.OuterHeaderCreation()
			if err != nil {
				continue
			}
			created, nerr := translateOuterHeaderCreation(ohc)
			if nerr != nil {
				return nil, nerr
			}
			fp.OuterHeaderCreation = created
		}
	}
	return fp, nil
}

// translateOuterHeaderCreation implements the branch logic of spec
// §4.1 createFar: GTP-U/IPv4 gets a fixed UDP port, UDP/IPv4 takes the
// port from the IE; every other combination is NotImplemented.
func translateOuterHeaderCreation(ohc *ie.OuterHeaderCreationFields) (*n4model.OuterHeaderCreation, error) {
	switch {
	case ohc.Description&ohcGTPUIPv4 != 0:
		return &n4model.OuterHeaderCreation{
			Description: ohc.Description,
			TEID:        ohc.TEID,
			IPv4:        ohc.IPv4Address,
			Port:        gtpuPort,
		}, nil
	case ohc.Description&ohcUDPIPv4 != 0:
		return &n4model.OuterHeaderCreation{
			Description: ohc.Description,
			IPv4:        ohc.IPv4Address,
			Port:        uint16(ohc.PortNumber),
		}, nil
	default:
		return nil, n4error.New(n4error.NotImplemented, "outer header creation combination not supported")
	}
}

// UpdatePdr implements spec §4.1 updatePdr: lookup by id, merge
// present fields only, submit via ModPdr.
func (t *Translator) UpdatePdr(updatePDR *ie.IE) error {
	var pdrID uint16
	var havePDRID bool
	for _, child := range updatePDR.ChildIEs {
		if child.Type == ie.PDRID {
			v, err := child.PDRID()
			if err != nil {
				continue
			}
			pdrID = v
			havePDRID = true
			break
		}
	}
	if !havePDRID {
		return n4error.New(n4error.InvalidRequest, "updatePDR missing PDR ID")
	}

	existing, ok := t.dp.FindPdrByID(t.iface, pdrID)
	if !ok {
		return n4error.New(n4error.NotFound, "updatePDR: pdr not found")
	}
	// Merge into a copy so ModPdr still sees the stored FAR id and can
	// move the PDR in the datapath's FAR back-index when it changes.
	updated := *existing
	pdr := &updated

	for _, child := range updatePDR.ChildIEs {
		switch child.Type {
		case ie.Precedence:
			if v, err := child.Precedence(); err == nil {
				pdr.Precedence = v
			}
		case ie.PDI:
			_ = t.fillPDI(&pdr.PDI, child)
		case ie.OuterHeaderRemoval:
			if v, err := child.OuterHeaderRemovalDescription(); err == nil {
				desc := n4model.OuterHeaderRemovalDesc(v)
				pdr.OuterHeaderRemoval = &desc
			}
		case ie.FARID:
			if v, err := child.FARID(); err == nil {
				pdr.FARID = v
			}
		}
	}

	if err := t.dp.ModPdr(t.iface, pdr); err != nil {
		return n4error.Wrap(n4error.DatapathError, "ModPdr failed", err)
	}
	return nil
}

// UpdateFar implements spec §4.1 updateFar. The Outer Header Creation
// branch below keys on the IE being present in ChildIEs (decoded,
// non-nil), which is how go-pfcp surfaces presence — not on a raw
// pointer-truthiness check against an uninitialized C struct field, the
// bug spec §9 flags in the source this is modeled on.
func (t *Translator) UpdateFar(updateFAR *ie.IE) error {
	var farID uint32
	var haveFARID bool
	for _, child := range updateFAR.ChildIEs {
		if child.Type == ie.FARID {
			v, err := child.FARID()
			if err != nil {
				continue
			}
			farID = v
			haveFARID = true
			break
		}
	}
	if !haveFARID {
		return n4error.New(n4error.InvalidRequest, "updateFAR missing FAR ID")
	}

	far, ok := t.dp.FindFarByID(t.iface, farID)
	if !ok {
		return n4error.New(n4error.NotFound, "updateFAR: far not found")
	}

	for _, child := range updateFAR.ChildIEs {
		switch child.Type {
		case ie.ApplyAction:
			if v, err := child.ApplyAction(); err == nil {
				far.ApplyAction = v[0]
			}
		case ie.UpdateForwardingParameters:
			if far.ForwardingParameters == nil {
				far.ForwardingParameters = &n4model.ForwardingParameters{}
			}
			for _, fpChild := range child.ChildIEs {
				switch fpChild.Type {
				case ie.DestinationInterface:
					if v, err := fpChild.DestinationInterface(); err == nil {
						far.ForwardingParameters.DestinationInterface = n4model.SourceInterface(v)
					}
				case ie.OuterHeaderCreation:
					if ohc, err := fpChild.OuterHeaderCreation(); err == nil {
						if created, nerr := translateOuterHeaderCreation(ohc); nerr == nil {
							far.ForwardingParameters.OuterHeaderCreation = created
						}
					}
				}
			}
		}
	}

	if err := t.dp.ModFar(t.iface, far); err != nil {
		return n4error.Wrap(n4error.DatapathError, "ModFar failed", err)
	}
	return nil
}

// RemovePdr implements spec §4.1 removePdr: ownership must be checked
// against the session before the datapath is touched.
func (t *Translator) RemovePdr(session *n4model.Session, pdrID uint16) error {
	if pdrID == 0 {
		return n4error.New(n4error.InvalidRequest, "removePDR: pdrId 0 is invalid")
	}
	if !session.OwnsPDR(pdrID) {
		log.WithFields(log.Fields{"pdr_id": pdrID, "seid": session.LocalSEID}).Warn("removePDR: pdr not owned by session")
		return n4error.New(n4error.NotOwned, "pdr not owned by session")
	}
	if err := t.dp.DelPdr(t.iface, pdrID); err != nil {
		return n4error.Wrap(n4error.DatapathError, "DelPdr failed", err)
	}
	session.RemovePDRID(pdrID)
	return nil
}

// RemoveFar implements spec §4.1 removeFar: back-clear every PDR that
// still points at farId before deleting the FAR, preserving invariant 3.
func (t *Translator) RemoveFar(farID uint32) error {
	related := t.dp.FarGetRelatedPdrs(t.iface, farID)
	for _, pdr := range related {
		t.dp.PdrSetFarID(t.iface, pdr, 0)
	}
	if err := t.dp.DelFar(t.iface, farID); err != nil {
		return n4error.Wrap(n4error.DatapathError, "DelFar failed", err)
	}
	return nil
}
