// Package datapath defines the control interface (C1) that the rule
// translator drives, and provides a default in-process implementation
// plus (on Linux) a genetlink-backed client of the real gtp5g kernel
// module.
package datapath

import "github.com/calee0219/upf/internal/n4model"

// Datapath is the control-plane API a packet-forwarding backend must
// expose. Calls may block (e.g. a kernel netlink round-trip) and must
// be safe for concurrent use across distinct rule ids.
type Datapath interface {
	AddPdr(iface string, pdr *n4model.PDR) error
	ModPdr(iface string, pdr *n4model.PDR) error
	DelPdr(iface string, pdrID uint16) error
	FindPdrByID(iface string, pdrID uint16) (*n4model.PDR, bool)

	AddFar(iface string, far *n4model.FAR) error
	ModFar(iface string, far *n4model.FAR) error
	DelFar(iface string, farID uint32) error
	FindFarByID(iface string, farID uint32) (*n4model.FAR, bool)

	// FarGetRelatedPdrs returns the PDRs currently pointing at farID,
	// the weak back-index described in spec §9.
	FarGetRelatedPdrs(iface string, farID uint32) []*n4model.PDR

	// PdrSetFarID mutates pdr.FARID in place and keeps the related-PDR
	// back-index on the old and new FAR consistent.
	PdrSetFarID(iface string, pdr *n4model.PDR, farID uint32)

	Close() error
}
