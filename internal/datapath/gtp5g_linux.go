//go:build linux

package datapath

import (
	"fmt"
	"sync"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	log "github.com/sirupsen/logrus"

	"github.com/calee0219/upf/internal/n4model"
)

// gtp5g genetlink family and attribute numbers, per the free5GC gtp5g
// kernel module's uapi header (gtp5g.h). Only the subset this control
// interface needs is reproduced here.
const (
	gtp5gFamilyName = "gtp5g"

	gtp5gCmdAddPdr = 1
	gtp5gCmdGetPdr = 2
	gtp5gCmdDelPdr = 3
	gtp5gCmdAddFar = 4
	gtp5gCmdGetFar = 5
	gtp5gCmdDelFar = 6

	gtp5gAttrLinkName = 1
	gtp5gAttrPdrID    = 2
	gtp5gAttrFarID    = 3
	gtp5gAttrPrecPDI  = 4
)

// GTP5G drives the real kernel module over genetlink. It implements the
// same Datapath interface as Simulated so the dispatcher is agnostic to
// which backend is configured.
type GTP5G struct {
	mu     sync.Mutex
	conn   *genetlink.Conn
	family genetlink.Family

	// Reads (FindPdrByID/FindFarByID/FarGetRelatedPdrs) need a local
	// mirror because GTP5G_CMD_GET* round-trips return kernel-side
	// handles, not the Go structs the translator builds; we shadow the
	// installed rule state so lookups don't require re-decoding kernel
	// netlink attribute blobs on every call.
	mirror *Simulated
}

// NewGTP5G resolves the gtp5g genetlink family and opens a socket.
func NewGTP5G() (*GTP5G, error) {
	conn, err := genetlink.Dial(nil)
	if err != nil {
		return nil, fmt.Errorf("gtp5g: dial genetlink: %w", err)
	}

	family, err := conn.GetFamily(gtp5gFamilyName)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("gtp5g: resolve family %q (is the gtp5g module loaded?): %w", gtp5gFamilyName, err)
	}

	return &GTP5G{
		conn:   conn,
		family: family,
		mirror: NewSimulated(),
	}, nil
}

func (g *GTP5G) send(iface string, cmd uint8, extra func(ae *netlink.AttributeEncoder)) error {
	ae := netlink.NewAttributeEncoder()
	ae.String(gtp5gAttrLinkName, iface)
	if extra != nil {
		extra(ae)
	}
	body, err := ae.Encode()
	if err != nil {
		return fmt.Errorf("gtp5g: encode attributes: %w", err)
	}

	msg := genetlink.Message{
		Header: genetlink.Header{Command: cmd, Version: g.family.Version},
		Data:   body,
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	_, err = g.conn.Execute(msg, g.family.ID, netlink.Request|netlink.Acknowledge)
	if err != nil {
		return fmt.Errorf("gtp5g: genetlink execute cmd=%d: %w", cmd, err)
	}
	return nil
}

func (g *GTP5G) AddPdr(iface string, pdr *n4model.PDR) error {
	if err := g.send(iface, gtp5gCmdAddPdr, func(ae *netlink.AttributeEncoder) {
		ae.Uint16(gtp5gAttrPdrID, pdr.PDRID)
		ae.Uint32(gtp5gAttrPrecPDI, pdr.Precedence)
		if pdr.FARID != 0 {
			ae.Uint32(gtp5gAttrFarID, pdr.FARID)
		}
	}); err != nil {
		return err
	}
	return g.mirror.AddPdr(iface, pdr)
}

func (g *GTP5G) ModPdr(iface string, pdr *n4model.PDR) error {
	if err := g.send(iface, gtp5gCmdAddPdr, func(ae *netlink.AttributeEncoder) {
		ae.Uint16(gtp5gAttrPdrID, pdr.PDRID)
		ae.Uint32(gtp5gAttrPrecPDI, pdr.Precedence)
		if pdr.FARID != 0 {
			ae.Uint32(gtp5gAttrFarID, pdr.FARID)
		}
	}); err != nil {
		return err
	}
	return g.mirror.ModPdr(iface, pdr)
}

func (g *GTP5G) DelPdr(iface string, pdrID uint16) error {
	if err := g.send(iface, gtp5gCmdDelPdr, func(ae *netlink.AttributeEncoder) {
		ae.Uint16(gtp5gAttrPdrID, pdrID)
	}); err != nil {
		return err
	}
	return g.mirror.DelPdr(iface, pdrID)
}

func (g *GTP5G) FindPdrByID(iface string, pdrID uint16) (*n4model.PDR, bool) {
	// TODO: decode GTP5G_CMD_GETPDR replies instead of trusting the
	// mirror once the attribute layout for kernel->user PDR dumps is
	// verified against a live gtp5g module.
	return g.mirror.FindPdrByID(iface, pdrID)
}

func (g *GTP5G) AddFar(iface string, far *n4model.FAR) error {
	if err := g.send(iface, gtp5gCmdAddFar, func(ae *netlink.AttributeEncoder) {
		ae.Uint32(gtp5gAttrFarID, far.FARID)
	}); err != nil {
		return err
	}
	return g.mirror.AddFar(iface, far)
}

func (g *GTP5G) ModFar(iface string, far *n4model.FAR) error {
	if err := g.send(iface, gtp5gCmdAddFar, func(ae *netlink.AttributeEncoder) {
		ae.Uint32(gtp5gAttrFarID, far.FARID)
	}); err != nil {
		return err
	}
	return g.mirror.ModFar(iface, far)
}

func (g *GTP5G) DelFar(iface string, farID uint32) error {
	if err := g.send(iface, gtp5gCmdDelFar, func(ae *netlink.AttributeEncoder) {
		ae.Uint32(gtp5gAttrFarID, farID)
	}); err != nil {
		return err
	}
	return g.mirror.DelFar(iface, farID)
}

func (g *GTP5G) FindFarByID(iface string, farID uint32) (*n4model.FAR, bool) {
	return g.mirror.FindFarByID(iface, farID)
}

func (g *GTP5G) FarGetRelatedPdrs(iface string, farID uint32) []*n4model.PDR {
	return g.mirror.FarGetRelatedPdrs(iface, farID)
}

func (g *GTP5G) PdrSetFarID(iface string, pdr *n4model.PDR, farID uint32) {
	g.mirror.PdrSetFarID(iface, pdr, farID)
	if err := g.ModPdr(iface, pdr); err != nil {
		log.WithError(err).WithField("pdr_id", pdr.PDRID).Warn("gtp5g: failed to push far_id clear to kernel")
	}
}

func (g *GTP5G) Close() error {
	return g.conn.Close()
}
