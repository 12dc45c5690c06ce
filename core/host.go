package core

import (
	"math"
	"net/netip"

	"github.com/encodeous/dsdvsim/state"
	"github.com/gaissmai/bart"
)

type Position struct {
	X, Y float64
}

func (p Position) DistanceTo(o Position) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// Host is a simulated node. It owns exactly one routing table, and a
// forwarding table derived from it that data packets are looked up in.
type Host struct {
	Id         state.NodeId
	Addr       netip.Addr
	Pos        Position
	Static     bool
	Table      *RoutingTable
	Forward    bart.Table[state.NodeId]
	Neighbours map[state.NodeId]struct{}

	waypoint   Position
	pause      int
	fwdChanged bool
}

func NewHost(cfg state.HostCfg) *Host {
	return &Host{
		Id:         cfg.Id,
		Addr:       cfg.Address,
		Pos:        Position{cfg.X, cfg.Y},
		Static:     cfg.Static,
		Table:      NewRoutingTable(cfg.Id),
		Neighbours: make(map[state.NodeId]struct{}),
		waypoint:   Position{cfg.X, cfg.Y},
		fwdChanged: true,
	}
}

func (h *Host) DistanceTo(o *Host) float64 {
	return h.Pos.DistanceTo(o.Pos)
}

func (h *Host) IsNeighbour(id state.NodeId) bool {
	_, ok := h.Neighbours[id]
	return ok
}

// Receive merges an advertisement sent by from.
func (h *Host) Receive(from *Host, adv *RoutingTable) {
	h.Table.Update(adv, h.DistanceTo(from))
	h.fwdChanged = true
}

// LinkLost invalidates every route through the lost neighbour.
func (h *Host) LinkLost(lost state.NodeId) {
	delete(h.Neighbours, lost)
	h.Table.SetRouteBroken(lost)
	h.fwdChanged = true
}

// RebuildForwarding installs every reachable destination into the forwarding
// table. addrs resolves a destination to its address.
func (h *Host) RebuildForwarding(addrs func(state.NodeId) (netip.Addr, bool)) {
	if !h.fwdChanged {
		return
	}
	h.Forward = bart.Table[state.NodeId]{}
	for _, row := range h.Table.Entries() {
		if row.Destination == h.Id || row.Cost.IsInf() {
			continue
		}
		addr, ok := addrs(row.Destination)
		if !ok {
			continue
		}
		h.Forward.Insert(state.AddrToPrefix(addr), row.NextHop)
	}
	h.fwdChanged = false
}

func (h *Host) NextHopFor(dst netip.Addr) (state.NodeId, bool) {
	return h.Forward.Lookup(dst)
}

// move advances the host towards its waypoint. pick is called for a new
// waypoint once the current one is reached.
func (h *Host) move(speed float64, pause int, pick func() Position) {
	if h.Static || speed <= 0 {
		return
	}
	if h.pause > 0 {
		h.pause--
		return
	}
	d := h.Pos.DistanceTo(h.waypoint)
	if d <= speed {
		h.Pos = h.waypoint
		h.pause = pause
		h.waypoint = pick()
		return
	}
	h.Pos.X += (h.waypoint.X - h.Pos.X) / d * speed
	h.Pos.Y += (h.waypoint.Y - h.Pos.Y) / d * speed
}
