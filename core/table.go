package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/encodeous/dsdvsim/state"
)

var ErrDuplicateDestination = errors.New("destination already present in routing table")

// Row is one destination's route record.
type Row struct {
	Destination state.NodeId
	NextHop     state.NodeId
	Cost        state.Cost
	Seqno       state.Seqno
	Changed     bool // set when created or mutated, drained by GetChanges
}

func (r Row) String() string {
	return fmt.Sprintf("%s via (nh: %s, cost: %s, seqno: %s)", r.Destination, r.NextHop, r.Cost, r.Seqno)
}

// RoutingTable holds the best known route to every destination for one host.
// The first row is always the owner's self-route. A table exclusively owns
// its rows; anything adopted from another table is copied.
//
// A RoutingTable is not safe for concurrent use.
type RoutingTable struct {
	rows        []Row
	brokenLinks bool
	obs         TableObserver
}

// NewRoutingTable creates a table containing only the self-route of owner.
func NewRoutingTable(owner state.NodeId) *RoutingTable {
	return &RoutingTable{
		rows: []Row{{
			Destination: owner,
			NextHop:     owner,
			Cost:        state.Finite(0),
			Seqno:       state.Seqno{Owner: owner},
			Changed:     true,
		}},
		obs: discardObserver{},
	}
}

// SetObserver attaches an observer that receives every table decision.
func (t *RoutingTable) SetObserver(obs TableObserver) {
	if obs == nil {
		obs = discardObserver{}
	}
	t.obs = obs
}

func (t *RoutingTable) Self() state.NodeId {
	return t.rows[0].Destination
}

func (t *RoutingTable) Len() int {
	return len(t.rows)
}

func (t *RoutingTable) indexOf(dst state.NodeId) int {
	return slices.IndexFunc(t.rows, func(r Row) bool {
		return r.Destination == dst
	})
}

// Insert appends a new route. The table is left unchanged and
// ErrDuplicateDestination is returned if dst is already known.
func (t *RoutingTable) Insert(dst, nh state.NodeId, cost state.Cost, seqno state.Seqno) error {
	if t.indexOf(dst) != -1 {
		return fmt.Errorf("insert %s: %w", dst, ErrDuplicateDestination)
	}
	t.rows = append(t.rows, Row{
		Destination: dst,
		NextHop:     nh,
		Cost:        cost,
		Seqno:       seqno,
		Changed:     true,
	})
	return nil
}

// Remove deletes the route to dst. Unknown destinations and the self-route are
// ignored.
func (t *RoutingTable) Remove(dst state.NodeId) {
	idx := t.indexOf(dst)
	if idx <= 0 {
		return
	}
	t.rows = slices.Delete(t.rows, idx, idx+1)
}

func (t *RoutingTable) GetEntry(dst state.NodeId) (Row, bool) {
	idx := t.indexOf(dst)
	if idx == -1 {
		return Row{}, false
	}
	return t.rows[idx], true
}

// GetCost returns the cost to dst, or state.Infinite if dst is unknown.
func (t *RoutingTable) GetCost(dst state.NodeId) state.Cost {
	if row, ok := t.GetEntry(dst); ok {
		return row.Cost
	}
	return state.Infinite
}

func (t *RoutingTable) GetNextHop(dst state.NodeId) (state.NodeId, bool) {
	if row, ok := t.GetEntry(dst); ok {
		return row.NextHop, true
	}
	return "", false
}

// Entries returns a copy of every row, self-route first.
func (t *RoutingTable) Entries() []Row {
	return slices.Clone(t.rows)
}

// BrokenLinks reports whether a link broke or recovered since the flag was
// last cleared. It signals that an advertisement should not wait.
func (t *RoutingTable) BrokenLinks() bool {
	return t.brokenLinks
}

func (t *RoutingTable) ClearBrokenLinks() {
	t.brokenLinks = false
}

// AdvanceSeqno stamps the self-route with a fresh, even sequence number.
func (t *RoutingTable) AdvanceSeqno() state.Seqno {
	self := &t.rows[0]
	self.Seqno.Counter += state.SelfSeqnoStep
	self.Changed = true
	return self.Seqno
}

// Update merges a neighbour's table into this one. The first row of other
// identifies the neighbour, and link is the cost of reaching it. other is
// only read.
func (t *RoutingTable) Update(other *RoutingTable, link float64) {
	if other == nil || len(other.rows) == 0 {
		return
	}
	neigh := other.rows[0]
	self := t.Self()
	if neigh.Destination == self {
		return
	}

	neighChanged := false
	if cur, ok := t.GetEntry(neigh.Destination); !ok {
		// new neighbour, it is reachable directly
		_ = t.Insert(neigh.Destination, neigh.Destination, state.Finite(link), neigh.Seqno)
		t.obs.Log(RouteAdded, "new neighbour", "neigh", neigh.Destination, "cost", link)
		neighChanged = true
	} else {
		neighChanged = neigh.Seqno.Newer(cur.Seqno)
	}

	for _, adv := range other.rows {
		if adv.Destination == self {
			if adv.Seqno.Broken() {
				t.brokenLinks = true
				t.obs.Log(SelfUnreachable, "neighbour lost its route to us", "neigh", neigh.Destination, "seqno", adv.Seqno)
			}
			// the self-route is never replaced by a neighbour's view of us
			continue
		}

		cost := adv.Cost.Add(link)
		idx := t.indexOf(adv.Destination)
		if idx == -1 {
			_ = t.Insert(adv.Destination, neigh.Destination, cost, adv.Seqno)
			t.obs.Log(RouteAdded, "new destination", "dst", adv.Destination, "nh", neigh.Destination, "cost", cost)
			continue
		}

		cur := &t.rows[idx]
		switch {
		case cur.NextHop == neigh.Destination && neighChanged && adv.Seqno.Counter >= cur.Seqno.Counter:
			// existing path through a neighbour whose link changed, refresh it.
			// the seqno follows the advertisement so parity matches the cost.
			cur.Cost = cost
			cur.Seqno = adv.Seqno
			cur.Changed = true
			t.obs.Log(RouteRefreshed, "refreshed route", "dst", cur.Destination, "cost", cost)
		case adv.Seqno.Newer(cur.Seqno):
			if cur.Cost.IsInf() && !adv.Cost.IsInf() {
				t.brokenLinks = true // recovered, advertise quickly
			}
			if adv.Cost.IsInf() {
				cost = state.Infinite
				t.brokenLinks = true
			}
			t.replace(cur, neigh.Destination, cost, adv.Seqno)
		case adv.Seqno.Counter == cur.Seqno.Counter && cost.Less(cur.Cost):
			t.replace(cur, neigh.Destination, cost, adv.Seqno)
		default:
			t.obs.Log(RouteIgnored, "ignored advertisement", "dst", adv.Destination, "from", neigh.Destination, "seqno", adv.Seqno, "cost", cost)
		}
	}
}

func (t *RoutingTable) replace(cur *Row, nh state.NodeId, cost state.Cost, seqno state.Seqno) {
	old := *cur
	*cur = Row{
		Destination: old.Destination,
		NextHop:     nh,
		Cost:        cost,
		Seqno:       seqno,
		Changed:     true,
	}
	t.obs.Log(RouteReplaced, "replaced route", "old", old, "new", *cur)
}

// SetRouteBroken invalidates every route whose next hop is lost.
func (t *RoutingTable) SetRouteBroken(lost state.NodeId) {
	for i := 1; i < len(t.rows); i++ {
		row := &t.rows[i]
		if row.NextHop != lost {
			continue
		}
		row.Cost = state.Infinite
		row.Seqno = row.Seqno.Break()
		row.Changed = true
		t.brokenLinks = true
		t.obs.Log(RouteBroken, "route broken", "dst", row.Destination, "via", lost, "seqno", row.Seqno)
	}
}

// GetChanges returns a new table with the self-route followed by every
// changed row, and clears the changed flags.
func (t *RoutingTable) GetChanges() *RoutingTable {
	out := &RoutingTable{
		rows: make([]Row, 0, 1+t.NumberOfChanges()),
		obs:  discardObserver{},
	}
	for i := range t.rows {
		if i != 0 && !t.rows[i].Changed {
			continue
		}
		out.rows = append(out.rows, t.rows[i])
		t.rows[i].Changed = false
	}
	return out
}

// NumberOfChanges counts changed rows without clearing them.
func (t *RoutingTable) NumberOfChanges() int {
	n := 0
	for _, row := range t.rows {
		if row.Changed {
			n++
		}
	}
	return n
}

// Snapshot returns a deep copy of the whole table, suitable for a full dump.
func (t *RoutingTable) Snapshot() *RoutingTable {
	return &RoutingTable{
		rows: slices.Clone(t.rows),
		obs:  discardObserver{},
	}
}

func (t *RoutingTable) String() string {
	out := make([]string, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, row.String())
	}
	return strings.Join(out, "\n")
}
