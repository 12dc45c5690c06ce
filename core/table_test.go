package core

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/encodeous/dsdvsim/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoutingTable(t *testing.T) {
	tbl := NewRoutingTable("a")
	assert.Equal(t, state.NodeId("a"), tbl.Self())
	AssertRows(t, []Row{
		{Destination: "a", NextHop: "a", Cost: fin(0), Seqno: seq("a", 0), Changed: true},
	}, tbl.Entries())
	AssertInvariants(t, tbl)
	assert.False(t, tbl.BrokenLinks())
}

func TestInsertDuplicate(t *testing.T) {
	tbl := NewRoutingTable("a")
	require.NoError(t, tbl.Insert("b", "b", fin(1), seq("b", 0)))
	err := tbl.Insert("b", "c", fin(3), seq("b", 2))
	assert.ErrorIs(t, err, ErrDuplicateDestination)
	assert.ErrorIs(t, tbl.Insert("a", "c", fin(3), seq("a", 2)), ErrDuplicateDestination)

	row, ok := tbl.GetEntry("b")
	require.True(t, ok)
	assert.Equal(t, state.NodeId("b"), row.NextHop)
	assert.Equal(t, 2, tbl.Len())
}

func TestRemove(t *testing.T) {
	tbl := MakeTable(t, "a",
		Row{Destination: "b", NextHop: "b", Cost: fin(1), Seqno: seq("b", 0)},
		Row{Destination: "c", NextHop: "b", Cost: fin(2), Seqno: seq("c", 0)},
	)
	tbl.Remove("b")
	tbl.Remove("zz")
	tbl.Remove("a")
	AssertRows(t, []Row{
		{Destination: "a", NextHop: "a", Cost: fin(0), Seqno: seq("a", 0)},
		{Destination: "c", NextHop: "b", Cost: fin(2), Seqno: seq("c", 0)},
	}, tbl.Entries())
	assert.Equal(t, state.NodeId("a"), tbl.Entries()[0].Destination)
}

func TestLookupMiss(t *testing.T) {
	tbl := NewRoutingTable("a")
	_, ok := tbl.GetEntry("x")
	assert.False(t, ok)
	nh, ok := tbl.GetNextHop("x")
	assert.False(t, ok)
	assert.Equal(t, state.NodeId(""), nh)
	assert.True(t, tbl.GetCost("x").IsInf())
	assert.True(t, tbl.GetCost("a").Equal(fin(0)))
}

func TestEntriesIsACopy(t *testing.T) {
	tbl := MakeTable(t, "a", Row{Destination: "b", NextHop: "b", Cost: fin(1), Seqno: seq("b", 0)})
	rows := tbl.Entries()
	rows[1].Cost = fin(100)
	assert.True(t, tbl.GetCost("b").Equal(fin(1)))
}

func TestUpdateNewNeighbour(t *testing.T) {
	h := &TableHarness{}
	a := MakeTable(t, "a")
	a.SetObserver(h)
	b := MakeTable(t, "b",
		Row{Destination: "c", NextHop: "c", Cost: fin(4), Seqno: seq("c", 2)},
	)

	a.Update(b, 3)

	AssertRows(t, []Row{
		{Destination: "a", NextHop: "a", Cost: fin(0), Seqno: seq("a", 0)},
		{Destination: "b", NextHop: "b", Cost: fin(3), Seqno: seq("b", 0), Changed: true},
		{Destination: "c", NextHop: "b", Cost: fin(7), Seqno: seq("c", 2), Changed: true},
	}, a.Entries())
	AssertInvariants(t, a)
	ev := h.GetEvents()
	assert.Equal(t, 2, ev.Count(RouteAdded))
	assert.Equal(t, 1, ev.Count(RouteRefreshed))
}

// A has a route to C through B, B is already known and unchanged.
func exampleTable(t *testing.T) *RoutingTable {
	return MakeTable(t, "a",
		Row{Destination: "b", NextHop: "b", Cost: fin(2), Seqno: seq("b", 2)},
		Row{Destination: "c", NextHop: "b", Cost: fin(5), Seqno: seq("c", 4)},
	)
}

func exampleAdvert(t *testing.T, cCost float64, cSeq uint32) *RoutingTable {
	b := NewRoutingTable("b")
	b.AdvanceSeqno()
	require.NoError(t, b.Insert("c", "c", fin(cCost), seq("c", cSeq)))
	return b
}

func TestUpdateExampleFresherSeqno(t *testing.T) {
	a := exampleTable(t)
	a.Update(exampleAdvert(t, 3, 6), 2)

	row, ok := a.GetEntry("c")
	require.True(t, ok)
	assert.Equal(t, Row{Destination: "c", NextHop: "b", Cost: fin(5), Seqno: seq("c", 6), Changed: true}, row)
	b, _ := a.GetEntry("b")
	assert.False(t, b.Changed)
	AssertInvariants(t, a)
}

func TestUpdateExampleCheaperEqualSeqno(t *testing.T) {
	a := exampleTable(t)
	a.Update(exampleAdvert(t, 2, 4), 2)

	row, _ := a.GetEntry("c")
	assert.Equal(t, Row{Destination: "c", NextHop: "b", Cost: fin(4), Seqno: seq("c", 4), Changed: true}, row)
}

func TestUpdateExampleEqualCostKeepsRoute(t *testing.T) {
	h := &TableHarness{}
	a := exampleTable(t)
	a.SetObserver(h)
	a.Update(exampleAdvert(t, 3, 4), 2)

	row, _ := a.GetEntry("c")
	assert.Equal(t, Row{Destination: "c", NextHop: "b", Cost: fin(5), Seqno: seq("c", 4)}, row)
	assert.Equal(t, 0, a.NumberOfChanges())
	assert.Equal(t, 0, h.GetEvents().Count(RouteReplaced))
}

func TestFreshnessBeatsCost(t *testing.T) {
	a := MakeTable(t, "a",
		Row{Destination: "b", NextHop: "b", Cost: fin(2), Seqno: seq("b", 2)},
		Row{Destination: "d", NextHop: "d", Cost: fin(1), Seqno: seq("d", 0)},
		Row{Destination: "c", NextHop: "d", Cost: fin(1), Seqno: seq("c", 4)},
	)
	a.Update(exampleAdvert(t, 30, 6), 2)

	row, _ := a.GetEntry("c")
	assert.Equal(t, Row{Destination: "c", NextHop: "b", Cost: fin(32), Seqno: seq("c", 6), Changed: true}, row)
}

func TestNoOscillationOnEqualCost(t *testing.T) {
	a := MakeTable(t, "a",
		Row{Destination: "b", NextHop: "b", Cost: fin(2), Seqno: seq("b", 2)},
		Row{Destination: "d", NextHop: "d", Cost: fin(2), Seqno: seq("d", 0)},
		Row{Destination: "c", NextHop: "d", Cost: fin(5), Seqno: seq("c", 4)},
	)
	for range 3 {
		a.Update(exampleAdvert(t, 3, 4), 2)
	}
	nh, _ := a.GetNextHop("c")
	assert.Equal(t, state.NodeId("d"), nh)
	assert.Equal(t, 0, a.NumberOfChanges())
}

func TestOlderSeqnoIgnored(t *testing.T) {
	a := MakeTable(t, "a",
		Row{Destination: "b", NextHop: "b", Cost: fin(2), Seqno: seq("b", 2)},
		Row{Destination: "d", NextHop: "d", Cost: fin(2), Seqno: seq("d", 0)},
		Row{Destination: "c", NextHop: "d", Cost: fin(50), Seqno: seq("c", 8)},
	)
	a.Update(exampleAdvert(t, 0, 6), 1)
	row, _ := a.GetEntry("c")
	assert.Equal(t, Row{Destination: "c", NextHop: "d", Cost: fin(50), Seqno: seq("c", 8)}, row)
}

func TestNeighbourChangedRefreshesRoutes(t *testing.T) {
	a := exampleTable(t)
	b := NewRoutingTable("b")
	b.AdvanceSeqno()
	b.AdvanceSeqno()
	require.NoError(t, b.Insert("c", "c", fin(3), seq("c", 4)))

	// b moved away, its link now costs 7
	a.Update(b, 7)

	AssertRows(t, []Row{
		{Destination: "a", NextHop: "a", Cost: fin(0), Seqno: seq("a", 0)},
		{Destination: "b", NextHop: "b", Cost: fin(7), Seqno: seq("b", 4), Changed: true},
		{Destination: "c", NextHop: "b", Cost: fin(10), Seqno: seq("c", 4), Changed: true},
	}, a.Entries())
	AssertInvariants(t, a)
}

func TestNeighbourChangedDoesNotUndoLocalBreak(t *testing.T) {
	a := exampleTable(t)
	a.SetRouteBroken("b")
	a.GetChanges()

	// b comes back with a fresher self seqno but a stale view of c
	b := NewRoutingTable("b")
	for range 2 {
		b.AdvanceSeqno()
	}
	require.NoError(t, b.Insert("c", "c", fin(3), seq("c", 4)))
	a.Update(b, 2)

	row, _ := a.GetEntry("c")
	assert.True(t, row.Cost.IsInf())
	assert.Equal(t, seq("c", 5), row.Seqno)
	self, _ := a.GetEntry("b")
	assert.Equal(t, Row{Destination: "b", NextHop: "b", Cost: fin(2), Seqno: seq("b", 4), Changed: true}, self)
	AssertInvariants(t, a)
}

func TestBrokenAdvertisementPropagates(t *testing.T) {
	a := MakeTable(t, "a",
		Row{Destination: "b", NextHop: "b", Cost: fin(2), Seqno: seq("b", 2)},
		Row{Destination: "d", NextHop: "d", Cost: fin(2), Seqno: seq("d", 0)},
		Row{Destination: "c", NextHop: "d", Cost: fin(5), Seqno: seq("c", 4)},
	)
	b := NewRoutingTable("b")
	b.AdvanceSeqno()
	require.NoError(t, b.Insert("c", "c", state.Infinite, seq("c", 5)))

	a.Update(b, 1)

	row, _ := a.GetEntry("c")
	assert.Equal(t, Row{Destination: "c", NextHop: "b", Cost: state.Infinite, Seqno: seq("c", 5), Changed: true}, row)
	assert.True(t, a.BrokenLinks())
	AssertInvariants(t, a)
}

func TestRecoverySetsBrokenLinks(t *testing.T) {
	a := MakeTable(t, "a",
		Row{Destination: "b", NextHop: "b", Cost: fin(2), Seqno: seq("b", 2)},
		Row{Destination: "c", NextHop: "d", Cost: state.Infinite, Seqno: seq("c", 5)},
	)
	require.False(t, a.BrokenLinks())
	a.Update(exampleAdvert(t, 1, 6), 2)

	row, _ := a.GetEntry("c")
	assert.Equal(t, Row{Destination: "c", NextHop: "b", Cost: fin(3), Seqno: seq("c", 6), Changed: true}, row)
	assert.True(t, a.BrokenLinks())
	a.ClearBrokenLinks()
	assert.False(t, a.BrokenLinks())
}

func TestSelfUnreachableAdvertisement(t *testing.T) {
	h := &TableHarness{}
	a := MakeTable(t, "a", Row{Destination: "b", NextHop: "b", Cost: fin(2), Seqno: seq("b", 2)})
	a.SetObserver(h)
	b := NewRoutingTable("b")
	b.AdvanceSeqno()
	require.NoError(t, b.Insert("a", "a", state.Infinite, seq("a", 1)))

	a.Update(b, 2)

	assert.True(t, a.BrokenLinks())
	assert.Equal(t, Row{Destination: "a", NextHop: "a", Cost: fin(0), Seqno: seq("a", 0)}, a.Entries()[0])
	assert.Equal(t, 1, h.GetEvents().Count(SelfUnreachable))
}

func TestSelfRouteNeverAdopted(t *testing.T) {
	a := exampleTable(t)
	b := NewRoutingTable("b")
	b.AdvanceSeqno()
	require.NoError(t, b.Insert("a", "a", fin(1), seq("a", 10)))
	a.Update(b, 2)
	assert.Equal(t, Row{Destination: "a", NextHop: "a", Cost: fin(0), Seqno: seq("a", 0)}, a.Entries()[0])
	assert.False(t, a.BrokenLinks())
}

func TestUpdateFromSelfIsIgnored(t *testing.T) {
	a := exampleTable(t)
	before := a.Entries()
	a.Update(a.Snapshot(), 1)
	a.Update(nil, 1)
	AssertRows(t, before, a.Entries())
}

func TestSetRouteBroken(t *testing.T) {
	h := &TableHarness{}
	a := MakeTable(t, "a",
		Row{Destination: "b", NextHop: "b", Cost: fin(2), Seqno: seq("b", 2)},
		Row{Destination: "c", NextHop: "b", Cost: fin(5), Seqno: seq("c", 4)},
		Row{Destination: "d", NextHop: "d", Cost: fin(1), Seqno: seq("d", 6)},
	)
	a.SetObserver(h)
	a.SetRouteBroken("b")

	AssertRows(t, []Row{
		{Destination: "a", NextHop: "a", Cost: fin(0), Seqno: seq("a", 0)},
		{Destination: "b", NextHop: "b", Cost: state.Infinite, Seqno: seq("b", 3), Changed: true},
		{Destination: "c", NextHop: "b", Cost: state.Infinite, Seqno: seq("c", 5), Changed: true},
		{Destination: "d", NextHop: "d", Cost: fin(1), Seqno: seq("d", 6)},
	}, a.Entries())
	assert.True(t, a.BrokenLinks())
	assert.Equal(t, 2, h.GetEvents().Count(RouteBroken))

	// breaking twice keeps the parity
	a.SetRouteBroken("b")
	row, _ := a.GetEntry("c")
	assert.Equal(t, seq("c", 5), row.Seqno)
	AssertInvariants(t, a)
}

func TestSetRouteBrokenUnknownNeighbour(t *testing.T) {
	a := exampleTable(t)
	a.SetRouteBroken("zz")
	a.SetRouteBroken("a")
	assert.False(t, a.BrokenLinks())
	assert.Equal(t, 0, a.NumberOfChanges())
}

func TestGetChangesDrains(t *testing.T) {
	a := MakeTable(t, "a",
		Row{Destination: "b", NextHop: "b", Cost: fin(2), Seqno: seq("b", 2)},
		Row{Destination: "c", NextHop: "b", Cost: fin(5), Seqno: seq("c", 4)},
		Row{Destination: "d", NextHop: "d", Cost: fin(1), Seqno: seq("d", 6)},
	)
	a.SetRouteBroken("d")
	assert.Equal(t, 1, a.NumberOfChanges())
	assert.Equal(t, 1, a.NumberOfChanges())

	changes := a.GetChanges()
	assert.Equal(t, []Row{
		{Destination: "a", NextHop: "a", Cost: fin(0), Seqno: seq("a", 0)},
		{Destination: "d", NextHop: "d", Cost: state.Infinite, Seqno: seq("d", 7), Changed: true},
	}, changes.Entries())
	assert.Equal(t, 0, a.NumberOfChanges())

	second := a.GetChanges()
	assert.Equal(t, []Row{
		{Destination: "a", NextHop: "a", Cost: fin(0), Seqno: seq("a", 0)},
	}, second.Entries())
}

func TestGetChangesIncludesChangedSelfOnce(t *testing.T) {
	a := NewRoutingTable("a")
	changes := a.GetChanges()
	require.Equal(t, 1, changes.Len())
	assert.Equal(t, state.NodeId("a"), changes.Self())

	a.AdvanceSeqno()
	changes = a.GetChanges()
	require.Equal(t, 1, changes.Len())
	assert.Equal(t, seq("a", 2), changes.Entries()[0].Seqno)
}

func TestAdoptedRowsAreCopies(t *testing.T) {
	a := MakeTable(t, "a")
	b := MakeTable(t, "b", Row{Destination: "c", NextHop: "c", Cost: fin(1), Seqno: seq("c", 2)})
	a.Update(b, 1)
	before := a.Entries()

	b.SetRouteBroken("c")
	b.Remove("c")
	require.NoError(t, b.Insert("c", "x", fin(99), seq("c", 100)))

	AssertRows(t, before, a.Entries())
}

func TestChangesCanBeMergedByNeighbour(t *testing.T) {
	a := MakeTable(t, "a")
	b := MakeTable(t, "b", Row{Destination: "c", NextHop: "c", Cost: fin(1), Seqno: seq("c", 2)})
	c := MakeTable(t, "c", Row{Destination: "b", NextHop: "b", Cost: fin(1), Seqno: seq("b", 0)})

	a.Update(b.Snapshot(), 1)
	b.SetRouteBroken("c")
	a.Update(b.GetChanges(), 1)

	row, _ := a.GetEntry("c")
	assert.True(t, row.Cost.IsInf())
	assert.True(t, a.BrokenLinks())

	// c later re-announces itself with a fresher seqno through b
	c.AdvanceSeqno()
	c.AdvanceSeqno()
	b.Update(c.Snapshot(), 1)
	a.Update(b.GetChanges(), 1)
	row, _ = a.GetEntry("c")
	assert.Equal(t, Row{Destination: "c", NextHop: "b", Cost: fin(2), Seqno: seq("c", 4), Changed: true}, row)
	AssertInvariants(t, a)
}

func TestRandomMergesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	ids := make([]state.NodeId, 8)
	tables := make([]*RoutingTable, len(ids))
	for i := range ids {
		ids[i] = state.NodeId(fmt.Sprintf("n%d", i))
		tables[i] = NewRoutingTable(ids[i])
	}

	for step := range 2000 {
		i := rng.IntN(len(ids))
		j := rng.IntN(len(ids))
		switch op := rng.IntN(10); {
		case op < 6:
			if step%7 == 0 {
				tables[j].AdvanceSeqno()
			}
			tables[i].Update(tables[j].Snapshot(), float64(rng.IntN(10)))
		case op < 8:
			tables[i].Update(tables[j].GetChanges(), float64(rng.IntN(10)))
		case op < 9:
			tables[i].SetRouteBroken(ids[j])
		default:
			tables[i].Remove(ids[j])
		}
		AssertInvariants(t, tables[i])
	}
}
