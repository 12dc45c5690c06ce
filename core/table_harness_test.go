package core

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/encodeous/dsdvsim/state"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type HarnessEvent struct {
	Event TableEvent
	Args  []any
}

// TableHarness records every decision made by the table it observes.
type TableHarness struct {
	events []HarnessEvent
}

func (h *TableHarness) Log(event TableEvent, desc string, args ...any) {
	h.events = append(h.events, HarnessEvent{Event: event, Args: args})
}

// GetEvents drains the recorded events.
func (h *TableHarness) GetEvents() HarnessEvents {
	x := h.events
	h.events = nil
	return x
}

type HarnessEvents []HarnessEvent

func (e HarnessEvents) String() string {
	out := make([]string, 0, len(e))
	for _, ev := range e {
		cur := ev.Event.String()
		for _, arg := range ev.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

func (e HarnessEvents) Count(event TableEvent) int {
	n := 0
	for _, ev := range e {
		if ev.Event == event {
			n++
		}
	}
	return n
}

func seq(owner state.NodeId, counter uint32) state.Seqno {
	return state.Seqno{Owner: owner, Counter: counter}
}

func fin(v float64) state.Cost {
	return state.Finite(v)
}

// MakeTable builds a table for owner, with the extra rows inserted in order and
// every changed flag cleared.
func MakeTable(t *testing.T, owner state.NodeId, rows ...Row) *RoutingTable {
	t.Helper()
	tbl := NewRoutingTable(owner)
	for _, r := range rows {
		if err := tbl.Insert(r.Destination, r.NextHop, r.Cost, r.Seqno); err != nil {
			t.Fatal(err)
		}
	}
	tbl.GetChanges()
	return tbl
}

var rowCmpOpts = []cmp.Option{
	cmp.Comparer(func(a, b state.Cost) bool { return a.Equal(b) }),
	cmpopts.SortSlices(func(a, b Row) bool { return a.Destination < b.Destination }),
}

func AssertRows(t *testing.T, expected []Row, actual []Row) {
	t.Helper()
	if diff := cmp.Diff(expected, actual, rowCmpOpts...); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

// AssertInvariants checks uniqueness, self-route placement and seqno parity.
func AssertInvariants(t *testing.T, tbl *RoutingTable) {
	t.Helper()
	seen := make(map[state.NodeId]bool)
	for i, row := range tbl.Entries() {
		if seen[row.Destination] {
			t.Fatalf("duplicate destination %s in\n%s", row.Destination, tbl)
		}
		seen[row.Destination] = true
		if i == 0 && (row.Destination != row.NextHop || !row.Cost.Equal(fin(0))) {
			t.Fatalf("first row is not a self-route: %s", row)
		}
		if row.Seqno.Broken() != row.Cost.IsInf() {
			t.Fatalf("parity mismatch: %s", row)
		}
	}
}
