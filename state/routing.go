package state

import "fmt"

// NodeId identifies a simulated host. It is stable for the host's lifetime.
type NodeId string

// Seqno is a destination-issued freshness stamp. Counter parity carries the
// route state: even means usable, odd means broken.
type Seqno struct {
	Owner   NodeId
	Counter uint32
}

func (s Seqno) Broken() bool {
	return s.Counter%2 == 1
}

// Newer reports whether s carries strictly fresher information than o.
func (s Seqno) Newer(o Seqno) bool {
	return s.Counter > o.Counter
}

// Break returns the seqno that marks the route as broken. An already broken
// seqno is returned unchanged.
func (s Seqno) Break() Seqno {
	if !s.Broken() {
		s.Counter++
	}
	return s
}

func (s Seqno) String() string {
	return fmt.Sprintf("(%s, %d)", s.Owner, s.Counter)
}
