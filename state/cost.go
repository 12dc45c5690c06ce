package state

import (
	"math"
	"strconv"
)

// Cost is the metric of a route. The zero value is a finite cost of 0.
type Cost struct {
	value float64
	inf   bool
}

// Infinite marks a destination as unreachable.
var Infinite = Cost{inf: true}

// Finite returns a reachable cost. Negative or NaN values become 0, and +Inf
// becomes Infinite.
func Finite(v float64) Cost {
	if math.IsInf(v, 1) {
		return Infinite
	}
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	return Cost{value: v}
}

func (c Cost) IsInf() bool {
	return c.inf
}

// Value returns the finite value, or +Inf for an unreachable cost.
func (c Cost) Value() float64 {
	if c.inf {
		return math.Inf(1)
	}
	return c.value
}

// Add extends the cost by a link metric. Infinite saturates.
func (c Cost) Add(link float64) Cost {
	if c.inf {
		return Infinite
	}
	return Finite(c.value + link)
}

func (c Cost) Less(o Cost) bool {
	switch {
	case c.inf:
		return false
	case o.inf:
		return true
	default:
		return c.value < o.value
	}
}

func (c Cost) Equal(o Cost) bool {
	return c.inf == o.inf && (c.inf || c.value == o.value)
}

func (c Cost) String() string {
	if c.inf {
		return "inf"
	}
	return strconv.FormatFloat(c.value, 'f', -1, 64)
}
