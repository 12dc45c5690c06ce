package core

type TableEvent int

const (
	RouteAdded TableEvent = iota
	RouteRefreshed
	RouteReplaced
	RouteIgnored
	RouteBroken
	SelfUnreachable
)

func (e TableEvent) String() string {
	switch e {
	case RouteAdded:
		return "RouteAdded"
	case RouteRefreshed:
		return "RouteRefreshed"
	case RouteReplaced:
		return "RouteReplaced"
	case RouteIgnored:
		return "RouteIgnored"
	case RouteBroken:
		return "RouteBroken"
	case SelfUnreachable:
		return "SelfUnreachable"
	}
	return "TableEvent(unknown)"
}

// TableObserver receives the decisions a RoutingTable makes.
type TableObserver interface {
	Log(event TableEvent, desc string, args ...any)
}

type discardObserver struct{}

func (discardObserver) Log(TableEvent, string, ...any) {}
