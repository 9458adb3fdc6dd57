package line

import (
	"fmt"
	"math/rand"
)

// RouteKind distinguishes a fixed workstation from a set of parallel
// alternatives.
type RouteKind int

const (
	RouteSingle RouteKind = iota
	RouteParallel
)

// String returns the route kind name.
func (k RouteKind) String() string {
	switch k {
	case RouteSingle:
		return "single"
	case RouteParallel:
		return "parallel"
	default:
		return fmt.Sprintf("RouteKind(%d)", int(k))
	}
}

// Route is the set of workstations a stage may use.
// A single route always yields its workstation and draws no randomness.
type Route struct {
	Kind         RouteKind
	Workstations []int
}

// NewRoute builds a Route from a non-empty workstation list.
func NewRoute(workstations []int) Route {
	ids := append([]int(nil), workstations...)
	if len(ids) == 1 {
		return Route{Kind: RouteSingle, Workstations: ids}
	}
	return Route{Kind: RouteParallel, Workstations: ids}
}

// Choose picks the workstation for one part. Parallel alternatives are
// chosen uniformly at random.
func (r Route) Choose(rng *rand.Rand) int {
	switch r.Kind {
	case RouteSingle:
		return r.Workstations[0]
	case RouteParallel:
		return r.Workstations[rng.Intn(len(r.Workstations))]
	default:
		panic(fmt.Sprintf("line: unknown route kind %v", r.Kind))
	}
}

// Stage is one validated step of the line topology.
type Stage struct {
	Name         string
	Route        Route
	BufferBefore *int
	BufferAfter  *int
}
