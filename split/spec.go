package split

import (
	"fmt"
	"sort"
	"strings"

	"tidbyt.dev/tripsplit/model"
)

// One direction of a route, as declared by the route author. Stops is
// the canonical order of the direction and may list a stop more than
// once for loop routes.
type DirectionSpec struct {
	Label    model.DirectionLabel
	Headsign string
	Stops    []model.StopRef
}

// Ground truth for splitting the trips of a route into two
// directions.
//
// TrustDirectionFlag lets the feed's direction_id decide a trip's
// direction outright. Shared lists stops served by both directions
// (typically a common terminal); they are ranked like any other stop
// but never count as evidence for a direction.
type RouteSpec struct {
	RouteID            int64
	TrustDirectionFlag bool
	Directions         []DirectionSpec
	Shared             []model.StopRef
}

func (s *RouteSpec) configErr(ref model.StopRef, format string, args ...interface{}) error {
	return &ConfigurationError{RouteID: s.RouteID, StopRef: ref, Reason: fmt.Sprintf(format, args...)}
}

// Checks the structure of the route spec. Catalog resolution is
// checked by Compile.
func (s *RouteSpec) Validate() error {
	if len(s.Directions) != 2 {
		return s.configErr("", "expected 2 directions, got %d", len(s.Directions))
	}

	a, b := s.Directions[0], s.Directions[1]
	if a.Label == "" || b.Label == "" {
		return s.configErr("", "direction without label")
	}
	if a.Label == b.Label {
		return s.configErr("", "both directions labelled '%s'", a.Label)
	}

	for _, d := range s.Directions {
		if len(d.Stops) == 0 {
			return s.configErr("", "direction '%s' has an empty canonical order", d.Label)
		}
		for _, ref := range d.Stops {
			if ref == "" {
				return s.configErr("", "direction '%s' has a blank stop ref", d.Label)
			}
		}
	}

	if sameRefs(a.Stops, b.Stops) {
		return s.configErr("", "directions '%s' and '%s' have identical canonical orders", a.Label, b.Label)
	}

	for _, ref := range s.Shared {
		if !containsRef(a.Stops, ref) || !containsRef(b.Stops, ref) {
			return s.configErr(ref, "shared stop must appear in both directions")
		}
	}

	return nil
}

// Resolves all stop refs through the catalog, producing the form used
// when processing trips.
func (s *RouteSpec) Compile(catalog *Catalog) (*CompiledRoute, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	sharedIDs := map[string]bool{}
	for _, ref := range s.Shared {
		ids, err := catalog.Resolve(ref)
		if err != nil {
			return nil, &ConfigurationError{RouteID: s.RouteID, StopRef: ref, Reason: "unresolved shared stop", Err: err}
		}
		for _, id := range ids {
			sharedIDs[id] = true
		}
	}

	route := &CompiledRoute{
		RouteID:            s.RouteID,
		TrustDirectionFlag: s.TrustDirectionFlag,
	}

	for i, d := range s.Directions {
		cd := CompiledDirection{
			Index:     int8(i),
			Label:     d.Label,
			Headsign:  d.Headsign,
			Positions: make([]Position, 0, len(d.Stops)),
			byStop:    map[string][]int{},
		}
		for pos, ref := range d.Stops {
			ids, err := catalog.Resolve(ref)
			if err != nil {
				return nil, &ConfigurationError{RouteID: s.RouteID, StopRef: ref, Reason: fmt.Sprintf("unresolved stop in direction '%s'", d.Label), Err: err}
			}
			p := Position{Ref: ref, StopIDs: ids}
			for _, id := range ids {
				if sharedIDs[id] {
					p.Shared = true
				}
				cd.byStop[id] = append(cd.byStop[id], pos)
			}
			cd.Positions = append(cd.Positions, p)
		}
		route.Directions[i] = cd
	}

	if route.Directions[0].signature() == route.Directions[1].signature() {
		return nil, s.configErr("", "directions '%s' and '%s' resolve to identical stop sequences", route.Directions[0].Label, route.Directions[1].Label)
	}

	return route, nil
}

// A set of route specs. Built once at startup and passed to whatever
// needs it.
type Table struct {
	routes map[int64]*RouteSpec
}

func NewTable(specs ...RouteSpec) (*Table, error) {
	t := &Table{routes: map[int64]*RouteSpec{}}
	for i := range specs {
		spec := specs[i]
		if _, found := t.routes[spec.RouteID]; found {
			return nil, &ConfigurationError{RouteID: spec.RouteID, Reason: "repeated route spec"}
		}
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		t.routes[spec.RouteID] = &spec
	}
	return t, nil
}

func (t *Table) ForRoute(routeID int64) (*RouteSpec, bool) {
	s, found := t.routes[routeID]
	return s, found
}

func (t *Table) RouteIDs() []int64 {
	ids := make([]int64, 0, len(t.routes))
	for id := range t.routes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Compiles every route against the catalog. Any failure is a
// configuration error and aborts the whole table.
func (t *Table) Compile(catalog *Catalog) (*CompiledTable, error) {
	ct := &CompiledTable{routes: map[int64]*CompiledRoute{}}
	for _, id := range t.RouteIDs() {
		route, err := t.routes[id].Compile(catalog)
		if err != nil {
			return nil, err
		}
		ct.routes[id] = route
	}
	return ct, nil
}

// One entry of a compiled canonical order.
type Position struct {
	Ref     model.StopRef
	StopIDs []string
	Shared  bool
}

type CompiledDirection struct {
	Index     int8
	Label     model.DirectionLabel
	Headsign  string
	Positions []Position

	// stop_id -> ascending canonical positions
	byStop map[string][]int
}

// Canonical positions at which the stop appears, in ascending order.
func (d *CompiledDirection) PositionsOf(stopID string) []int {
	return d.byStop[stopID]
}

func (d *CompiledDirection) signature() string {
	parts := make([]string, len(d.Positions))
	for i, p := range d.Positions {
		parts[i] = strings.Join(p.StopIDs, "|")
	}
	return strings.Join(parts, ",")
}

type CompiledRoute struct {
	RouteID            int64
	TrustDirectionFlag bool
	Directions         [2]CompiledDirection
}

// Read-only after construction; safe for concurrent use.
type CompiledTable struct {
	routes map[int64]*CompiledRoute
}

func (t *CompiledTable) ForRoute(routeID int64) (*CompiledRoute, bool) {
	if t == nil {
		return nil, false
	}
	r, found := t.routes[routeID]
	return r, found
}

func (t *CompiledTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.routes)
}

func sameRefs(a, b []model.StopRef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsRef(refs []model.StopRef, ref model.StopRef) bool {
	for _, r := range refs {
		if r == ref {
			return true
		}
	}
	return false
}
