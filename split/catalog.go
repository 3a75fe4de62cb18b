package split

import (
	"fmt"
	"sort"

	"tidbyt.dev/tripsplit/model"
)

// Which stops.txt column a catalog built from a feed is keyed on.
type CatalogKey string

const (
	KeyStopID   CatalogKey = "stop_id"
	KeyStopCode CatalogKey = "stop_code"
)

// Maps symbolic stop references to the stop_ids of one feed
// revision. Catalogs are immutable; build a new one for each feed
// rather than merging.
type Catalog struct {
	refs map[model.StopRef][]string
}

func NewCatalog(mapping map[model.StopRef][]string) *Catalog {
	c := &Catalog{refs: map[model.StopRef][]string{}}
	for ref, ids := range mapping {
		c.add(ref, ids...)
	}
	return c
}

// Builds a catalog from a feed's stops, keyed on stop_id (every stop
// resolves to itself) or stop_code (a code resolves to every stop
// carrying it).
func CatalogFromStops(stops []model.Stop, key CatalogKey) (*Catalog, error) {
	c := &Catalog{refs: map[model.StopRef][]string{}}
	for _, s := range stops {
		switch key {
		case KeyStopID, "":
			c.add(model.StopRef(s.ID), s.ID)
		case KeyStopCode:
			if s.Code != "" {
				c.add(model.StopRef(s.Code), s.ID)
			}
		default:
			return nil, fmt.Errorf("unknown catalog key '%s'", key)
		}
	}
	return c, nil
}

// Returns a new catalog where the given refs replace any existing
// mapping.
func (c *Catalog) With(remap map[model.StopRef][]string) *Catalog {
	n := &Catalog{refs: make(map[model.StopRef][]string, len(c.refs)+len(remap))}
	for ref, ids := range c.refs {
		if _, replaced := remap[ref]; !replaced {
			n.refs[ref] = ids
		}
	}
	for ref, ids := range remap {
		n.add(ref, ids...)
	}
	return n
}

func (c *Catalog) Resolve(ref model.StopRef) ([]string, error) {
	ids, found := c.refs[ref]
	if !found || len(ids) == 0 {
		return nil, &UnresolvedStopError{StopRef: ref}
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

func (c *Catalog) Len() int {
	return len(c.refs)
}

func (c *Catalog) add(ref model.StopRef, ids ...string) {
	seen := map[string]bool{}
	for _, id := range c.refs[ref] {
		seen[id] = true
	}
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		c.refs[ref] = append(c.refs[ref], id)
	}
	sort.Strings(c.refs[ref])
}
