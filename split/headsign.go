package split

import (
	"fmt"
	"strings"

	"tidbyt.dev/tripsplit/model"
)

// Replaces the feed headsign of trips of a route direction. Raw lists
// the feed headsigns the override applies to; a blank entry matches
// trips without a headsign.
type HeadsignOverride struct {
	RouteID     int64
	DirectionID int8
	Raw         []string
	Headsign    string
}

type overrideKey struct {
	routeID     int64
	directionID int8
	raw         string
}

type HeadsignOverrides struct {
	entries map[overrideKey]string
}

func NewHeadsignOverrides(overrides ...HeadsignOverride) (*HeadsignOverrides, error) {
	o := &HeadsignOverrides{entries: map[overrideKey]string{}}
	for _, ov := range overrides {
		if ov.DirectionID != 0 && ov.DirectionID != 1 {
			return nil, &ConfigurationError{RouteID: ov.RouteID, Reason: fmt.Sprintf("headsign override for invalid direction %d", ov.DirectionID)}
		}
		if ov.Headsign == "" {
			return nil, &ConfigurationError{RouteID: ov.RouteID, Reason: "blank headsign override"}
		}
		raws := ov.Raw
		if len(raws) == 0 {
			raws = []string{""}
		}
		for _, raw := range raws {
			k := overrideKey{ov.RouteID, ov.DirectionID, strings.TrimSpace(raw)}
			if _, found := o.entries[k]; found {
				return nil, &ConfigurationError{
					RouteID: ov.RouteID,
					Reason:  fmt.Sprintf("repeated headsign override for direction %d, raw headsign '%s'", ov.DirectionID, raw),
				}
			}
			o.entries[k] = ov.Headsign
		}
	}
	return o, nil
}

func (o *HeadsignOverrides) Lookup(routeID int64, directionID int8, raw string) (string, bool) {
	if o == nil {
		return "", false
	}
	h, found := o.entries[overrideKey{routeID, directionID, strings.TrimSpace(raw)}]
	return h, found
}

func (o *HeadsignOverrides) Len() int {
	if o == nil {
		return 0
	}
	return len(o.entries)
}

// Picks the headsign shown to riders for a trip: an override if one
// matches, else the direction headsign of split routes, else the
// cleaned feed headsign.
func ResolveHeadsign(
	routeID int64,
	trip model.OrderedTrip,
	route *CompiledRoute,
	overrides *HeadsignOverrides,
	clean func(string) string,
) string {
	if h, found := overrides.Lookup(routeID, trip.Direction, trip.Headsign); found {
		return h
	}
	if trip.Split && route != nil && (trip.Direction == 0 || trip.Direction == 1) {
		if h := route.Directions[trip.Direction].Headsign; h != "" {
			return h
		}
	}
	if clean == nil {
		return trip.Headsign
	}
	return clean(trip.Headsign)
}
