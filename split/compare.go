package split

import (
	"slices"
	"sort"
	"strings"

	"tidbyt.dev/tripsplit/model"
)

// Orders two stop occurrences, typically from different trips of the
// same route direction. Returns <0 if a comes first.
//
// Occurrences are ordered by canonical position, then by arrival time
// when both have one, then by stop_sequence, and finally by trip_id.
// The result never depends on map or input order.
func CompareEarly(a, b model.OrderedStop) int {
	if c := compareKey(a, b); c != 0 {
		return c
	}

	arrA, okA := a.ArrivalTime()
	arrB, okB := b.ArrivalTime()
	if okA && okB && arrA != arrB {
		if arrA < arrB {
			return -1
		}
		return 1
	}

	if a.StopSequence != b.StopSequence {
		if a.StopSequence < b.StopSequence {
			return -1
		}
		return 1
	}

	if c := strings.Compare(a.TripID, b.TripID); c != 0 {
		return c
	}
	return strings.Compare(a.StopID, b.StopID)
}

func compareKey(a, b model.OrderedStop) int {
	if a.Anchor != b.Anchor {
		if a.Anchor < b.Anchor {
			return -1
		}
		return 1
	}
	if a.Offset != b.Offset {
		if a.Offset < b.Offset {
			return -1
		}
		return 1
	}
	return 0
}

// A stop in the merged stop list of one route direction.
type DirectionStop struct {
	Direction int8
	Label     model.DirectionLabel
	StopID    string
	Slot      int
	Position  int
}

// Merges the stops of all trips into one ordered list per direction.
//
// Canonical stops are listed once per slot, in slot order. Stops off
// the canonical order are grouped by the slot they follow (all of
// them, for a route without a spec). Within a group, the stop
// sequence of each trip is merged into the list built so far, in
// SortTrips order: a stop already listed keeps its place and a new
// one goes right after the last listed stop the trip visited.
func MergeStops(trips []model.OrderedTrip) []DirectionStop {
	var byDirection [2][]model.OrderedTrip
	for _, trip := range trips {
		d := trip.Direction
		if d != 0 && d != 1 {
			continue
		}
		byDirection[d] = append(byDirection[d], trip)
	}

	merged := []DirectionStop{}
	for d, dirTrips := range byDirection {
		if len(dirTrips) == 0 {
			continue
		}
		SortTrips(dirTrips)

		label := dirTrips[0].Label
		canonical := map[int]string{}
		gaps := map[int][]gapStop{}

		for _, trip := range dirTrips {
			tripGaps := map[int][]gapStop{}
			visits := map[gapKey]int{}
			for _, s := range trip.Stops {
				if s.Slot >= 0 {
					canonical[s.Slot] = s.StopID
					continue
				}
				k := gapKey{s.Anchor, s.StopID}
				tripGaps[s.Anchor] = append(tripGaps[s.Anchor], gapStop{s.StopID, visits[k]})
				visits[k]++
			}
			for anchor, seq := range tripGaps {
				gaps[anchor] = mergeSequence(gaps[anchor], seq)
			}
		}

		slots := make([]int, 0, len(canonical))
		for slot := range canonical {
			slots = append(slots, slot)
		}
		sort.Ints(slots)

		position := 0
		emit := func(stopID string, slot int) {
			merged = append(merged, DirectionStop{
				Direction: int8(d),
				Label:     label,
				StopID:    stopID,
				Slot:      slot,
				Position:  position,
			})
			position++
		}
		emitGap := func(anchor int) {
			for _, g := range gaps[anchor] {
				emit(g.stopID, -1)
			}
		}

		emitGap(-1)
		for _, slot := range slots {
			emit(canonical[slot], slot)
			emitGap(slot)
		}
	}

	return merged
}

type gapKey struct {
	anchor int
	stopID string
}

// Nth visit of a stop within one gap of a trip.
type gapStop struct {
	stopID string
	visit  int
}

func mergeSequence(merged []gapStop, seq []gapStop) []gapStop {
	last := -1
	for _, s := range seq {
		i := slices.Index(merged[last+1:], s)
		if i < 0 {
			i = last + 1
			merged = slices.Insert(merged, i, s)
		} else {
			i += last + 1
		}
		last = i
	}
	return merged
}

// Sorts trips by direction, then by their first stop, then by
// trip_id.
func SortTrips(trips []model.OrderedTrip) {
	sort.SliceStable(trips, func(i, j int) bool {
		a, b := trips[i], trips[j]
		if a.Direction != b.Direction {
			return a.Direction < b.Direction
		}
		if len(a.Stops) > 0 && len(b.Stops) > 0 {
			if c := CompareEarly(a.Stops[0], b.Stops[0]); c != 0 {
				return c < 0
			}
		} else if len(a.Stops) != len(b.Stops) {
			return len(a.Stops) == 0
		}
		return a.TripID < b.TripID
	})
}
