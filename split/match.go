package split

import (
	"fmt"
	"sort"

	"tidbyt.dev/tripsplit/model"
)

// Places every stop_time of a classified trip in the canonical order
// of its direction.
//
// Occurrences are walked in stop_sequence order. Each one takes the
// first canonical position of its stop that comes after the last
// position taken, so the Nth visit of a loop stop lands on the Nth
// canonical slot. Stops absent from the canonical order are ranked
// right after the previous matched stop, keeping feed order among
// themselves.
func Order(trip model.ClassifiedTrip, route *CompiledRoute) (model.OrderedTrip, error) {
	if trip.Direction != 0 && trip.Direction != 1 {
		return model.OrderedTrip{}, &SequenceMismatchError{
			RouteID: route.RouteID,
			TripID:  trip.TripID,
			Reason:  fmt.Sprintf("invalid direction index %d", trip.Direction),
		}
	}
	dir := &route.Directions[trip.Direction]

	stopTimes := inSequence(trip.StopTimes)
	stops := make([]model.OrderedStop, 0, len(stopTimes))

	last := -1
	anchor, offset := -1, 0
	matched := 0

	for _, st := range stopTimes {
		occ := model.OrderedStop{
			TripID:         trip.TripID,
			StopTimeRecord: st,
			Slot:           -1,
		}

		positions := dir.PositionsOf(st.StopID)
		if len(positions) == 0 {
			offset++
			occ.Anchor, occ.Offset = anchor, offset
			stops = append(stops, occ)
			continue
		}

		pos := nextPosition(positions, last)
		if pos < 0 {
			return model.OrderedTrip{}, &SequenceMismatchError{
				RouteID: route.RouteID,
				TripID:  trip.TripID,
				StopID:  st.StopID,
				Reason: fmt.Sprintf(
					"stop_sequence %d revisits canonical positions %v of '%s' after position %d",
					st.StopSequence, positions, dir.Label, last,
				),
			}
		}

		last, anchor, offset = pos, pos, 0
		occ.Slot, occ.Anchor, occ.Offset = pos, pos, 0
		stops = append(stops, occ)
		matched++
	}

	if matched == 0 {
		return model.OrderedTrip{}, &SequenceMismatchError{
			RouteID: route.RouteID,
			TripID:  trip.TripID,
			Reason:  fmt.Sprintf("no stop of the trip is in the canonical order of '%s'", dir.Label),
		}
	}

	for i := range stops {
		if i > 0 && compareKey(stops[i-1], stops[i]) >= 0 {
			return model.OrderedTrip{}, &SequenceMismatchError{
				RouteID: route.RouteID,
				TripID:  trip.TripID,
				StopID:  stops[i].StopID,
				Reason:  fmt.Sprintf("rank does not increase at stop_sequence %d", stops[i].StopSequence),
			}
		}
		stops[i].Rank = i
	}

	return model.OrderedTrip{
		ClassifiedTrip: trip,
		Split:          true,
		Stops:          stops,
	}, nil
}

// Orders a trip of a route that has no spec: feed direction (0 when
// missing) and feed order.
func PassThrough(trip model.RawTrip) model.OrderedTrip {
	direction := trip.DirectionID
	if !trip.HasDirection() {
		direction = 0
	}

	stopTimes := inSequence(trip.StopTimes)
	stops := make([]model.OrderedStop, len(stopTimes))
	for i, st := range stopTimes {
		stops[i] = model.OrderedStop{
			TripID:         trip.TripID,
			StopTimeRecord: st,
			Rank:           i,
			Slot:           -1,
			Anchor:         -1,
			Offset:         i + 1,
		}
	}

	return model.OrderedTrip{
		ClassifiedTrip: model.ClassifiedTrip{
			RawTrip:   trip,
			Direction: direction,
			Rule:      model.RulePassThrough,
		},
		Stops: stops,
	}
}

// First position strictly after last, or -1.
func nextPosition(positions []int, last int) int {
	i := sort.SearchInts(positions, last+1)
	if i == len(positions) {
		return -1
	}
	return positions[i]
}

// Copy of the stop times sorted by stop_sequence.
func inSequence(stopTimes []model.StopTimeRecord) []model.StopTimeRecord {
	sorted := make([]model.StopTimeRecord, len(stopTimes))
	copy(sorted, stopTimes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StopSequence < sorted[j].StopSequence
	})
	return sorted
}
