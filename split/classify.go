package split

import (
	"fmt"
	"strings"

	"tidbyt.dev/tripsplit/model"
)

// Decides which direction of the route a trip belongs to. Rules are
// tried in order and the first decisive one wins:
//
//  1. the feed's direction_id, if the route trusts it
//  2. the trip headsign, matched against direction headsigns
//  3. the trip's stops, matched against each canonical order
//
// If none decides, an AmbiguousTripError is returned. There is no
// default direction.
func Classify(trip model.RawTrip, route *CompiledRoute) (model.ClassifiedTrip, error) {
	if route.TrustDirectionFlag && trip.HasDirection() {
		return classified(trip, route, trip.DirectionID, model.RuleDirectionFlag), nil
	}

	if idx, ok := matchHeadsign(trip.Headsign, route); ok {
		return classified(trip, route, idx, model.RuleHeadsign), nil
	}

	stopTimes := inSequence(trip.StopTimes)
	score0 := stopScore(stopTimes, &route.Directions[0])
	score1 := stopScore(stopTimes, &route.Directions[1])
	switch {
	case score0 == 0 && score1 == 0:
		return model.ClassifiedTrip{}, &AmbiguousTripError{
			RouteID: route.RouteID,
			TripID:  trip.TripID,
			Reason:  "no unshared canonical stop in either direction",
		}
	case score0 == score1:
		return model.ClassifiedTrip{}, &AmbiguousTripError{
			RouteID: route.RouteID,
			TripID:  trip.TripID,
			Reason: fmt.Sprintf(
				"'%s' and '%s' both match %d stops",
				route.Directions[0].Label, route.Directions[1].Label, score0,
			),
		}
	case score0 > score1:
		return classified(trip, route, 0, model.RuleStops), nil
	default:
		return classified(trip, route, 1, model.RuleStops), nil
	}
}

func classified(trip model.RawTrip, route *CompiledRoute, idx int8, rule model.Rule) model.ClassifiedTrip {
	return model.ClassifiedTrip{
		RawTrip:   trip,
		Direction: idx,
		Label:     route.Directions[idx].Label,
		Rule:      rule,
	}
}

func normalizeHeadsign(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Exact matches are preferred over substring matches, either way
// round. A match only counts if exactly one direction has it.
func matchHeadsign(headsign string, route *CompiledRoute) (int8, bool) {
	trip := normalizeHeadsign(headsign)
	if trip == "" {
		return 0, false
	}

	var exact, contained []int8
	for i := range route.Directions {
		dir := normalizeHeadsign(route.Directions[i].Headsign)
		if dir == "" {
			continue
		}
		if dir == trip {
			exact = append(exact, int8(i))
		}
		if strings.Contains(trip, dir) || strings.Contains(dir, trip) {
			contained = append(contained, int8(i))
		}
	}

	if len(exact) == 1 {
		return exact[0], true
	}
	if len(exact) == 0 && len(contained) == 1 {
		return contained[0], true
	}
	return 0, false
}

// Length of the longest order-preserving match between the trip's
// stops and the direction's canonical order, ignoring shared
// positions.
func stopScore(stopTimes []model.StopTimeRecord, dir *CompiledDirection) int {
	n := len(dir.Positions)
	prev := make([]int, n+1)
	cur := make([]int, n+1)

	for _, st := range stopTimes {
		positions := dir.PositionsOf(st.StopID)
		for j := 1; j <= n; j++ {
			best := prev[j]
			if cur[j-1] > best {
				best = cur[j-1]
			}
			if !dir.Positions[j-1].Shared && hasPosition(positions, j-1) && prev[j-1]+1 > best {
				best = prev[j-1] + 1
			}
			cur[j] = best
		}
		prev, cur = cur, prev
	}

	return prev[n]
}

func hasPosition(positions []int, pos int) bool {
	for _, p := range positions {
		if p == pos {
			return true
		}
	}
	return false
}
