package split_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"tidbyt.dev/tripsplit/model"
	"tidbyt.dev/tripsplit/split"
)

// Catalog where each ref resolves to the stop_id of the same name.
func identityCatalog(ids ...string) *split.Catalog {
	m := map[model.StopRef][]string{}
	for _, id := range ids {
		m[model.StopRef(id)] = []string{id}
	}
	return split.NewCatalog(m)
}

func refs(ids ...string) []model.StopRef {
	out := make([]model.StopRef, len(ids))
	for i, id := range ids {
		out[i] = model.StopRef(id)
	}
	return out
}

// Trip with stop_sequence 1..n and arrivals one minute apart from
// 08:00.
func rawTrip(id string, direction int8, headsign string, stops ...string) model.RawTrip {
	trip := model.RawTrip{
		TripID:      id,
		RouteID:     "1",
		ServiceID:   "weekday",
		Headsign:    headsign,
		DirectionID: direction,
	}
	for i, s := range stops {
		trip.StopTimes = append(trip.StopTimes, model.StopTimeRecord{
			StopID:       s,
			StopSequence: uint32(i + 1),
			Arrival:      fmt.Sprintf("08%02d00", i),
		})
	}
	return trip
}

// NORTH: A B C D, SOUTH: D C B A.
func northSouthSpec() split.RouteSpec {
	return split.RouteSpec{
		RouteID: 1,
		Directions: []split.DirectionSpec{
			{Label: model.DirectionNorth, Headsign: "Northgate", Stops: refs("A", "B", "C", "D")},
			{Label: model.DirectionSouth, Headsign: "Southgate", Stops: refs("D", "C", "B", "A")},
		},
	}
}

func compileRoute(t *testing.T, spec split.RouteSpec, catalog *split.Catalog) *split.CompiledRoute {
	route, err := spec.Compile(catalog)
	require.NoError(t, err)
	return route
}

func stopIDs(trip model.OrderedTrip) []string {
	ids := make([]string, len(trip.Stops))
	for i, s := range trip.Stops {
		ids[i] = s.StopID
	}
	return ids
}
