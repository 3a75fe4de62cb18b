package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/tripsplit/model"
)

func TestParseTrips(t *testing.T) {
	routes := map[string]bool{"1": true, "2": true}
	services := map[string]bool{"wk": true}

	for _, tc := range []struct {
		name    string
		content []string
		err     bool
		trips   []model.Trip
	}{
		{
			name: "direction flags",
			content: []string{
				"trip_id,route_id,service_id,trip_headsign,trip_short_name,direction_id",
				"a,1,wk,Northgate,A,0",
				"b,1,wk,Southgate,,1",
				"c,2,wk,,,",
			},
			trips: []model.Trip{
				{ID: "a", RouteID: "1", ServiceID: "wk", Headsign: "Northgate", ShortName: "A", DirectionID: 0},
				{ID: "b", RouteID: "1", ServiceID: "wk", Headsign: "Southgate", DirectionID: 1},
				{ID: "c", RouteID: "2", ServiceID: "wk", DirectionID: model.NoDirection},
			},
		},
		{
			name: "no direction column",
			content: []string{
				"trip_id,route_id,service_id",
				"a,1,wk",
			},
			trips: []model.Trip{
				{ID: "a", RouteID: "1", ServiceID: "wk", DirectionID: model.NoDirection},
			},
		},
		{
			name:    "invalid direction",
			content: []string{"trip_id,route_id,service_id,direction_id", "a,1,wk,2"},
			err:     true,
		},
		{
			name:    "unknown route",
			content: []string{"trip_id,route_id,service_id", "a,9,wk"},
			err:     true,
		},
		{
			name:    "unknown service",
			content: []string{"trip_id,route_id,service_id", "a,1,sat"},
			err:     true,
		},
		{
			name:    "repeated id",
			content: []string{"trip_id,route_id,service_id", "a,1,wk", "a,2,wk"},
			err:     true,
		},
		{
			name:    "empty id",
			content: []string{"trip_id,route_id,service_id", ",1,wk"},
			err:     true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			writer, reader := memoryFeed(t)

			ids, err := ParseTrips(writer, csv(tc.content...), routes, services)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, ids, len(tc.trips))

			trips, err := reader.Trips()
			require.NoError(t, err)
			assert.ElementsMatch(t, tc.trips, trips)
		})
	}
}
