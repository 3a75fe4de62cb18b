package tripsplit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/tripsplit"
	"tidbyt.dev/tripsplit/config"
	"tidbyt.dev/tripsplit/model"
	"tidbyt.dev/tripsplit/split"
	"tidbyt.dev/tripsplit/testutil"
)

const crosstownConfig = `
agency:
  name: GP Transit
  color: "056839"
  route_type: 3
policy: lenient
catalog:
  key: stop_code
route_aliases:
  sjp: 8
route_long_names:
  1: Crosstown
  8: St Joseph
routes:
  - route_id: 1
    shared: ["M4"]
    directions:
      - label: north
        headsign: Prairie Mall
        stops: ["151", "159", "M4"]
      - label: south
        headsign: Country Club
        stops: ["M4", "159", "151"]
headsign_overrides:
  - route_id: 8
    direction_id: 0
    headsign: St John Paul II
`

func crosstownFeed() map[string][]string {
	return map[string][]string{
		"routes.txt": {
			"route_id,route_short_name,route_long_name,route_type,route_color",
			"r1,Route 1,Route 1,3,",
			"r8,SJP,,3,ff0000",
		},
		"calendar.txt": {
			"service_id,start_date,end_date,monday,tuesday,wednesday,thursday,friday,saturday,sunday",
			"wk,20240101,20241231,1,1,1,1,1,0,0",
			"sat,20240101,20241231,0,0,0,0,0,1,0",
		},
		"stops.txt": {
			"stop_id,stop_code,stop_name,stop_lat,stop_lon",
			"s151,151,100 Ave & 98 St,55.10,-118.80",
			"s159,159,Eastlink Centre,55.20,-118.80",
			"sM4,M4,Prairie Mall,55.30,-118.80",
			"s900,900,Montrose,55.40,-118.80",
		},
		"trips.txt": {
			"route_id,service_id,trip_id,trip_headsign,direction_id",
			"r1,wk,n1,Prairie Mall,",
			"r1,wk,s1,,",
			"r1,wk,bad,Downtown,",
			"r1,sat,n2,Prairie Mall,",
			"r8,wk,x1,,0",
		},
		"stop_times.txt": {
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
			"n1,08:00:00,08:00:00,s151,1",
			"n1,08:05:00,08:05:00,s159,2",
			"n1,08:15:00,08:15:00,sM4,3",
			"s1,09:00:00,09:00:00,sM4,1",
			"s1,,,s900,2",
			"s1,09:05:00,09:05:00,s159,3",
			"s1,09:10:00,09:10:00,s151,4",
			"bad,10:00:00,10:00:00,sM4,1",
			"bad,10:05:00,10:05:00,s900,2",
			"n2,08:00:00,08:00:00,s151,1",
			"n2,08:20:00,08:20:00,sM4,2",
			"x1,07:00:00,07:00:00,s900,1",
			"x1,07:10:00,07:10:00,s151,2",
		},
	}
}

func crosstownConverter(t *testing.T) *tripsplit.Converter {
	cfg, err := config.Parse([]byte(crosstownConfig))
	require.NoError(t, err)
	return tripsplit.NewConverter(cfg, nil)
}

func TestConverterRouteID(t *testing.T) {
	c := crosstownConverter(t)

	for _, tc := range []struct {
		name      string
		shortName string
		id        int64
		err       bool
	}{
		{"digits", "1", 1, false},
		{"prefixed", "Route 12", 12, false},
		{"alias", "SJP", 8, false},
		{"lowercase alias", "sjp", 8, false},
		{"zero", "0", 0, true},
		{"unknown", "Express", 0, true},
		{"blank", "", 0, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			id, err := c.RouteID(model.Route{ID: "r", ShortName: tc.shortName})
			if tc.err {
				require.Error(t, err)
				var cfgErr *split.ConfigurationError
				assert.True(t, errors.As(err, &cfgErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.id, id)
		})
	}
}

func TestConverterRouteLongName(t *testing.T) {
	c := crosstownConverter(t)

	for _, tc := range []struct {
		name     string
		routeID  int64
		route    model.Route
		expected string
		err      bool
	}{
		{"from feed", 1, model.Route{ShortName: "1", LongName: "Hospital"}, "Hospital", false},
		{"blank", 1, model.Route{ShortName: "1"}, "Crosstown", false},
		{"placeholder", 1, model.Route{ShortName: "Route 1", LongName: "Route 1"}, "Crosstown", false},
		{"placeholder of other route", 1, model.Route{ShortName: "1", LongName: "Route 2"}, "Route 2", false},
		{"no fallback", 5, model.Route{ShortName: "5", LongName: "Route 5"}, "", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			long, err := c.RouteLongName(tc.routeID, tc.route)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, long)
		})
	}
}

func TestConvert(t *testing.T) {
	for _, backend := range testutil.Backends {
		t.Run(backend, func(t *testing.T) {
			_, feed := testutil.BuildFeed(t, backend, crosstownFeed())
			c := crosstownConverter(t)
			c.Config.ServiceWindow = config.ServiceWindow{Start: "20240101", End: "20240105"}

			schedule, err := c.Convert(context.Background(), feed)
			require.NoError(t, err)

			assert.Equal(t, []model.ScheduleRoute{
				{ID: 1, FeedRouteID: "r1", ShortName: "1", LongName: "Crosstown", Type: 3, Color: "056839", Split: true},
				{ID: 8, FeedRouteID: "r8", ShortName: "SJP", LongName: "St Joseph", Type: 3, Color: "FF0000", Split: false},
			}, schedule.Routes)

			// n2 only runs on saturdays, bad can't be classified
			assert.Equal(t, []model.ScheduleTrip{
				{TripID: "n1", RouteID: 1, ServiceID: "wk", DirectionID: 0, Label: "NORTH", Headsign: "Prairie Mall", Rule: model.RuleHeadsign, Position: 0},
				{TripID: "s1", RouteID: 1, ServiceID: "wk", DirectionID: 1, Label: "SOUTH", Headsign: "Country Club", Rule: model.RuleStops, Position: 1},
				{TripID: "x1", RouteID: 8, ServiceID: "wk", DirectionID: 0, Label: "", Headsign: "St John Paul II", Rule: model.RulePassThrough, Position: 0},
			}, schedule.Trips)

			assert.Equal(t, []model.ScheduleTripStop{
				{TripID: "n1", StopID: "s151", StopSequence: 1, Arrival: "080000", Rank: 0, Slot: 0},
				{TripID: "n1", StopID: "s159", StopSequence: 2, Arrival: "080500", Rank: 1, Slot: 1},
				{TripID: "n1", StopID: "sM4", StopSequence: 3, Arrival: "081500", Rank: 2, Slot: 2},
				{TripID: "s1", StopID: "sM4", StopSequence: 1, Arrival: "090000", Rank: 0, Slot: 0},
				{TripID: "s1", StopID: "s900", StopSequence: 2, Arrival: "", Rank: 1, Slot: -1},
				{TripID: "s1", StopID: "s159", StopSequence: 3, Arrival: "090500", Rank: 2, Slot: 1},
				{TripID: "s1", StopID: "s151", StopSequence: 4, Arrival: "091000", Rank: 3, Slot: 2},
				{TripID: "x1", StopID: "s900", StopSequence: 1, Arrival: "070000", Rank: 0, Slot: -1},
				{TripID: "x1", StopID: "s151", StopSequence: 2, Arrival: "071000", Rank: 1, Slot: -1},
			}, schedule.TripStops)

			assert.Equal(t, []model.ScheduleDirectionStop{
				{RouteID: 1, DirectionID: 0, Label: "NORTH", StopID: "s151", StopName: "100 Ave & 98 St", Position: 0, Slot: 0},
				{RouteID: 1, DirectionID: 0, Label: "NORTH", StopID: "s159", StopName: "Eastlink Ctr", Position: 1, Slot: 1},
				{RouteID: 1, DirectionID: 0, Label: "NORTH", StopID: "sM4", StopName: "Prairie Mall", Position: 2, Slot: 2},
				{RouteID: 1, DirectionID: 1, Label: "SOUTH", StopID: "sM4", StopName: "Prairie Mall", Position: 0, Slot: 0},
				{RouteID: 1, DirectionID: 1, Label: "SOUTH", StopID: "s900", StopName: "Montrose", Position: 1, Slot: -1},
				{RouteID: 1, DirectionID: 1, Label: "SOUTH", StopID: "s159", StopName: "Eastlink Ctr", Position: 2, Slot: 1},
				{RouteID: 1, DirectionID: 1, Label: "SOUTH", StopID: "s151", StopName: "100 Ave & 98 St", Position: 3, Slot: 2},
				{RouteID: 8, DirectionID: 0, Label: "", StopID: "s900", StopName: "Montrose", Position: 0, Slot: -1},
				{RouteID: 8, DirectionID: 0, Label: "", StopID: "s151", StopName: "100 Ave & 98 St", Position: 1, Slot: -1},
			}, schedule.DirectionStops)

			require.Equal(t, 1, len(schedule.Rejections))
			assert.Equal(t, int64(1), schedule.Rejections[0].RouteID)
			assert.Equal(t, "bad", schedule.Rejections[0].TripID)
			var ambiguous *split.AmbiguousTripError
			assert.True(t, errors.As(schedule.Rejections[0].Err, &ambiguous))
		})
	}
}

func TestConvertWithoutServiceWindow(t *testing.T) {
	_, feed := testutil.BuildFeed(t, "memory", crosstownFeed())
	c := crosstownConverter(t)

	schedule, err := c.Convert(context.Background(), feed)
	require.NoError(t, err)

	tripIDs := []string{}
	for _, trip := range schedule.Trips {
		tripIDs = append(tripIDs, trip.TripID)
	}
	assert.Equal(t, []string{"n1", "n2", "s1", "x1"}, tripIDs)
}

func TestConvertStrict(t *testing.T) {
	_, feed := testutil.BuildFeed(t, "memory", crosstownFeed())
	c := crosstownConverter(t)
	c.Config.Policy = "strict"

	_, err := c.Convert(context.Background(), feed)
	require.Error(t, err)
	var ambiguous *split.AmbiguousTripError
	assert.True(t, errors.As(err, &ambiguous))
}

func TestConvertUnresolvedStop(t *testing.T) {
	files := crosstownFeed()
	files["stops.txt"] = []string{
		"stop_id,stop_code,stop_name,stop_lat,stop_lon",
		"s151,151,100 Ave & 98 St,55.10,-118.80",
		"sM4,M4,Prairie Mall,55.30,-118.80",
		"s900,900,Montrose,55.40,-118.80",
	}
	files["stop_times.txt"] = []string{
		"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
		"n1,08:00:00,08:00:00,s151,1",
	}

	_, feed := testutil.BuildFeed(t, "memory", files)
	c := crosstownConverter(t)

	_, err := c.Convert(context.Background(), feed)
	require.Error(t, err)
	var cfgErr *split.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestConvertDuplicateRouteID(t *testing.T) {
	files := crosstownFeed()
	files["routes.txt"] = []string{
		"route_id,route_short_name,route_long_name,route_type",
		"r1,Route 1,,3",
		"r1b,1,,3",
		"r8,SJP,,3",
	}

	_, feed := testutil.BuildFeed(t, "memory", files)
	c := crosstownConverter(t)

	_, err := c.Convert(context.Background(), feed)
	require.Error(t, err)
	var cfgErr *split.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestScheduleWrite(t *testing.T) {
	for _, backend := range testutil.Backends {
		t.Run(backend, func(t *testing.T) {
			s, feed := testutil.BuildFeed(t, backend, crosstownFeed())
			c := crosstownConverter(t)

			schedule, err := c.Convert(context.Background(), feed)
			require.NoError(t, err)

			writer, err := s.GetScheduleWriter("test")
			require.NoError(t, err)
			require.NoError(t, schedule.Write(writer))

			reader, err := s.GetScheduleReader("test")
			require.NoError(t, err)

			routes, err := reader.Routes()
			require.NoError(t, err)
			assert.Equal(t, schedule.Routes, routes)

			trips, err := reader.Trips()
			require.NoError(t, err)
			assert.Equal(t, schedule.Trips, trips)

			tripStops, err := reader.TripStops()
			require.NoError(t, err)
			assert.Equal(t, schedule.TripStops, tripStops)

			directionStops, err := reader.DirectionStops()
			require.NoError(t, err)
			assert.Equal(t, schedule.DirectionStops, directionStops)
		})
	}
}

func TestConvertDefaultConfigCompiles(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	// One stop per distinct canonical ref and remapped id.
	seen := map[string]bool{}
	stops := []string{"stop_id,stop_code,stop_name,stop_lat,stop_lon"}
	add := func(code string) {
		if seen[code] {
			return
		}
		seen[code] = true
		stops = append(stops, code+","+code+",Stop "+code+",55.17,-118.79")
	}
	for _, r := range cfg.Routes {
		for _, d := range r.Directions {
			for _, ref := range d.Stops {
				add(ref)
			}
		}
	}
	for _, ids := range cfg.Catalog.Remap {
		for _, id := range ids {
			add(id)
		}
	}

	_, feed := testutil.BuildFeed(t, "memory", map[string][]string{"stops.txt": stops})

	table, err := tripsplit.NewConverter(cfg, nil).Compile(feed)
	require.NoError(t, err)

	for _, r := range cfg.Routes {
		_, found := table.ForRoute(r.RouteID)
		assert.True(t, found, "route %d", r.RouteID)
	}
}

func TestCheck(t *testing.T) {
	t.Run("rejections", func(t *testing.T) {
		_, feed := testutil.BuildFeed(t, "memory", crosstownFeed())
		c := crosstownConverter(t)
		c.Config.Policy = "strict"

		report, err := c.Check(context.Background(), feed)
		require.NoError(t, err)
		assert.False(t, report.OK())
		assert.Equal(t, 0, len(report.Routes))
		assert.Equal(t, 4, report.Trips)
		require.Equal(t, 1, len(report.Rejections))
		assert.Equal(t, "bad", report.Rejections[0].TripID)

		// Check doesn't change the converter's policy
		assert.Equal(t, "strict", c.Config.Policy)
	})

	t.Run("headsign conflicts", func(t *testing.T) {
		files := crosstownFeed()
		files["trips.txt"] = append(files["trips.txt"],
			"r8,wk,x2,Montrose,1",
			"r8,wk,x3,Downtown,1",
			"r8,wk,x4,Montrose,1",
			"r8,wk,x5,,0",
		)
		files["stop_times.txt"] = append(files["stop_times.txt"],
			"x2,07:30:00,07:30:00,s151,1",
			"x3,07:40:00,07:40:00,s151,1",
			"x4,07:50:00,07:50:00,s151,1",
			"x5,08:00:00,08:00:00,s900,1",
		)

		_, feed := testutil.BuildFeed(t, "memory", files)
		c := crosstownConverter(t)

		report, err := c.Check(context.Background(), feed)
		require.NoError(t, err)
		assert.False(t, report.OK())

		// blank headsigns of direction 0 are overridden
		require.Equal(t, 1, len(report.Headsigns))
		var cfgErr *split.ConfigurationError
		require.True(t, errors.As(report.Headsigns[0], &cfgErr))
		assert.Equal(t, int64(8), cfgErr.RouteID)
		assert.Contains(t, cfgErr.Reason, "direction_id 1")
		assert.Contains(t, cfgErr.Reason, "'Downtown', 'Montrose'")
	})

	t.Run("unresolved refs", func(t *testing.T) {
		files := crosstownFeed()
		files["stops.txt"] = []string{
			"stop_id,stop_code,stop_name,stop_lat,stop_lon",
			"s900,900,Montrose,55.40,-118.80",
		}
		files["stop_times.txt"] = []string{
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
		}

		_, feed := testutil.BuildFeed(t, "memory", files)
		c := crosstownConverter(t)

		report, err := c.Check(context.Background(), feed)
		require.NoError(t, err)
		assert.False(t, report.OK())
		require.Equal(t, 1, len(report.Routes))
		var cfgErr *split.ConfigurationError
		require.True(t, errors.As(report.Routes[0], &cfgErr))
		assert.Equal(t, int64(1), cfgErr.RouteID)
		assert.Equal(t, 0, report.Trips)
	})
}
