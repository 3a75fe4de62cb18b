package split_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/tripsplit/model"
	"tidbyt.dev/tripsplit/split"
)

func TestClassify(t *testing.T) {
	catalog := identityCatalog("A", "B", "C", "D", "X")

	trusting := northSouthSpec()
	trusting.TrustDirectionFlag = true

	for _, tc := range []struct {
		name      string
		spec      split.RouteSpec
		trip      model.RawTrip
		direction int8
		label     model.DirectionLabel
		rule      model.Rule
	}{
		{
			"trusted flag",
			trusting,
			rawTrip("t", 1, "Northgate", "A", "B", "C", "D"),
			1, model.DirectionSouth, model.RuleDirectionFlag,
		},
		{
			"trusted flag missing falls back to headsign",
			trusting,
			rawTrip("t", model.NoDirection, "Southgate", "A", "B"),
			1, model.DirectionSouth, model.RuleHeadsign,
		},
		{
			"untrusted flag is ignored",
			northSouthSpec(),
			rawTrip("t", 1, "", "A", "B", "C"),
			0, model.DirectionNorth, model.RuleStops,
		},
		{
			"exact headsign ignores case and spacing",
			northSouthSpec(),
			rawTrip("t", 0, "  SOUTHGATE ", "A", "B", "C"),
			1, model.DirectionSouth, model.RuleHeadsign,
		},
		{
			"headsign containing direction headsign",
			northSouthSpec(),
			rawTrip("t", 0, "Express to Northgate Mall", "D", "C"),
			0, model.DirectionNorth, model.RuleHeadsign,
		},
		{
			"headsign contained in direction headsign",
			northSouthSpec(),
			rawTrip("t", 0, "south", "A", "B", "C"),
			1, model.DirectionSouth, model.RuleHeadsign,
		},
		{
			"headsign contained in both direction headsigns",
			northSouthSpec(),
			rawTrip("t", 1, "gate", "A", "B", "C"),
			0, model.DirectionNorth, model.RuleStops,
		},
		{
			"unknown headsign falls back to stops",
			northSouthSpec(),
			rawTrip("t", 0, "Downtown", "D", "C", "A"),
			1, model.DirectionSouth, model.RuleStops,
		},
		{
			"stops out of canonical order",
			northSouthSpec(),
			rawTrip("t", 0, "", "B", "X", "D"),
			0, model.DirectionNorth, model.RuleStops,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			route := compileRoute(t, tc.spec, catalog)

			classified, err := split.Classify(tc.trip, route)
			require.NoError(t, err)
			assert.Equal(t, tc.direction, classified.Direction)
			assert.Equal(t, tc.label, classified.Label)
			assert.Equal(t, tc.rule, classified.Rule)
			assert.Equal(t, tc.trip, classified.RawTrip)
		})
	}
}

// NORTH: A B C D, SOUTH: D C A, no configured headsigns.
func TestClassifyShortSouthbound(t *testing.T) {
	spec := split.RouteSpec{
		RouteID: 1,
		Directions: []split.DirectionSpec{
			{Label: model.DirectionNorth, Stops: refs("A", "B", "C", "D")},
			{Label: model.DirectionSouth, Stops: refs("D", "C", "A")},
		},
	}
	route := compileRoute(t, spec, identityCatalog("A", "B", "C", "D"))

	ordered, err := split.ProcessTrip(rawTrip("t", model.NoDirection, "A", "D", "C", "A"), route)
	require.NoError(t, err)
	assert.Equal(t, model.DirectionSouth, ordered.Label)
	assert.Equal(t, int8(1), ordered.Direction)
	assert.Equal(t, model.RuleStops, ordered.Rule)

	for i, s := range ordered.Stops {
		assert.Equal(t, i, s.Rank)
		assert.Equal(t, i, s.Slot)
	}
	assert.Equal(t, []string{"D", "C", "A"}, stopIDs(ordered))
}

func TestClassifyHeadsignInBothDirections(t *testing.T) {
	spec := split.RouteSpec{
		RouteID: 1,
		Directions: []split.DirectionSpec{
			{Label: model.DirectionEast, Headsign: "Downtown", Stops: refs("A", "B", "C")},
			{Label: model.DirectionWest, Headsign: "Downtown Loop", Stops: refs("C", "B", "A")},
		},
	}
	route := compileRoute(t, spec, identityCatalog("A", "B", "C"))

	// Exact match wins over a substring match of the other direction
	classified, err := split.Classify(rawTrip("t1", 0, "downtown", "C", "B", "A"), route)
	require.NoError(t, err)
	assert.Equal(t, model.DirectionEast, classified.Label)
	assert.Equal(t, model.RuleHeadsign, classified.Rule)

	// Both are substrings, so stops decide
	classified, err = split.Classify(rawTrip("t2", 0, "Downtown Loop Express", "A", "B", "C"), route)
	require.NoError(t, err)
	assert.Equal(t, model.DirectionEast, classified.Label)
	assert.Equal(t, model.RuleStops, classified.Rule)
}

func TestClassifyAmbiguous(t *testing.T) {
	shared := split.RouteSpec{
		RouteID: 5,
		Shared:  refs("T"),
		Directions: []split.DirectionSpec{
			{Label: model.DirectionNorth, Stops: refs("T", "A", "B")},
			{Label: model.DirectionSouth, Stops: refs("B", "A", "T")},
		},
	}
	twoStops := split.RouteSpec{
		RouteID: 5,
		Directions: []split.DirectionSpec{
			{Label: model.DirectionNorth, Stops: refs("A", "B")},
			{Label: model.DirectionSouth, Stops: refs("B", "A")},
		},
	}
	catalog := identityCatalog("A", "B", "T", "X")

	for _, tc := range []struct {
		name string
		spec split.RouteSpec
		trip model.RawTrip
	}{
		{"no known stops", twoStops, rawTrip("t", 0, "", "X")},
		{"no stops at all", twoStops, rawTrip("t", 0, "")},
		{"tied scores", twoStops, rawTrip("t", 0, "", "A")},
		{"only shared stops", shared, rawTrip("t", 1, "", "T", "X", "T")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			route := compileRoute(t, tc.spec, catalog)

			_, err := split.Classify(tc.trip, route)
			require.Error(t, err)

			var ambiguous *split.AmbiguousTripError
			require.True(t, errors.As(err, &ambiguous))
			assert.Equal(t, int64(5), ambiguous.RouteID)
			assert.Equal(t, "t", ambiguous.TripID)
			assert.True(t, split.IsTripError(err))
			assert.False(t, split.IsConfigurationError(err))
		})
	}
}

func TestClassifySharedStopsDoNotDecide(t *testing.T) {
	// Both directions start at the terminal T. With T counted, the
	// trip would match 2 stops in each direction.
	spec := split.RouteSpec{
		RouteID: 1,
		Shared:  refs("T"),
		Directions: []split.DirectionSpec{
			{Label: model.DirectionNorth, Stops: refs("T", "A", "B", "C")},
			{Label: model.DirectionSouth, Stops: refs("T", "C", "B", "A")},
		},
	}
	route := compileRoute(t, spec, identityCatalog("A", "B", "C", "T"))

	classified, err := split.Classify(rawTrip("t", model.NoDirection, "", "T", "A", "C"), route)
	require.NoError(t, err)
	assert.Equal(t, model.DirectionNorth, classified.Label)

	classified, err = split.Classify(rawTrip("t", model.NoDirection, "", "T", "C", "A"), route)
	require.NoError(t, err)
	assert.Equal(t, model.DirectionSouth, classified.Label)

	_, err = split.Classify(rawTrip("t", model.NoDirection, "", "T", "B"), route)
	assert.True(t, split.IsTripError(err))
}
