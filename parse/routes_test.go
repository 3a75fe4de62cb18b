package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/tripsplit/model"
)

func TestParseRoutes(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content []string
		agency  map[string]bool
		err     bool
		routes  []model.Route
	}{
		{
			name: "minimal",
			content: []string{
				"route_id,route_short_name,route_type",
				"1,Route 1,3",
			},
			agency: map[string]bool{"": true},
			routes: []model.Route{{ID: "1", ShortName: "Route 1", Type: model.RouteTypeBus}},
		},
		{
			name: "all fields",
			content: []string{
				"route_id,agency_id,route_short_name,route_long_name,route_desc,route_type,route_url,route_color,route_text_color",
				"8,gp,SJP,St. Joseph Catholic,School run,3,http://gp/8,056839,FFFFFF",
			},
			agency: map[string]bool{"gp": true},
			routes: []model.Route{{
				ID:        "8",
				AgencyID:  "gp",
				ShortName: "SJP",
				LongName:  "St. Joseph Catholic",
				Desc:      "School run",
				Type:      model.RouteTypeBus,
				URL:       "http://gp/8",
				Color:     "056839",
				TextColor: "FFFFFF",
			}},
		},
		{
			name: "long name only",
			content: []string{
				"route_id,route_long_name,route_type",
				"1,Crosstown,3",
			},
			agency: map[string]bool{"": true},
			routes: []model.Route{{ID: "1", LongName: "Crosstown", Type: model.RouteTypeBus}},
		},
		{
			name:    "no names",
			content: []string{"route_id,route_type", "1,3"},
			agency:  map[string]bool{"": true},
			err:     true,
		},
		{
			name:    "no route type",
			content: []string{"route_id,route_short_name", "1,1"},
			agency:  map[string]bool{"": true},
			err:     true,
		},
		{
			name:    "illegal route type",
			content: []string{"route_id,route_short_name,route_type", "1,1,9"},
			agency:  map[string]bool{"": true},
			err:     true,
		},
		{
			name:    "bad color",
			content: []string{"route_id,route_short_name,route_type,route_color", "1,1,3,green"},
			agency:  map[string]bool{"": true},
			err:     true,
		},
		{
			name:    "unknown agency",
			content: []string{"route_id,agency_id,route_short_name,route_type", "1,x,1,3"},
			agency:  map[string]bool{"gp": true},
			err:     true,
		},
		{
			name:    "agency required with several agencies",
			content: []string{"route_id,route_short_name,route_type", "1,1,3"},
			agency:  map[string]bool{"a": true, "b": true},
			err:     true,
		},
		{
			name:    "repeated id",
			content: []string{"route_id,route_short_name,route_type", "1,1,3", "1,2,3"},
			agency:  map[string]bool{"": true},
			err:     true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			writer, reader := memoryFeed(t)

			ids, err := ParseRoutes(writer, csv(tc.content...), tc.agency)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, ids, len(tc.routes))

			routes, err := reader.Routes()
			require.NoError(t, err)
			assert.ElementsMatch(t, tc.routes, routes)
		})
	}
}
