package parse

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"tidbyt.dev/tripsplit/model"
	"tidbyt.dev/tripsplit/storage"
)

type TripCSV struct {
	ID          string `csv:"trip_id"`
	RouteID     string `csv:"route_id"`
	ServiceID   string `csv:"service_id"`
	Headsign    string `csv:"trip_headsign"`
	ShortName   string `csv:"trip_short_name"`
	DirectionID string `csv:"direction_id"`
}

// direction_id is optional. A blank value becomes
// model.NoDirection.
func parseDirectionID(s string) (int8, error) {
	switch strings.TrimSpace(s) {
	case "":
		return model.NoDirection, nil
	case "0":
		return 0, nil
	case "1":
		return 1, nil
	}
	return 0, fmt.Errorf("invalid direction_id '%s'", s)
}

// Returns the set of trip IDs.
func ParseTrips(
	writer storage.FeedWriter,
	data io.Reader,
	routes map[string]bool,
	services map[string]bool,
) (map[string]bool, error) {
	rows := []*TripCSV{}
	if err := gocsv.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshaling trips csv: %w", err)
	}

	trips := map[string]bool{}
	for _, t := range rows {
		switch {
		case t.ID == "":
			return nil, fmt.Errorf("empty trip_id")
		case trips[t.ID]:
			return nil, fmt.Errorf("repeated trip_id '%s'", t.ID)
		case t.RouteID == "":
			return nil, fmt.Errorf("empty route_id")
		case !routes[t.RouteID]:
			return nil, fmt.Errorf("unknown route_id '%s'", t.RouteID)
		case !services[t.ServiceID]:
			return nil, fmt.Errorf("unknown service_id '%s'", t.ServiceID)
		}
		trips[t.ID] = true

		direction, err := parseDirectionID(t.DirectionID)
		if err != nil {
			return nil, fmt.Errorf("trip_id '%s': %w", t.ID, err)
		}

		err = writer.WriteTrip(model.Trip{
			ID:          t.ID,
			RouteID:     t.RouteID,
			ServiceID:   t.ServiceID,
			Headsign:    t.Headsign,
			ShortName:   t.ShortName,
			DirectionID: direction,
		})
		if err != nil {
			return nil, fmt.Errorf("writing trip: %w", err)
		}
	}

	return trips, nil
}
