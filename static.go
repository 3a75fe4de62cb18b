package tripsplit

import (
	"fmt"
	"sort"
	"time"

	"tidbyt.dev/tripsplit/model"
	"tidbyt.dev/tripsplit/storage"
)

// Feed is a read view of a parsed static feed, shaped for the split
// engine.
type Feed struct {
	Metadata *storage.FeedMetadata
	Reader   storage.FeedReader
}

func NewFeed(reader storage.FeedReader, metadata *storage.FeedMetadata) *Feed {
	if metadata == nil {
		metadata = &storage.FeedMetadata{}
	}
	return &Feed{
		Metadata: metadata,
		Reader:   reader,
	}
}

func (f *Feed) Stops() ([]model.Stop, error) {
	stops, err := f.Reader.Stops()
	if err != nil {
		return nil, fmt.Errorf("getting stops: %w", err)
	}
	sort.Slice(stops, func(i, j int) bool { return stops[i].ID < stops[j].ID })
	return stops, nil
}

func (f *Feed) Routes() ([]model.Route, error) {
	routes, err := f.Reader.Routes()
	if err != nil {
		return nil, fmt.Errorf("getting routes: %w", err)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].ID < routes[j].ID })
	return routes, nil
}

// Returns trips with their stop times, ordered by trip_id, stop
// times in stop_sequence order.
//
// If services is non-nil, only trips of those services are
// returned.
func (f *Feed) RawTrips(services map[string]bool) ([]model.RawTrip, error) {
	trips, err := f.Reader.Trips()
	if err != nil {
		return nil, fmt.Errorf("getting trips: %w", err)
	}

	stopTimes, err := f.Reader.StopTimes()
	if err != nil {
		return nil, fmt.Errorf("getting stop times: %w", err)
	}

	byTrip := map[string][]model.StopTimeRecord{}
	for _, st := range stopTimes {
		byTrip[st.TripID] = append(byTrip[st.TripID], model.StopTimeRecord{
			StopID:       st.StopID,
			StopSequence: st.StopSequence,
			Arrival:      st.Arrival,
		})
	}

	raw := make([]model.RawTrip, 0, len(trips))
	for _, t := range trips {
		if services != nil && !services[t.ServiceID] {
			continue
		}

		records := byTrip[t.ID]
		sort.Slice(records, func(i, j int) bool {
			return records[i].StopSequence < records[j].StopSequence
		})

		raw = append(raw, model.RawTrip{
			TripID:      t.ID,
			RouteID:     t.RouteID,
			ServiceID:   t.ServiceID,
			Headsign:    t.Headsign,
			DirectionID: t.DirectionID,
			StopTimes:   records,
		})
	}

	sort.Slice(raw, func(i, j int) bool { return raw[i].TripID < raw[j].TripID })

	return raw, nil
}

// Dates from start to end inclusive, as YYYYMMDD.
func datesBetween(start, end time.Time) []string {
	dates := []string{}
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	for ; !day.After(last); day = day.AddDate(0, 0, 1) {
		dates = append(dates, day.Format("20060102"))
	}
	return dates
}

// Services active on at least one date between start and end. Nil
// if the window is unset, meaning every service is useful.
func UsefulServices(reader storage.FeedReader, start, end time.Time) (map[string]bool, error) {
	if start.IsZero() && end.IsZero() {
		return nil, nil
	}
	if end.Before(start) {
		return nil, fmt.Errorf("service window ends before it starts")
	}

	useful := map[string]bool{}
	for _, date := range datesBetween(start, end) {
		active, err := reader.ActiveServices(date)
		if err != nil {
			return nil, fmt.Errorf("getting services active on %s: %w", date, err)
		}
		for _, id := range active {
			useful[id] = true
		}
	}

	return useful, nil
}
