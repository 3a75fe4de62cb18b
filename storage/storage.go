package storage

import (
	"tidbyt.dev/tripsplit/model"
)

type Storage interface {
	// Gets a reader for the feed with the given ID.
	GetReader(feed string) (FeedReader, error)

	// Gets a writer for the feed with the given ID. Any existing
	// data for the feed is replaced.
	GetWriter(feed string) (FeedWriter, error)

	// Reads back the split schedule of a feed.
	GetScheduleReader(feed string) (ScheduleReader, error)

	// Gets a writer for the split schedule of a feed. Any
	// existing schedule for the feed is replaced.
	GetScheduleWriter(feed string) (ScheduleWriter, error)
}

// Summary of a parsed static feed.
type FeedMetadata struct {
	Timezone          string
	CalendarStartDate string
	CalendarEndDate   string
	MaxArrival        string
	MaxDeparture      string
}

// Writes GTFS records for a single feed.
//
// As stop_times.txt tends to be very large, BeginStopTimes() and
// EndStopTimes() are called before and after all calls to
// WriteStopTime(), allowing transactions/batching/whathaveyou. Same
// goes for trips.
type FeedWriter interface {
	WriteAgency(agency model.Agency) error
	WriteStop(stop model.Stop) error
	WriteRoute(route model.Route) error
	BeginTrips() error
	WriteTrip(trip model.Trip) error
	EndTrips() error
	WriteCalendar(cal model.Calendar) error
	WriteCalendarDate(caldate model.CalendarDate) error
	BeginStopTimes() error
	WriteStopTime(stopTime model.StopTime) error
	EndStopTimes() error
	Close() error
}

type FeedReader interface {
	Agencies() ([]model.Agency, error)
	Stops() ([]model.Stop, error)
	Routes() ([]model.Route, error)
	Trips() ([]model.Trip, error)
	StopTimes() ([]model.StopTime, error)
	Calendars() ([]model.Calendar, error)
	CalendarDates() ([]model.CalendarDate, error)

	// Services IDs for all services active on the given
	// date. Date is given as YYYYMMDD.
	ActiveServices(date string) ([]string, error)
}

// Persists the output of splitting a feed. Trip stops are bracketed
// by BeginTripStops() and EndTripStops() for batching.
type ScheduleWriter interface {
	WriteRoute(route model.ScheduleRoute) error
	WriteTrip(trip model.ScheduleTrip) error
	BeginTripStops() error
	WriteTripStop(stop model.ScheduleTripStop) error
	EndTripStops() error
	WriteDirectionStop(stop model.ScheduleDirectionStop) error
	Close() error
}

// Reads a persisted schedule. Routes are ordered by ID, trips by
// route and position, trip stops by trip and rank, and direction
// stops by route, direction and position.
type ScheduleReader interface {
	Routes() ([]model.ScheduleRoute, error)
	Trips() ([]model.ScheduleTrip, error)
	TripStops() ([]model.ScheduleTripStop, error)
	DirectionStops() ([]model.ScheduleDirectionStop, error)
}
