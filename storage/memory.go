package storage

import (
	"fmt"
	"sort"
	"time"

	"tidbyt.dev/tripsplit/model"
)

// In memory implementation of Storage below

type MemoryStorage struct {
	Feeds     map[string]*MemoryStorageFeed
	Schedules map[string]*MemorySchedule
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Feeds:     map[string]*MemoryStorageFeed{},
		Schedules: map[string]*MemorySchedule{},
	}
}

func (s *MemoryStorage) GetReader(feed string) (FeedReader, error) {
	f, ok := s.Feeds[feed]
	if !ok {
		return nil, fmt.Errorf("feed %s not found", feed)
	}
	return f, nil
}

func (s *MemoryStorage) GetWriter(feed string) (FeedWriter, error) {
	f := &MemoryStorageFeed{
		calendar:        map[string]model.Calendar{},
		calendarDate:    map[string][]model.CalendarDate{},
		routes:          map[string]model.Route{},
		agency:          map[string]model.Agency{},
		stops:           map[string]model.Stop{},
		trips:           map[string]model.Trip{},
		stopTimesByTrip: map[string][]model.StopTime{},
	}

	s.Feeds[feed] = f

	return f, nil
}

func (s *MemoryStorage) GetScheduleReader(feed string) (ScheduleReader, error) {
	sched, ok := s.Schedules[feed]
	if !ok {
		return nil, fmt.Errorf("schedule for feed %s not found", feed)
	}
	return sched, nil
}

func (s *MemoryStorage) GetScheduleWriter(feed string) (ScheduleWriter, error) {
	sched := &MemorySchedule{}
	s.Schedules[feed] = sched
	return sched, nil
}

type MemoryStorageFeed struct {
	calendar        map[string]model.Calendar
	calendarDate    map[string][]model.CalendarDate
	routes          map[string]model.Route
	agency          map[string]model.Agency
	stops           map[string]model.Stop
	trips           map[string]model.Trip
	stopTimesByTrip map[string][]model.StopTime
}

func (f *MemoryStorageFeed) WriteAgency(agency model.Agency) error {
	f.agency[agency.ID] = agency
	return nil
}

func (f *MemoryStorageFeed) WriteStop(stop model.Stop) error {
	f.stops[stop.ID] = stop
	return nil
}

func (f *MemoryStorageFeed) WriteRoute(route model.Route) error {
	f.routes[route.ID] = route
	return nil
}

func (f *MemoryStorageFeed) BeginTrips() error {
	return nil
}

func (f *MemoryStorageFeed) WriteTrip(trip model.Trip) error {
	f.trips[trip.ID] = trip
	return nil
}

func (f *MemoryStorageFeed) EndTrips() error {
	return nil
}

func (f *MemoryStorageFeed) BeginStopTimes() error {
	return nil
}

func (f *MemoryStorageFeed) WriteStopTime(stopTime model.StopTime) error {
	f.stopTimesByTrip[stopTime.TripID] = append(f.stopTimesByTrip[stopTime.TripID], stopTime)
	return nil
}

func (f *MemoryStorageFeed) EndStopTimes() error {
	return nil
}

func (f *MemoryStorageFeed) WriteCalendar(row model.Calendar) error {
	f.calendar[row.ServiceID] = row
	return nil
}

func (f *MemoryStorageFeed) WriteCalendarDate(row model.CalendarDate) error {
	f.calendarDate[row.ServiceID] = append(f.calendarDate[row.ServiceID], row)
	return nil
}

func (f *MemoryStorageFeed) Close() error {
	return nil
}

func (f *MemoryStorageFeed) Agencies() ([]model.Agency, error) {
	agencies := []model.Agency{}
	for _, v := range f.agency {
		agencies = append(agencies, v)
	}
	return agencies, nil
}

func (f *MemoryStorageFeed) Stops() ([]model.Stop, error) {
	stops := []model.Stop{}
	for _, v := range f.stops {
		stops = append(stops, v)
	}
	return stops, nil
}

func (f *MemoryStorageFeed) Routes() ([]model.Route, error) {
	routes := []model.Route{}
	for _, v := range f.routes {
		routes = append(routes, v)
	}
	return routes, nil
}

func (f *MemoryStorageFeed) Trips() ([]model.Trip, error) {
	trips := []model.Trip{}
	for _, v := range f.trips {
		trips = append(trips, v)
	}
	return trips, nil
}

func (f *MemoryStorageFeed) StopTimes() ([]model.StopTime, error) {
	stopTimes := []model.StopTime{}
	for _, v := range f.stopTimesByTrip {
		stopTimes = append(stopTimes, v...)
	}
	return stopTimes, nil
}

func (f *MemoryStorageFeed) Calendars() ([]model.Calendar, error) {
	cals := []model.Calendar{}
	for _, v := range f.calendar {
		cals = append(cals, v)
	}
	return cals, nil
}

func (f *MemoryStorageFeed) CalendarDates() ([]model.CalendarDate, error) {
	cds := []model.CalendarDate{}
	for _, v := range f.calendarDate {
		cds = append(cds, v...)
	}
	return cds, nil
}

func (f *MemoryStorageFeed) ActiveServices(date string) ([]string, error) {
	parsedDate, err := time.Parse("20060102", date)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %s", date)
	}

	services := map[string]bool{}
	for _, calendar := range f.calendar {
		if calendar.Weekday&(1<<parsedDate.Weekday()) == 0 {
			continue
		}
		if calendar.StartDate > date || calendar.EndDate < date {
			continue
		}
		services[calendar.ServiceID] = true
	}

	for _, cds := range f.calendarDate {
		for _, cd := range cds {
			if cd.Date != date {
				continue
			}
			switch cd.ExceptionType {
			case model.ExceptionTypeAdded:
				services[cd.ServiceID] = true
			case model.ExceptionTypeRemoved:
				services[cd.ServiceID] = false
			}
		}
	}

	activeServices := []string{}
	for serviceID, active := range services {
		if active {
			activeServices = append(activeServices, serviceID)
		}
	}
	sort.Strings(activeServices)

	return activeServices, nil
}

// MemorySchedule holds a split schedule. It is both the writer and
// the reader.
type MemorySchedule struct {
	routes         []model.ScheduleRoute
	trips          []model.ScheduleTrip
	tripStops      []model.ScheduleTripStop
	directionStops []model.ScheduleDirectionStop
}

func (s *MemorySchedule) WriteRoute(route model.ScheduleRoute) error {
	s.routes = append(s.routes, route)
	return nil
}

func (s *MemorySchedule) WriteTrip(trip model.ScheduleTrip) error {
	s.trips = append(s.trips, trip)
	return nil
}

func (s *MemorySchedule) BeginTripStops() error {
	return nil
}

func (s *MemorySchedule) WriteTripStop(stop model.ScheduleTripStop) error {
	s.tripStops = append(s.tripStops, stop)
	return nil
}

func (s *MemorySchedule) EndTripStops() error {
	return nil
}

func (s *MemorySchedule) WriteDirectionStop(stop model.ScheduleDirectionStop) error {
	s.directionStops = append(s.directionStops, stop)
	return nil
}

func (s *MemorySchedule) Close() error {
	return nil
}

func (s *MemorySchedule) Routes() ([]model.ScheduleRoute, error) {
	routes := append([]model.ScheduleRoute{}, s.routes...)
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].ID < routes[j].ID
	})
	return routes, nil
}

func (s *MemorySchedule) Trips() ([]model.ScheduleTrip, error) {
	trips := append([]model.ScheduleTrip{}, s.trips...)
	sort.SliceStable(trips, func(i, j int) bool {
		if trips[i].RouteID != trips[j].RouteID {
			return trips[i].RouteID < trips[j].RouteID
		}
		return trips[i].Position < trips[j].Position
	})
	return trips, nil
}

func (s *MemorySchedule) TripStops() ([]model.ScheduleTripStop, error) {
	stops := append([]model.ScheduleTripStop{}, s.tripStops...)
	sort.SliceStable(stops, func(i, j int) bool {
		if stops[i].TripID != stops[j].TripID {
			return stops[i].TripID < stops[j].TripID
		}
		return stops[i].Rank < stops[j].Rank
	})
	return stops, nil
}

func (s *MemorySchedule) DirectionStops() ([]model.ScheduleDirectionStop, error) {
	stops := append([]model.ScheduleDirectionStop{}, s.directionStops...)
	sort.SliceStable(stops, func(i, j int) bool {
		a, b := stops[i], stops[j]
		if a.RouteID != b.RouteID {
			return a.RouteID < b.RouteID
		}
		if a.DirectionID != b.DirectionID {
			return a.DirectionID < b.DirectionID
		}
		return a.Position < b.Position
	})
	return stops, nil
}
