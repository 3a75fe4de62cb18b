package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"tidbyt.dev/tripsplit/model"
)

// Column lists, scanners and row values shared by the SQL
// backends. Scanners read columns in the order of the list.

var (
	agencyColumns       = []string{"id", "name", "url", "timezone"}
	stopColumns         = []string{"id", "code", "name", "description", "lat", "lon", "url", "location_type", "parent_station", "platform_code"}
	routeColumns        = []string{"id", "agency_id", "short_name", "long_name", "description", "type", "url", "color", "text_color"}
	tripColumns         = []string{"id", "route_id", "service_id", "headsign", "short_name", "direction_id"}
	stopTimeColumns     = []string{"trip_id", "stop_id", "stop_sequence", "arrival_time", "departure_time", "headsign"}
	calendarColumns     = []string{"service_id", "start_date", "end_date", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
	calendarDateColumns = []string{"service_id", "date", "exception_type"}

	scheduleRouteColumns         = []string{"id", "feed_route_id", "short_name", "long_name", "type", "color", "split"}
	scheduleTripColumns          = []string{"trip_id", "route_id", "service_id", "direction_id", "label", "headsign", "rule", "position"}
	scheduleTripStopColumns      = []string{"trip_id", "stop_id", "stop_sequence", "arrival_time", "rank", "slot"}
	scheduleDirectionStopColumns = []string{"route_id", "direction_id", "label", "stop_id", "stop_name", "position", "slot"}
)

type scanner interface {
	Scan(dest ...any) error
}

// Runs query and scans every row. what names the records in errors.
func queryAll[T any](db *sql.DB, what string, query string, scan func(scanner, *T) error, args ...any) ([]T, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", what, err)
	}
	defer rows.Close()

	records := []T{}
	for rows.Next() {
		var record T
		if err := scan(rows, &record); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", what, err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", what, err)
	}
	return records, nil
}

func execInsert(db *sql.DB, what string, query string, args ...any) error {
	if _, err := db.Exec(query, args...); err != nil {
		return fmt.Errorf("inserting %s: %w", what, err)
	}
	return nil
}

func selectFrom(table string, columns []string) string {
	return "SELECT " + strings.Join(columns, ", ") + " FROM " + table
}

func scanString(row scanner, s *string) error {
	return row.Scan(s)
}

func scanAgency(row scanner, a *model.Agency) error {
	return row.Scan(&a.ID, &a.Name, &a.URL, &a.Timezone)
}

func agencyValues(a model.Agency) []any {
	return []any{a.ID, a.Name, a.URL, a.Timezone}
}

func scanStop(row scanner, s *model.Stop) error {
	return row.Scan(&s.ID, &s.Code, &s.Name, &s.Desc, &s.Lat, &s.Lon, &s.URL, &s.LocationType, &s.ParentStation, &s.PlatformCode)
}

func stopValues(s model.Stop) []any {
	return []any{s.ID, s.Code, s.Name, s.Desc, s.Lat, s.Lon, s.URL, s.LocationType, s.ParentStation, s.PlatformCode}
}

func scanRoute(row scanner, r *model.Route) error {
	return row.Scan(&r.ID, &r.AgencyID, &r.ShortName, &r.LongName, &r.Desc, &r.Type, &r.URL, &r.Color, &r.TextColor)
}

func routeValues(r model.Route) []any {
	return []any{r.ID, r.AgencyID, r.ShortName, r.LongName, r.Desc, r.Type, r.URL, r.Color, r.TextColor}
}

func scanTrip(row scanner, t *model.Trip) error {
	return row.Scan(&t.ID, &t.RouteID, &t.ServiceID, &t.Headsign, &t.ShortName, &t.DirectionID)
}

func tripValues(t model.Trip) []any {
	return []any{t.ID, t.RouteID, t.ServiceID, t.Headsign, t.ShortName, t.DirectionID}
}

func scanStopTime(row scanner, st *model.StopTime) error {
	return row.Scan(&st.TripID, &st.StopID, &st.StopSequence, &st.Arrival, &st.Departure, &st.Headsign)
}

func stopTimeValues(st model.StopTime) []any {
	return []any{st.TripID, st.StopID, st.StopSequence, st.Arrival, st.Departure, st.Headsign}
}

// Weekdays are stored as one 0/1 column per day.
func scanCalendar(row scanner, c *model.Calendar) error {
	cols := [7]int{}
	err := row.Scan(
		&c.ServiceID, &c.StartDate, &c.EndDate,
		&cols[0], &cols[1], &cols[2], &cols[3], &cols[4], &cols[5], &cols[6],
	)
	if err != nil {
		return err
	}

	days := [7]bool{}
	for i, v := range cols {
		days[i] = v == 1
	}
	c.Weekday = weekdayMask(days)
	return nil
}

func calendarValues(c model.Calendar) []any {
	d := weekdayColumns(c.Weekday)
	return []any{c.ServiceID, c.StartDate, c.EndDate, d[0], d[1], d[2], d[3], d[4], d[5], d[6]}
}

func scanCalendarDate(row scanner, cd *model.CalendarDate) error {
	return row.Scan(&cd.ServiceID, &cd.Date, &cd.ExceptionType)
}

func calendarDateValues(cd model.CalendarDate) []any {
	return []any{cd.ServiceID, cd.Date, cd.ExceptionType}
}

func scanScheduleRoute(row scanner, r *model.ScheduleRoute) error {
	return row.Scan(&r.ID, &r.FeedRouteID, &r.ShortName, &r.LongName, &r.Type, &r.Color, &r.Split)
}

func scheduleRouteValues(r model.ScheduleRoute) []any {
	return []any{r.ID, r.FeedRouteID, r.ShortName, r.LongName, r.Type, r.Color, r.Split}
}

func scanScheduleTrip(row scanner, t *model.ScheduleTrip) error {
	return row.Scan(&t.TripID, &t.RouteID, &t.ServiceID, &t.DirectionID, &t.Label, &t.Headsign, &t.Rule, &t.Position)
}

func scheduleTripValues(t model.ScheduleTrip) []any {
	return []any{t.TripID, t.RouteID, t.ServiceID, t.DirectionID, t.Label, t.Headsign, t.Rule, t.Position}
}

func scanScheduleTripStop(row scanner, s *model.ScheduleTripStop) error {
	return row.Scan(&s.TripID, &s.StopID, &s.StopSequence, &s.Arrival, &s.Rank, &s.Slot)
}

func scheduleTripStopValues(s model.ScheduleTripStop) []any {
	return []any{s.TripID, s.StopID, s.StopSequence, s.Arrival, s.Rank, s.Slot}
}

func scanScheduleDirectionStop(row scanner, s *model.ScheduleDirectionStop) error {
	return row.Scan(&s.RouteID, &s.DirectionID, &s.Label, &s.StopID, &s.StopName, &s.Position, &s.Slot)
}

func scheduleDirectionStopValues(s model.ScheduleDirectionStop) []any {
	return []any{s.RouteID, s.DirectionID, s.Label, s.StopID, s.StopName, s.Position, s.Slot}
}
