package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"tidbyt.dev/tripsplit/model"
)

const (
	PSQLTripBatchSize     = 10000
	PSQLStopTimeBatchSize = 5000
	PSQLTripStopBatchSize = 5000
)

// All feeds share one set of tables, keyed on the feed name.
type PSQLStorage struct {
	db *sql.DB
}

type PSQLFeedWriter struct {
	feed        string
	db          *sql.DB
	tripBuf     [][]any
	stopTimeBuf [][]any
}

type PSQLFeedReader struct {
	feed string
	db   *sql.DB
}

type PSQLScheduleWriter struct {
	feed        string
	db          *sql.DB
	tripStopBuf [][]any
}

type PSQLScheduleReader struct {
	feed string
	db   *sql.DB
}

var psqlFeedTables = map[string]string{
	"agency": `
CREATE TABLE IF NOT EXISTS agency (
    feed TEXT NOT NULL,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    url TEXT NOT NULL,
    timezone TEXT NOT NULL,
    PRIMARY KEY(feed, id)
);`,
	"stops": `
CREATE TABLE IF NOT EXISTS stops (
    feed TEXT NOT NULL,
    id TEXT NOT NULL,
    code TEXT,
    name TEXT NOT NULL,
    description TEXT,
    lat DOUBLE PRECISION NOT NULL,
    lon DOUBLE PRECISION NOT NULL,
    url TEXT,
    location_type INTEGER NOT NULL,
    parent_station TEXT,
    platform_code TEXT,
    PRIMARY KEY(feed, id)
);
CREATE INDEX IF NOT EXISTS stops_code ON stops (feed, code);
`,
	"routes": `
CREATE TABLE IF NOT EXISTS routes (
    feed TEXT NOT NULL,
    id TEXT NOT NULL,
    agency_id TEXT,
    short_name TEXT,
    long_name TEXT NOT NULL,
    description TEXT,
    type INTEGER NOT NULL,
    url TEXT,
    color TEXT,
    text_color TEXT,
    PRIMARY KEY(feed, id)
);`,
	"trips": `
CREATE TABLE IF NOT EXISTS trips (
    feed TEXT NOT NULL,
    id TEXT NOT NULL,
    route_id TEXT NOT NULL,
    service_id TEXT NOT NULL,
    headsign TEXT,
    short_name TEXT,
    direction_id INTEGER NOT NULL,
    PRIMARY KEY(feed, id)
);
CREATE INDEX IF NOT EXISTS trips_route_id ON trips (feed, route_id);
`,
	"stop_times": `
CREATE TABLE IF NOT EXISTS stop_times (
    feed TEXT NOT NULL,
    trip_id TEXT NOT NULL,
    stop_id TEXT NOT NULL,
    stop_sequence INTEGER NOT NULL,
    arrival_time TEXT NOT NULL,
    departure_time TEXT NOT NULL,
    headsign TEXT,
    PRIMARY KEY(feed, trip_id, stop_sequence)
);
`,
	"calendar": `
CREATE TABLE IF NOT EXISTS calendar (
    feed TEXT NOT NULL,
    service_id TEXT NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    monday INTEGER NOT NULL,
    tuesday INTEGER NOT NULL,
    wednesday INTEGER NOT NULL,
    thursday INTEGER NOT NULL,
    friday INTEGER NOT NULL,
    saturday INTEGER NOT NULL,
    sunday INTEGER NOT NULL,
    PRIMARY KEY(feed, service_id)
);`,
	"calendar_dates": `
CREATE TABLE IF NOT EXISTS calendar_dates (
    feed TEXT NOT NULL,
    service_id TEXT NOT NULL,
    date TEXT NOT NULL,
    exception_type INTEGER NOT NULL,
    PRIMARY KEY(feed, service_id, date)
);`,
}

var psqlScheduleTables = map[string]string{
	"schedule_routes": `
CREATE TABLE IF NOT EXISTS schedule_routes (
    feed TEXT NOT NULL,
    id BIGINT NOT NULL,
    feed_route_id TEXT NOT NULL,
    short_name TEXT NOT NULL,
    long_name TEXT NOT NULL,
    type INTEGER NOT NULL,
    color TEXT NOT NULL,
    split BOOLEAN NOT NULL,
    PRIMARY KEY(feed, id)
);`,
	"schedule_trips": `
CREATE TABLE IF NOT EXISTS schedule_trips (
    feed TEXT NOT NULL,
    trip_id TEXT NOT NULL,
    route_id BIGINT NOT NULL,
    service_id TEXT NOT NULL,
    direction_id INTEGER NOT NULL,
    label TEXT NOT NULL,
    headsign TEXT NOT NULL,
    rule TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY(feed, trip_id)
);`,
	"schedule_trip_stops": `
CREATE TABLE IF NOT EXISTS schedule_trip_stops (
    feed TEXT NOT NULL,
    trip_id TEXT NOT NULL,
    stop_id TEXT NOT NULL,
    stop_sequence INTEGER NOT NULL,
    arrival_time TEXT NOT NULL,
    rank INTEGER NOT NULL,
    slot INTEGER NOT NULL,
    PRIMARY KEY(feed, trip_id, rank)
);`,
	"schedule_direction_stops": `
CREATE TABLE IF NOT EXISTS schedule_direction_stops (
    feed TEXT NOT NULL,
    route_id BIGINT NOT NULL,
    direction_id INTEGER NOT NULL,
    label TEXT NOT NULL,
    stop_id TEXT NOT NULL,
    stop_name TEXT NOT NULL,
    position INTEGER NOT NULL,
    slot INTEGER NOT NULL,
    PRIMARY KEY(feed, route_id, direction_id, position)
);`,
}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, the database will be cleared on startup. You
// probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	for _, tables := range []map[string]string{psqlFeedTables, psqlScheduleTables} {
		if clearDB {
			for name := range tables {
				_, err = db.Exec(`DROP TABLE IF EXISTS ` + name)
				if err != nil {
					db.Close()
					return nil, fmt.Errorf("clearing db: %w", err)
				}
			}
		}

		for name, query := range tables {
			_, err = db.Exec(query)
			if err != nil {
				db.Close()
				return nil, fmt.Errorf("creating %s table: %w", name, err)
			}
		}
	}

	return &PSQLStorage{
		db: db,
	}, nil
}

func (s *PSQLStorage) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}

// Deletes any rows held for the feed.
func (s *PSQLStorage) reset(feed string, tables map[string]string) error {
	for name := range tables {
		_, err := s.db.Exec(`DELETE FROM `+name+` WHERE feed = $1`, feed)
		if err != nil {
			return fmt.Errorf("deleting %s records: %w", name, err)
		}
	}

	return nil
}

func (s *PSQLStorage) GetReader(feed string) (FeedReader, error) {
	return &PSQLFeedReader{
		feed: feed,
		db:   s.db,
	}, nil
}

func (s *PSQLStorage) GetWriter(feed string) (FeedWriter, error) {
	if err := s.reset(feed, psqlFeedTables); err != nil {
		return nil, err
	}

	return &PSQLFeedWriter{
		feed: feed,
		db:   s.db,
	}, nil
}

func (s *PSQLStorage) GetScheduleReader(feed string) (ScheduleReader, error) {
	return &PSQLScheduleReader{
		feed: feed,
		db:   s.db,
	}, nil
}

func (s *PSQLStorage) GetScheduleWriter(feed string) (ScheduleWriter, error) {
	if err := s.reset(feed, psqlScheduleTables); err != nil {
		return nil, err
	}

	return &PSQLScheduleWriter{
		feed: feed,
		db:   s.db,
	}, nil
}

// Runs a COPY of rows into table within a single transaction. The
// feed column is prepended to every row.
func psqlCopy(db *sql.DB, feed string, table string, columns []string, rows [][]any) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(pq.CopyIn(table, append([]string{"feed"}, columns...)...))
	if err != nil {
		return fmt.Errorf("preparing COPY %s: %w", table, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(append([]any{feed}, row...)...); err != nil {
			return fmt.Errorf("COPY %s: %w", table, err)
		}
	}

	if _, err := stmt.Exec(); err != nil {
		return fmt.Errorf("flushing COPY %s: %w", table, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	return nil
}

// Inserts a single row for the feed.
func psqlInsert(db *sql.DB, feed string, what string, table string, columns []string, values []any) error {
	placeholders := make([]string, len(columns)+1)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := "INSERT INTO " + table + " (feed, " + strings.Join(columns, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
	return execInsert(db, what, query, append([]any{feed}, values...)...)
}

// Selects the feed's rows of table.
func psqlSelect(table string, columns []string, orderBy string) string {
	query := selectFrom(table, columns) + " WHERE feed = $1"
	if orderBy != "" {
		query += " ORDER BY " + orderBy
	}
	return query
}

func psqlAnalyze(db *sql.DB) error {
	if _, err := db.Exec(`ANALYZE`); err != nil {
		return fmt.Errorf("analyzing: %w", err)
	}
	return nil
}

func (w *PSQLFeedWriter) WriteAgency(a model.Agency) error {
	return psqlInsert(w.db, w.feed, "agency", "agency", agencyColumns, agencyValues(a))
}

func (w *PSQLFeedWriter) WriteStop(stop model.Stop) error {
	return psqlInsert(w.db, w.feed, "stop", "stops", stopColumns, stopValues(stop))
}

func (w *PSQLFeedWriter) WriteRoute(route model.Route) error {
	return psqlInsert(w.db, w.feed, "route", "routes", routeColumns, routeValues(route))
}

func (w *PSQLFeedWriter) BeginTrips() error {
	return nil
}

func (w *PSQLFeedWriter) WriteTrip(trip model.Trip) error {
	w.tripBuf = append(w.tripBuf, tripValues(trip))
	if len(w.tripBuf) < PSQLTripBatchSize {
		return nil
	}
	return w.flushTrips()
}

func (w *PSQLFeedWriter) EndTrips() error {
	return w.flushTrips()
}

func (w *PSQLFeedWriter) flushTrips() error {
	if len(w.tripBuf) == 0 {
		return nil
	}
	if err := psqlCopy(w.db, w.feed, "trips", tripColumns, w.tripBuf); err != nil {
		return fmt.Errorf("flushing trips: %w", err)
	}
	w.tripBuf = nil
	return nil
}

func (w *PSQLFeedWriter) WriteCalendar(cal model.Calendar) error {
	return psqlInsert(w.db, w.feed, "calendar", "calendar", calendarColumns, calendarValues(cal))
}

func (w *PSQLFeedWriter) WriteCalendarDate(cd model.CalendarDate) error {
	return psqlInsert(w.db, w.feed, "calendar date", "calendar_dates", calendarDateColumns, calendarDateValues(cd))
}

func (w *PSQLFeedWriter) BeginStopTimes() error {
	return nil
}

func (w *PSQLFeedWriter) WriteStopTime(stopTime model.StopTime) error {
	w.stopTimeBuf = append(w.stopTimeBuf, stopTimeValues(stopTime))
	if len(w.stopTimeBuf) < PSQLStopTimeBatchSize {
		return nil
	}
	return w.flushStopTimes()
}

func (w *PSQLFeedWriter) EndStopTimes() error {
	return w.flushStopTimes()
}

func (w *PSQLFeedWriter) flushStopTimes() error {
	if len(w.stopTimeBuf) == 0 {
		return nil
	}
	if err := psqlCopy(w.db, w.feed, "stop_times", stopTimeColumns, w.stopTimeBuf); err != nil {
		return fmt.Errorf("flushing stop_times: %w", err)
	}
	w.stopTimeBuf = nil
	return nil
}

func (w *PSQLFeedWriter) Close() error {
	return psqlAnalyze(w.db)
}

func (r *PSQLFeedReader) ActiveServices(date string) ([]string, error) {
	weekday, err := weekdayColumn(date)
	if err != nil {
		return nil, err
	}

	return queryAll(r.db, "active services", `
SELECT service_id FROM calendar
WHERE feed = $1 AND `+weekday+` = 1 AND $2 BETWEEN start_date AND end_date AND service_id NOT IN (
	SELECT service_id FROM calendar_dates WHERE feed = $1 AND date = $2 AND exception_type = 2
)
UNION
SELECT service_id FROM calendar_dates
WHERE feed = $1 AND date = $2 AND exception_type = 1
ORDER BY service_id`, scanString, r.feed, date)
}

func (r *PSQLFeedReader) Agencies() ([]model.Agency, error) {
	return queryAll(r.db, "agencies", psqlSelect("agency", agencyColumns, ""), scanAgency, r.feed)
}

func (r *PSQLFeedReader) Stops() ([]model.Stop, error) {
	return queryAll(r.db, "stops", psqlSelect("stops", stopColumns, ""), scanStop, r.feed)
}

func (r *PSQLFeedReader) Routes() ([]model.Route, error) {
	return queryAll(r.db, "routes", psqlSelect("routes", routeColumns, ""), scanRoute, r.feed)
}

func (r *PSQLFeedReader) Trips() ([]model.Trip, error) {
	return queryAll(r.db, "trips", psqlSelect("trips", tripColumns, ""), scanTrip, r.feed)
}

func (r *PSQLFeedReader) StopTimes() ([]model.StopTime, error) {
	return queryAll(r.db, "stop times", psqlSelect("stop_times", stopTimeColumns, ""), scanStopTime, r.feed)
}

func (r *PSQLFeedReader) Calendars() ([]model.Calendar, error) {
	return queryAll(r.db, "calendar", psqlSelect("calendar", calendarColumns, ""), scanCalendar, r.feed)
}

func (r *PSQLFeedReader) CalendarDates() ([]model.CalendarDate, error) {
	return queryAll(r.db, "calendar dates", psqlSelect("calendar_dates", calendarDateColumns, ""), scanCalendarDate, r.feed)
}

func (w *PSQLScheduleWriter) WriteRoute(route model.ScheduleRoute) error {
	return psqlInsert(w.db, w.feed, "schedule route", "schedule_routes", scheduleRouteColumns, scheduleRouteValues(route))
}

func (w *PSQLScheduleWriter) WriteTrip(trip model.ScheduleTrip) error {
	return psqlInsert(w.db, w.feed, "schedule trip", "schedule_trips", scheduleTripColumns, scheduleTripValues(trip))
}

func (w *PSQLScheduleWriter) BeginTripStops() error {
	return nil
}

func (w *PSQLScheduleWriter) WriteTripStop(stop model.ScheduleTripStop) error {
	w.tripStopBuf = append(w.tripStopBuf, scheduleTripStopValues(stop))
	if len(w.tripStopBuf) < PSQLTripStopBatchSize {
		return nil
	}
	return w.flushTripStops()
}

func (w *PSQLScheduleWriter) EndTripStops() error {
	return w.flushTripStops()
}

func (w *PSQLScheduleWriter) flushTripStops() error {
	if len(w.tripStopBuf) == 0 {
		return nil
	}
	if err := psqlCopy(w.db, w.feed, "schedule_trip_stops", scheduleTripStopColumns, w.tripStopBuf); err != nil {
		return fmt.Errorf("flushing trip stops: %w", err)
	}
	w.tripStopBuf = nil
	return nil
}

func (w *PSQLScheduleWriter) WriteDirectionStop(stop model.ScheduleDirectionStop) error {
	return psqlInsert(w.db, w.feed, "direction stop", "schedule_direction_stops", scheduleDirectionStopColumns, scheduleDirectionStopValues(stop))
}

func (w *PSQLScheduleWriter) Close() error {
	return psqlAnalyze(w.db)
}

func (r *PSQLScheduleReader) Routes() ([]model.ScheduleRoute, error) {
	return queryAll(r.db, "schedule routes", psqlSelect("schedule_routes", scheduleRouteColumns, "id"), scanScheduleRoute, r.feed)
}

func (r *PSQLScheduleReader) Trips() ([]model.ScheduleTrip, error) {
	return queryAll(r.db, "schedule trips", psqlSelect("schedule_trips", scheduleTripColumns, "route_id, position"), scanScheduleTrip, r.feed)
}

func (r *PSQLScheduleReader) TripStops() ([]model.ScheduleTripStop, error) {
	return queryAll(r.db, "trip stops", psqlSelect("schedule_trip_stops", scheduleTripStopColumns, "trip_id, rank"), scanScheduleTripStop, r.feed)
}

func (r *PSQLScheduleReader) DirectionStops() ([]model.ScheduleDirectionStop, error) {
	return queryAll(r.db, "direction stops", psqlSelect("schedule_direction_stops", scheduleDirectionStopColumns, "route_id, direction_id, position"), scanScheduleDirectionStop, r.feed)
}
