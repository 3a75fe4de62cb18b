package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"tidbyt.dev/tripsplit/model"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

// Each feed, and each split schedule, lives in its own database.
// With OnDisk they are files in Directory, otherwise in memory.
type SQLiteStorage struct {
	SQLiteConfig

	feeds     map[string]*sql.DB
	schedules map[string]*sql.DB
}

type SQLiteFeedWriter struct {
	db                  *sql.DB
	stopTimeInsertQuery *sql.Stmt
	stopTimeInsertTx    *sql.Tx
}

type SQLiteFeedReader struct {
	db *sql.DB
}

type SQLiteScheduleWriter struct {
	db                  *sql.DB
	tripStopInsertQuery *sql.Stmt
	tripStopInsertTx    *sql.Tx
}

type SQLiteScheduleReader struct {
	db *sql.DB
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	s := &SQLiteStorage{
		feeds:     map[string]*sql.DB{},
		schedules: map[string]*sql.DB{},
	}
	if len(cfg) > 0 {
		s.SQLiteConfig = cfg[0]
	}

	if s.OnDisk {
		if err := os.MkdirAll(s.Directory, 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", s.Directory, err)
		}
	}

	return s, nil
}

func (s *SQLiteStorage) path(name string) string {
	return filepath.Join(s.Directory, name+".db")
}

// Opens an existing database, either cached or on disk.
func (s *SQLiteStorage) open(cache map[string]*sql.DB, name string) (*sql.DB, error) {
	db, found := cache[name]
	if found {
		return db, nil
	}
	if !s.OnDisk {
		return nil, fmt.Errorf("%s does not exist", name)
	}

	sourceName := s.path(name)
	if _, err := os.Stat(sourceName); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s does not exist at %s", name, sourceName)
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	cache[name] = db

	return db, nil
}

// Creates a fresh database, replacing any existing one.
func (s *SQLiteStorage) create(cache map[string]*sql.DB, name string, schema map[string]string) (*sql.DB, error) {
	if old, found := cache[name]; found {
		old.Close()
		delete(cache, name)
	}

	sourceName := ":memory:"
	if s.OnDisk {
		sourceName = s.path(name)
		if _, err := os.Stat(sourceName); err == nil {
			err := os.Remove(sourceName)
			if err != nil {
				return nil, fmt.Errorf("removing existing database: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to :memory: is a new database
	db.SetMaxOpenConns(1)

	for table, query := range schema {
		_, err = db.Exec(query)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating %s table: %w", table, err)
		}
	}

	cache[name] = db

	return db, nil
}

func (s *SQLiteStorage) GetReader(feed string) (FeedReader, error) {
	db, err := s.open(s.feeds, feed)
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	return &SQLiteFeedReader{db: db}, nil
}

func (s *SQLiteStorage) GetWriter(feed string) (FeedWriter, error) {
	db, err := s.create(s.feeds, feed, sqliteFeedSchema)
	if err != nil {
		return nil, err
	}
	return &SQLiteFeedWriter{db: db}, nil
}

func (s *SQLiteStorage) GetScheduleReader(feed string) (ScheduleReader, error) {
	db, err := s.open(s.schedules, feed+"-schedule")
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	return &SQLiteScheduleReader{db: db}, nil
}

func (s *SQLiteStorage) GetScheduleWriter(feed string) (ScheduleWriter, error) {
	db, err := s.create(s.schedules, feed+"-schedule", sqliteScheduleSchema)
	if err != nil {
		return nil, err
	}
	return &SQLiteScheduleWriter{db: db}, nil
}

var sqliteFeedSchema = map[string]string{
	"agency": `
CREATE TABLE agency (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    url TEXT NOT NULL,
    timezone TEXT NOT NULL
);`,
	"stops": `
CREATE TABLE stops (
    id TEXT PRIMARY KEY,
    code TEXT,
    name TEXT NOT NULL,
    description TEXT,
    lat REAL NOT NULL,
    lon REAL NOT NULL,
    url TEXT,
    location_type INTEGER NOT NULL,
    parent_station TEXT,
    platform_code TEXT
);
CREATE INDEX stops_code ON stops (code);
`,
	"routes": `
CREATE TABLE routes (
    id TEXT PRIMARY KEY,
    agency_id TEXT,
    short_name TEXT,
    long_name TEXT NOT NULL,
    description TEXT,
    type INTEGER NOT NULL,
    url TEXT,
    color TEXT,
    text_color TEXT
);`,
	"trips": `
CREATE TABLE trips (
    id TEXT PRIMARY KEY,
    route_id TEXT NOT NULL,
    service_id TEXT NOT NULL,
    headsign TEXT,
    short_name TEXT,
    direction_id INTEGER NOT NULL
);
CREATE INDEX trips_route_id ON trips (route_id);
CREATE INDEX trips_service_id ON trips (service_id);
`,
	"stop_times": `
CREATE TABLE stop_times (
    trip_id TEXT NOT NULL,
    stop_id TEXT NOT NULL,
    stop_sequence INTEGER NOT NULL,
    arrival_time TEXT NOT NULL,
    departure_time TEXT NOT NULL,
    headsign TEXT
);
CREATE INDEX stop_times_trip_id ON stop_times (trip_id);
`,
	"calendar": `
CREATE TABLE calendar (
    service_id TEXT PRIMARY KEY,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    monday integer NOT NULL,
    tuesday integer NOT NULL,
    wednesday integer NOT NULL,
    thursday integer NOT NULL,
    friday integer NOT NULL,
    saturday integer NOT NULL,
    sunday integer NOT NULL
);`,
	"calendar_dates": `
CREATE TABLE calendar_dates (
    service_id TEXT NOT NULL,
    date TEXT NOT NULL,
    exception_type INTEGER NOT NULL
);`,
}

var sqliteScheduleSchema = map[string]string{
	"schedule_routes": `
CREATE TABLE schedule_routes (
    id INTEGER PRIMARY KEY,
    feed_route_id TEXT NOT NULL,
    short_name TEXT,
    long_name TEXT,
    type INTEGER NOT NULL,
    color TEXT,
    split INTEGER NOT NULL
);`,
	"schedule_trips": `
CREATE TABLE schedule_trips (
    trip_id TEXT PRIMARY KEY,
    route_id INTEGER NOT NULL,
    service_id TEXT NOT NULL,
    direction_id INTEGER NOT NULL,
    label TEXT,
    headsign TEXT,
    rule TEXT NOT NULL,
    position INTEGER NOT NULL
);
CREATE INDEX schedule_trips_route_id ON schedule_trips (route_id, position);
`,
	"schedule_trip_stops": `
CREATE TABLE schedule_trip_stops (
    trip_id TEXT NOT NULL,
    stop_id TEXT NOT NULL,
    stop_sequence INTEGER NOT NULL,
    arrival_time TEXT,
    rank INTEGER NOT NULL,
    slot INTEGER NOT NULL,
PRIMARY KEY (trip_id, rank)
);`,
	"schedule_direction_stops": `
CREATE TABLE schedule_direction_stops (
    route_id INTEGER NOT NULL,
    direction_id INTEGER NOT NULL,
    label TEXT,
    stop_id TEXT NOT NULL,
    stop_name TEXT,
    position INTEGER NOT NULL,
    slot INTEGER NOT NULL,
PRIMARY KEY (route_id, direction_id, position)
);`,
}

func sqliteInsert(table string, columns []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES (" + placeholders + ")"
}

func (f *SQLiteFeedWriter) WriteAgency(a model.Agency) error {
	return execInsert(f.db, "agency", sqliteInsert("agency", agencyColumns), agencyValues(a)...)
}

func (f *SQLiteFeedWriter) WriteStop(stop model.Stop) error {
	return execInsert(f.db, "stop", sqliteInsert("stops", stopColumns), stopValues(stop)...)
}

func (f *SQLiteFeedWriter) WriteRoute(route model.Route) error {
	return execInsert(f.db, "route", sqliteInsert("routes", routeColumns), routeValues(route)...)
}

func (f *SQLiteFeedWriter) BeginTrips() error {
	return nil
}

func (f *SQLiteFeedWriter) WriteTrip(trip model.Trip) error {
	return execInsert(f.db, "trip", sqliteInsert("trips", tripColumns), tripValues(trip)...)
}

func (f *SQLiteFeedWriter) EndTrips() error {
	return nil
}

func (f *SQLiteFeedWriter) BeginStopTimes() error {
	tx, stmt, err := sqlitePrepare(f.db, sqliteInsert("stop_times", stopTimeColumns))
	if err != nil {
		return fmt.Errorf("stop_times: %w", err)
	}
	f.stopTimeInsertTx, f.stopTimeInsertQuery = tx, stmt
	return nil
}

func (f *SQLiteFeedWriter) WriteStopTime(stopTime model.StopTime) error {
	if f.stopTimeInsertQuery == nil {
		return fmt.Errorf("WriteStopTime called outside BeginStopTimes/EndStopTimes")
	}

	if _, err := f.stopTimeInsertQuery.Exec(stopTimeValues(stopTime)...); err != nil {
		sqliteAbort(f.stopTimeInsertTx, f.stopTimeInsertQuery)
		f.stopTimeInsertTx, f.stopTimeInsertQuery = nil, nil
		return fmt.Errorf("inserting stop_time: %w", err)
	}

	return nil
}

func (f *SQLiteFeedWriter) EndStopTimes() error {
	if f.stopTimeInsertTx == nil {
		return fmt.Errorf("EndStopTimes called without BeginStopTimes")
	}

	err := sqliteCommit(f.stopTimeInsertTx, f.stopTimeInsertQuery)
	f.stopTimeInsertTx, f.stopTimeInsertQuery = nil, nil
	if err != nil {
		return fmt.Errorf("stop_times: %w", err)
	}
	return nil
}

func (f *SQLiteFeedWriter) WriteCalendar(cal model.Calendar) error {
	return execInsert(f.db, "calendar", sqliteInsert("calendar", calendarColumns), calendarValues(cal)...)
}

func (f *SQLiteFeedWriter) WriteCalendarDate(cd model.CalendarDate) error {
	return execInsert(f.db, "calendar date", sqliteInsert("calendar_dates", calendarDateColumns), calendarDateValues(cd)...)
}

func (f *SQLiteFeedWriter) Close() error {
	return sqliteAnalyze(f.db)
}

// Bulk inserts run as a single transaction with a prepared
// statement.
func sqlitePrepare(db *sql.DB, query string) (*sql.Tx, *sql.Stmt, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}

	stmt, err := tx.Prepare(query)
	if err != nil {
		tx.Rollback()
		return nil, nil, fmt.Errorf("preparing insert: %w", err)
	}

	return tx, stmt, nil
}

func sqliteAbort(tx *sql.Tx, stmt *sql.Stmt) {
	stmt.Close()
	tx.Rollback()
}

func sqliteCommit(tx *sql.Tx, stmt *sql.Stmt) error {
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func sqliteAnalyze(db *sql.DB) error {
	if _, err := db.Exec(`ANALYZE;`); err != nil {
		return fmt.Errorf("analyzing database: %w", err)
	}
	return nil
}

func (f *SQLiteFeedReader) ActiveServices(date string) ([]string, error) {
	weekday, err := weekdayColumn(date)
	if err != nil {
		return nil, err
	}

	// Services running on the weekday within their date range, less
	// those removed on the date, plus those added on it.
	return queryAll(f.db, "active services", `
SELECT service_id FROM calendar
WHERE `+weekday+` = 1 AND ? BETWEEN start_date AND end_date AND service_id NOT IN (
	SELECT service_id FROM calendar_dates WHERE date = ? AND exception_type = 2
)
UNION
SELECT service_id FROM calendar_dates
WHERE date = ? AND exception_type = 1
ORDER BY service_id`, scanString, date, date, date)
}

func (f *SQLiteFeedReader) Agencies() ([]model.Agency, error) {
	return queryAll(f.db, "agencies", selectFrom("agency", agencyColumns), scanAgency)
}

func (f *SQLiteFeedReader) Stops() ([]model.Stop, error) {
	return queryAll(f.db, "stops", selectFrom("stops", stopColumns), scanStop)
}

func (f *SQLiteFeedReader) Routes() ([]model.Route, error) {
	return queryAll(f.db, "routes", selectFrom("routes", routeColumns), scanRoute)
}

func (f *SQLiteFeedReader) Trips() ([]model.Trip, error) {
	return queryAll(f.db, "trips", selectFrom("trips", tripColumns), scanTrip)
}

func (f *SQLiteFeedReader) StopTimes() ([]model.StopTime, error) {
	return queryAll(f.db, "stop times", selectFrom("stop_times", stopTimeColumns), scanStopTime)
}

func (f *SQLiteFeedReader) Calendars() ([]model.Calendar, error) {
	return queryAll(f.db, "calendar", selectFrom("calendar", calendarColumns), scanCalendar)
}

func (f *SQLiteFeedReader) CalendarDates() ([]model.CalendarDate, error) {
	return queryAll(f.db, "calendar dates", selectFrom("calendar_dates", calendarDateColumns), scanCalendarDate)
}

func (w *SQLiteScheduleWriter) WriteRoute(route model.ScheduleRoute) error {
	return execInsert(w.db, "schedule route", sqliteInsert("schedule_routes", scheduleRouteColumns), scheduleRouteValues(route)...)
}

func (w *SQLiteScheduleWriter) WriteTrip(trip model.ScheduleTrip) error {
	return execInsert(w.db, "schedule trip", sqliteInsert("schedule_trips", scheduleTripColumns), scheduleTripValues(trip)...)
}

func (w *SQLiteScheduleWriter) BeginTripStops() error {
	tx, stmt, err := sqlitePrepare(w.db, sqliteInsert("schedule_trip_stops", scheduleTripStopColumns))
	if err != nil {
		return fmt.Errorf("trip stops: %w", err)
	}
	w.tripStopInsertTx, w.tripStopInsertQuery = tx, stmt
	return nil
}

func (w *SQLiteScheduleWriter) WriteTripStop(stop model.ScheduleTripStop) error {
	if w.tripStopInsertQuery == nil {
		return fmt.Errorf("WriteTripStop called outside BeginTripStops/EndTripStops")
	}

	if _, err := w.tripStopInsertQuery.Exec(scheduleTripStopValues(stop)...); err != nil {
		sqliteAbort(w.tripStopInsertTx, w.tripStopInsertQuery)
		w.tripStopInsertTx, w.tripStopInsertQuery = nil, nil
		return fmt.Errorf("inserting trip stop: %w", err)
	}

	return nil
}

func (w *SQLiteScheduleWriter) EndTripStops() error {
	if w.tripStopInsertTx == nil {
		return fmt.Errorf("EndTripStops called without BeginTripStops")
	}

	err := sqliteCommit(w.tripStopInsertTx, w.tripStopInsertQuery)
	w.tripStopInsertTx, w.tripStopInsertQuery = nil, nil
	if err != nil {
		return fmt.Errorf("trip stops: %w", err)
	}
	return nil
}

func (w *SQLiteScheduleWriter) WriteDirectionStop(stop model.ScheduleDirectionStop) error {
	return execInsert(w.db, "direction stop", sqliteInsert("schedule_direction_stops", scheduleDirectionStopColumns), scheduleDirectionStopValues(stop)...)
}

func (w *SQLiteScheduleWriter) Close() error {
	return sqliteAnalyze(w.db)
}

func (r *SQLiteScheduleReader) Routes() ([]model.ScheduleRoute, error) {
	return queryAll(r.db, "schedule routes", selectFrom("schedule_routes", scheduleRouteColumns)+" ORDER BY id", scanScheduleRoute)
}

func (r *SQLiteScheduleReader) Trips() ([]model.ScheduleTrip, error) {
	return queryAll(r.db, "schedule trips", selectFrom("schedule_trips", scheduleTripColumns)+" ORDER BY route_id, position", scanScheduleTrip)
}

func (r *SQLiteScheduleReader) TripStops() ([]model.ScheduleTripStop, error) {
	return queryAll(r.db, "trip stops", selectFrom("schedule_trip_stops", scheduleTripStopColumns)+" ORDER BY trip_id, rank", scanScheduleTripStop)
}

func (r *SQLiteScheduleReader) DirectionStops() ([]model.ScheduleDirectionStop, error) {
	return queryAll(r.db, "direction stops", selectFrom("schedule_direction_stops", scheduleDirectionStopColumns)+" ORDER BY route_id, direction_id, position", scanScheduleDirectionStop)
}
