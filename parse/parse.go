package parse

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"

	"tidbyt.dev/tripsplit/storage"
)

var (
	requiredFiles = []string{"agency.txt", "routes.txt", "stops.txt", "trips.txt", "stop_times.txt"}
	calendarFiles = []string{"calendar.txt", "calendar_dates.txt"}

	csvReaderOnce sync.Once
)

// Feeds in the wild are sloppy with quotes and often carry a BOM, so
// every table is read through a lazy CSV reader with the BOM
// stripped.
func useLazyCSVReader() {
	csvReaderOnce.Do(func() {
		gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
			return gocsv.LazyCSVReader(bom.NewReader(in))
		})
	})
}

// Opens the tables of a zipped static feed, keyed by file name.
// Files in subdirectories are accepted. Unknown files are ignored.
func openTables(buf []byte) (map[string]io.ReadCloser, error) {
	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("unzipping: %w", err)
	}

	known := map[string]bool{}
	for _, name := range append(requiredFiles, calendarFiles...) {
		known[name] = true
	}

	tables := map[string]io.ReadCloser{}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := f.Name[strings.LastIndex(f.Name, "/")+1:]
		if !known[name] || tables[name] != nil {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			closeTables(tables)
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		tables[name] = rc
	}

	return tables, nil
}

func closeTables(tables map[string]io.ReadCloser) {
	for _, rc := range tables {
		rc.Close()
	}
}

// Parses a zipped static GTFS feed into writer and returns a summary
// of the feed. The writer is closed on success.
func ParseStatic(writer storage.FeedWriter, buf []byte) (*storage.FeedMetadata, error) {
	tables, err := openTables(buf)
	if err != nil {
		return nil, err
	}
	defer closeTables(tables)

	if tables["calendar.txt"] == nil && tables["calendar_dates.txt"] == nil {
		return nil, fmt.Errorf("missing calendar.txt and calendar_dates.txt")
	}
	for _, name := range requiredFiles {
		if tables[name] == nil {
			return nil, fmt.Errorf("missing %s", name)
		}
	}

	useLazyCSVReader()

	agency, timezone, err := ParseAgency(writer, tables["agency.txt"])
	if err != nil {
		return nil, fmt.Errorf("parsing agency.txt: %w", err)
	}

	routes, err := ParseRoutes(writer, tables["routes.txt"], agency)
	if err != nil {
		return nil, fmt.Errorf("parsing routes.txt: %w", err)
	}

	// Services and the date range they cover come from either or
	// both calendar files.
	var calendarStart, calendarEnd string
	services := map[string]bool{}
	extend := func(from, to string) {
		if from != "" && (calendarStart == "" || from < calendarStart) {
			calendarStart = from
		}
		if to != "" && (calendarEnd == "" || to > calendarEnd) {
			calendarEnd = to
		}
	}

	if tables["calendar.txt"] != nil {
		calServices, from, to, err := ParseCalendar(writer, tables["calendar.txt"])
		if err != nil {
			return nil, fmt.Errorf("parsing calendar.txt: %w", err)
		}
		for id := range calServices {
			services[id] = true
		}
		extend(from, to)
	}
	if tables["calendar_dates.txt"] != nil {
		cdServices, from, to, err := ParseCalendarDates(writer, tables["calendar_dates.txt"])
		if err != nil {
			return nil, fmt.Errorf("parsing calendar_dates.txt: %w", err)
		}
		for id := range cdServices {
			services[id] = true
		}
		extend(from, to)
	}

	if err := writer.BeginTrips(); err != nil {
		return nil, fmt.Errorf("beginning trips: %w", err)
	}
	trips, err := ParseTrips(writer, tables["trips.txt"], routes, services)
	if err != nil {
		return nil, fmt.Errorf("parsing trips.txt: %w", err)
	}
	if err := writer.EndTrips(); err != nil {
		return nil, fmt.Errorf("ending trips: %w", err)
	}

	stops, err := ParseStops(writer, tables["stops.txt"])
	if err != nil {
		return nil, fmt.Errorf("parsing stops.txt: %w", err)
	}

	if err := writer.BeginStopTimes(); err != nil {
		return nil, fmt.Errorf("beginning stop_times: %w", err)
	}
	maxArrival, maxDeparture, err := ParseStopTimes(writer, tables["stop_times.txt"], trips, stops)
	if err != nil {
		return nil, fmt.Errorf("parsing stop_times.txt: %w", err)
	}
	if err := writer.EndStopTimes(); err != nil {
		return nil, fmt.Errorf("ending stop_times: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing feed writer: %w", err)
	}

	return &storage.FeedMetadata{
		Timezone:          timezone,
		CalendarStartDate: calendarStart,
		CalendarEndDate:   calendarEnd,
		MaxArrival:        maxArrival,
		MaxDeparture:      maxDeparture,
	}, nil
}
