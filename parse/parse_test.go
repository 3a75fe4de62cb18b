package parse

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/tripsplit/model"
	"tidbyt.dev/tripsplit/storage"
)

func buildZip(t *testing.T, files map[string][]string) []byte {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for filename, content := range files {
		f, err := w.Create(filename)
		require.NoError(t, err)
		_, err = f.Write([]byte(strings.Join(content, "\n")))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return buf.Bytes()
}

// Writer and reader for a fresh in-memory feed.
func memoryFeed(t *testing.T) (storage.FeedWriter, storage.FeedReader) {
	s := storage.NewMemoryStorage()
	writer, err := s.GetWriter("test")
	require.NoError(t, err)
	reader, err := s.GetReader("test")
	require.NoError(t, err)
	return writer, reader
}

func csv(lines ...string) *bytes.Buffer {
	return bytes.NewBufferString(strings.Join(lines, "\n"))
}

// A small feed with one trip lacking direction_id and one
// non-timepoint stop.
func fixtureSimple() map[string][]string {
	return map[string][]string{
		"agency.txt": {
			"agency_timezone,agency_name,agency_url",
			"America/Edmonton,GP Transit,http://gp/index.html",
		},
		"routes.txt": {
			"route_id,route_short_name,route_type",
			"r,Route 1,3",
		},
		"calendar.txt": {
			"service_id,monday,start_date,end_date",
			"mondays,1,20190101,20190301",
		},
		"calendar_dates.txt": {
			"service_id,date,exception_type",
			"mondays,20190302,1",
		},
		"trips.txt": {
			"route_id,service_id,trip_id,trip_headsign",
			"r,mondays,t,Northgate",
		},
		"stops.txt": {
			"stop_id,stop_code,stop_name,stop_lat,stop_lon",
			"s1,101,First,55.1,-118.8",
			"s2,102,Second,55.2,-118.8",
		},
		"stop_times.txt": {
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
			"t,12:00:00,12:00:00,s1,1",
			"t,,,s2,2",
		},
	}
}

func TestParseValidFeed(t *testing.T) {
	writer, reader := memoryFeed(t)

	metadata, err := ParseStatic(writer, buildZip(t, fixtureSimple()))
	require.NoError(t, err)
	assert.Equal(t, &storage.FeedMetadata{
		Timezone:          "America/Edmonton",
		CalendarStartDate: "20190101",
		CalendarEndDate:   "20190302",
		MaxArrival:        "120000",
		MaxDeparture:      "120000",
	}, metadata)

	agencies, err := reader.Agencies()
	require.NoError(t, err)
	assert.Equal(t, []model.Agency{{
		Name:     "GP Transit",
		URL:      "http://gp/index.html",
		Timezone: "America/Edmonton",
	}}, agencies)

	routes, err := reader.Routes()
	require.NoError(t, err)
	assert.Equal(t, []model.Route{{
		ID:        "r",
		ShortName: "Route 1",
		Type:      model.RouteTypeBus,
	}}, routes)

	calendars, err := reader.Calendars()
	require.NoError(t, err)
	assert.Equal(t, []model.Calendar{{
		ServiceID: "mondays",
		StartDate: "20190101",
		EndDate:   "20190301",
		Weekday:   1 << time.Monday,
	}}, calendars)

	trips, err := reader.Trips()
	require.NoError(t, err)
	assert.Equal(t, []model.Trip{{
		ID:          "t",
		RouteID:     "r",
		ServiceID:   "mondays",
		Headsign:    "Northgate",
		DirectionID: model.NoDirection,
	}}, trips)

	stops, err := reader.Stops()
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.Stop{
		{ID: "s1", Code: "101", Name: "First", Lat: 55.1, Lon: -118.8},
		{ID: "s2", Code: "102", Name: "Second", Lat: 55.2, Lon: -118.8},
	}, stops)

	stopTimes, err := reader.StopTimes()
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.StopTime{
		{TripID: "t", StopID: "s1", StopSequence: 1, Arrival: "120000", Departure: "120000"},
		{TripID: "t", StopID: "s2", StopSequence: 2},
	}, stopTimes)
}

func TestParseMissingFiles(t *testing.T) {
	for _, tc := range []struct {
		name    string
		missing []string
		err     bool
		start   string
		end     string
	}{
		{"agency", []string{"agency.txt"}, true, "", ""},
		{"routes", []string{"routes.txt"}, true, "", ""},
		{"trips", []string{"trips.txt"}, true, "", ""},
		{"stops", []string{"stops.txt"}, true, "", ""},
		{"stop_times", []string{"stop_times.txt"}, true, "", ""},
		{"calendar only", []string{"calendar.txt"}, false, "20190302", "20190302"},
		{"calendar_dates only", []string{"calendar_dates.txt"}, false, "20190101", "20190301"},
		{"both calendars", []string{"calendar.txt", "calendar_dates.txt"}, true, "", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			files := fixtureSimple()
			for _, name := range tc.missing {
				delete(files, name)
			}

			writer, _ := memoryFeed(t)
			metadata, err := ParseStatic(writer, buildZip(t, files))
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.start, metadata.CalendarStartDate)
			assert.Equal(t, tc.end, metadata.CalendarEndDate)
		})
	}
}

func TestParseBrokenFile(t *testing.T) {
	for _, file := range []string{
		"agency.txt",
		"routes.txt",
		"calendar.txt",
		"calendar_dates.txt",
		"trips.txt",
		"stops.txt",
		"stop_times.txt",
	} {
		t.Run(file, func(t *testing.T) {
			files := fixtureSimple()
			files[file][1] = "malformed"

			writer, _ := memoryFeed(t)
			_, err := ParseStatic(writer, buildZip(t, files))
			assert.Error(t, err)
		})
	}

	writer, _ := memoryFeed(t)
	_, err := ParseStatic(writer, []byte("malformed"))
	assert.Error(t, err, "malformed zip file")
}

// Some agencies place files in subdirectories.
func TestParseFilesInSubdirectory(t *testing.T) {
	files := map[string][]string{}
	for name, contents := range fixtureSimple() {
		files["gp/transit/"+name] = contents
	}

	writer, reader := memoryFeed(t)
	metadata, err := ParseStatic(writer, buildZip(t, files))
	require.NoError(t, err)
	assert.Equal(t, "America/Edmonton", metadata.Timezone)

	trips, err := reader.Trips()
	require.NoError(t, err)
	assert.Len(t, trips, 1)
}

func TestParseWithByteOrderMark(t *testing.T) {
	files := fixtureSimple()
	files["stops.txt"][0] = "\ufeff" + files["stops.txt"][0]

	writer, reader := memoryFeed(t)
	_, err := ParseStatic(writer, buildZip(t, files))
	require.NoError(t, err)

	stops, err := reader.Stops()
	require.NoError(t, err)
	ids := []string{}
	for _, s := range stops {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)
}
