package parse

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"tidbyt.dev/tripsplit/model"
	"tidbyt.dev/tripsplit/storage"
)

type StopTimeCSV struct {
	TripID        string `csv:"trip_id"`
	StopID        string `csv:"stop_id"`
	StopSequence  uint32 `csv:"stop_sequence"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	Headsign      string `csv:"stop_headsign"`
}

// Converts H:MM:SS or HH:MM:SS to HHMMSS. Hours may exceed 23 for
// trips running past midnight. Blank stays blank.
func parseStopTimeTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("found %d parts in '%s'", len(parts), s)
	}

	hms := [3]int{}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return "", fmt.Errorf("non-integer in '%s' pos %d", s, i)
		}
		hms[i] = n
	}

	switch {
	case hms[0] < 0 || hms[0] > 99:
		return "", fmt.Errorf("invalid hour in '%s'", s)
	case hms[1] < 0 || hms[1] > 59:
		return "", fmt.Errorf("invalid minute in '%s'", s)
	case hms[2] < 0 || hms[2] > 59:
		return "", fmt.Errorf("invalid second in '%s'", s)
	}

	return fmt.Sprintf("%02d%02d%02d", hms[0], hms[1], hms[2]), nil
}

// Returns max arrival and departure times seen. Stops that aren't
// timepoints may leave both times blank. If only one is given, it is
// used for both.
func ParseStopTimes(
	writer storage.FeedWriter,
	data io.Reader,
	trips map[string]bool,
	stops map[string]bool,
) (string, string, error) {
	type tripSeq struct {
		trip string
		seq  uint32
	}
	seen := map[tripSeq]bool{}

	maxArrival := "000000"
	maxDeparture := "000000"

	row := 0
	err := gocsv.UnmarshalToCallbackWithError(data, func(st *StopTimeCSV) error {
		row++

		switch {
		case !trips[st.TripID]:
			return fmt.Errorf("unknown trip_id: '%s' (row %d)", st.TripID, row)
		case st.StopID == "":
			return fmt.Errorf("missing stop_id (row %d)", row)
		case !stops[st.StopID]:
			return fmt.Errorf("unknown stop_id: '%s' (row %d)", st.StopID, row)
		}

		key := tripSeq{st.TripID, st.StopSequence}
		if seen[key] {
			return fmt.Errorf("duplicate stop_sequence %d for trip_id '%s'", st.StopSequence, st.TripID)
		}
		seen[key] = true

		arrival, err := parseStopTimeTime(st.ArrivalTime)
		if err != nil {
			return errors.Wrapf(err, "parsing arrival_time (row %d)", row)
		}
		departure, err := parseStopTimeTime(st.DepartureTime)
		if err != nil {
			return errors.Wrapf(err, "parsing departure_time (row %d)", row)
		}
		if arrival == "" {
			arrival = departure
		}
		if departure == "" {
			departure = arrival
		}

		if arrival > maxArrival {
			maxArrival = arrival
		}
		if departure > maxDeparture {
			maxDeparture = departure
		}

		err = writer.WriteStopTime(model.StopTime{
			TripID:       st.TripID,
			StopID:       st.StopID,
			Headsign:     st.Headsign,
			StopSequence: st.StopSequence,
			Arrival:      arrival,
			Departure:    departure,
		})
		if err != nil {
			return errors.Wrapf(err, "writing stop_time (row %d)", row)
		}

		return nil
	})
	if err != nil {
		return "", "", errors.Wrap(err, "unmarshaling stop_times csv")
	}

	return maxArrival, maxDeparture, nil
}
