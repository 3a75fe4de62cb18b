package model

import (
	"strconv"
	"time"
)

// Holds all external facing types and constants.

type LocationType int

const (
	LocationTypeStop LocationType = iota
	LocationTypeStation
	LocationTypeEntranceExit
	LocationTypeGenericNode
	LocationTypeBoardingArea
)

type RouteType int

const (
	RouteTypeTram       RouteType = 0
	RouteTypeSubway     RouteType = 1
	RouteTypeRail       RouteType = 2
	RouteTypeBus        RouteType = 3
	RouteTypeFerry      RouteType = 4
	RouteTypeCable      RouteType = 5
	RouteTypeAerial     RouteType = 6
	RouteTypeFunicular  RouteType = 7
	RouteTypeTrolleybus RouteType = 11
	RouteTypeMonorail   RouteType = 12
)

type ExceptionType int8

const (
	ExceptionTypeAdded   ExceptionType = 1
	ExceptionTypeRemoved ExceptionType = 2
)

// Trips and raw trips without a direction_id carry NoDirection.
const NoDirection int8 = -1

type Agency struct {
	ID       string
	Name     string
	URL      string
	Timezone string
}

type Calendar struct {
	ServiceID string
	StartDate string
	EndDate   string
	Weekday   int8
}

type CalendarDate struct {
	ServiceID     string
	Date          string
	ExceptionType ExceptionType
}

type Stop struct {
	ID            string
	Code          string
	Name          string
	Desc          string
	Lat           float64
	Lon           float64
	URL           string
	LocationType  LocationType
	ParentStation string
	PlatformCode  string
}

type Trip struct {
	ID          string
	RouteID     string
	ServiceID   string
	Headsign    string
	ShortName   string
	DirectionID int8
}

type Route struct {
	ID        string
	AgencyID  string
	ShortName string
	LongName  string
	Desc      string
	Type      RouteType
	URL       string
	Color     string
	TextColor string
}

// Arrival and Departure are "HHMMSS", or blank for stops that are not
// timepoints.
type StopTime struct {
	TripID       string
	StopID       string
	Headsign     string
	StopSequence uint32
	Arrival      string
	Departure    string
}

func hhmmss(s string) (time.Duration, bool) {
	if len(s) != 6 {
		return 0, false
	}
	h, errH := strconv.Atoi(s[0:2])
	m, errM := strconv.Atoi(s[2:4])
	sec, errS := strconv.Atoi(s[4:6])
	if errH != nil || errM != nil || errS != nil {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, true
}

func (st *StopTime) ArrivalTime() (time.Duration, bool) {
	return hhmmss(st.Arrival)
}

func (st *StopTime) DepartureTime() (time.Duration, bool) {
	return hhmmss(st.Departure)
}

// Symbolic stop identifier used by route authors. Resolved to feed
// stop_ids through a catalog.
type StopRef string

type DirectionLabel string

const (
	DirectionNorth DirectionLabel = "NORTH"
	DirectionSouth DirectionLabel = "SOUTH"
	DirectionEast  DirectionLabel = "EAST"
	DirectionWest  DirectionLabel = "WEST"
)

// A single stop_time as seen by the splitting engine.
type StopTimeRecord struct {
	StopID       string
	StopSequence uint32
	Arrival      string
}

func (r StopTimeRecord) ArrivalTime() (time.Duration, bool) {
	return hhmmss(r.Arrival)
}

// A trip as read from the feed. StopTimes are in stop_sequence order.
type RawTrip struct {
	TripID      string
	RouteID     string
	ServiceID   string
	Headsign    string
	DirectionID int8
	StopTimes   []StopTimeRecord
}

func (t RawTrip) HasDirection() bool {
	return t.DirectionID == 0 || t.DirectionID == 1
}

// How a trip's direction was decided.
type Rule string

const (
	RuleDirectionFlag Rule = "direction_flag"
	RuleHeadsign      Rule = "headsign"
	RuleStops         Rule = "stops"
	RulePassThrough   Rule = "pass_through"
)

type ClassifiedTrip struct {
	RawTrip

	// Index of the assigned direction (0 or 1) and its label.
	Direction int8
	Label     DirectionLabel
	Rule      Rule
}

// A stop_time placed in the canonical order of its direction.
//
// Anchor is the canonical position of the occurrence, or of the
// nearest matched occurrence before it for stops not in the canonical
// order (-1 if there is none). Offset counts unmatched occurrences
// since the anchor. Slot is the canonical position for matched
// occurrences and -1 otherwise.
type OrderedStop struct {
	TripID string
	StopTimeRecord

	Rank   int
	Slot   int
	Anchor int
	Offset int
}

type OrderedTrip struct {
	ClassifiedTrip

	// False for routes without a direction spec.
	Split bool
	Stops []OrderedStop
}
