package model

// Records produced by splitting a feed. These are what gets persisted
// through a ScheduleWriter and written out as CSV.

type ScheduleRoute struct {
	ID          int64     `csv:"route_id"`
	FeedRouteID string    `csv:"feed_route_id"`
	ShortName   string    `csv:"route_short_name"`
	LongName    string    `csv:"route_long_name"`
	Type        RouteType `csv:"route_type"`
	Color       string    `csv:"route_color"`
	Split       bool      `csv:"split"`
}

// Position is the trip's place among the sorted trips of its route.
type ScheduleTrip struct {
	TripID      string `csv:"trip_id"`
	RouteID     int64  `csv:"route_id"`
	ServiceID   string `csv:"service_id"`
	DirectionID int8   `csv:"direction_id"`
	Label       string `csv:"direction"`
	Headsign    string `csv:"headsign"`
	Rule        Rule   `csv:"rule"`
	Position    int    `csv:"position"`
}

type ScheduleTripStop struct {
	TripID       string `csv:"trip_id"`
	StopID       string `csv:"stop_id"`
	StopSequence uint32 `csv:"stop_sequence"`
	Arrival      string `csv:"arrival_time"`
	Rank         int    `csv:"rank"`
	Slot         int    `csv:"slot"`
}

type ScheduleDirectionStop struct {
	RouteID     int64  `csv:"route_id"`
	DirectionID int8   `csv:"direction_id"`
	Label       string `csv:"direction"`
	StopID      string `csv:"stop_id"`
	StopName    string `csv:"stop_name"`
	Position    int    `csv:"position"`
	Slot        int    `csv:"slot"`
}
