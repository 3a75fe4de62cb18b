package tripsplit

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"tidbyt.dev/tripsplit/clean"
	"tidbyt.dev/tripsplit/config"
	"tidbyt.dev/tripsplit/internal/logging"
	"tidbyt.dev/tripsplit/model"
	"tidbyt.dev/tripsplit/split"
	"tidbyt.dev/tripsplit/storage"
)

const DefaultColor = "056839"

// Turns a parsed feed into a split schedule, following the route
// data in Config.
type Converter struct {
	Config *config.Config
	Logger *slog.Logger

	// Max routes split concurrently. 0 means no limit.
	Workers int
}

func NewConverter(cfg *config.Config, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Converter{
		Config: cfg,
		Logger: logger,
	}
}

// Output of a conversion. Trips are grouped by route and sorted as
// the engine sorts them. Position of a trip is its index within its
// route.
type Schedule struct {
	Routes         []model.ScheduleRoute
	Trips          []model.ScheduleTrip
	TripStops      []model.ScheduleTripStop
	DirectionStops []model.ScheduleDirectionStop
	Rejections     []split.Rejection
}

// Derives the numeric route id from a route short name. Digits are
// used as is, anything else must be a configured alias.
func (c *Converter) RouteID(route model.Route) (int64, error) {
	rsn := clean.RouteShortName(route.ShortName)
	if id, err := strconv.ParseInt(rsn, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	if id, found := c.Config.RouteAliases[strings.ToUpper(rsn)]; found {
		return id, nil
	}
	return 0, &split.ConfigurationError{
		Reason: fmt.Sprintf("unexpected route short name '%s' (route_id '%s')", route.ShortName, route.ID),
	}
}

// The feed long name, unless blank or a placeholder like "Route 4",
// in which case the configured long name is used.
func (c *Converter) RouteLongName(routeID int64, route model.Route) (string, error) {
	long := strings.TrimSpace(route.LongName)
	rsn := clean.RouteShortName(route.ShortName)
	if strings.EqualFold(long, "Route "+rsn) {
		long = ""
	}
	if long != "" {
		return long, nil
	}

	if fallback, found := c.Config.RouteLongNames[routeID]; found {
		return fallback, nil
	}
	return "", &split.ConfigurationError{
		RouteID: routeID,
		Reason:  fmt.Sprintf("no long name for route_id '%s'", route.ID),
	}
}

func (c *Converter) routeColor(route model.Route) string {
	if route.Color != "" {
		return strings.ToUpper(route.Color)
	}
	if c.Config.Agency.Color != "" {
		return strings.ToUpper(c.Config.Agency.Color)
	}
	return DefaultColor
}

func (c *Converter) catalog(feed *Feed) (*split.Catalog, error) {
	stops, err := feed.Stops()
	if err != nil {
		return nil, err
	}

	catalog, err := split.CatalogFromStops(stops, c.Config.CatalogKey())
	if err != nil {
		return nil, err
	}

	return catalog.With(c.Config.Remap()), nil
}

// Compiles the configured route specs against the feed's stops.
func (c *Converter) Compile(feed *Feed) (*split.CompiledTable, error) {
	table, err := c.Config.Table()
	if err != nil {
		return nil, err
	}

	catalog, err := c.catalog(feed)
	if err != nil {
		return nil, err
	}

	return table.Compile(catalog)
}

// Problems found by Check.
type Report struct {
	// One error per route spec that doesn't compile against the
	// feed.
	Routes []error

	// Routes without a spec where one direction ends up with more
	// than one headsign. These need a headsign override.
	Headsigns []error

	Rejections []split.Rejection
	Trips      int
}

func (r *Report) OK() bool {
	return len(r.Routes) == 0 && len(r.Headsigns) == 0 && len(r.Rejections) == 0
}

// Dry run of Convert. Every route spec is compiled separately so all
// unresolved refs are reported. If they all compile, trips are split
// leniently and the rejections reported.
func (c *Converter) Check(ctx context.Context, feed *Feed) (*Report, error) {
	table, err := c.Config.Table()
	if err != nil {
		return nil, err
	}

	catalog, err := c.catalog(feed)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, id := range table.RouteIDs() {
		spec, _ := table.ForRoute(id)
		if _, err := spec.Compile(catalog); err != nil {
			report.Routes = append(report.Routes, err)
		}
	}
	if len(report.Routes) > 0 {
		return report, nil
	}

	lenient := *c
	cfg := *c.Config
	cfg.Policy = string(split.PolicyLenient)
	lenient.Config = &cfg

	schedule, err := lenient.Convert(ctx, feed)
	if err != nil {
		return nil, err
	}
	report.Headsigns = headsignConflicts(schedule.Trips)
	report.Rejections = schedule.Rejections
	report.Trips = len(schedule.Trips)

	return report, nil
}

func headsignConflicts(trips []model.ScheduleTrip) []error {
	type key struct {
		routeID   int64
		direction int8
	}

	keys := []key{}
	headsigns := map[key][]string{}
	for _, trip := range trips {
		if trip.Rule != model.RulePassThrough || trip.Headsign == "" {
			continue
		}
		k := key{trip.RouteID, trip.DirectionID}
		if _, found := headsigns[k]; !found {
			keys = append(keys, k)
		}
		if !slices.Contains(headsigns[k], trip.Headsign) {
			headsigns[k] = append(headsigns[k], trip.Headsign)
		}
	}

	conflicts := []error{}
	for _, k := range keys {
		if len(headsigns[k]) < 2 {
			continue
		}
		sorted := slices.Sorted(slices.Values(headsigns[k]))
		conflicts = append(conflicts, &split.ConfigurationError{
			RouteID: k.routeID,
			Reason: fmt.Sprintf(
				"direction_id %d has headsigns '%s', needs a headsign override",
				k.direction, strings.Join(sorted, "', '"),
			),
		})
	}
	return conflicts
}

// Maps feed route_id to schedule route. The list is in schedule
// route id order. All routes take the agency's route type.
func (c *Converter) scheduleRoutes(feed *Feed, compiled *split.CompiledTable) (map[string]model.ScheduleRoute, []model.ScheduleRoute, error) {
	routes, err := feed.Routes()
	if err != nil {
		return nil, nil, err
	}

	byFeedID := map[string]model.ScheduleRoute{}
	seen := map[int64]string{}
	list := make([]model.ScheduleRoute, 0, len(routes))

	for _, r := range routes {
		id, err := c.RouteID(r)
		if err != nil {
			return nil, nil, err
		}
		if other, dup := seen[id]; dup {
			return nil, nil, &split.ConfigurationError{
				RouteID: id,
				Reason:  fmt.Sprintf("route_ids '%s' and '%s' map to the same route", other, r.ID),
			}
		}
		seen[id] = r.ID

		long, err := c.RouteLongName(id, r)
		if err != nil {
			return nil, nil, err
		}

		_, hasSpec := compiled.ForRoute(id)
		sr := model.ScheduleRoute{
			ID:          id,
			FeedRouteID: r.ID,
			ShortName:   clean.RouteShortName(r.ShortName),
			LongName:    long,
			Type:        model.RouteType(c.Config.Agency.RouteType),
			Color:       c.routeColor(r),
			Split:       hasSpec,
		}
		byFeedID[r.ID] = sr
		list = append(list, sr)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	return byFeedID, list, nil
}

// Runs the whole conversion: compile route data, select useful
// services, split trips and resolve headsigns.
func (c *Converter) Convert(ctx context.Context, feed *Feed) (*Schedule, error) {
	start := time.Now()

	policy, err := c.Config.SplitPolicy()
	if err != nil {
		return nil, err
	}

	overrides, err := c.Config.Overrides()
	if err != nil {
		return nil, err
	}

	compiled, err := c.Compile(feed)
	if err != nil {
		return nil, err
	}

	routesByFeedID, routes, err := c.scheduleRoutes(feed, compiled)
	if err != nil {
		return nil, err
	}

	from, to, err := c.Config.Window()
	if err != nil {
		return nil, err
	}
	services, err := UsefulServices(feed.Reader, from, to)
	if err != nil {
		return nil, err
	}

	raw, err := feed.RawTrips(services)
	if err != nil {
		return nil, err
	}

	stops, err := feed.Stops()
	if err != nil {
		return nil, err
	}
	stopNames := make(map[string]string, len(stops))
	for _, stop := range stops {
		stopNames[stop.ID] = clean.StopName(stop.Name)
	}

	tripsByRoute := map[int64][]model.RawTrip{}
	for _, trip := range raw {
		route, found := routesByFeedID[trip.RouteID]
		if !found {
			return nil, fmt.Errorf("trip '%s' references unknown route_id '%s'", trip.TripID, trip.RouteID)
		}
		tripsByRoute[route.ID] = append(tripsByRoute[route.ID], trip)
	}

	engine := split.NewEngine(compiled, policy, c.Logger)
	engine.Workers = c.Workers

	result, err := engine.Run(ctx, tripsByRoute)
	if err != nil {
		return nil, err
	}

	schedule := &Schedule{
		Routes:     routes,
		Rejections: result.Rejections,
	}

	for _, rr := range result.Routes {
		compiledRoute, _ := compiled.ForRoute(rr.RouteID)

		for i, trip := range rr.Trips {
			schedule.Trips = append(schedule.Trips, model.ScheduleTrip{
				TripID:      trip.TripID,
				RouteID:     rr.RouteID,
				ServiceID:   trip.ServiceID,
				DirectionID: trip.Direction,
				Label:       string(trip.Label),
				Headsign:    split.ResolveHeadsign(rr.RouteID, trip, compiledRoute, overrides, clean.TripHeadsign),
				Rule:        trip.Rule,
				Position:    i,
			})

			for _, stop := range trip.Stops {
				schedule.TripStops = append(schedule.TripStops, model.ScheduleTripStop{
					TripID:       trip.TripID,
					StopID:       stop.StopID,
					StopSequence: stop.StopSequence,
					Arrival:      stop.Arrival,
					Rank:         stop.Rank,
					Slot:         stop.Slot,
				})
			}
		}

		for _, ds := range rr.Stops {
			schedule.DirectionStops = append(schedule.DirectionStops, model.ScheduleDirectionStop{
				RouteID:     rr.RouteID,
				DirectionID: ds.Direction,
				Label:       string(ds.Label),
				StopID:      ds.StopID,
				StopName:    stopNames[ds.StopID],
				Position:    ds.Position,
				Slot:        ds.Slot,
			})
		}
	}

	logging.LogOperation(c.Logger, "convert_complete",
		slog.Int("routes", len(schedule.Routes)),
		slog.Int("trips", len(schedule.Trips)),
		slog.Int("rejected", len(schedule.Rejections)),
		slog.Duration("duration", time.Since(start)),
	)

	return schedule, nil
}

// Persists the schedule.
func (s *Schedule) Write(w storage.ScheduleWriter) error {
	for _, r := range s.Routes {
		if err := w.WriteRoute(r); err != nil {
			return err
		}
	}

	for _, t := range s.Trips {
		if err := w.WriteTrip(t); err != nil {
			return err
		}
	}

	if err := w.BeginTripStops(); err != nil {
		return fmt.Errorf("beginning trip stops: %w", err)
	}
	for _, ts := range s.TripStops {
		if err := w.WriteTripStop(ts); err != nil {
			return err
		}
	}
	if err := w.EndTripStops(); err != nil {
		return fmt.Errorf("ending trip stops: %w", err)
	}

	for _, ds := range s.DirectionStops {
		if err := w.WriteDirectionStop(ds); err != nil {
			return err
		}
	}

	return w.Close()
}
