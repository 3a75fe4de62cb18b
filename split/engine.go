package split

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"tidbyt.dev/tripsplit/internal/logging"
	"tidbyt.dev/tripsplit/model"
)

// What to do with trips that can't be classified or ordered.
type Policy string

const (
	// Abort the run on the first bad trip.
	PolicyStrict Policy = "strict"

	// Drop the trip, record a Rejection and carry on.
	PolicyLenient Policy = "lenient"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyStrict, "":
		return PolicyStrict, nil
	case PolicyLenient:
		return PolicyLenient, nil
	}
	return "", fmt.Errorf("unknown policy '%s'", s)
}

type Rejection struct {
	RouteID int64
	TripID  string
	Err     error
}

type RouteResult struct {
	RouteID int64

	// Whether the route had a direction spec.
	Split bool

	Trips []model.OrderedTrip
	Stops []DirectionStop
}

type Result struct {
	Routes     []RouteResult
	Rejections []Rejection
}

// Runs classification and ordering over all trips of a feed.
//
// The compiled table is shared read-only between workers. Each route
// is processed independently and sorted before it is returned, so
// output is identical from run to run.
type Engine struct {
	Table  *CompiledTable
	Policy Policy
	Logger *slog.Logger

	// Max number of routes processed concurrently. 0 means no
	// limit.
	Workers int
}

func NewEngine(table *CompiledTable, policy Policy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{
		Table:  table,
		Policy: policy,
		Logger: logger,
	}
}

// Classifies and orders a single trip of a route with a spec.
func ProcessTrip(trip model.RawTrip, route *CompiledRoute) (model.OrderedTrip, error) {
	classified, err := Classify(trip, route)
	if err != nil {
		return model.OrderedTrip{}, err
	}
	return Order(classified, route)
}

func (e *Engine) Run(ctx context.Context, tripsByRoute map[int64][]model.RawTrip) (*Result, error) {
	start := time.Now()

	routeIDs := make([]int64, 0, len(tripsByRoute))
	for id := range tripsByRoute {
		routeIDs = append(routeIDs, id)
	}
	sort.Slice(routeIDs, func(i, j int) bool { return routeIDs[i] < routeIDs[j] })

	results := make([]RouteResult, len(routeIDs))
	rejections := make([][]Rejection, len(routeIDs))

	g, gctx := errgroup.WithContext(ctx)
	if e.Workers > 0 {
		g.SetLimit(e.Workers)
	}

	for i, routeID := range routeIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, rejected, err := e.processRoute(routeID, tripsByRoute[routeID])
			if err != nil {
				return err
			}
			results[i] = result
			rejections[i] = rejected
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result{Routes: results, Rejections: []Rejection{}}
	trips := 0
	for i := range results {
		trips += len(results[i].Trips)
		out.Rejections = append(out.Rejections, rejections[i]...)
	}

	logging.LogOperation(e.Logger, "split_complete",
		slog.Int("routes", len(results)),
		slog.Int("trips", trips),
		slog.Int("rejected", len(out.Rejections)),
		slog.Duration("duration", time.Since(start)),
	)

	return out, nil
}

func (e *Engine) processRoute(routeID int64, trips []model.RawTrip) (RouteResult, []Rejection, error) {
	route, hasSpec := e.Table.ForRoute(routeID)

	result := RouteResult{
		RouteID: routeID,
		Split:   hasSpec,
		Trips:   make([]model.OrderedTrip, 0, len(trips)),
	}
	rejected := []Rejection{}

	for _, trip := range trips {
		if !hasSpec {
			result.Trips = append(result.Trips, PassThrough(trip))
			continue
		}

		ordered, err := ProcessTrip(trip, route)
		if err != nil {
			if e.Policy != PolicyLenient {
				return RouteResult{}, nil, err
			}
			logging.LogWarning(e.Logger, "trip_rejected", err,
				slog.Int64("route_id", routeID),
				slog.String("trip_id", trip.TripID),
			)
			rejected = append(rejected, Rejection{RouteID: routeID, TripID: trip.TripID, Err: err})
			continue
		}
		result.Trips = append(result.Trips, ordered)
	}

	SortTrips(result.Trips)
	result.Stops = MergeStops(result.Trips)

	sort.SliceStable(rejected, func(i, j int) bool {
		return rejected[i].TripID < rejected[j].TripID
	})

	return result, rejected, nil
}
