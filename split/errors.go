package split

import (
	"fmt"

	"github.com/pkg/errors"

	"tidbyt.dev/tripsplit/model"
)

// A mistake in hand-authored route data. Fatal at startup.
type ConfigurationError struct {
	RouteID int64
	StopRef model.StopRef
	Reason  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("route %d: %s", e.RouteID, e.Reason)
	if e.StopRef != "" {
		msg = fmt.Sprintf("route %d: stop ref '%s': %s", e.RouteID, e.StopRef, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Returned by a catalog lookup. Wrapped in a ConfigurationError when
// raised while compiling a route.
type UnresolvedStopError struct {
	StopRef model.StopRef
}

func (e *UnresolvedStopError) Error() string {
	return fmt.Sprintf("stop ref '%s' has no mapping in catalog", e.StopRef)
}

// The classifier could not pick a direction for a trip.
type AmbiguousTripError struct {
	RouteID int64
	TripID  string
	Reason  string
}

func (e *AmbiguousTripError) Error() string {
	return fmt.Sprintf("route %d: trip '%s': ambiguous direction: %s", e.RouteID, e.TripID, e.Reason)
}

// The matcher could not place a trip's stops in canonical order.
type SequenceMismatchError struct {
	RouteID int64
	TripID  string
	StopID  string
	Reason  string
}

func (e *SequenceMismatchError) Error() string {
	if e.StopID == "" {
		return fmt.Sprintf("route %d: trip '%s': sequence mismatch: %s", e.RouteID, e.TripID, e.Reason)
	}
	return fmt.Sprintf("route %d: trip '%s': stop '%s': sequence mismatch: %s", e.RouteID, e.TripID, e.StopID, e.Reason)
}

// True for errors that concern a single trip, as opposed to
// configuration errors.
func IsTripError(err error) bool {
	var ambiguous *AmbiguousTripError
	var mismatch *SequenceMismatchError
	return errors.As(err, &ambiguous) || errors.As(err, &mismatch)
}

// True for errors caused by route configuration.
func IsConfigurationError(err error) bool {
	var cfg *ConfigurationError
	return errors.As(err, &cfg)
}
