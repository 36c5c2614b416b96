// Package lifecycle owns the canonical order state machine: a rank-ordered
// fold that makes re-delivered and reordered events harmless.
package lifecycle

import (
	"errors"

	"junk-removal/tracking/models"
)

// ErrUnknownOrder is returned when an event references an order the store
// has no record of. Callers react by fetching full state, never by
// dropping the event silently.
var ErrUnknownOrder = errors.New("unknown order")

// Apply folds a status event into an order snapshot and returns the updated
// snapshot. The second return value reports whether the event changed the
// lifecycle status.
//
// Rules:
//   - cancelled applies unconditionally and is terminal
//   - otherwise only a strictly higher rank advances the order, so
//     duplicates and stale events are no-ops
//   - once terminal, nothing moves the order
//
// Location, ETA and distance are carried forward from the event when
// present; an event that omits them never clears a previously known value.
func Apply(order models.Order, event models.StatusEvent) (models.Order, bool) {
	// A terminal order ignores the whole event, carried fields included.
	if order.Status.Terminal() {
		return order, false
	}
	carryForward(&order, event)
	if event.Status == models.OrderStatusCancelled {
		order.Status = models.OrderStatusCancelled
		return order, true
	}
	if event.Status.Rank() > order.Status.Rank() {
		order.Status = event.Status
		return order, true
	}
	return order, false
}

func carryForward(order *models.Order, event models.StatusEvent) {
	if event.Driver != nil {
		order.Driver = event.Driver
	}
	if event.DriverLocation != nil {
		loc := *event.DriverLocation
		order.DriverLocation = &loc
	}
	if event.EtaSeconds != nil {
		eta := *event.EtaSeconds
		order.EtaSeconds = &eta
	}
	if event.DistanceMeters != nil {
		dist := *event.DistanceMeters
		order.DistanceMeters = &dist
	}
}

// AcceptSample reports whether a location sample should replace the last
// accepted one. Samples must be strictly newer by ObservedAt; anything else
// is jitter reordering and is discarded.
func AcceptSample(last *models.LocationSample, sample models.LocationSample) bool {
	if last == nil {
		return true
	}
	return sample.ObservedAt.After(last.ObservedAt)
}
