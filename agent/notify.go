package agent

import (
	"context"
	"encoding/json"
	"net/url"

	"junk-removal/tracking/models"
)

// Hard-coded fallbacks used when a push payload is malformed or omits the
// display fields. The notification always renders.
const (
	defaultTitle = "Junk Removal Update"
	defaultBody  = "There is an update on your job."
)

// Notification is what the sink renders. The raw payload rides along as
// metadata so activation can route without re-fetching anything.
type Notification struct {
	ID      string
	Title   string
	Body    string
	Payload models.PushPayload
}

// NotificationSink renders system notifications. Implementable natively or
// by a thin platform shim; the agent never assumes a specific host API.
type NotificationSink interface {
	Notify(ctx context.Context, n Notification) error
	Close(ctx context.Context, id string) error
}

// WindowOpener navigates the app. FocusExisting reuses an already-open
// client window and reports whether there was one.
type WindowOpener interface {
	FocusExisting(ctx context.Context, path string) bool
	Open(ctx context.Context, path string) error
}

// ParsePayload decodes a raw push payload. Malformed JSON falls back to
// the generic defaults rather than failing the notification, and missing
// title/body are filled in the same way.
func ParsePayload(raw []byte) models.PushPayload {
	var payload models.PushPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		payload = models.PushPayload{}
	}
	if payload.Title == "" {
		payload.Title = defaultTitle
	}
	if payload.Body == "" {
		payload.Body = defaultBody
	}
	return payload
}

// RouteFor computes the in-app path a notification activation should open:
// the order's detail view when an order id is present, the tracking view
// for a bare tracking token, the dashboard otherwise.
func RouteFor(payload models.PushPayload) string {
	switch {
	case payload.OrderID != "":
		return "/orders/" + url.PathEscape(payload.OrderID)
	case payload.TrackingToken != "":
		return "/track?token=" + url.QueryEscape(payload.TrackingToken)
	default:
		return "/dashboard"
	}
}
