package models

import "time"

// SubscriptionKeys is the encryption material the push transport needs to
// seal payloads for one endpoint.
type SubscriptionKeys struct {
	P256DH string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Subscription is a device's registered push target. A device holds at most
// one active subscription; a new registration replaces the old one.
type Subscription struct {
	ID        string           `json:"id"`
	DeviceID  string           `json:"device_id"`
	Endpoint  string           `json:"endpoint"`
	Keys      SubscriptionKeys `json:"keys"`
	OrderID   string           `json:"order_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// PushPayload is the out-of-band message delivered to the offline agent.
// Every field is optional; the agent falls back to defaults.
type PushPayload struct {
	Title         string `json:"title,omitempty"`
	Body          string `json:"body,omitempty"`
	OrderID       string `json:"orderId,omitempty"`
	TrackingToken string `json:"trackingToken,omitempty"`
}
