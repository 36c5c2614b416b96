package models

type MessageType string

const (
	MessageSnapshot MessageType = "snapshot"
	MessageStatus   MessageType = "status"
	MessageLocation MessageType = "location"
)

// Message is the live-channel wire envelope. A session receives one
// snapshot first, then a stream of status and location messages.
type Message struct {
	Type   MessageType     `json:"type"`
	Order  *Order          `json:"order,omitempty"`
	Event  *StatusEvent    `json:"event,omitempty"`
	Sample *LocationSample `json:"sample,omitempty"`
}
