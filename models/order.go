package models

import "time"

type OrderStatus string

const (
	OrderStatusPending     OrderStatus = "pending"
	OrderStatusDispatching OrderStatus = "dispatching"
	OrderStatusAssigned    OrderStatus = "assigned"
	OrderStatusEnRoute     OrderStatus = "en_route"
	OrderStatusArrived     OrderStatus = "arrived"
	OrderStatusInProgress  OrderStatus = "in_progress"
	OrderStatusCompleted   OrderStatus = "completed"
	OrderStatusCancelled   OrderStatus = "cancelled"

	// OrderStatusUnclassified is the display fallback for a status value
	// this build does not know. It never advances an order.
	OrderStatusUnclassified OrderStatus = "unclassified"
)

var statusRanks = map[OrderStatus]int{
	OrderStatusPending:     0,
	OrderStatusDispatching: 1,
	OrderStatusAssigned:    2,
	OrderStatusEnRoute:     3,
	OrderStatusArrived:     4,
	OrderStatusInProgress:  5,
	OrderStatusCompleted:   6,
}

// Rank returns the position of the status in the lifecycle progression,
// or -1 for cancelled and unknown values. Cancelled is not ordered; it is
// applied unconditionally by the fold.
func (s OrderStatus) Rank() int {
	if r, ok := statusRanks[s]; ok {
		return r
	}
	return -1
}

// Known reports whether the status is one of the enumerated lifecycle values.
func (s OrderStatus) Known() bool {
	_, ok := statusRanks[s]
	return ok || s == OrderStatusCancelled
}

// Terminal reports whether no further transition can move the order.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Display returns the status for rendering, mapping unknown values to the
// unclassified fallback so the UI never crashes on a value it does not know.
func (s OrderStatus) Display() OrderStatus {
	if !s.Known() {
		return OrderStatusUnclassified
	}
	return s
}

type Driver struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Order struct {
	ID               string      `json:"id"`
	Status           OrderStatus `json:"status"`
	ServiceType      string      `json:"service_type"`
	PickupAddress    string      `json:"pickup_address"`
	ScheduledFor     time.Time   `json:"scheduled_for"`
	PickupTimeWindow string      `json:"pickup_time_window"`
	EstimatedPrice   float64     `json:"estimated_price"`
	Driver           *Driver     `json:"driver,omitempty"`

	// Last known driver position and progress figures, carried forward
	// from events that included them.
	DriverLocation *LocationSample `json:"driver_location,omitempty"`
	EtaSeconds     *int            `json:"eta_seconds,omitempty"`
	DistanceMeters *float64        `json:"distance_meters,omitempty"`
}

// StatusEvent is a single lifecycle transition produced by the upstream
// dispatch/payment/driver authority. The tracking core never originates one.
type StatusEvent struct {
	OrderID        string          `json:"order_id"`
	Status         OrderStatus     `json:"status"`
	Driver         *Driver         `json:"driver,omitempty"`
	DriverLocation *LocationSample `json:"driver_location,omitempty"`
	EtaSeconds     *int            `json:"eta_seconds,omitempty"`
	DistanceMeters *float64        `json:"distance_meters,omitempty"`
}

// LocationSample is one driver position report. Later samples supersede
// earlier ones; ordering is decided by ObservedAt, not arrival order.
type LocationSample struct {
	OrderID    string    `json:"order_id,omitempty"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	ObservedAt time.Time `json:"observed_at"`
}
