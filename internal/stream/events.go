// Package stream fans sale lifecycle events out to SSE subscribers and to
// the push-notification watcher. Redis pub/sub is the transport, so every
// server instance sees every event.
package stream

import "time"

// EventType enumerates sale lifecycle events.
type EventType string

const (
	EventSaleCreated       EventType = "sale_created"
	EventSaleStatusChanged EventType = "sale_status_changed"
	EventSaleOrdersChanged EventType = "sale_orders_changed"
)

// SaleSummary is the wire shape of a sale inside events and snapshots.
type SaleSummary struct {
	ID       int64  `json:"id"`
	SaleDate string `json:"sale_date"`
	Status   string `json:"status"`
}

// Event is a single sale lifecycle event.
type Event struct {
	Type EventType   `json:"type"`
	Sale SaleSummary `json:"sale"`
	At   time.Time   `json:"at"`
}

// NotificationKind tags Notification variants.
type NotificationKind int

const (
	// NotificationNewSale fires when a sale id appears that was not in the
	// previously observed snapshot.
	NotificationNewSale NotificationKind = iota + 1
	// NotificationDeliveryStarted fires when a known sale moves to
	// in_progress.
	NotificationDeliveryStarted
)

// Notification is the outcome of diffing two consecutive snapshots.
type Notification struct {
	Kind     NotificationKind
	SaleID   int64
	SaleDate string
}
