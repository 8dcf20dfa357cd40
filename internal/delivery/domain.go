package delivery

import (
	"time"

	"github.com/reparto-app/reparto/internal/sales"
)

// EntryStatus is the per-stop state of a route entry.
type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryCompleted EntryStatus = "completed"
	EntrySkipped   EntryStatus = "skipped"
)

// IsValid reports whether the status is a known entry state.
func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryPending, EntryCompleted, EntrySkipped:
		return true
	}
	return false
}

// IsResolved reports whether the stop no longer needs a visit.
func (s EntryStatus) IsResolved() bool {
	return s == EntryCompleted || s == EntrySkipped
}

// ============================================================================
// ENTITIES
// ============================================================================

// RouteEntry is one stop on a delivery round. CreditToApply and
// AmountToCollect are frozen when the route is built; CustomerCredit is the
// live balance shown for reference. Version guards reorders against stale
// writes.
type RouteEntry struct {
	ID              int64       `json:"id" db:"id"`
	SaleID          int64       `json:"sale_id" db:"sale_id"`
	CustomerID      int64       `json:"customer_id" db:"customer_id"`
	CustomerName    string      `json:"customer_name"`
	SequenceOrder   int         `json:"sequence_order" db:"sequence_order"`
	Status          EntryStatus `json:"status" db:"status"`
	TotalAmount     float64     `json:"total_amount"`
	CustomerCredit  float64     `json:"customer_credit"`
	CreditToApply   float64     `json:"credit_to_apply" db:"credit_to_apply"`
	AmountToCollect float64     `json:"amount_to_collect" db:"amount_to_collect"`
	AmountCollected *float64    `json:"amount_collected,omitempty" db:"amount_collected"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
	SkipReason      *string     `json:"skip_reason,omitempty" db:"skip_reason"`
	IsNext          bool        `json:"is_next" db:"is_next"`
	Version         int         `json:"version" db:"version"`
	Items           []RouteItem `json:"items"`
}

// RouteItem is the delivery view of an order line.
type RouteItem struct {
	ProductName     string  `json:"product_name"`
	Quantity        int     `json:"quantity"`
	SellPriceAtSale float64 `json:"sell_price_at_sale"`
}

// Progress summarises a route. It is derived from the entries on every
// read and never persisted.
type Progress struct {
	CompletedCount     int         `json:"completed_count"`
	SkippedCount       int         `json:"skipped_count"`
	PendingCount       int         `json:"pending_count"`
	TotalCollected     float64     `json:"total_collected"`
	TotalSkippedAmount float64     `json:"total_skipped_amount"`
	TotalDeliveries    int         `json:"total_deliveries"`
	CurrentDelivery    *RouteEntry `json:"current_delivery,omitempty"`
}

// Route is the full delivery view of a sale.
type Route struct {
	SaleID     int64        `json:"sale_id"`
	SaleStatus sales.Status `json:"sale_status"`
	Entries    []RouteEntry `json:"entries"`
	Progress   Progress     `json:"progress"`
}

// SaleInfo is the slice of a sale the delivery engine needs.
type SaleInfo struct {
	ID       int64
	Status   sales.Status
	SaleDate time.Time
}

// CustomerOrderSummary feeds default route construction.
type CustomerOrderSummary struct {
	CustomerID   int64
	CustomerName string
	Credit       float64
	TotalAmount  float64
}

// CustomerStatus is the token-scoped delivery view for one customer.
type CustomerStatus struct {
	SaleStatus       string     `json:"sale_status"`
	DeliveryStatus   string     `json:"customer_delivery_status"`
	IsNext           bool       `json:"is_next"`
	PositionInQueue  *int       `json:"position_in_queue,omitempty"`
	DeliveriesAhead  *int       `json:"deliveries_ahead,omitempty"`
	EstimatedMinutes *int       `json:"estimated_minutes,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	AmountCollected  *float64   `json:"amount_collected,omitempty"`
	SkipReason       *string    `json:"skip_reason,omitempty"`
}

// ============================================================================
// REQUEST TYPES
// ============================================================================

// RoutePosition places a customer at a sequence slot.
type RoutePosition struct {
	CustomerID int64 `json:"customer_id" validate:"required"`
	Sequence   int   `json:"sequence" validate:"required,min=1"`
}

// SaveRouteRequest replaces the whole route order.
type SaveRouteRequest struct {
	Positions []RoutePosition `json:"positions" validate:"required,min=1,dive"`
}

// MoveRequest nudges one customer a single step up or down the route.
// Version, when set, must match the moved entry's current version.
type MoveRequest struct {
	CustomerID int64  `json:"customer_id" validate:"required"`
	Direction  string `json:"direction" validate:"required,oneof=up down"`
	Version    *int   `json:"version"`
}

// CompleteRequest resolves a stop as delivered. A nil amount defaults to
// the entry's amount_to_collect.
type CompleteRequest struct {
	AmountCollected *float64 `json:"amount_collected" validate:"omitempty,gte=0"`
}

// SkipRequest resolves a stop as skipped. The reason is mandatory.
type SkipRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=300"`
}

// ComputeProgress derives the progress summary from route entries. The
// current delivery is the explicitly selected next stop, falling back to
// the first pending entry in sequence order.
func ComputeProgress(entries []RouteEntry) Progress {
	p := Progress{TotalDeliveries: len(entries)}
	var firstPending *RouteEntry
	for i := range entries {
		entry := &entries[i]
		switch entry.Status {
		case EntryCompleted:
			p.CompletedCount++
			if entry.AmountCollected != nil {
				p.TotalCollected += *entry.AmountCollected
			}
		case EntrySkipped:
			p.SkippedCount++
			// The full order value stays outstanding on a skip; credit
			// applied to the entry does not shrink what was missed.
			p.TotalSkippedAmount += entry.TotalAmount
		default:
			p.PendingCount++
			if entry.IsNext && p.CurrentDelivery == nil {
				p.CurrentDelivery = entry
			}
			if firstPending == nil {
				firstPending = entry
			}
		}
	}
	if p.CurrentDelivery == nil {
		p.CurrentDelivery = firstPending
	}
	return p
}
